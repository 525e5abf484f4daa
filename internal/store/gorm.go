package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"shorturl-service/internal/model"

	"gorm.io/gorm"
)

// GormStore 基于 gorm 的实现，唯一性依赖数据库唯一索引
type GormStore struct {
	db *gorm.DB
}

// NewGormStore 创建 gorm 存储
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// AutoMigrate 建表和索引
func (s *GormStore) AutoMigrate() error {
	return s.db.AutoMigrate(&model.ShortLink{})
}

func (s *GormStore) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.ShortLink{}).Where("short_code = ?", code).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *GormStore) InsertIfAbsent(ctx context.Context, link *model.ShortLink) error {
	if link.URLHash == "" {
		link.URLHash = model.HashURL(link.OriginalURL)
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}

	err := s.db.WithContext(ctx).Create(link).Error
	if err == nil {
		return nil
	}
	if !isUniqueViolation(err) {
		return err
	}

	// 两个唯一索引都可能冲突，通过短码是否存在来区分
	link.ID = 0
	taken, exErr := s.ExistsByCode(ctx, link.ShortCode)
	if exErr != nil {
		return exErr
	}
	if taken {
		return ErrCodeTaken
	}
	return ErrOwnerURLTaken
}

func (s *GormStore) FindByCode(ctx context.Context, code string) (*model.ShortLink, error) {
	return s.first(ctx, "short_code = ?", code)
}

func (s *GormStore) FindByOwnerAndURL(ctx context.Context, ownerID, rawURL string) (*model.ShortLink, error) {
	return s.first(ctx, "owner_id = ? AND url_hash = ? AND original_url = ?", ownerID, model.HashURL(rawURL), rawURL)
}

func (s *GormStore) FindByURL(ctx context.Context, rawURL string) (*model.ShortLink, error) {
	return s.first(ctx, "url_hash = ? AND original_url = ?", model.HashURL(rawURL), rawURL)
}

func (s *GormStore) FindByID(ctx context.Context, id uint) (*model.ShortLink, error) {
	return s.first(ctx, "id = ?", id)
}

func (s *GormStore) Delete(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&model.ShortLink{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) ListAll(ctx context.Context) ([]model.ShortLink, error) {
	var links []model.ShortLink
	if err := s.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&links).Error; err != nil {
		return nil, err
	}
	return links, nil
}

func (s *GormStore) first(ctx context.Context, query string, args ...interface{}) (*model.ShortLink, error) {
	var link model.ShortLink
	err := s.db.WithContext(ctx).Where(query, args...).First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &link, nil
}

// isUniqueViolation 识别唯一约束冲突
// 开启 TranslateError 时驱动返回 gorm.ErrDuplicatedKey，否则按 MySQL/SQLite 的错误文本判断
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "Error 1062") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
