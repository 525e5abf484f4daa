package store

import (
	"context"
	"errors"
	"strconv"

	"shorturl-service/internal/model"

	"gorm.io/gorm"
)

// ErrUserNotFound 用户不存在
var ErrUserNotFound = errors.New("user not found")

// UserStore 用户表访问
type UserStore struct {
	db *gorm.DB
}

// NewUserStore 创建用户存储
func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

// AutoMigrate 建表
func (s *UserStore) AutoMigrate() error {
	return s.db.AutoMigrate(&model.User{})
}

func (s *UserStore) Create(ctx context.Context, user *model.User) error {
	return s.db.WithContext(ctx).Create(user).Error
}

func (s *UserStore) UsernameExists(ctx context.Context, username string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *UserStore) EmailExists(ctx context.Context, email string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *UserStore) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// FindByID 用户 ID 以字符串形式在系统中传递
func (s *UserStore) FindByID(ctx context.Context, id string) (*model.User, error) {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return nil, ErrUserNotFound
	}
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, n).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// DisplayName 返回用户名，用于展示短链接的创建者
func (s *UserStore) DisplayName(ctx context.Context, id string) (string, error) {
	user, err := s.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	return user.Username, nil
}

// TouchLastLogin 更新最后登录时间
func (s *UserStore) TouchLastLogin(ctx context.Context, user *model.User) error {
	return s.db.WithContext(ctx).Model(user).Update("last_login", gorm.Expr("CURRENT_TIMESTAMP")).Error
}

// EnsureAdmin 管理员不存在时创建，返回是否新建
func (s *UserStore) EnsureAdmin(ctx context.Context, username, email, password string) (bool, error) {
	exists, err := s.UsernameExists(ctx, username)
	if err != nil || exists {
		return false, err
	}

	admin := model.User{Username: username, Email: email, Role: model.RoleAdmin, IsActive: true}
	if err := admin.SetPassword(password); err != nil {
		return false, err
	}
	if err := s.Create(ctx, &admin); err != nil {
		return false, err
	}
	return true, nil
}
