package store

import (
	"context"
	"errors"

	"shorturl-service/internal/model"
)

var (
	// ErrNotFound 记录不存在
	ErrNotFound = model.ErrNotFound
	// ErrCodeTaken 短码已被占用（包括检查后插入前被其他请求抢占）
	ErrCodeTaken = errors.New("short code already taken")
	// ErrOwnerURLTaken 同一用户已经缩短过该 URL
	ErrOwnerURLTaken = errors.New("url already shortened by owner")
)

// LinkStore 短链接的持久化边界
//
// InsertIfAbsent 和 Delete 必须各自是原子的；
// 同一个短码的并发插入只有一个能成功，其余返回 ErrCodeTaken。
type LinkStore interface {
	ExistsByCode(ctx context.Context, code string) (bool, error)
	// InsertIfAbsent 插入记录并回填 ID/CreatedAt，返回 nil、ErrCodeTaken 或 ErrOwnerURLTaken
	InsertIfAbsent(ctx context.Context, link *model.ShortLink) error
	FindByCode(ctx context.Context, code string) (*model.ShortLink, error)
	FindByOwnerAndURL(ctx context.Context, ownerID, rawURL string) (*model.ShortLink, error)
	// FindByURL 返回任意用户创建的该 URL 的一条记录
	FindByURL(ctx context.Context, rawURL string) (*model.ShortLink, error)
	FindByID(ctx context.Context, id uint) (*model.ShortLink, error)
	Delete(ctx context.Context, id uint) error
	// ListAll 按创建时间倒序返回所有记录
	ListAll(ctx context.Context) ([]model.ShortLink, error)
}
