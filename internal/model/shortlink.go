package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// ShortLink 短链接记录
//
// 记录创建后不可修改，生命周期只有创建和删除两个事件。
// (owner_id, url_hash) 组合唯一，保证同一用户对同一个 URL 最多只有一条记录。
type ShortLink struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	ShortCode   string    `gorm:"size:16;uniqueIndex;not null" json:"short_code"`
	OriginalURL string    `gorm:"type:text;not null" json:"original_url"`
	URLHash     string    `gorm:"type:char(64);not null;index;uniqueIndex:idx_owner_url,priority:2" json:"-"`
	OwnerID     *string   `gorm:"size:64;uniqueIndex:idx_owner_url,priority:1" json:"owner_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName 指定表名
func (ShortLink) TableName() string {
	return "short_links"
}

// HasOwner 记录是否有创建者
func (l *ShortLink) HasOwner() bool {
	return l.OwnerID != nil && *l.OwnerID != ""
}

// OwnedBy 判断记录是否属于给定用户
func (l *ShortLink) OwnedBy(userID string) bool {
	return l.HasOwner() && userID != "" && *l.OwnerID == userID
}

// HashURL 计算 URL 的 sha256 摘要（十六进制），用于唯一索引
func HashURL(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(sum[:])
}
