// Package policy 决定调用方能否创建、查看、删除短链接。
// 所有判断都是纯函数，需要的记录由调用方事先查好传入。
package policy

import (
	"strings"

	"shorturl-service/internal/model"
)

// CallerIdentity 已验证的调用方身份，nil 表示未认证
type CallerIdentity struct {
	UserID   string
	Username string
	Roles    []string
}

// NewCallerIdentity 由身份提供方的声明构造
func NewCallerIdentity(userID, username string, roles ...string) *CallerIdentity {
	return &CallerIdentity{UserID: userID, Username: username, Roles: roles}
}

// HasRole 角色比较不区分大小写
func (c *CallerIdentity) HasRole(role string) bool {
	if c == nil {
		return false
	}
	for _, r := range c.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// IsAdmin 是否具有管理员权限
func (c *CallerIdentity) IsAdmin() bool {
	return c.HasRole(model.RoleAdmin)
}

func (c *CallerIdentity) authenticated() bool {
	return c != nil && c.UserID != ""
}

// Policy 所有权规则
type Policy struct{}

// New 创建策略
func New() Policy {
	return Policy{}
}

// CanCreate 判断能否创建
//
// ownRecord: 调用方自己对该 URL 已有的记录，可为 nil
// anyRecord: 任意用户对该 URL 已有的记录，可为 nil
// 管理员重复缩短任何已有的 URL 也视为冲突。
func (Policy) CanCreate(caller *CallerIdentity, ownRecord, anyRecord *model.ShortLink) error {
	if !caller.authenticated() {
		return model.ErrUnauthenticated
	}
	if ownRecord != nil {
		return &model.DuplicateError{Existing: ownRecord}
	}
	if anyRecord != nil && caller.IsAdmin() {
		return &model.DuplicateError{Existing: anyRecord}
	}
	return nil
}

// CanViewDetail 任何已认证用户都可以查看详情
func (Policy) CanViewDetail(caller *CallerIdentity, _ *model.ShortLink) error {
	if !caller.authenticated() {
		return model.ErrUnauthenticated
	}
	return nil
}

// CanDelete 只有创建者或管理员可以删除
func (Policy) CanDelete(caller *CallerIdentity, link *model.ShortLink) error {
	if caller.IsAdmin() {
		return nil
	}
	if caller.authenticated() && link.OwnedBy(caller.UserID) {
		return nil
	}
	return model.ErrForbidden
}

// CanResolve 跳转不做任何限制
func (Policy) CanResolve(*model.ShortLink) error {
	return nil
}

// CanList 列表对匿名用户开放
func (Policy) CanList() error {
	return nil
}
