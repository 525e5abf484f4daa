package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"shorturl-service/internal/model"
	"shorturl-service/internal/policy"
	"shorturl-service/internal/shortcode"
	"shorturl-service/internal/store"

	"go.uber.org/zap"
)

const (
	// OwnerAnonymous 记录没有创建者
	OwnerAnonymous = "Anonymous"
	// OwnerUnknown 创建者无法解析
	OwnerUnknown = "Unknown"
)

// UserDirectory 把用户 ID 解析成展示名
type UserDirectory interface {
	DisplayName(ctx context.Context, userID string) (string, error)
}

// ResolveCache 短码到原始 URL 的缓存
type ResolveCache interface {
	Get(ctx context.Context, code string) (string, error)
	Set(ctx context.Context, code, url string) error
	Delete(ctx context.Context, code string) error
}

// LinkView 记录加上展示用的字段
type LinkView struct {
	model.ShortLink
	CreatedBy string `json:"created_by"`
	ShortURL  string `json:"short_url"`
}

// LinkService 组合短码生成、存储和所有权规则
type LinkService struct {
	links    store.LinkStore
	resolver *shortcode.Resolver
	policy   policy.Policy
	users    UserDirectory
	cache    ResolveCache
	baseURL  string
	logger   *zap.SugaredLogger
}

// Option 服务选项
type Option func(*LinkService)

// WithCache 启用解析缓存
func WithCache(c ResolveCache) Option {
	return func(s *LinkService) {
		s.cache = c
	}
}

// WithBaseURL 设置短链接域名，例如 https://s.example.com
func WithBaseURL(baseURL string) Option {
	return func(s *LinkService) {
		s.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// NewLinkService 创建服务，users 可以为 nil（所有创建者都显示为 Unknown）
func NewLinkService(links store.LinkStore, resolver *shortcode.Resolver, p policy.Policy, users UserDirectory, logger *zap.SugaredLogger, opts ...Option) *LinkService {
	s := &LinkService{
		links:    links,
		resolver: resolver,
		policy:   p,
		users:    users,
		logger:   logger.Named("link_service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create 为调用方缩短一个 URL
func (s *LinkService) Create(ctx context.Context, rawURL string, caller *policy.CallerIdentity) (*LinkView, error) {
	if err := s.policy.CanCreate(caller, nil, nil); err != nil {
		return nil, err
	}
	rawURL = strings.TrimSpace(rawURL)
	if err := ValidateURL(rawURL); err != nil {
		return nil, err
	}

	own, err := s.lookup(s.links.FindByOwnerAndURL(ctx, caller.UserID, rawURL))
	if err != nil {
		return nil, err
	}
	var existing *model.ShortLink
	if own == nil && caller.IsAdmin() {
		if existing, err = s.lookup(s.links.FindByURL(ctx, rawURL)); err != nil {
			return nil, err
		}
	}
	if err := s.policy.CanCreate(caller, own, existing); err != nil {
		return nil, err
	}

	owner := caller.UserID
	link, err := s.resolver.Reserve(ctx, rawURL, func(code string) *model.ShortLink {
		return &model.ShortLink{
			ShortCode:   code,
			OriginalURL: rawURL,
			URLHash:     model.HashURL(rawURL),
			OwnerID:     &owner,
			CreatedAt:   time.Now().UTC(),
		}
	})
	if err != nil {
		if errors.Is(err, model.ErrDuplicateConflict) {
			// 并发提交时由唯一索引兜底，查出已有记录返回给调用方
			existing, _ := s.lookup(s.links.FindByOwnerAndURL(ctx, caller.UserID, rawURL))
			return nil, &model.DuplicateError{Existing: existing}
		}
		if errors.Is(err, model.ErrCollisionExhausted) {
			s.logger.Warnw("短码预留失败", "url", rawURL, "owner", owner)
		}
		return nil, err
	}

	if caller.IsAdmin() {
		// 管理员规则没有唯一索引兜底，插入后再确认自己是该 URL 最早的记录
		if earlier, err := s.lookup(s.links.FindByURL(ctx, rawURL)); err == nil && earlier != nil && earlier.ID != link.ID {
			if err := s.links.Delete(ctx, link.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
				s.logger.Errorf("回滚管理员重复记录失败 id=%d: %v", link.ID, err)
			}
			return nil, &model.DuplicateError{Existing: earlier}
		}
	}

	s.cacheSet(ctx, link.ShortCode, link.OriginalURL)
	s.logger.Infow("短链接已创建", "id", link.ID, "code", link.ShortCode, "owner", owner)

	name := caller.Username
	if name == "" {
		name = s.ownerName(ctx, link, nil)
	}
	return &LinkView{ShortLink: *link, CreatedBy: name, ShortURL: s.ShortURL(link.ShortCode)}, nil
}

// Resolve 返回短码对应的原始 URL，匿名可调用
func (s *LinkService) Resolve(ctx context.Context, code string) (string, error) {
	if !shortcode.IsValid(code) {
		return "", model.ErrNotFound
	}

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, code); err != nil {
			s.logger.Warnf("读取缓存失败: %v", err)
		} else if cached != "" {
			return cached, nil
		}
	}

	link, err := s.links.FindByCode(ctx, code)
	if err != nil {
		return "", err
	}
	if err := s.policy.CanResolve(link); err != nil {
		return "", err
	}

	if s.cache != nil {
		s.cacheSet(ctx, link.ShortCode, link.OriginalURL)
		// 回填期间记录可能已被删除，删除方清缓存在回填之前时需要这里撤销
		exists, err := s.links.ExistsByCode(ctx, link.ShortCode)
		if err != nil {
			return "", err
		}
		if !exists {
			if err := s.cache.Delete(ctx, link.ShortCode); err != nil {
				s.logger.Warnf("删除缓存失败 code=%s: %v", link.ShortCode, err)
			}
			return "", model.ErrNotFound
		}
	}
	return link.OriginalURL, nil
}

// GetDetail 返回单条记录的详情，需要登录
func (s *LinkService) GetDetail(ctx context.Context, id uint, caller *policy.CallerIdentity) (*LinkView, error) {
	if err := s.policy.CanViewDetail(caller, nil); err != nil {
		return nil, err
	}
	link, err := s.links.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.CanViewDetail(caller, link); err != nil {
		return nil, err
	}
	return s.view(ctx, link, nil), nil
}

// List 返回所有记录，匿名可调用
func (s *LinkService) List(ctx context.Context) ([]LinkView, error) {
	if err := s.policy.CanList(); err != nil {
		return nil, err
	}
	links, err := s.links.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	names := make(map[string]string)
	views := make([]LinkView, 0, len(links))
	for i := range links {
		views = append(views, *s.view(ctx, &links[i], names))
	}
	return views, nil
}

// Delete 删除记录，只有创建者或管理员可以操作
func (s *LinkService) Delete(ctx context.Context, id uint, caller *policy.CallerIdentity) error {
	link, err := s.links.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.policy.CanDelete(caller, link); err != nil {
		return err
	}
	if err := s.links.Delete(ctx, id); err != nil {
		return err
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, link.ShortCode); err != nil {
			s.logger.Warnf("删除缓存失败 code=%s: %v", link.ShortCode, err)
		}
	}
	s.logger.Infow("短链接已删除", "id", id, "code", link.ShortCode, "by", caller.UserID)
	return nil
}

// View 为已有记录补上创建者和短链接
func (s *LinkService) View(ctx context.Context, link *model.ShortLink) *LinkView {
	return s.view(ctx, link, nil)
}

// ShortURL 拼接完整短链接
func (s *LinkService) ShortURL(code string) string {
	return s.baseURL + "/" + code
}

func (s *LinkService) view(ctx context.Context, link *model.ShortLink, names map[string]string) *LinkView {
	return &LinkView{
		ShortLink: *link,
		CreatedBy: s.ownerName(ctx, link, names),
		ShortURL:  s.ShortURL(link.ShortCode),
	}
}

// ownerName 解析创建者展示名，names 用于在一次列表请求中复用结果
func (s *LinkService) ownerName(ctx context.Context, link *model.ShortLink, names map[string]string) string {
	if !link.HasOwner() {
		return OwnerAnonymous
	}
	id := *link.OwnerID
	if name, ok := names[id]; ok {
		return name
	}

	name := OwnerUnknown
	if s.users != nil {
		if n, err := s.users.DisplayName(ctx, id); err == nil && n != "" {
			name = n
		}
	}
	if names != nil {
		names[id] = name
	}
	return name
}

func (s *LinkService) cacheSet(ctx context.Context, code, url string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, code, url); err != nil {
		s.logger.Warnf("写入缓存失败 code=%s: %v", code, err)
	}
}

// lookup 把 ErrNotFound 转成 nil 记录
func (s *LinkService) lookup(link *model.ShortLink, err error) (*model.ShortLink, error) {
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return link, err
}

// ValidateURL 要求绝对 URL：scheme 为 http/https/ftp 且 host 非空
func ValidateURL(raw string) error {
	if raw == "" {
		return model.ErrInvalidURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return model.ErrInvalidURL
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "ftp":
	default:
		return model.ErrInvalidURL
	}
	if strings.TrimSpace(u.Hostname()) == "" {
		return model.ErrInvalidURL
	}
	return nil
}
