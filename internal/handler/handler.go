package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"shorturl-service/internal/middleware"
	"shorturl-service/internal/model"
	"shorturl-service/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ShortLinkHandler 短链接处理器
type ShortLinkHandler struct {
	links  *service.LinkService
	logger *zap.SugaredLogger
}

// NewShortLinkHandler 创建处理器实例
func NewShortLinkHandler(links *service.LinkService, logger *zap.SugaredLogger) *ShortLinkHandler {
	return &ShortLinkHandler{links: links, logger: logger.Named("shortlink_handler")}
}

// HealthCheck 健康检查
func (h *ShortLinkHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
}

// CreateShortLinkRequest 创建短链接请求
type CreateShortLinkRequest struct {
	URL string `json:"url" binding:"required" example:"https://github.com/gin-gonic/gin"`
}

// ShortLinkResponse 短链接响应
type ShortLinkResponse struct {
	ID          uint      `json:"id" example:"1"`
	OriginalURL string    `json:"original_url" example:"https://github.com/gin-gonic/gin"`
	ShortCode   string    `json:"short_code" example:"3fK9aQ2"`
	ShortURL    string    `json:"short_url" example:"http://localhost:8080/3fK9aQ2"`
	CreatedAt   time.Time `json:"created_at"`
	CreatedBy   string    `json:"created_by" example:"admin"`
}

// ConflictResponse 重复缩短时返回已存在的记录
type ConflictResponse struct {
	Error    string             `json:"error"`
	Existing *ShortLinkResponse `json:"existing,omitempty"`
}

func toResponse(v *service.LinkView) ShortLinkResponse {
	return ShortLinkResponse{
		ID:          v.ID,
		OriginalURL: v.OriginalURL,
		ShortCode:   v.ShortCode,
		ShortURL:    v.ShortURL,
		CreatedAt:   v.CreatedAt,
		CreatedBy:   v.CreatedBy,
	}
}

// CreateShortLink godoc
// @Summary 创建短链接
// @Description 为一个长 URL 创建一个新的短链接，同一用户不能重复缩短同一个 URL
// @Tags ShortLink
// @Security ApiKeyAuth
// @Accept  json
// @Produce  json
// @Param   url  body   CreateShortLinkRequest  true  "长链接 URL"
// @Success 201 {object} ShortLinkResponse "成功响应"
// @Failure 400 {object} map[string]string "请求无效"
// @Failure 401 {object} map[string]string "未认证"
// @Failure 409 {object} ConflictResponse "已经缩短过"
// @Failure 503 {object} map[string]string "短码分配失败，可重试"
// @Router /api/urls [post]
func (h *ShortLinkHandler) CreateShortLink(c *gin.Context) {
	var req CreateShortLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求数据: " + err.Error()})
		return
	}

	view, err := h.links.Create(c.Request.Context(), req.URL, middleware.Caller(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toResponse(view))
}

// RedirectToOriginal 短码跳转
// @Summary 短码跳转
// @Tags ShortLink
// @Param   code  path  string  true  "短码"
// @Success 302
// @Failure 404 {object} map[string]string "短码不存在"
// @Router /{code} [get]
func (h *ShortLinkHandler) RedirectToOriginal(c *gin.Context) {
	target, err := h.links.Resolve(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Redirect(http.StatusFound, target)
}

// GetAllLinks godoc
// @Summary 短链接列表
// @Description 匿名可访问，创建者显示为用户名、Anonymous 或 Unknown
// @Tags ShortLink
// @Produce  json
// @Success 200 {array} ShortLinkResponse
// @Router /api/urls [get]
func (h *ShortLinkHandler) GetAllLinks(c *gin.Context) {
	views, err := h.links.List(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	resp := make([]ShortLinkResponse, 0, len(views))
	for i := range views {
		resp = append(resp, toResponse(&views[i]))
	}
	c.JSON(http.StatusOK, resp)
}

// GetLinkDetail godoc
// @Summary 短链接详情
// @Tags ShortLink
// @Security ApiKeyAuth
// @Produce  json
// @Param   id  path  int  true  "记录 ID"
// @Success 200 {object} ShortLinkResponse
// @Failure 401 {object} map[string]string "未认证"
// @Failure 404 {object} map[string]string "不存在"
// @Router /api/urls/{id} [get]
func (h *ShortLinkHandler) GetLinkDetail(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	view, err := h.links.GetDetail(c.Request.Context(), id, middleware.Caller(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(view))
}

// DeleteLink godoc
// @Summary 删除短链接
// @Description 只有创建者或管理员可以删除
// @Tags ShortLink
// @Security ApiKeyAuth
// @Param   id  path  int  true  "记录 ID"
// @Success 204
// @Failure 403 {object} map[string]string "无权限"
// @Failure 404 {object} map[string]string "不存在"
// @Router /api/urls/{id} [delete]
func (h *ShortLinkHandler) DeleteLink(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.links.Delete(c.Request.Context(), id, middleware.Caller(c)); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "链接不存在"})
		return 0, false
	}
	return uint(id), true
}

// writeError 把业务错误映射为 HTTP 响应
func (h *ShortLinkHandler) writeError(c *gin.Context, err error) {
	var dup *model.DuplicateError
	switch {
	case errors.As(err, &dup):
		resp := ConflictResponse{Error: "该 URL 已经被你或管理员缩短过"}
		if dup.Existing != nil {
			existing := toResponse(h.links.View(c.Request.Context(), dup.Existing))
			resp.Existing = &existing
		}
		c.JSON(http.StatusConflict, resp)
	case errors.Is(err, model.ErrDuplicateConflict):
		c.JSON(http.StatusConflict, ConflictResponse{Error: "该 URL 已经被你或管理员缩短过"})
	case errors.Is(err, model.ErrInvalidURL):
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的 URL"})
	case errors.Is(err, model.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未认证"})
	case errors.Is(err, model.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "无权操作该链接"})
	case errors.Is(err, model.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "链接不存在"})
	case errors.Is(err, model.ErrCollisionExhausted):
		c.Header("Retry-After", "1")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "短码分配失败，请稍后重试"})
	default:
		h.logger.Errorf("处理请求失败: %v", err)
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "服务器内部错误"})
	}
}
