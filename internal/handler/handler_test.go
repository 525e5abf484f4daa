package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"shorturl-service/internal/middleware"
	"shorturl-service/internal/policy"
	"shorturl-service/internal/service"
	"shorturl-service/internal/shortcode"
	"shorturl-service/internal/store"
	"shorturl-service/pkg/database"
	auth "shorturl-service/pkg/jwt"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testServer struct {
	router *gin.Engine
	users  *store.UserStore
	tokens *auth.TokenManager
}

func setupRouter(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.Open(database.Options{
		Driver: "sqlite",
		Name:   fmt.Sprintf("file:handler_%s?mode=memory&cache=shared", name),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		_ = sqlDB.Close()
	})

	links := store.NewGormStore(db)
	require.NoError(t, links.AutoMigrate())
	users := store.NewUserStore(db)
	require.NoError(t, users.AutoMigrate())

	logger := zap.NewNop().Sugar()
	resolver := shortcode.NewResolver(shortcode.NewGenerator(7), links, nil, 5, logger)
	svc := service.NewLinkService(links, resolver, policy.New(), users, logger, service.WithBaseURL("http://localhost:8080"))
	tokens := auth.NewManager("test-secret", "shorturl-test", 1)

	router := gin.New()
	RegisterRoutes(router,
		NewShortLinkHandler(svc, logger),
		NewAuthHandler(users, tokens, logger),
		middleware.IdentityMiddleware(tokens),
	)
	return &testServer{router: router, users: users, tokens: tokens}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, path, &buf)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// register 注册用户并返回令牌
func (s *testServer) register(t *testing.T, username string) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/auth/register", "", RegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "password123",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func (s *testServer) admin(t *testing.T) string {
	t.Helper()
	_, err := s.users.EnsureAdmin(context.Background(), "root", "root@example.com", "admin123")
	require.NoError(t, err)
	w := s.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Username: "root", Password: "admin123"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Token
}

func decodeLink(t *testing.T, w *httptest.ResponseRecorder) ShortLinkResponse {
	t.Helper()
	var resp ShortLinkResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealthCheck(t *testing.T) {
	s := setupRouter(t)
	w := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestCreateAndRedirect(t *testing.T) {
	s := setupRouter(t)
	token := s.register(t, "alice")

	w := s.do(t, http.MethodPost, "/api/urls", token, CreateShortLinkRequest{URL: "https://github.com/gin-gonic/gin"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	link := decodeLink(t, w)
	assert.Len(t, link.ShortCode, 7)
	assert.Equal(t, "alice", link.CreatedBy)
	assert.Equal(t, "http://localhost:8080/"+link.ShortCode, link.ShortURL)
	assert.NotZero(t, link.ID)

	w = s.do(t, http.MethodGet, "/"+link.ShortCode, "", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://github.com/gin-gonic/gin", w.Header().Get("Location"))

	w = s.do(t, http.MethodGet, "/api/urls/redirect/"+link.ShortCode, "", nil)
	assert.Equal(t, http.StatusFound, w.Code)

	w = s.do(t, http.MethodGet, "/nope123", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateShortLink_Errors(t *testing.T) {
	s := setupRouter(t)
	token := s.register(t, "alice")

	t.Run("anonymous", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/urls", "", CreateShortLinkRequest{URL: "https://example.com"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("bad token", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/urls", "garbage", CreateShortLinkRequest{URL: "https://example.com"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("missing url", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/urls", token, map[string]string{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid url", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/urls", token, CreateShortLinkRequest{URL: "not a url"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("duplicate", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/urls", token, CreateShortLinkRequest{URL: "https://example.com/dup"})
		require.Equal(t, http.StatusCreated, w.Code)
		first := decodeLink(t, w)

		w = s.do(t, http.MethodPost, "/api/urls", token, CreateShortLinkRequest{URL: "https://example.com/dup"})
		require.Equal(t, http.StatusConflict, w.Code)
		var conflict ConflictResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &conflict))
		require.NotNil(t, conflict.Existing)
		assert.Equal(t, first.ShortCode, conflict.Existing.ShortCode)
		assert.Equal(t, "alice", conflict.Existing.CreatedBy)
		assert.Equal(t, first.ShortURL, conflict.Existing.ShortURL)
	})
}

func TestListIsAnonymous(t *testing.T) {
	s := setupRouter(t)
	token := s.register(t, "alice")
	w := s.do(t, http.MethodPost, "/api/urls", token, CreateShortLinkRequest{URL: "https://example.com/list"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(t, http.MethodGet, "/api/urls", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var links []ShortLinkResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &links))
	require.Len(t, links, 1)
	assert.Equal(t, "alice", links[0].CreatedBy)
}

func TestGetLinkDetail(t *testing.T) {
	s := setupRouter(t)
	alice := s.register(t, "alice")
	bob := s.register(t, "bob")

	w := s.do(t, http.MethodPost, "/api/urls", alice, CreateShortLinkRequest{URL: "https://example.com/detail"})
	require.Equal(t, http.StatusCreated, w.Code)
	link := decodeLink(t, w)
	path := fmt.Sprintf("/api/urls/%d", link.ID)

	w = s.do(t, http.MethodGet, path, "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, path, bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, link.ShortCode, decodeLink(t, w).ShortCode)

	w = s.do(t, http.MethodGet, "/api/urls/9999", bob, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/urls/abc", bob, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteLink(t *testing.T) {
	s := setupRouter(t)
	alice := s.register(t, "alice")
	bob := s.register(t, "bob")
	root := s.admin(t)

	create := func(url string) ShortLinkResponse {
		w := s.do(t, http.MethodPost, "/api/urls", alice, CreateShortLinkRequest{URL: url})
		require.Equal(t, http.StatusCreated, w.Code)
		return decodeLink(t, w)
	}

	first := create("https://example.com/one")
	path := fmt.Sprintf("/api/urls/%d", first.ID)

	w := s.do(t, http.MethodDelete, path, bob, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = s.do(t, http.MethodGet, "/"+first.ShortCode, "", nil)
	assert.Equal(t, http.StatusFound, w.Code)

	w = s.do(t, http.MethodDelete, path, alice, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(t, http.MethodGet, "/"+first.ShortCode, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = s.do(t, http.MethodDelete, path, alice, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	second := create("https://example.com/two")
	w = s.do(t, http.MethodDelete, fmt.Sprintf("/api/urls/%d", second.ID), root, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestAuthFlow(t *testing.T) {
	s := setupRouter(t)
	token := s.register(t, "alice")

	w := s.do(t, http.MethodPost, "/auth/register", "", RegisterRequest{Username: "alice", Email: "other@example.com", Password: "password123"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/auth/register", "", RegisterRequest{Username: "alice2", Email: "alice@example.com", Password: "password123"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "邮箱已被注册")

	w = s.do(t, http.MethodPost, "/auth/register", "", RegisterRequest{Username: "carol", Email: "carol@example.com", Password: "123"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Username: "alice", Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Username: "nobody", Password: "password123"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Username: "alice", Password: "password123"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	assert.Equal(t, "alice", me.Username)
	assert.Equal(t, "user", me.Role)

	w = s.do(t, http.MethodGet, "/api/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminDuplicateConflict(t *testing.T) {
	s := setupRouter(t)
	alice := s.register(t, "alice")
	root := s.admin(t)

	w := s.do(t, http.MethodPost, "/api/urls", alice, CreateShortLinkRequest{URL: "https://example.com/shared"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(t, http.MethodPost, "/api/urls", root, CreateShortLinkRequest{URL: "https://example.com/shared"})
	assert.Equal(t, http.StatusConflict, w.Code)
}
