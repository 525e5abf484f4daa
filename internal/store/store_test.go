package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"shorturl-service/internal/model"
	"shorturl-service/pkg/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestGormStore 每个测试使用独立的内存 sqlite
func newTestGormStore(t *testing.T) *GormStore {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.Open(database.Options{
		Driver: "sqlite",
		Name:   fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		_ = sqlDB.Close()
	})

	s := NewGormStore(db)
	require.NoError(t, s.AutoMigrate())
	return s
}

func strPtr(s string) *string { return &s }

// forEachStore 对两种实现运行同一组行为测试
func forEachStore(t *testing.T, fn func(t *testing.T, s LinkStore)) {
	t.Run("memory", func(t *testing.T) { fn(t, NewMemoryStore()) })
	t.Run("gorm", func(t *testing.T) { fn(t, newTestGormStore(t)) })
}

func TestLinkStore_InsertAndFind(t *testing.T) {
	forEachStore(t, func(t *testing.T, s LinkStore) {
		ctx := context.Background()
		link := &model.ShortLink{ShortCode: "abc1234", OriginalURL: "https://example.com/a", OwnerID: strPtr("1")}
		require.NoError(t, s.InsertIfAbsent(ctx, link))
		assert.NotZero(t, link.ID)
		assert.False(t, link.CreatedAt.IsZero())
		assert.Equal(t, model.HashURL("https://example.com/a"), link.URLHash)

		exists, err := s.ExistsByCode(ctx, "abc1234")
		require.NoError(t, err)
		assert.True(t, exists)

		byCode, err := s.FindByCode(ctx, "abc1234")
		require.NoError(t, err)
		assert.Equal(t, link.ID, byCode.ID)
		require.NotNil(t, byCode.OwnerID)
		assert.Equal(t, "1", *byCode.OwnerID)

		byID, err := s.FindByID(ctx, link.ID)
		require.NoError(t, err)
		assert.Equal(t, "abc1234", byID.ShortCode)

		byOwner, err := s.FindByOwnerAndURL(ctx, "1", "https://example.com/a")
		require.NoError(t, err)
		assert.Equal(t, link.ID, byOwner.ID)

		byURL, err := s.FindByURL(ctx, "https://example.com/a")
		require.NoError(t, err)
		assert.Equal(t, link.ID, byURL.ID)
	})
}

func TestLinkStore_NotFound(t *testing.T) {
	forEachStore(t, func(t *testing.T, s LinkStore) {
		ctx := context.Background()
		exists, err := s.ExistsByCode(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, exists)

		_, err = s.FindByCode(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.FindByID(ctx, 99)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.FindByOwnerAndURL(ctx, "1", "https://example.com")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.FindByURL(ctx, "https://example.com")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, 99), ErrNotFound)
	})
}

func TestLinkStore_CodeTaken(t *testing.T) {
	forEachStore(t, func(t *testing.T, s LinkStore) {
		ctx := context.Background()
		require.NoError(t, s.InsertIfAbsent(ctx, &model.ShortLink{ShortCode: "abc1234", OriginalURL: "https://a.example", OwnerID: strPtr("1")}))

		err := s.InsertIfAbsent(ctx, &model.ShortLink{ShortCode: "abc1234", OriginalURL: "https://b.example", OwnerID: strPtr("2")})
		assert.ErrorIs(t, err, ErrCodeTaken)

		link, err := s.FindByCode(ctx, "abc1234")
		require.NoError(t, err)
		assert.Equal(t, "https://a.example", link.OriginalURL)
	})
}

func TestLinkStore_OwnerURLTaken(t *testing.T) {
	forEachStore(t, func(t *testing.T, s LinkStore) {
		ctx := context.Background()
		require.NoError(t, s.InsertIfAbsent(ctx, &model.ShortLink{ShortCode: "aaaaaaa", OriginalURL: "https://a.example", OwnerID: strPtr("1")}))

		err := s.InsertIfAbsent(ctx, &model.ShortLink{ShortCode: "bbbbbbb", OriginalURL: "https://a.example", OwnerID: strPtr("1")})
		assert.ErrorIs(t, err, ErrOwnerURLTaken)

		// 其他用户可以独立缩短同一个 URL
		require.NoError(t, s.InsertIfAbsent(ctx, &model.ShortLink{ShortCode: "ccccccc", OriginalURL: "https://a.example", OwnerID: strPtr("2")}))

		// 没有创建者的记录不受限制
		require.NoError(t, s.InsertIfAbsent(ctx, &model.ShortLink{ShortCode: "ddddddd", OriginalURL: "https://a.example"}))
		require.NoError(t, s.InsertIfAbsent(ctx, &model.ShortLink{ShortCode: "eeeeeee", OriginalURL: "https://a.example"}))

		byURL, err := s.FindByURL(ctx, "https://a.example")
		require.NoError(t, err)
		assert.Equal(t, "aaaaaaa", byURL.ShortCode)
	})
}

func TestLinkStore_DeleteFreesOwnerURL(t *testing.T) {
	forEachStore(t, func(t *testing.T, s LinkStore) {
		ctx := context.Background()
		first := &model.ShortLink{ShortCode: "aaaaaaa", OriginalURL: "https://a.example", OwnerID: strPtr("1")}
		require.NoError(t, s.InsertIfAbsent(ctx, first))
		require.NoError(t, s.Delete(ctx, first.ID))

		exists, err := s.ExistsByCode(ctx, "aaaaaaa")
		require.NoError(t, err)
		assert.False(t, exists)
		assert.ErrorIs(t, s.Delete(ctx, first.ID), ErrNotFound)

		second := &model.ShortLink{ShortCode: "bbbbbbb", OriginalURL: "https://a.example", OwnerID: strPtr("1")}
		require.NoError(t, s.InsertIfAbsent(ctx, second))
		assert.NotEqual(t, first.ID, second.ID)
	})
}

func TestLinkStore_ListAll(t *testing.T) {
	forEachStore(t, func(t *testing.T, s LinkStore) {
		ctx := context.Background()
		empty, err := s.ListAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, empty)

		for i := 0; i < 3; i++ {
			require.NoError(t, s.InsertIfAbsent(ctx, &model.ShortLink{
				ShortCode:   fmt.Sprintf("code%03d", i),
				OriginalURL: fmt.Sprintf("https://example.com/%d", i),
			}))
		}
		links, err := s.ListAll(ctx)
		require.NoError(t, err)
		assert.Len(t, links, 3)
	})
}

func TestLinkStore_ConcurrentInsertSameCode(t *testing.T) {
	forEachStore(t, func(t *testing.T, s LinkStore) {
		ctx := context.Background()
		const n = 16

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			ok      int
			taken   int
			unknown []error
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				err := s.InsertIfAbsent(ctx, &model.ShortLink{
					ShortCode:   "samecod",
					OriginalURL: fmt.Sprintf("https://example.com/%d", i),
					OwnerID:     strPtr(fmt.Sprint(i)),
				})
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					ok++
				case err == ErrCodeTaken:
					taken++
				default:
					unknown = append(unknown, err)
				}
			}(i)
		}
		wg.Wait()

		assert.Empty(t, unknown)
		assert.Equal(t, 1, ok)
		assert.Equal(t, n-1, taken)
	})
}
