package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campus_backend/internal/feature/bykc"
)

// mockCatalog counts calls into the wrapped service.
type mockCatalog struct {
	queryCalls  int
	configCalls int
	enrollErr   error

	page *bykc.CoursePage
	cfg  bykc.SystemConfig
}

func (m *mockCatalog) QueryCourses(_ context.Context, _ string, page, size int) (*bykc.CoursePage, error) {
	m.queryCalls++
	return m.page, nil
}

func (m *mockCatalog) GetConfig(_ context.Context, _ string) (bykc.SystemConfig, error) {
	m.configCalls++
	return m.cfg, nil
}

func (m *mockCatalog) Enroll(_ context.Context, _ string, _ int64) error {
	return m.enrollErr
}

func (m *mockCatalog) Withdraw(_ context.Context, _ string, _ int64) error {
	return nil
}

func setupCache(t *testing.T, inner *mockCatalog) (*CachingCourseCatalog, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redisv9.NewClient(&redisv9.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewCachingCourseCatalog(rdb, time.Minute, inner, "bykc"), mr
}

func TestNewCachingCourseCatalog_Defaults(t *testing.T) {
	c := NewCachingCourseCatalog(nil, 0, &mockCatalog{}, "")
	assert.Equal(t, 2*time.Minute, c.ttl)
	assert.Equal(t, "bykc", c.namespace)

	c = NewCachingCourseCatalog(nil, time.Hour, &mockCatalog{}, "other")
	assert.Equal(t, time.Hour, c.ttl)
	assert.Equal(t, "other", c.namespace)
}

func TestCachingCourseCatalog_QueryCourses_NilRedis(t *testing.T) {
	inner := &mockCatalog{page: &bykc.CoursePage{Total: 3}}
	c := NewCachingCourseCatalog(nil, time.Minute, inner, "bykc")

	for i := 0; i < 2; i++ {
		page, err := c.QueryCourses(context.Background(), "alice", 1, 20)
		require.NoError(t, err)
		assert.Equal(t, 3, page.Total)
	}
	assert.Equal(t, 2, inner.queryCalls, "without Redis every read goes upstream")
}

func TestCachingCourseCatalog_QueryCourses_CacheHit(t *testing.T) {
	inner := &mockCatalog{page: &bykc.CoursePage{
		Total:   1,
		Content: []bykc.Course{{ID: 7, Name: "书法鉴赏"}},
	}}
	c, _ := setupCache(t, inner)
	ctx := context.Background()

	first, err := c.QueryCourses(ctx, "alice", 1, 20)
	require.NoError(t, err)
	second, err := c.QueryCourses(ctx, "bob", 1, 20)
	require.NoError(t, err)

	assert.Equal(t, 1, inner.queryCalls, "second read is served from cache")
	assert.Equal(t, first, second, "the catalog is shared across users")

	// A different page shape is its own entry.
	_, err = c.QueryCourses(ctx, "alice", 2, 20)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.queryCalls)
}

func TestCachingCourseCatalog_QueryCourses_CorruptEntry(t *testing.T) {
	inner := &mockCatalog{page: &bykc.CoursePage{Total: 5}}
	c, mr := setupCache(t, inner)
	ctx := context.Background()

	require.NoError(t, mr.Set("bykc:courses:1:20", "{not json"))

	page, err := c.QueryCourses(ctx, "alice", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 1, inner.queryCalls, "corrupt entry falls through to upstream")
}

func TestCachingCourseCatalog_EnrollInvalidatesCourses(t *testing.T) {
	inner := &mockCatalog{page: &bykc.CoursePage{Total: 1}}
	c, _ := setupCache(t, inner)
	ctx := context.Background()

	_, err := c.QueryCourses(ctx, "alice", 1, 20)
	require.NoError(t, err)
	require.NoError(t, c.Enroll(ctx, "alice", 7))

	_, err = c.QueryCourses(ctx, "alice", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.queryCalls, "enroll dropped the cached page")
}

func TestCachingCourseCatalog_EnrollFailureKeepsCache(t *testing.T) {
	inner := &mockCatalog{
		page:      &bykc.CoursePage{Total: 1},
		enrollErr: errors.New("course full"),
	}
	c, _ := setupCache(t, inner)
	ctx := context.Background()

	_, err := c.QueryCourses(ctx, "alice", 1, 20)
	require.NoError(t, err)

	require.Error(t, c.Enroll(ctx, "alice", 7))

	_, err = c.QueryCourses(ctx, "alice", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, inner.queryCalls, "a rejected enroll changes nothing upstream")
}

func TestCachingCourseCatalog_GetConfig(t *testing.T) {
	inner := &mockCatalog{cfg: bykc.SystemConfig{"term": []byte(`"2025-2026-1"`)}}
	c, _ := setupCache(t, inner)
	ctx := context.Background()

	cfg, err := c.GetConfig(ctx, "alice")
	require.NoError(t, err)
	assert.Contains(t, cfg, "term")

	_, err = c.GetConfig(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.configCalls)
}
