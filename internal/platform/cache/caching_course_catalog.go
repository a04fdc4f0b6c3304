// Package cache provides caching implementations for repository interfaces.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"campus_backend/internal/feature/bykc"
)

// CourseCatalog is the read/write surface of the enrollment system that
// benefits from caching. *bykc.Service satisfies it.
type CourseCatalog interface {
	QueryCourses(ctx context.Context, username string, page, size int) (*bykc.CoursePage, error)
	GetConfig(ctx context.Context, username string) (bykc.SystemConfig, error)
	Enroll(ctx context.Context, username string, courseID int64) error
	Withdraw(ctx context.Context, username string, courseID int64) error
}

var _ CourseCatalog = (*CachingCourseCatalog)(nil)

// CachingCourseCatalog decorates a CourseCatalog with Redis caching.
// The course catalog and system config are the same for every student,
// so entries are keyed by query shape rather than by user. Enroll and
// Withdraw pass through and invalidate the course pages, since they
// change the visible seat counts.
type CachingCourseCatalog struct {
	inner     CourseCatalog
	rdb       *redis.Client
	ttl       time.Duration
	namespace string
}

// NewCachingCourseCatalog decorates a CourseCatalog with Redis caching.
// If ttl is 0, it defaults to 2 minutes. If namespace is empty, it uses
// "bykc".
func NewCachingCourseCatalog(rdb *redis.Client, ttl time.Duration, inner CourseCatalog, namespace string) *CachingCourseCatalog {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	if namespace == "" {
		namespace = "bykc"
	}
	return &CachingCourseCatalog{
		inner:     inner,
		rdb:       rdb,
		ttl:       ttl,
		namespace: namespace,
	}
}

// QueryCourses retrieves a course page, checking cache first then falling
// back to the upstream service.
func (c *CachingCourseCatalog) QueryCourses(ctx context.Context, username string, page, size int) (*bykc.CoursePage, error) {
	if c.rdb == nil {
		return c.inner.QueryCourses(ctx, username, page, size)
	}

	key := fmt.Sprintf("%s:courses:%d:%d", c.namespace, page, size)

	if b, err := c.rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		var out bykc.CoursePage
		if err := json.Unmarshal(b, &out); err == nil {
			return &out, nil
		}
		// Delete corrupted cache entry
		_ = c.rdb.Del(ctx, key).Err()
	}

	out, err := c.inner.QueryCourses(ctx, username, page, size)
	if err != nil {
		return nil, err
	}

	if b, err := json.Marshal(out); err == nil {
		_ = c.rdb.Set(ctx, key, b, c.ttl).Err()
	}

	return out, nil
}

// GetConfig retrieves the system config, cached under a single key.
func (c *CachingCourseCatalog) GetConfig(ctx context.Context, username string) (bykc.SystemConfig, error) {
	if c.rdb == nil {
		return c.inner.GetConfig(ctx, username)
	}

	key := c.namespace + ":config"

	if b, err := c.rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		var out bykc.SystemConfig
		if err := json.Unmarshal(b, &out); err == nil {
			return out, nil
		}
		_ = c.rdb.Del(ctx, key).Err()
	}

	out, err := c.inner.GetConfig(ctx, username)
	if err != nil {
		return nil, err
	}

	if b, err := json.Marshal(out); err == nil {
		_ = c.rdb.Set(ctx, key, b, c.ttl).Err()
	}

	return out, nil
}

// Enroll registers the student and invalidates cached course pages.
func (c *CachingCourseCatalog) Enroll(ctx context.Context, username string, courseID int64) error {
	if err := c.inner.Enroll(ctx, username, courseID); err != nil {
		return err
	}
	c.invalidateCourses(ctx)
	return nil
}

// Withdraw drops the enrollment and invalidates cached course pages.
func (c *CachingCourseCatalog) Withdraw(ctx context.Context, username string, courseID int64) error {
	if err := c.inner.Withdraw(ctx, username, courseID); err != nil {
		return err
	}
	c.invalidateCourses(ctx)
	return nil
}

func (c *CachingCourseCatalog) invalidateCourses(ctx context.Context) {
	if c.rdb == nil {
		return
	}
	// Best effort: don't fail the write if cache deletion fails
	_ = c.deleteByPattern(ctx, c.namespace+":courses:*")
}

// deleteByPattern deletes all cache keys matching a given pattern using SCAN.
func (c *CachingCourseCatalog) deleteByPattern(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, cur, err := c.rdb.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = cur
		if cursor == 0 {
			break
		}
	}
	return nil
}
