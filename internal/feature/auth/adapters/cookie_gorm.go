// Package adapters provides repository implementations for the auth feature.
package adapters

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"campus_backend/internal/feature/auth/domain/entity"
	"campus_backend/internal/feature/auth/usecase"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// cookieGorm is a GORM implementation of the CookieStore interface.
// All reads and writes are serialized by a single mutex: cookie
// upsert-then-read sequences issued by one session's client must observe
// their own writes.
type cookieGorm struct {
	mu sync.Mutex
	db *gorm.DB
}

// Compile-time check to ensure cookieGorm implements CookieStore.
var _ usecase.CookieStore = (*cookieGorm)(nil)

// NewCookieGorm creates a new instance of cookieGorm.
func NewCookieGorm(db *gorm.DB) *cookieGorm {
	return &cookieGorm{db: db}
}

// Put upserts a cookie by (username, name, domain, path). On conflict the
// value, expiry, flags, max-age and created-at are all overwritten.
func (r *cookieGorm) Put(ctx context.Context, username string, c *entity.Cookie) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	model := CookieModelFromEntity(c)
	model.Username = username
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "username"}, {Name: "name"}, {Name: "domain"}, {Name: "path"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"value", "expires_at", "secure", "http_only", "max_age", "created_at",
		}),
	}).Create(model).Error
}

// Get returns all non-expired cookies for the user that match the outgoing
// request's host, path and scheme. Expired rows encountered on the way are
// purged as a side effect.
func (r *cookieGorm) Get(ctx context.Context, username string, u *url.URL) ([]*entity.Cookie, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var models []CookieModel
	if err := r.db.WithContext(ctx).
		Where("username = ?", username).
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("load cookies for %s: %w", username, err)
	}

	now := time.Now()
	path := u.Path
	if path == "" {
		path = "/"
	}
	secure := u.Scheme == "https"

	var matched []*entity.Cookie
	var expired []uint
	for i := range models {
		c := models[i].ToEntity()
		if c.Expired(now) {
			expired = append(expired, models[i].ID)
			continue
		}
		if c.Matches(u.Hostname(), path, secure) {
			matched = append(matched, c)
		}
	}

	if len(expired) > 0 {
		if err := r.db.WithContext(ctx).Delete(&CookieModel{}, expired).Error; err != nil {
			return nil, fmt.Errorf("purge expired cookies: %w", err)
		}
	}
	return matched, nil
}

// Clear deletes all cookies for the user.
func (r *cookieGorm) Clear(ctx context.Context, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.db.WithContext(ctx).
		Where("username = ?", username).
		Delete(&CookieModel{}).Error
}

// Migrate re-keys all of oldUsername's cookies to newUsername, upserting
// into the new owner and deleting the old rows. Used when a candidate's
// cookie scope is promoted to the real account on login.
func (r *cookieGorm) Migrate(ctx context.Context, oldUsername, newUsername string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var models []CookieModel
	if err := r.db.WithContext(ctx).
		Where("username = ?", oldUsername).
		Find(&models).Error; err != nil {
		return fmt.Errorf("load cookies for migration: %w", err)
	}

	for i := range models {
		row := models[i]
		row.ID = 0
		row.Username = newUsername
		if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "username"}, {Name: "name"}, {Name: "domain"}, {Name: "path"},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				"value", "expires_at", "secure", "http_only", "max_age", "created_at",
			}),
		}).Create(&row).Error; err != nil {
			return fmt.Errorf("migrate cookie %s: %w", row.Name, err)
		}
	}

	return r.db.WithContext(ctx).
		Where("username = ?", oldUsername).
		Delete(&CookieModel{}).Error
}
