package adapters

import (
	"time"

	"campus_backend/internal/feature/auth/domain/entity"
)

// CookieModel is the GORM model for the cookies table.
// Timestamps are stored as epoch milliseconds; ExpiresAt is NULL when the
// upstream set no Expires attribute and MaxAge is -1 when unset.
type CookieModel struct {
	ID        uint   `gorm:"primaryKey"`
	Username  string `gorm:"size:64;not null;uniqueIndex:idx_cookie_owner"`
	Name      string `gorm:"size:255;not null;uniqueIndex:idx_cookie_owner"`
	Domain    string `gorm:"size:255;not null;uniqueIndex:idx_cookie_owner"`
	Path      string `gorm:"size:255;not null;uniqueIndex:idx_cookie_owner"`
	Value     string `gorm:"size:4096;not null"`
	ExpiresAt *int64
	Secure    bool
	HTTPOnly  bool  `gorm:"column:http_only"`
	MaxAge    int   `gorm:"default:-1"`
	CreatedAt int64 `gorm:"not null;autoCreateTime:false"`
}

// TableName returns the table name for GORM.
func (CookieModel) TableName() string {
	return "cookies"
}

// ToEntity converts the GORM model to a domain entity.
func (m *CookieModel) ToEntity() *entity.Cookie {
	c := &entity.Cookie{
		Username:  m.Username,
		Name:      m.Name,
		Value:     m.Value,
		Domain:    m.Domain,
		Path:      m.Path,
		Secure:    m.Secure,
		HTTPOnly:  m.HTTPOnly,
		MaxAge:    m.MaxAge,
		CreatedAt: time.UnixMilli(m.CreatedAt),
	}
	if m.ExpiresAt != nil {
		t := time.UnixMilli(*m.ExpiresAt)
		c.ExpiresAt = &t
	}
	return c
}

// CookieModelFromEntity converts a domain entity to a GORM model.
func CookieModelFromEntity(c *entity.Cookie) *CookieModel {
	m := &CookieModel{
		Username:  c.Username,
		Name:      c.Name,
		Value:     c.Value,
		Domain:    c.Domain,
		Path:      c.Path,
		Secure:    c.Secure,
		HTTPOnly:  c.HTTPOnly,
		MaxAge:    c.MaxAge,
		CreatedAt: c.CreatedAt.UnixMilli(),
	}
	if c.ExpiresAt != nil {
		ms := c.ExpiresAt.UnixMilli()
		m.ExpiresAt = &ms
	}
	return m
}
