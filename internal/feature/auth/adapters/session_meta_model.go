package adapters

import (
	"time"

	"campus_backend/internal/feature/auth/domain/entity"
)

// SessionMetaModel is the GORM model for the session metadata table.
// One row per username; timestamps are epoch milliseconds.
type SessionMetaModel struct {
	Username        string `gorm:"primaryKey;size:64"`
	DisplayName     string `gorm:"size:128"`
	SchoolID        string `gorm:"size:32"`
	AuthenticatedAt int64  `gorm:"not null"`
	LastActivity    int64  `gorm:"not null"`
}

// TableName returns the table name for GORM.
func (SessionMetaModel) TableName() string {
	return "session_meta"
}

// ToEntity converts the GORM model to a domain entity.
func (m *SessionMetaModel) ToEntity() *entity.SessionMeta {
	return &entity.SessionMeta{
		Username:        m.Username,
		DisplayName:     m.DisplayName,
		SchoolID:        m.SchoolID,
		AuthenticatedAt: time.UnixMilli(m.AuthenticatedAt),
		LastActivity:    time.UnixMilli(m.LastActivity),
	}
}

// SessionMetaModelFromEntity converts a domain entity to a GORM model.
func SessionMetaModelFromEntity(s *entity.SessionMeta) *SessionMetaModel {
	return &SessionMetaModel{
		Username:        s.Username,
		DisplayName:     s.DisplayName,
		SchoolID:        s.SchoolID,
		AuthenticatedAt: s.AuthenticatedAt.UnixMilli(),
		LastActivity:    s.LastActivity.UnixMilli(),
	}
}
