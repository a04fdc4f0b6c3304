package adapters

import (
	"context"
	"errors"
	"time"

	"campus_backend/internal/feature/auth/domain/entity"
	"campus_backend/internal/feature/auth/usecase"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// sessionMetaGorm is a GORM implementation of the SessionMetaStore
// interface backing the durable session metadata table.
type sessionMetaGorm struct {
	db *gorm.DB
}

// Compile-time check to ensure sessionMetaGorm implements SessionMetaStore.
var _ usecase.SessionMetaStore = (*sessionMetaGorm)(nil)

// NewSessionMetaGorm creates a new instance of sessionMetaGorm.
func NewSessionMetaGorm(db *gorm.DB) *sessionMetaGorm {
	return &sessionMetaGorm{db: db}
}

// Save upserts the metadata row for the session's username.
func (r *sessionMetaGorm) Save(ctx context.Context, meta *entity.SessionMeta) error {
	model := SessionMetaModelFromEntity(meta)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "username"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"display_name", "school_id", "authenticated_at", "last_activity",
		}),
	}).Create(model).Error
}

// Find retrieves the metadata row for a username, or ErrMetaNotFound.
func (r *sessionMetaGorm) Find(ctx context.Context, username string) (*entity.SessionMeta, error) {
	var model SessionMetaModel
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, usecase.ErrMetaNotFound
		}
		return nil, err
	}
	return model.ToEntity(), nil
}

// Touch updates the stored last-activity instant.
func (r *sessionMetaGorm) Touch(ctx context.Context, username string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&SessionMetaModel{}).
		Where("username = ?", username).
		Update("last_activity", at.UnixMilli()).Error
}

// Delete removes the metadata row, if any.
func (r *sessionMetaGorm) Delete(ctx context.Context, username string) error {
	return r.db.WithContext(ctx).
		Where("username = ?", username).
		Delete(&SessionMetaModel{}).Error
}
