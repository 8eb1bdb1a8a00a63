package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/ki-backend/internal/logger"
	"github.com/yungbote/ki-backend/internal/types"
)

type CaptureRepo interface {
	GetByIDForUser(ctx context.Context, tx *gorm.DB, captureID, userID uuid.UUID) (*types.Capture, error)
	// ListTranscribedByUser returns the user's captures that have a
	// transcription, newest first, with insights preloaded. This is the
	// "thought capture database" fed to the thinking partner.
	ListTranscribedByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]*types.Capture, error)
}

type captureRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCaptureRepo(db *gorm.DB, baseLog *logger.Logger) CaptureRepo {
	repoLog := baseLog.With("repo", "CaptureRepo")
	return &captureRepo{db: db, log: repoLog}
}

func (cr *captureRepo) GetByIDForUser(ctx context.Context, tx *gorm.DB, captureID, userID uuid.UUID) (*types.Capture, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}

	var result types.Capture
	err := transaction.WithContext(ctx).
		Preload("Insights", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, created_at ASC")
		}).
		Where("id = ? AND user_id = ?", captureID, userID).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (cr *captureRepo) ListTranscribedByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]*types.Capture, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var results []*types.Capture
	if err := transaction.WithContext(ctx).
		Preload("Insights", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, created_at ASC")
		}).
		Where("user_id = ? AND transcription IS NOT NULL", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
