package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/ki-backend/internal/logger"
	"github.com/yungbote/ki-backend/internal/types"
)

type DocumentRepo interface {
	Create(ctx context.Context, tx *gorm.DB, documents []*types.Document) ([]*types.Document, error)
	// GetByIDForUser returns nil, nil when the document does not exist or is
	// owned by a different user; callers treat both as not found.
	GetByIDForUser(ctx context.Context, tx *gorm.DB, documentID, userID uuid.UUID) (*types.Document, error)
	// GetWithCaptureForUser preloads the linked capture and its insights in
	// stable position order.
	GetWithCaptureForUser(ctx context.Context, tx *gorm.DB, documentID, userID uuid.UUID) (*types.Document, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Document, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, documentID, userID uuid.UUID, fields map[string]interface{}) (int64, error)
	SoftDeleteByIDForUser(ctx context.Context, tx *gorm.DB, documentID, userID uuid.UUID) (int64, error)
}

type documentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDocumentRepo(db *gorm.DB, baseLog *logger.Logger) DocumentRepo {
	repoLog := baseLog.With("repo", "DocumentRepo")
	return &documentRepo{db: db, log: repoLog}
}

func (dr *documentRepo) Create(ctx context.Context, tx *gorm.DB, documents []*types.Document) ([]*types.Document, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}

	if len(documents) == 0 {
		return []*types.Document{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&documents).Error; err != nil {
		return nil, err
	}
	return documents, nil
}

func (dr *documentRepo) GetByIDForUser(ctx context.Context, tx *gorm.DB, documentID, userID uuid.UUID) (*types.Document, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}

	var result types.Document
	err := transaction.WithContext(ctx).
		Where("id = ? AND user_id = ?", documentID, userID).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (dr *documentRepo) GetWithCaptureForUser(ctx context.Context, tx *gorm.DB, documentID, userID uuid.UUID) (*types.Document, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}

	var result types.Document
	err := transaction.WithContext(ctx).
		Preload("Capture").
		Preload("Capture.Insights", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, created_at ASC")
		}).
		Where("id = ? AND user_id = ?", documentID, userID).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (dr *documentRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Document, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}

	var results []*types.Document
	if err := transaction.WithContext(ctx).
		Preload("Capture").
		Preload("Capture.Insights", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, created_at ASC")
		}).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (dr *documentRepo) UpdateFields(ctx context.Context, tx *gorm.DB, documentID, userID uuid.UUID, fields map[string]interface{}) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}

	if len(fields) == 0 {
		return 0, nil
	}

	res := transaction.WithContext(ctx).
		Model(&types.Document{}).
		Where("id = ? AND user_id = ?", documentID, userID).
		Updates(fields)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (dr *documentRepo) SoftDeleteByIDForUser(ctx context.Context, tx *gorm.DB, documentID, userID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}

	res := transaction.WithContext(ctx).
		Where("id = ? AND user_id = ?", documentID, userID).
		Delete(&types.Document{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
