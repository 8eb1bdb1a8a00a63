package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/ki-backend/internal/logger"
	"github.com/yungbote/ki-backend/internal/types"
)

type UserSettingsRepo interface {
	GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.UserSettings, error)
	UpsertDefaultAgentPrompt(ctx context.Context, tx *gorm.DB, userID uuid.UUID, prompt string) error
}

type userSettingsRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserSettingsRepo(db *gorm.DB, baseLog *logger.Logger) UserSettingsRepo {
	repoLog := baseLog.With("repo", "UserSettingsRepo")
	return &userSettingsRepo{db: db, log: repoLog}
}

func (usr *userSettingsRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.UserSettings, error) {
	transaction := tx
	if transaction == nil {
		transaction = usr.db
	}

	var result types.UserSettings
	err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (usr *userSettingsRepo) UpsertDefaultAgentPrompt(ctx context.Context, tx *gorm.DB, userID uuid.UUID, prompt string) error {
	transaction := tx
	if transaction == nil {
		transaction = usr.db
	}

	now := time.Now().UTC()
	settings := &types.UserSettings{
		ID:                 uuid.New(),
		UserID:             userID,
		DefaultAgentPrompt: prompt,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"default_agent_prompt": prompt, "updated_at": now}),
		}).
		Create(settings).Error
}
