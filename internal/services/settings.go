package services

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/yungbote/ki-backend/internal/logger"
	"github.com/yungbote/ki-backend/internal/repos"
)

type SettingsService interface {
	// GetDefaultAgentPrompt returns the user's saved prompt, or the built-in
	// personality when none is saved. The second return reports whether the
	// prompt is a user customization.
	GetDefaultAgentPrompt(ctx context.Context) (string, bool, error)
	UpdateDefaultAgentPrompt(ctx context.Context, prompt string) (string, error)
}

type settingsService struct {
	db           *gorm.DB
	log          *logger.Logger
	settingsRepo repos.UserSettingsRepo
}

func NewSettingsService(db *gorm.DB, log *logger.Logger, settingsRepo repos.UserSettingsRepo) SettingsService {
	serviceLog := log.With("service", "SettingsService")
	return &settingsService{
		db:           db,
		log:          serviceLog,
		settingsRepo: settingsRepo,
	}
}

func (ss *settingsService) GetDefaultAgentPrompt(ctx context.Context) (string, bool, error) {
	userID, err := currentUserID(ctx)
	if err != nil {
		return "", false, err
	}
	settings, sErr := ss.settingsRepo.GetByUserID(ctx, nil, userID)
	if sErr != nil {
		return "", false, fmt.Errorf("error fetching user settings: %w", sErr)
	}
	if settings == nil || strings.TrimSpace(settings.DefaultAgentPrompt) == "" {
		return DefaultAgentPersonality, false, nil
	}
	return settings.DefaultAgentPrompt, true, nil
}

// UpdateDefaultAgentPrompt saves the prompt; an empty prompt resets the user
// back to the built-in personality.
func (ss *settingsService) UpdateDefaultAgentPrompt(ctx context.Context, prompt string) (string, error) {
	userID, err := currentUserID(ctx)
	if err != nil {
		return "", err
	}
	prompt = strings.TrimSpace(prompt)
	if uErr := ss.settingsRepo.UpsertDefaultAgentPrompt(ctx, nil, userID, prompt); uErr != nil {
		return "", fmt.Errorf("error saving agent prompt: %w", uErr)
	}
	if prompt == "" {
		return DefaultAgentPersonality, nil
	}
	return prompt, nil
}
