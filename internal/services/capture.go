package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/ki-backend/internal/logger"
	"github.com/yungbote/ki-backend/internal/repos"
	"github.com/yungbote/ki-backend/internal/types"
)

type CaptureService interface {
	GetCapture(ctx context.Context, captureID uuid.UUID) (*types.Capture, error)
	ListTranscribed(ctx context.Context, limit int) ([]*types.Capture, error)
}

type captureService struct {
	db          *gorm.DB
	log         *logger.Logger
	captureRepo repos.CaptureRepo
}

func NewCaptureService(db *gorm.DB, log *logger.Logger, captureRepo repos.CaptureRepo) CaptureService {
	serviceLog := log.With("service", "CaptureService")
	return &captureService{
		db:          db,
		log:         serviceLog,
		captureRepo: captureRepo,
	}
}

func (cs *captureService) GetCapture(ctx context.Context, captureID uuid.UUID) (*types.Capture, error) {
	userID, err := currentUserID(ctx)
	if err != nil {
		return nil, err
	}
	capture, cErr := cs.captureRepo.GetByIDForUser(ctx, nil, captureID, userID)
	if cErr != nil {
		return nil, fmt.Errorf("error fetching capture: %w", cErr)
	}
	if capture == nil {
		return nil, fmt.Errorf("capture not found")
	}
	return capture, nil
}

func (cs *captureService) ListTranscribed(ctx context.Context, limit int) ([]*types.Capture, error) {
	userID, err := currentUserID(ctx)
	if err != nil {
		return nil, err
	}
	captures, lErr := cs.captureRepo.ListTranscribedByUser(ctx, nil, userID, limit)
	if lErr != nil {
		return nil, fmt.Errorf("error listing captures: %w", lErr)
	}
	return captures, nil
}
