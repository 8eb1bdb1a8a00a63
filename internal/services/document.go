package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	redisclient "github.com/yungbote/ki-backend/internal/clients/redis"
	"github.com/yungbote/ki-backend/internal/logger"
	"github.com/yungbote/ki-backend/internal/normalization"
	"github.com/yungbote/ki-backend/internal/repos"
	"github.com/yungbote/ki-backend/internal/requestdata"
	"github.com/yungbote/ki-backend/internal/sse"
	"github.com/yungbote/ki-backend/internal/types"
)

type DocumentUpdate struct {
	Title             *string         `json:"title"`
	Content           json.RawMessage `json:"content"`
	CustomAgentPrompt *string         `json:"customAgentPrompt"`
}

type DocumentService interface {
	CreateDocument(ctx context.Context, title string, content json.RawMessage, captureID *uuid.UUID) (*types.Document, error)
	GetDocument(ctx context.Context, documentID uuid.UUID) (*types.Document, error)
	ListDocuments(ctx context.Context) ([]*types.Document, error)
	UpdateDocument(ctx context.Context, documentID uuid.UUID, update DocumentUpdate) (*types.Document, error)
	SetFocus(ctx context.Context, documentID uuid.UUID, focused bool) (*types.Document, error)
	DeleteDocument(ctx context.Context, documentID uuid.UUID) error
}

type documentService struct {
	db           *gorm.DB
	log          *logger.Logger
	documentRepo repos.DocumentRepo
	captureRepo  repos.CaptureRepo
	bus          redisclient.SSEBus
	hub          *sse.SSEHub
}

func NewDocumentService(db *gorm.DB, log *logger.Logger, documentRepo repos.DocumentRepo, captureRepo repos.CaptureRepo, bus redisclient.SSEBus, hub *sse.SSEHub) DocumentService {
	serviceLog := log.With("service", "DocumentService")
	return &documentService{
		db:           db,
		log:          serviceLog,
		documentRepo: documentRepo,
		captureRepo:  captureRepo,
		bus:          bus,
		hub:          hub,
	}
}

var ErrUnauthorized = errors.New("Unauthorized")

func currentUserID(ctx context.Context) (uuid.UUID, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return uuid.Nil, ErrUnauthorized
	}
	return rd.UserID, nil
}

func (ds *documentService) CreateDocument(ctx context.Context, title string, content json.RawMessage, captureID *uuid.UUID) (*types.Document, error) {
	userID, err := currentUserID(ctx)
	if err != nil {
		return nil, err
	}

	title = normalization.ParseInputString(title)
	if title == "" {
		title = "Untitled Document"
	}

	doc := &types.Document{
		ID:     uuid.New(),
		UserID: userID,
		Title:  title,
	}
	if len(content) > 0 {
		if !json.Valid(content) {
			return nil, fmt.Errorf("content must be valid JSON")
		}
		doc.Content = datatypes.JSON(content)
	}

	var out *types.Document
	if err := ds.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if captureID != nil && *captureID != uuid.Nil {
			capture, cErr := ds.captureRepo.GetByIDForUser(ctx, tx, *captureID, userID)
			if cErr != nil {
				return fmt.Errorf("error fetching capture: %w", cErr)
			}
			if capture == nil {
				return fmt.Errorf("capture not found")
			}
			doc.CaptureID = captureID
		}
		created, crErr := ds.documentRepo.Create(ctx, tx, []*types.Document{doc})
		if crErr != nil {
			return fmt.Errorf("error creating document: %w", crErr)
		}
		out = created[0]
		return nil
	}); err != nil {
		return nil, err
	}
	return out, nil
}

func (ds *documentService) GetDocument(ctx context.Context, documentID uuid.UUID) (*types.Document, error) {
	userID, err := currentUserID(ctx)
	if err != nil {
		return nil, err
	}
	doc, dErr := ds.documentRepo.GetWithCaptureForUser(ctx, nil, documentID, userID)
	if dErr != nil {
		return nil, fmt.Errorf("error fetching document: %w", dErr)
	}
	if doc == nil {
		return nil, fmt.Errorf("document not found")
	}
	return doc, nil
}

func (ds *documentService) ListDocuments(ctx context.Context) ([]*types.Document, error) {
	userID, err := currentUserID(ctx)
	if err != nil {
		return nil, err
	}
	docs, lErr := ds.documentRepo.ListByUser(ctx, nil, userID)
	if lErr != nil {
		return nil, fmt.Errorf("error listing documents: %w", lErr)
	}
	return docs, nil
}

func (ds *documentService) UpdateDocument(ctx context.Context, documentID uuid.UUID, update DocumentUpdate) (*types.Document, error) {
	userID, err := currentUserID(ctx)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if update.Title != nil {
		title := normalization.ParseInputString(*update.Title)
		if title == "" {
			title = "Untitled Document"
		}
		fields["title"] = title
	}
	if len(update.Content) > 0 {
		if !json.Valid(update.Content) {
			return nil, fmt.Errorf("content must be valid JSON")
		}
		fields["content"] = datatypes.JSON(update.Content)
	}
	if update.CustomAgentPrompt != nil {
		fields["custom_agent_prompt"] = strings.TrimSpace(*update.CustomAgentPrompt)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("no document updates provided")
	}

	var out *types.Document
	if err := ds.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		affected, uErr := ds.documentRepo.UpdateFields(ctx, tx, documentID, userID, fields)
		if uErr != nil {
			return fmt.Errorf("error updating document: %w", uErr)
		}
		if affected == 0 {
			return fmt.Errorf("document not found")
		}
		doc, gErr := ds.documentRepo.GetByIDForUser(ctx, tx, documentID, userID)
		if gErr != nil {
			return fmt.Errorf("error reloading document: %w", gErr)
		}
		out = doc
		return nil
	}); err != nil {
		return nil, err
	}
	ds.publishDocumentEvent(ctx, userID, documentID, sse.SSEEventDocumentUpdated)
	return out, nil
}

// SetFocus marks a single document as the active one. Focusing a document
// unfocuses every other document the user owns.
func (ds *documentService) SetFocus(ctx context.Context, documentID uuid.UUID, focused bool) (*types.Document, error) {
	userID, err := currentUserID(ctx)
	if err != nil {
		return nil, err
	}

	var out *types.Document
	if err := ds.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if focused {
			if cErr := tx.WithContext(ctx).
				Model(&types.Document{}).
				Where("user_id = ? AND is_focused = TRUE", userID).
				Update("is_focused", false).Error; cErr != nil {
				return fmt.Errorf("error clearing focus: %w", cErr)
			}
		}
		affected, uErr := ds.documentRepo.UpdateFields(ctx, tx, documentID, userID, map[string]interface{}{"is_focused": focused})
		if uErr != nil {
			return fmt.Errorf("error updating focus: %w", uErr)
		}
		if affected == 0 {
			return fmt.Errorf("document not found")
		}
		doc, gErr := ds.documentRepo.GetByIDForUser(ctx, tx, documentID, userID)
		if gErr != nil {
			return fmt.Errorf("error reloading document: %w", gErr)
		}
		out = doc
		return nil
	}); err != nil {
		return nil, err
	}
	ds.publishDocumentEvent(ctx, userID, documentID, sse.SSEEventDocumentFocusChanged)
	return out, nil
}

func (ds *documentService) publishDocumentEvent(ctx context.Context, userID, documentID uuid.UUID, event sse.SSEEvent) {
	publishEvent(ctx, ds.log, ds.bus, ds.hub, sse.SSEMessage{
		Channel: sse.UserChannel(userID),
		Event:   event,
		Data:    map[string]any{"document_id": documentID},
	})
}

func (ds *documentService) DeleteDocument(ctx context.Context, documentID uuid.UUID) error {
	userID, err := currentUserID(ctx)
	if err != nil {
		return err
	}
	affected, dErr := ds.documentRepo.SoftDeleteByIDForUser(ctx, nil, documentID, userID)
	if dErr != nil {
		return fmt.Errorf("error deleting document: %w", dErr)
	}
	if affected == 0 {
		return fmt.Errorf("document not found")
	}
	return nil
}
