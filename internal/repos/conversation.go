package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/yungbote/ki-backend/internal/logger"
	"github.com/yungbote/ki-backend/internal/types"
)

type ConversationRepo interface {
	GetByDocumentID(ctx context.Context, tx *gorm.DB, documentID uuid.UUID) (*types.Conversation, error)
	// GetOrCreateByDocument is idempotent under concurrent callers: the
	// unique index on document_id makes the first insert win, and losers
	// re-fetch the winner's row instead of failing the request.
	GetOrCreateByDocument(ctx context.Context, tx *gorm.DB, documentID, userID uuid.UUID) (*types.Conversation, error)
}

type conversationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConversationRepo(db *gorm.DB, baseLog *logger.Logger) ConversationRepo {
	repoLog := baseLog.With("repo", "ConversationRepo")
	return &conversationRepo{db: db, log: repoLog}
}

func (cr *conversationRepo) GetByDocumentID(ctx context.Context, tx *gorm.DB, documentID uuid.UUID) (*types.Conversation, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}

	var result types.Conversation
	err := transaction.WithContext(ctx).
		Where("document_id = ?", documentID).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (cr *conversationRepo) GetOrCreateByDocument(ctx context.Context, tx *gorm.DB, documentID, userID uuid.UUID) (*types.Conversation, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}

	existing, err := cr.GetByDocumentID(ctx, transaction, documentID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := time.Now().UTC()
	conv := &types.Conversation{
		ID:         uuid.New(),
		DocumentID: documentID,
		UserID:     userID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err = transaction.WithContext(ctx).Create(conv).Error
	if err == nil {
		return conv, nil
	}
	if !isUniqueViolation(err) {
		return nil, err
	}

	// Lost the race: someone else created the conversation between our
	// lookup and insert. Their row is authoritative.
	cr.log.Debug("Conversation insert hit unique constraint, re-fetching", "document_id", documentID.String())
	winner, refetchErr := cr.GetByDocumentID(ctx, transaction, documentID)
	if refetchErr != nil {
		return nil, refetchErr
	}
	if winner == nil {
		return nil, err
	}
	return winner, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
