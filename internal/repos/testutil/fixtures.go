package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/ki-backend/internal/types"
)

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB, email string) *types.User {
	tb.Helper()
	u := &types.User{
		ID:        uuid.New(),
		Email:     email,
		Password:  "pw",
		FirstName: "A",
		LastName:  "B",
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedDocument(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID) *types.Document {
	tb.Helper()
	d := &types.Document{
		ID:     uuid.New(),
		UserID: userID,
		Title:  "doc",
	}
	if err := tx.WithContext(ctx).Create(d).Error; err != nil {
		tb.Fatalf("seed document: %v", err)
	}
	return d
}

func SeedCapture(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, transcription *string) *types.Capture {
	tb.Helper()
	c := &types.Capture{
		ID:            uuid.New(),
		UserID:        userID,
		Transcription: transcription,
		NoteType:      "capture",
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed capture: %v", err)
	}
	return c
}

func SeedConversation(tb testing.TB, ctx context.Context, tx *gorm.DB, documentID, userID uuid.UUID) *types.Conversation {
	tb.Helper()
	c := &types.Conversation{
		ID:         uuid.New(),
		DocumentID: documentID,
		UserID:     userID,
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed conversation: %v", err)
	}
	return c
}

func PtrString(v string) *string { return &v }

func PtrTime(v time.Time) *time.Time { return &v }
