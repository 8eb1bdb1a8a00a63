package repos

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/ki-backend/internal/repos/testutil"
	"github.com/yungbote/ki-backend/internal/types"
)

func TestMessageRepoListRecentOrder(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	repo := NewMessageRepo(db, testutil.Logger(t))
	ctx := context.Background()

	user := testutil.SeedUser(t, ctx, tx, "msgrepo@example.com")
	doc := testutil.SeedDocument(t, ctx, tx, user.ID)
	conv := testutil.SeedConversation(t, ctx, tx, doc.ID, user.ID)

	base := time.Now().UTC().Add(-time.Hour)
	contents := []string{"first", "second", "third", "fourth"}
	for i, content := range contents {
		msg := &types.Message{
			ID:             uuid.New(),
			ConversationID: conv.ID,
			Role:           types.MessageRoleUser,
			Content:        content,
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		}
		if _, err := repo.Create(ctx, tx, []*types.Message{msg}); err != nil {
			t.Fatalf("Create %q: %v", content, err)
		}
	}

	got, err := repo.ListRecent(ctx, tx, conv.ID, 3)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("ListRecent: expected 3 messages, got %d", len(got))
	}
	want := []string{"second", "third", "fourth"}
	for i, msg := range got {
		if msg.Content != want[i] {
			t.Fatalf("ListRecent[%d]=%q, want %q", i, msg.Content, want[i])
		}
	}
}

func TestMessageRepoListRecentEmpty(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	repo := NewMessageRepo(db, testutil.Logger(t))
	ctx := context.Background()

	user := testutil.SeedUser(t, ctx, tx, "msgrepo2@example.com")
	doc := testutil.SeedDocument(t, ctx, tx, user.ID)
	conv := testutil.SeedConversation(t, ctx, tx, doc.ID, user.ID)

	got, err := repo.ListRecent(ctx, tx, conv.ID, 20)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("ListRecent: expected no messages, got %d", len(got))
	}
}
