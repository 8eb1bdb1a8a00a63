package repos

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/ki-backend/internal/repos/testutil"
	"github.com/yungbote/ki-backend/internal/types"
)

func TestConversationRepoGetOrCreate(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	repo := NewConversationRepo(db, testutil.Logger(t))
	ctx := context.Background()

	user := testutil.SeedUser(t, ctx, tx, "convrepo@example.com")
	doc := testutil.SeedDocument(t, ctx, tx, user.ID)

	first, err := repo.GetOrCreateByDocument(ctx, tx, doc.ID, user.ID)
	if err != nil {
		t.Fatalf("GetOrCreateByDocument (create): %v", err)
	}
	if first == nil || first.DocumentID != doc.ID {
		t.Fatalf("GetOrCreateByDocument (create): unexpected result: %+v", first)
	}

	second, err := repo.GetOrCreateByDocument(ctx, tx, doc.ID, user.ID)
	if err != nil {
		t.Fatalf("GetOrCreateByDocument (existing): %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("GetOrCreateByDocument not idempotent: %s vs %s", first.ID, second.ID)
	}

	got, err := repo.GetByDocumentID(ctx, tx, doc.ID)
	if err != nil {
		t.Fatalf("GetByDocumentID: %v", err)
	}
	if got == nil || got.ID != first.ID {
		t.Fatalf("GetByDocumentID: unexpected result: %+v", got)
	}
}

func TestConversationRepoGetOrCreateFindsSeeded(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	repo := NewConversationRepo(db, testutil.Logger(t))
	ctx := context.Background()

	user := testutil.SeedUser(t, ctx, tx, "convrepo2@example.com")
	doc := testutil.SeedDocument(t, ctx, tx, user.ID)
	seeded := testutil.SeedConversation(t, ctx, tx, doc.ID, user.ID)

	got, err := repo.GetOrCreateByDocument(ctx, tx, doc.ID, user.ID)
	if err != nil {
		t.Fatalf("GetOrCreateByDocument: %v", err)
	}
	if got.ID != seeded.ID {
		t.Fatalf("expected seeded conversation %s, got %s", seeded.ID, got.ID)
	}
}

func TestConversationRepoGetOrCreateLosesRaceAdoptsWinner(t *testing.T) {
	db := testutil.DB(t)
	repo := NewConversationRepo(db, testutil.Logger(t))
	ctx := context.Background()

	// The losing insert and its re-fetch run as separate auto-committed
	// statements, so this test uses committed rows and cleans up explicitly
	// instead of a rolled-back transaction.
	user := testutil.SeedUser(t, ctx, db, "convrepo-race@example.com")
	doc := testutil.SeedDocument(t, ctx, db, user.ID)
	winner := &types.Conversation{ID: uuid.New(), DocumentID: doc.ID, UserID: user.ID}

	t.Cleanup(func() {
		db.Unscoped().Where("document_id = ?", doc.ID).Delete(&types.Conversation{})
		db.Unscoped().Where("id = ?", doc.ID).Delete(&types.Document{})
		db.Unscoped().Where("id = ?", user.ID).Delete(&types.User{})
	})

	// Sneak the winner in between the repo's lookup and its insert, the
	// window a concurrent caller would occupy.
	armed := true
	if err := db.Callback().Create().Before("gorm:create").Register("conversation_race", func(d *gorm.DB) {
		if !armed {
			return
		}
		if _, ok := d.Statement.Dest.(*types.Conversation); !ok {
			return
		}
		armed = false
		if cErr := db.Session(&gorm.Session{NewDB: true}).Create(winner).Error; cErr != nil {
			t.Errorf("insert winner: %v", cErr)
		}
	}); err != nil {
		t.Fatalf("register callback: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Callback().Create().Remove("conversation_race")
	})

	got, err := repo.GetOrCreateByDocument(ctx, nil, doc.ID, user.ID)
	if err != nil {
		t.Fatalf("GetOrCreateByDocument: %v", err)
	}
	if got.ID != winner.ID {
		t.Fatalf("loser must adopt the winner's conversation: got %s, want %s", got.ID, winner.ID)
	}

	var count int64
	if err := db.Model(&types.Conversation{}).Where("document_id = ?", doc.ID).Count(&count).Error; err != nil {
		t.Fatalf("count conversations: %v", err)
	}
	if count != 1 {
		t.Fatalf("conversations for document=%d, want exactly one", count)
	}
}
