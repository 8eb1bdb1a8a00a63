package repos

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/ki-backend/internal/repos/testutil"
	"github.com/yungbote/ki-backend/internal/types"
)

func TestCaptureRepoListTranscribedByUser(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	repo := NewCaptureRepo(db, testutil.Logger(t))
	ctx := context.Background()

	user := testutil.SeedUser(t, ctx, tx, "capturerepo@example.com")
	other := testutil.SeedUser(t, ctx, tx, "capturerepo-other@example.com")

	older := testutil.SeedCapture(t, ctx, tx, user.ID, testutil.PtrString("older note"))
	newer := testutil.SeedCapture(t, ctx, tx, user.ID, testutil.PtrString("newer note"))
	testutil.SeedCapture(t, ctx, tx, user.ID, nil)
	testutil.SeedCapture(t, ctx, tx, other.ID, testutil.PtrString("someone else's note"))

	// now() is stable within the transaction, so ordering needs explicit
	// timestamps.
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []uuid.UUID{older.ID, newer.ID} {
		if err := tx.Model(&types.Capture{}).Where("id = ?", id).
			Update("created_at", base.Add(time.Duration(i)*time.Minute)).Error; err != nil {
			t.Fatalf("set created_at: %v", err)
		}
	}

	got, err := repo.ListTranscribedByUser(ctx, tx, user.ID, 50)
	if err != nil {
		t.Fatalf("ListTranscribedByUser: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d captures, want 2 (untranscribed and foreign excluded)", len(got))
	}
	if got[0].ID != newer.ID || got[1].ID != older.ID {
		t.Fatalf("order=[%s %s], want newest first [%s %s]", got[0].ID, got[1].ID, newer.ID, older.ID)
	}
}

func TestCaptureRepoGetByIDForUserOwnership(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	repo := NewCaptureRepo(db, testutil.Logger(t))
	ctx := context.Background()

	user := testutil.SeedUser(t, ctx, tx, "capturerepo-own@example.com")
	other := testutil.SeedUser(t, ctx, tx, "capturerepo-own-other@example.com")
	capture := testutil.SeedCapture(t, ctx, tx, user.ID, testutil.PtrString("mine"))

	logDate := testutil.PtrTime(time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC))
	if err := tx.Model(&types.Capture{}).Where("id = ?", capture.ID).
		Update("log_date", logDate).Error; err != nil {
		t.Fatalf("set log_date: %v", err)
	}

	got, err := repo.GetByIDForUser(ctx, tx, capture.ID, user.ID)
	if err != nil {
		t.Fatalf("GetByIDForUser: %v", err)
	}
	if got == nil || got.ID != capture.ID {
		t.Fatalf("GetByIDForUser: unexpected result: %+v", got)
	}
	if got.LogDate == nil || !got.LogDate.Equal(*logDate) {
		t.Fatalf("log_date=%v, want %v", got.LogDate, logDate)
	}

	miss, err := repo.GetByIDForUser(ctx, tx, capture.ID, other.ID)
	if err != nil {
		t.Fatalf("GetByIDForUser (other user): %v", err)
	}
	if miss != nil {
		t.Fatalf("capture must not be visible to another user, got %+v", miss)
	}
}
