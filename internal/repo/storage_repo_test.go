package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/genderhealth/care-portal/internal/domain"
)

func TestPutEntry_UpsertsAndGetReturnsLatest(t *testing.T) {
	db := newTestDB(t, &domain.StorageEntry{})
	ctx := context.Background()

	if err := PutEntry(ctx, db, "s1", "bookingID", "41", time.Hour); err != nil {
		t.Fatalf("PutEntry: %v", err)
	}
	if err := PutEntry(ctx, db, "s1", "bookingID", "42", time.Hour); err != nil {
		t.Fatalf("PutEntry overwrite: %v", err)
	}

	e, err := GetEntry(ctx, db, "s1", "bookingID", time.Now().UTC())
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if e.Value != "42" {
		t.Fatalf("expected last writer to win, got %q", e.Value)
	}

	var count int64
	db.Model(&domain.StorageEntry{}).Where("session_id = ?", "s1").Count(&count)
	if count != 1 {
		t.Fatalf("expected one row after upsert, got %d", count)
	}
}

func TestGetEntry_ExpiredIsNotFound(t *testing.T) {
	db := newTestDB(t, &domain.StorageEntry{})
	ctx := context.Background()
	now := time.Now().UTC()

	old := &domain.StorageEntry{SessionID: "s1", Key: "token", Value: "t", CreatedAt: now, UpdatedAt: now, ExpiresAt: now.Add(-time.Second)}
	if err := db.Create(old).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := GetEntry(ctx, db, "s1", "token", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInsertEntry_OnlyFirstWins(t *testing.T) {
	db := newTestDB(t, &domain.StorageEntry{})
	ctx := context.Background()

	if err := InsertEntry(ctx, db, "s1", "latch:abc", "1", time.Hour); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := InsertEntry(ctx, db, "s1", "latch:abc", "1", time.Hour); err != ErrDuplicate {
		t.Fatalf("second insert: expected ErrDuplicate, got %v", err)
	}
	// Different session holds its own keys.
	if err := InsertEntry(ctx, db, "s2", "latch:abc", "1", time.Hour); err != nil {
		t.Fatalf("other session insert: %v", err)
	}
}

func TestInsertEntry_ReplacesExpiredLeftover(t *testing.T) {
	db := newTestDB(t, &domain.StorageEntry{})
	ctx := context.Background()
	now := time.Now().UTC()

	old := &domain.StorageEntry{SessionID: "s1", Key: "latch:x", Value: "old", CreatedAt: now, UpdatedAt: now, ExpiresAt: now.Add(-time.Minute)}
	if err := db.Create(old).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := InsertEntry(ctx, db, "s1", "latch:x", "new", time.Hour); err != nil {
		t.Fatalf("insert over expired: %v", err)
	}
	e, err := GetEntry(ctx, db, "s1", "latch:x", time.Now().UTC())
	if err != nil || e.Value != "new" {
		t.Fatalf("unexpected entry: %+v err=%v", e, err)
	}
}

func TestDeleteEntries_RemovesOnlyNamedKeys(t *testing.T) {
	db := newTestDB(t, &domain.StorageEntry{})
	ctx := context.Background()

	for _, k := range []string{"token", "bookingID", "amount"} {
		if err := PutEntry(ctx, db, "s1", k, "v", time.Hour); err != nil {
			t.Fatalf("seed %s: %v", k, err)
		}
	}
	if err := DeleteEntries(ctx, db, "s1", "bookingID", "amount", "missing"); err != nil {
		t.Fatalf("DeleteEntries: %v", err)
	}
	if err := DeleteEntries(ctx, db, "s1"); err != nil {
		t.Fatalf("DeleteEntries with no keys: %v", err)
	}

	now := time.Now().UTC()
	if _, err := GetEntry(ctx, db, "s1", "token", now); err != nil {
		t.Fatalf("token should survive: %v", err)
	}
	if _, err := GetEntry(ctx, db, "s1", "amount", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("amount should be gone, got %v", err)
	}
}

func TestTouchSessionAndPurgeExpired(t *testing.T) {
	db := newTestDB(t, &domain.StorageEntry{})
	ctx := context.Background()

	if err := PutEntry(ctx, db, "live", "token", "t", time.Millisecond); err != nil {
		t.Fatalf("seed live: %v", err)
	}
	if err := PutEntry(ctx, db, "dead", "token", "t", time.Millisecond); err != nil {
		t.Fatalf("seed dead: %v", err)
	}
	if err := TouchSession(ctx, db, "live", time.Hour); err != nil {
		t.Fatalf("TouchSession: %v", err)
	}

	n, err := PurgeExpired(ctx, db, time.Now().UTC().Add(time.Second))
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 purged row, got %d", n)
	}
	if _, err := GetEntry(ctx, db, "live", "token", time.Now().UTC()); err != nil {
		t.Fatalf("touched session should survive: %v", err)
	}
}
