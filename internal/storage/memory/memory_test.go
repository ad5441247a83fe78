package memory

import (
	"context"
	"testing"

	"github.com/lockcase/backend/internal/domain/record"
	"github.com/lockcase/backend/internal/storage"
)

func TestCreateRecordRejectsDuplicateSortKey(t *testing.T) {
	store := NewRecordStore(record.KindLock)
	ctx := context.Background()

	rec := record.Record{Owner: "u1", CreatedAt: "2026-08-30T12:00:00.000000000Z"}
	if _, err := store.CreateRecord(ctx, rec); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := store.CreateRecord(ctx, rec); err != storage.ErrSortKeyExists {
		t.Fatalf("expected ErrSortKeyExists, got %v", err)
	}
}

func TestSameSortKeyDifferentOwners(t *testing.T) {
	store := NewRecordStore(record.KindLock)
	ctx := context.Background()

	key := "2026-08-30T12:00:00.000000000Z"
	if _, err := store.CreateRecord(ctx, record.Record{Owner: "u1", CreatedAt: key}); err != nil {
		t.Fatalf("u1 create: %v", err)
	}
	if _, err := store.CreateRecord(ctx, record.Record{Owner: "u2", CreatedAt: key}); err != nil {
		t.Fatalf("identical sort key in another partition should not collide: %v", err)
	}
}

func TestListRecordsByOwnerIsSorted(t *testing.T) {
	store := NewRecordStore(record.KindGroup)
	ctx := context.Background()

	keys := []string{
		"2026-08-30T12:00:02.000000000Z",
		"2026-08-30T12:00:00.000000000Z",
		"2026-08-30T12:00:01.000000000Z",
	}
	for _, k := range keys {
		if _, err := store.CreateRecord(ctx, record.Record{Owner: "u1", CreatedAt: k}); err != nil {
			t.Fatalf("create %s: %v", k, err)
		}
	}

	listed, err := store.ListRecordsByOwner(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 3 {
		t.Fatalf("expected 3 records, got %d", len(listed))
	}
	for i := 1; i < len(listed); i++ {
		if listed[i-1].CreatedAt >= listed[i].CreatedAt {
			t.Fatalf("partition not in ascending order: %v", listed)
		}
	}
}

func TestListReturnsCopies(t *testing.T) {
	store := NewRecordStore(record.KindLock)
	ctx := context.Background()

	rec := record.Record{
		Owner:      "u1",
		CreatedAt:  "2026-08-30T12:00:00.000000000Z",
		Attributes: map[string]string{"name": "front door"},
	}
	if _, err := store.CreateRecord(ctx, rec); err != nil {
		t.Fatalf("create: %v", err)
	}

	listed, _ := store.ListRecordsByOwner(ctx, "u1")
	listed[0].Attributes["name"] = "mutated"

	again, _ := store.ListRecordsByOwner(ctx, "u1")
	if again[0].Attributes["name"] != "front door" {
		t.Fatal("stored record was mutated through a returned copy")
	}
}

func TestGroupDateProjectionTracksLocks(t *testing.T) {
	store := NewRecordStore(record.KindLock)
	ctx := context.Background()

	rec := record.Record{
		Owner:     "u1",
		CreatedAt: "2026-08-30T12:00:00.000000000Z",
		Group:     "office",
		Date:      "2026-08-30",
	}
	if _, err := store.CreateRecord(ctx, rec); err != nil {
		t.Fatalf("create: %v", err)
	}

	entries := store.groupDateEntries("office", "2026-08-30")
	if len(entries) != 1 || entries[0].owner != "u1" {
		t.Fatalf("projection missing entry: %v", entries)
	}
	if got := store.groupDateEntries("office", "2026-08-31"); len(got) != 0 {
		t.Fatalf("unexpected projection entries: %v", got)
	}
}

func TestDirectoryExactMatch(t *testing.T) {
	dir := NewDirectory()
	dir.Add("pool-1", "a@example.com")
	ctx := context.Background()

	exists, err := dir.EmailExists(ctx, "pool-1", "a@example.com")
	if err != nil || !exists {
		t.Fatalf("expected exact match, got %v/%v", exists, err)
	}
	exists, _ = dir.EmailExists(ctx, "pool-1", "A@example.com")
	if exists {
		t.Fatal("match should be case-sensitive")
	}
	exists, _ = dir.EmailExists(ctx, "pool-2", "a@example.com")
	if exists {
		t.Fatal("match should be scoped to pool")
	}
}
