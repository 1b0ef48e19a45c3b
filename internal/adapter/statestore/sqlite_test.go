package statestore

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestLoadMissingCursor(t *testing.T) {
	store := openTestStore(t)

	_, ok, err := store.Load(context.Background(), "barn")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ok {
		t.Fatal("Load reported a cursor for an empty store")
	}
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	want := time.Date(2024, 5, 1, 10, 0, 0, 123456000, time.UTC)

	if err := store.Save(ctx, "barn", want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, ok, err := store.Load(ctx, "barn")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !ok {
		t.Fatal("Load found no cursor after Save")
	}
	if !got.Equal(want) {
		t.Errorf("cursor = %v, want %v", got, want)
	}
}

func TestSaveOverwritesExistingCursor(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	second := first.Add(45 * time.Minute)

	if err := store.Save(ctx, "barn", first); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save(ctx, "barn", second); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, ok, err := store.Load(ctx, "barn")
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if !got.Equal(second) {
		t.Errorf("cursor = %v, want %v", got, second)
	}
}

func TestCursorsAreScopedPerSubject(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, "barn", time.Now().UTC()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	_, ok, err := store.Load(ctx, "silo")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ok {
		t.Fatal("cursor for one subject leaked into another")
	}
}
