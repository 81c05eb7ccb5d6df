package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.Get(ctx, "expenses"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.Set(ctx, "expenses", `[]`); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Set(ctx, "expenses", `[{"id":"1"}]`); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err := s.Get(ctx, "expenses")
	if err != nil || got != `[{"id":"1"}]` {
		t.Fatalf("unexpected value %q (err=%v)", got, err)
	}

	if err := s.Remove(ctx, "expenses"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := s.Remove(ctx, "expenses"); err != nil {
		t.Fatalf("second remove should be a no-op: %v", err)
	}
	if _, err := s.Get(ctx, "expenses"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after remove, got %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStoreCancelledContext(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Set(ctx, "theme", "dark"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("nothing should have been stored")
	}
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "nested", "tracker.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	exerciseStore(t, s)
}

func TestSQLiteStoreSharedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracker.db")
	ctx := context.Background()

	a, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("open a: %v", err)
	}
	defer a.Close()
	b, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("open b (migrations must be re-runnable): %v", err)
	}
	defer b.Close()

	if err := a.Set(ctx, "userInfo", `{"name":"Ada","salary":3000}`); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := b.Get(ctx, "userInfo")
	if err != nil || got != `{"name":"Ada","salary":3000}` {
		t.Fatalf("second handle should see the write, got %q (err=%v)", got, err)
	}
}

func TestSQLiteStoreClosed(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "tracker.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s.Close()

	if err := s.Set(context.Background(), "theme", "dark"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if _, err := s.Get(context.Background(), "theme"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
