package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	apperrors "github.com/louisbranch/wordduel/internal/platform/errors"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "words.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(" "); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestOpenSeedsCatalog(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	count, err := store.Count(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 20 {
		t.Fatalf("seeded words = %d, want 20", count)
	}
	word, err := store.NextWord(context.Background())
	if err != nil {
		t.Fatalf("next word: %v", err)
	}
	if word == "" {
		t.Fatal("expected a seeded word")
	}
}

func TestReopenDoesNotReseed(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "words.db")
	first, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	second, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	count, err := second.Count(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 20 {
		t.Fatalf("words after reopen = %d, want 20", count)
	}
}

func TestAddWordsSkipsExisting(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	added, err := store.AddWords(context.Background(), []string{"lantern", "zephyr", " ", "zephyr", "quasar"})
	if err != nil {
		t.Fatalf("add words: %v", err)
	}
	if added != 2 {
		t.Fatalf("added = %d, want 2", added)
	}
	count, _ := store.Count(context.Background())
	if count != 22 {
		t.Fatalf("count = %d, want 22", count)
	}
}

func TestNextWordOnEmptyCatalog(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	if _, err := store.sqlDB.Exec(`DELETE FROM words`); err != nil {
		t.Fatalf("clear words: %v", err)
	}
	_, err := store.NextWord(context.Background())
	if !apperrors.HasCode(err, apperrors.CodeWordCatalogEmpty) {
		t.Fatalf("err = %v, want %s", err, apperrors.CodeWordCatalogEmpty)
	}
}

func TestNextWordHonorsCancelledContext(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.NextWord(ctx); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
