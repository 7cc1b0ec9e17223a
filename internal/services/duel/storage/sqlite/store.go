// Package sqlite provides the SQLite-backed word catalog.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	apperrors "github.com/louisbranch/wordduel/internal/platform/errors"
	sqlitemigrate "github.com/louisbranch/wordduel/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/wordduel/internal/services/duel/storage/sqlite/migrations"
)

// Store persists the word catalog in SQLite.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

// Open opens a SQLite word catalog and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlitemigrate.ApplyMigrations(context.Background(), sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// NextWord returns a random word from the catalog.
func (s *Store) NextWord(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s == nil || s.sqlDB == nil {
		return "", fmt.Errorf("storage is not configured")
	}
	var word string
	err := s.sqlDB.QueryRowContext(ctx, `SELECT word FROM words ORDER BY RANDOM() LIMIT 1`).Scan(&word)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperrors.New(apperrors.CodeWordCatalogEmpty, "word catalog is empty")
	}
	if err != nil {
		return "", fmt.Errorf("select random word: %w", err)
	}
	return word, nil
}

// AddWords inserts words that are not in the catalog yet and returns how
// many were new. Words are stored as given; callers normalize first.
func (s *Store) AddWords(ctx context.Context, words []string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin add words: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO words (word, added_at) VALUES (?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("prepare add words: %w", err)
	}
	defer stmt.Close()

	addedAt := s.now().UTC().UnixMilli()
	added := 0
	for _, word := range words {
		word = strings.TrimSpace(word)
		if word == "" {
			continue
		}
		res, err := stmt.ExecContext(ctx, word, addedAt)
		if err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("insert word %q: %w", word, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			added += int(n)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit add words: %w", err)
	}
	return added, nil
}

// Count returns the number of words in the catalog.
func (s *Store) Count(ctx context.Context) (int, error) {
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	var count int
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM words`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count words: %w", err)
	}
	return count, nil
}
