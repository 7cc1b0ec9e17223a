// Package wordimport loads words from a file into the sqlite word catalog.
package wordimport

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/louisbranch/wordduel/internal/services/duel/storage/sqlite"
	"github.com/louisbranch/wordduel/internal/services/duel/words"
)

// Config holds configuration for the word importer.
type Config struct {
	File   string
	DBPath string
	DryRun bool
}

// ParseConfig parses CLI flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{DBPath: filepath.Join("data", "words.db")}

	fs.StringVar(&cfg.File, "file", "", "word list: one word per line, or a JSON array when the name ends in .json")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "word catalog database path")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "validate without writing to the database")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if strings.TrimSpace(cfg.File) == "" {
		return Config{}, errors.New("file is required")
	}
	return cfg, nil
}

// Result summarizes one import.
type Result struct {
	Read     int
	Valid    int
	Added    int
	Rejected []string
}

// Run executes the importer using the provided Config.
func Run(ctx context.Context, cfg Config, out io.Writer) (Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if out == nil {
		out = io.Discard
	}
	path := strings.TrimSpace(cfg.File)
	if path == "" {
		return Result{}, errors.New("file is required")
	}

	raw, err := readWords(path)
	if err != nil {
		return Result{}, fmt.Errorf("read %s: %w", path, err)
	}
	result := Result{Read: len(raw)}
	valid := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, word := range raw {
		normalized, err := words.Normalize(word)
		if err != nil {
			result.Rejected = append(result.Rejected, word)
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		valid = append(valid, normalized)
	}
	result.Valid = len(valid)

	if cfg.DryRun {
		_, err = fmt.Fprintf(out, "validated %d word(s), %d rejected\n", result.Valid, len(result.Rejected))
		return result, err
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return result, fmt.Errorf("open word catalog: %w", err)
	}
	defer store.Close()

	added, err := store.AddWords(ctx, valid)
	if err != nil {
		return result, fmt.Errorf("import words: %w", err)
	}
	result.Added = added
	_, err = fmt.Fprintf(out, "imported %d new word(s) into %s, %d already present, %d rejected\n",
		added, cfg.DBPath, result.Valid-added, len(result.Rejected))
	return result, err
}

func readWords(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if strings.EqualFold(filepath.Ext(path), ".json") {
		var list []string
		if err := json.NewDecoder(file).Decode(&list); err != nil {
			return nil, fmt.Errorf("decode json word list: %w", err)
		}
		return list, nil
	}

	var list []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		list = append(list, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return list, nil
}
