// Package words provides the word suppliers a duel draws from when a room
// activates.
package words

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"

	apperrors "github.com/louisbranch/wordduel/internal/platform/errors"
)

// Supplier returns one word per call.
type Supplier interface {
	NextWord(ctx context.Context) (string, error)
}

// SupplierFunc adapts a function to Supplier.
type SupplierFunc func(ctx context.Context) (string, error)

// NextWord calls f.
func (f SupplierFunc) NextWord(ctx context.Context) (string, error) {
	return f(ctx)
}

// DefaultList is the built-in word list.
var DefaultList = []string{
	"apple", "bridge", "candle", "dragon", "engine", "forest", "garden",
	"harbor", "island", "jungle", "kitten", "ladder", "marble", "needle",
	"orange", "pencil", "quartz", "rocket", "silver", "thunder", "umbrella",
	"violin", "window", "yellow", "zipper", "planet", "castle", "mirror",
}

// Static draws uniformly from a fixed list.
type Static struct {
	mu    sync.Mutex
	words []string
	rng   *rand.Rand
}

// NewStatic returns a Static supplier over words. A nil rng uses a randomly
// seeded PCG source.
func NewStatic(words []string, rng *rand.Rand) (*Static, error) {
	cleaned := make([]string, 0, len(words))
	for _, word := range words {
		if word = strings.TrimSpace(word); word != "" {
			cleaned = append(cleaned, word)
		}
	}
	if len(cleaned) == 0 {
		return nil, apperrors.New(apperrors.CodeWordCatalogEmpty, "static word list is empty")
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Static{words: cleaned, rng: rng}, nil
}

// NextWord returns a random word from the list.
func (s *Static) NextWord(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.words[s.rng.IntN(len(s.words))], nil
}

// Unavailable wraps a supplier failure so callers see a retryable code.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) && appErr.Code == apperrors.CodeWordUnavailable {
		return err
	}
	return apperrors.Wrap(apperrors.CodeWordUnavailable, "word supplier failed", err)
}
