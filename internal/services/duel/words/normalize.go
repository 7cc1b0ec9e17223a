package words

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	apperrors "github.com/louisbranch/wordduel/internal/platform/errors"
)

// Normalize lower-cases word, strips diacritics, and trims whitespace.
// It fails when anything other than ASCII a-z remains.
func Normalize(word string) (string, error) {
	folded := cases.Lower(language.Und).String(strings.TrimSpace(word))
	stripper := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(stripper, folded)
	if err != nil {
		return "", fmt.Errorf("strip diacritics: %w", err)
	}
	if stripped == "" {
		return "", apperrors.New(apperrors.CodeRoomInvalidWord, "word is empty")
	}
	for _, r := range stripped {
		if r < 'a' || r > 'z' {
			return "", apperrors.WithMetadata(apperrors.CodeRoomInvalidWord, "word must only contain letters a-z",
				map[string]string{"Word": word})
		}
	}
	return stripped, nil
}

// Normalizing wraps a supplier so every word it returns is normalized.
type Normalizing struct {
	Next Supplier
}

// NextWord draws from the wrapped supplier and normalizes the result. Both a
// failed draw and an unusable word are reported as WORD_UNAVAILABLE.
func (n Normalizing) NextWord(ctx context.Context) (string, error) {
	if n.Next == nil {
		return "", apperrors.New(apperrors.CodeWordUnavailable, "word supplier is not configured")
	}
	word, err := n.Next.NextWord(ctx)
	if err != nil {
		return "", Unavailable(err)
	}
	normalized, err := Normalize(word)
	if err != nil {
		return "", Unavailable(err)
	}
	return normalized, nil
}
