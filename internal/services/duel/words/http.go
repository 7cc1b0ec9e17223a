package words

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const maxResponseBytes = 4 << 10

// HTTP fetches words from a random-word API that answers GET requests with a
// JSON array of strings, e.g. ["lantern"].
type HTTP struct {
	URL     string
	Client  *http.Client
	Backoff func() backoff.BackOff
	// MaxTries bounds attempts per NextWord call; zero means 3.
	MaxTries uint
}

// NewHTTP returns an HTTP supplier with default client and retry policy.
func NewHTTP(url string, timeout time.Duration) *HTTP {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HTTP{
		URL:    strings.TrimSpace(url),
		Client: &http.Client{Timeout: timeout},
	}
}

// NextWord fetches one word, retrying transient failures with exponential
// backoff until ctx ends or the try budget is spent. 4xx answers are not retried.
func (h *HTTP) NextWord(ctx context.Context) (string, error) {
	if h.URL == "" {
		return "", fmt.Errorf("word api url is required")
	}
	policy := h.policy()
	tries := h.MaxTries
	if tries == 0 {
		tries = 3
	}
	word, err := backoff.Retry(ctx, func() (string, error) {
		return h.fetch(ctx)
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(tries))
	if err != nil {
		return "", fmt.Errorf("fetch word from %s: %w", h.URL, err)
	}
	return word, nil
}

func (h *HTTP) policy() backoff.BackOff {
	if h.Backoff != nil {
		return h.Backoff()
	}
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.MaxInterval = time.Second
	return policy
}

func (h *HTTP) fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return "", fmt.Errorf("word api status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return "", backoff.Permanent(fmt.Errorf("word api status %d", resp.StatusCode))
	}

	var words []string
	if err := json.Unmarshal(body, &words); err != nil {
		return "", backoff.Permanent(fmt.Errorf("decode word api response: %w", err))
	}
	if len(words) == 0 || strings.TrimSpace(words[0]) == "" {
		return "", fmt.Errorf("word api returned no word")
	}
	return words[0], nil
}
