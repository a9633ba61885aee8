package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Record is one raw entry as a source reported it, before normalization.
// Published keeps the source's original timestamp string when the adapter
// could not parse it itself.
type Record struct {
	Title       string
	Link        string
	Summary     string
	Published   string
	PublishedAt *time.Time
}

// Source fetches and parses one configured origin into raw records.
// A successful fetch with zero records is valid.
type Source interface {
	ID() string
	Kind() string
	Fetch(ctx context.Context) ([]Record, error)
}

// FetchError reports a network-level failure for one source. It is
// recoverable at the run level: the orchestrator skips the source.
type FetchError struct {
	SourceID string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("source %s: fetch failed: %v", e.SourceID, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ParseError reports a malformed payload for one source.
type ParseError struct {
	SourceID string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("source %s: parse failed: %v", e.SourceID, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// fetchURL performs a bounded GET and returns the raw payload. The
// timeout is enforced through the context so a hung source cannot block
// the rest of the run.
func fetchURL(ctx context.Context, client *http.Client, url, userAgent string, timeout time.Duration) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}
