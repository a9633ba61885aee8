package feed

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "codeberg.org/readeck/go-readability"
)

// minEnrichLength is the summary length below which enrichment kicks in.
// Summaries already this long are kept as-is.
const minEnrichLength = 200

// Extractor upgrades short summaries by fetching the article page and
// running readability extraction over it. Failures are per-item and
// never fail the run; the item keeps whatever summary it had.
type Extractor struct {
	client           *http.Client
	userAgent        string
	timeout          time.Duration
	summaryMaxLength int
}

func NewExtractor(client *http.Client, userAgent string, timeout time.Duration, summaryMaxLength int) *Extractor {
	return &Extractor{
		client:           client,
		userAgent:        userAgent,
		timeout:          timeout,
		summaryMaxLength: summaryMaxLength,
	}
}

// Run enriches items in place and returns how many summaries changed.
func (e *Extractor) Run(ctx context.Context, items []Item) int {
	enriched := 0
	for i := range items {
		if len([]rune(items[i].Summary)) >= minEnrichLength {
			continue
		}

		summary, err := e.extract(ctx, items[i].Link)
		if err != nil {
			slog.Debug("Summary extraction failed", "link", items[i].Link, "error", err)
			continue
		}

		if len(summary) > len(items[i].Summary) {
			items[i].Summary = truncate(summary, e.summaryMaxLength)
			enriched++
		}
	}
	return enriched
}

func (e *Extractor) extract(ctx context.Context, link string) (string, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, link, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	pageURL, _ := url.Parse(link)
	article, err := readability.FromReader(resp.Body, pageURL)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(article.TextContent), nil
}
