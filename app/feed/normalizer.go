package feed

import (
	"fmt"
	"html"
	"net/url"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/microcosm-cc/bluemonday"

	"github.com/vincehartono/pulsefeed/app/sources"
)

// NormalizationError reports a record missing a required field. The
// record is dropped with a warning; the run continues.
type NormalizationError struct {
	SourceID string
	Reason   string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("source %s: %s", e.SourceID, e.Reason)
}

// Normalizer converts raw source records into canonical items. It is
// pure apart from the injected fetch time, which stands in for missing
// timestamps.
type Normalizer struct {
	stripper         *bluemonday.Policy
	summaryMaxLength int
}

func NewNormalizer(summaryMaxLength int) *Normalizer {
	return &Normalizer{
		stripper:         bluemonday.StrictPolicy(),
		summaryMaxLength: summaryMaxLength,
	}
}

func (n *Normalizer) Run(record sources.Record, sourceID string, fetchedAt time.Time) (Item, error) {
	title := n.cleanText(record.Title)
	if title == "" {
		return Item{}, &NormalizationError{SourceID: sourceID, Reason: "record has no title"}
	}

	link := strings.TrimSpace(record.Link)
	if link == "" {
		return Item{}, &NormalizationError{SourceID: sourceID, Reason: "record has no link"}
	}
	parsed, err := url.Parse(link)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" {
		return Item{}, &NormalizationError{SourceID: sourceID, Reason: fmt.Sprintf("record link is not an absolute URL: %s", link)}
	}

	publishedAt, approximate := n.parseTime(record, fetchedAt)

	summary := n.cleanText(record.Summary)
	summary = truncate(summary, n.summaryMaxLength)

	return Item{
		ID:              ItemID(link, title, sourceID),
		Title:           title,
		Link:            link,
		PublishedAt:     publishedAt.UTC(),
		Summary:         summary,
		SourceID:        sourceID,
		TimeApproximate: approximate,
	}, nil
}

// parseTime prefers the adapter's already-parsed timestamp, then tries
// the raw string against the common feed formats. Anything unparsable
// falls back to the fetch time and marks the item approximate.
func (n *Normalizer) parseTime(record sources.Record, fetchedAt time.Time) (time.Time, bool) {
	if record.PublishedAt != nil {
		return *record.PublishedAt, false
	}

	raw := strings.TrimSpace(record.Published)
	if raw == "" {
		return fetchedAt, true
	}

	for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC3339, time.RFC822Z, time.RFC822, "2006-01-02"} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, false
		}
	}

	if parsed, err := dateparse.ParseAny(raw); err == nil {
		return parsed, false
	}

	return fetchedAt, true
}

func (n *Normalizer) cleanText(s string) string {
	s = n.stripper.Sanitize(s)
	s = html.UnescapeString(s)
	return strings.TrimSpace(s)
}

func truncate(s string, max int) string {
	if max <= 0 {
		return s
	}

	runes := []rune(s)
	if len(runes) <= max {
		return s
	}

	return strings.TrimSpace(string(runes[:max-1])) + "…"
}
