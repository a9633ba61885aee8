package sources

import (
	"bytes"
	"cmp"
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/vincehartono/pulsefeed/app/config"
)

// RSSSource adapts one RSS or Atom endpoint. gofeed handles both formats
// transparently, including the pubDate/updated distinction.
type RSSSource struct {
	id        string
	url       string
	client    *http.Client
	parser    *gofeed.Parser
	userAgent string
	timeout   time.Duration
}

func NewRSSSource(source config.Source, client *http.Client, userAgent string, timeout time.Duration) *RSSSource {
	return &RSSSource{
		id:        source.ID,
		url:       source.URL,
		client:    client,
		parser:    gofeed.NewParser(),
		userAgent: userAgent,
		timeout:   timeout,
	}
}

func (s *RSSSource) ID() string {
	return s.id
}

func (s *RSSSource) Kind() string {
	return config.SourceKindRSS
}

func (s *RSSSource) Fetch(ctx context.Context) ([]Record, error) {
	data, err := fetchURL(ctx, s.client, s.url, s.userAgent, s.timeout)
	if err != nil {
		return nil, &FetchError{SourceID: s.id, Err: err}
	}

	parsed, err := s.parser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, &ParseError{SourceID: s.id, Err: err}
	}

	records := make([]Record, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		record := Record{
			Title:     item.Title,
			Link:      item.Link,
			Summary:   cmp.Or(item.Description, item.Content),
			Published: cmp.Or(item.Published, item.Updated),
		}

		if item.PublishedParsed != nil {
			record.PublishedAt = item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			record.PublishedAt = item.UpdatedParsed
		}

		records = append(records, record)
	}

	slog.Debug("RSS source fetched", "source", s.id, "records", len(records))

	return records, nil
}
