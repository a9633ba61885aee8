package sources

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/vincehartono/pulsefeed/app/config"
)

// CSVSource adapts a spreadsheet published as CSV (the Google Sheets
// "publish to web" export). The first row is the header; column names are
// matched case-insensitively and extra columns are ignored.
type CSVSource struct {
	id        string
	url       string
	client    *http.Client
	userAgent string
	timeout   time.Duration
}

// Accepted header names per field. "url" is what the sheet template uses,
// "link" is accepted for hand-rolled sheets.
var csvColumns = map[string][]string{
	"title":     {"title"},
	"link":      {"url", "link"},
	"summary":   {"summary", "description"},
	"published": {"pubdate", "published", "date"},
}

func NewCSVSource(source config.Source, client *http.Client, userAgent string, timeout time.Duration) *CSVSource {
	return &CSVSource{
		id:        source.ID,
		url:       source.URL,
		client:    client,
		userAgent: userAgent,
		timeout:   timeout,
	}
}

func (s *CSVSource) ID() string {
	return s.id
}

func (s *CSVSource) Kind() string {
	return config.SourceKindCSV
}

func (s *CSVSource) Fetch(ctx context.Context) ([]Record, error) {
	data, err := fetchURL(ctx, s.client, s.url, s.userAgent, s.timeout)
	if err != nil {
		return nil, &FetchError{SourceID: s.id, Err: err}
	}

	records, err := s.parse(data)
	if err != nil {
		return nil, &ParseError{SourceID: s.id, Err: err}
	}

	slog.Debug("CSV source fetched", "source", s.id, "records", len(records))

	return records, nil
}

func (s *CSVSource) parse(data []byte) ([]Record, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("empty document")
		}
		return nil, fmt.Errorf("failed to read header row: %w", err)
	}

	columns, err := s.mapColumns(header)
	if err != nil {
		return nil, err
	}

	var records []Record
	rowNum := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			// A single malformed row is skipped, not fatal.
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				slog.Warn("CSV source skipping malformed row", "source", s.id, "row", rowNum, "error", err)
				continue
			}
			return nil, fmt.Errorf("failed to read row %d: %w", rowNum, err)
		}

		if len(row) != len(header) {
			slog.Warn("CSV source skipping row with wrong column count", "source", s.id, "row", rowNum, "columns", len(row), "expected", len(header))
			continue
		}

		records = append(records, Record{
			Title:     s.field(row, columns, "title"),
			Link:      s.field(row, columns, "link"),
			Summary:   s.field(row, columns, "summary"),
			Published: s.field(row, columns, "published"),
		})
	}

	return records, nil
}

// mapColumns resolves field names to column indexes from the header row.
// Title and link columns are required; everything else is optional.
func (s *CSVSource) mapColumns(header []string) (map[string]int, error) {
	byName := make(map[string]int, len(header))
	for i, name := range header {
		byName[strings.ToLower(strings.TrimSpace(name))] = i
	}

	columns := make(map[string]int, len(csvColumns))
	for field, names := range csvColumns {
		for _, name := range names {
			if idx, ok := byName[name]; ok {
				columns[field] = idx
				break
			}
		}
	}

	if _, ok := columns["title"]; !ok {
		return nil, fmt.Errorf("missing required column: title")
	}
	if _, ok := columns["link"]; !ok {
		return nil, fmt.Errorf("missing required column: url")
	}

	return columns, nil
}

func (s *CSVSource) field(row []string, columns map[string]int, name string) string {
	idx, ok := columns[name]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
