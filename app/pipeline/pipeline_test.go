package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/vincehartono/pulsefeed/app/config"
	"github.com/vincehartono/pulsefeed/app/history"
	"github.com/vincehartono/pulsefeed/app/sources"
)

// fakeSource returns canned records or a canned error.
type fakeSource struct {
	id      string
	records []sources.Record
	err     error
	delay   time.Duration
}

func (s *fakeSource) ID() string   { return s.id }
func (s *fakeSource) Kind() string { return config.SourceKindRSS }

func (s *fakeSource) Fetch(ctx context.Context) ([]sources.Record, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.records, nil
}

// memorySink collects published documents in memory.
type memorySink struct {
	staged    []byte
	published [][]byte
	err       error // when set, Stage fails with this error
}

func (s *memorySink) Stage(ctx context.Context, data []byte) error {
	if s.err != nil {
		return s.err
	}
	s.staged = append([]byte(nil), data...)
	return nil
}

func (s *memorySink) Commit(ctx context.Context) error {
	s.published = append(s.published, s.staged)
	s.staged = nil
	return nil
}

func (s *memorySink) Discard() {
	s.staged = nil
}

func testSettings() *config.Settings {
	return &config.Settings{
		Title:            "Test Feed",
		Link:             "https://example.com",
		Description:      "Test description",
		MaxItems:         40,
		DaysLookback:     14,
		SummaryMaxLength: 500,
	}
}

func record(n int, published time.Time) sources.Record {
	return sources.Record{
		Title:       fmt.Sprintf("Story %d", n),
		Link:        fmt.Sprintf("https://example.com/story-%d", n),
		Summary:     fmt.Sprintf("Summary for story %d", n),
		PublishedAt: &published,
	}
}

func fixedNow() time.Time {
	return time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
}

func TestPipeline_Run(t *testing.T) {
	published := fixedNow().Add(-2 * time.Hour)
	pipeline := New(Config{
		Settings: testSettings(),
		Sources: []sources.Source{
			&fakeSource{id: "a", records: []sources.Record{record(1, published), record(2, published.Add(time.Hour))}},
			&fakeSource{id: "b", records: []sources.Record{record(3, published)}},
		},
		Store: history.NewMemoryStore(),
		Sink:  &memorySink{},
		Now:   fixedNow,
	})

	result, err := pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if result.Report.Stage != StageDone {
		t.Errorf("Expected stage done, got %s", result.Report.Stage)
	}
	if result.Report.Fetched != 3 {
		t.Errorf("Expected 3 fetched records, got %d", result.Report.Fetched)
	}
	if result.Report.Emitted != 3 {
		t.Errorf("Expected 3 emitted items, got %d", result.Report.Emitted)
	}
	if len(result.NewIDs) != 3 {
		t.Errorf("Expected 3 new ids, got %d", len(result.NewIDs))
	}
	if !strings.Contains(result.XML, "<title>Test Feed</title>") {
		t.Errorf("Published document should carry the configured title")
	}
	if result.Document.Items[0].Title != "Story 2" {
		t.Errorf("Newest item first, got %q", result.Document.Items[0].Title)
	}
}

func TestPipeline_OneSourceFails(t *testing.T) {
	published := fixedNow().Add(-time.Hour)
	sink := &memorySink{}
	pipeline := New(Config{
		Settings: testSettings(),
		Sources: []sources.Source{
			&fakeSource{id: "good", records: []sources.Record{record(1, published)}},
			&fakeSource{id: "broken", err: errors.New("connection refused")},
			&fakeSource{id: "slow", err: context.DeadlineExceeded},
		},
		Store: history.NewMemoryStore(),
		Sink:  sink,
		Now:   fixedNow,
	})

	result, err := pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("A partial fetch failure must not fail the run, got: %v", err)
	}

	if result.Report.Stage != StageDone {
		t.Errorf("Expected stage done, got %s", result.Report.Stage)
	}
	if result.Report.Emitted != 1 {
		t.Errorf("Expected the good source's item, got %d items", result.Report.Emitted)
	}
	if len(result.Report.SourceErrors) != 2 {
		t.Errorf("Expected 2 recorded source errors, got %d", len(result.Report.SourceErrors))
	}
	if _, ok := result.Report.SourceErrors["broken"]; !ok {
		t.Errorf("Source errors should be keyed by source id")
	}
	if len(sink.published) != 1 {
		t.Errorf("Document should still be published, got %d publishes", len(sink.published))
	}
}

func TestPipeline_AllSourcesFail(t *testing.T) {
	sink := &memorySink{}
	pipeline := New(Config{
		Settings: testSettings(),
		Sources: []sources.Source{
			&fakeSource{id: "a", err: errors.New("down")},
			&fakeSource{id: "b", err: errors.New("also down")},
		},
		Store: history.NewMemoryStore(),
		Sink:  sink,
		Now:   fixedNow,
	})

	_, err := pipeline.Run(context.Background())
	if !errors.Is(err, ErrAllSourcesFailed) {
		t.Fatalf("Expected ErrAllSourcesFailed, got: %v", err)
	}
	if len(sink.published) != 0 {
		t.Errorf("Nothing should be published when every source failed")
	}
}

func TestPipeline_NoSources(t *testing.T) {
	pipeline := New(Config{
		Settings: testSettings(),
		Store:    history.NewMemoryStore(),
		Sink:     &memorySink{},
		Now:      fixedNow,
	})

	if _, err := pipeline.Run(context.Background()); !errors.Is(err, ErrNoSources) {
		t.Fatalf("Expected ErrNoSources, got: %v", err)
	}
}

func TestPipeline_SecondRunEmitsNothingNew(t *testing.T) {
	published := fixedNow().Add(-time.Hour)
	store := history.NewMemoryStore()
	cfg := Config{
		Settings: testSettings(),
		Sources: []sources.Source{
			&fakeSource{id: "a", records: []sources.Record{record(1, published), record(2, published)}},
		},
		Store: store,
		Sink:  &memorySink{},
		Now:   fixedNow,
	}

	first, err := New(cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	if first.Report.Emitted != 2 {
		t.Fatalf("First run should emit 2 items, got %d", first.Report.Emitted)
	}

	second, err := New(cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}
	if second.Report.Emitted != 0 {
		t.Errorf("Second run over the same records should emit nothing, got %d", second.Report.Emitted)
	}
	if second.Report.Duplicates != 2 {
		t.Errorf("Expected 2 duplicates on the second run, got %d", second.Report.Duplicates)
	}
	if second.Report.Stage != StageDone {
		t.Errorf("An empty run is still a successful run, got %s", second.Report.Stage)
	}
}

func TestPipeline_SinkFailureKeepsHistoryClean(t *testing.T) {
	published := fixedNow().Add(-time.Hour)
	store := history.NewMemoryStore()
	pipeline := New(Config{
		Settings: testSettings(),
		Sources: []sources.Source{
			&fakeSource{id: "a", records: []sources.Record{record(1, published)}},
		},
		Store: store,
		Sink:  &memorySink{err: errors.New("disk full")},
		Now:   fixedNow,
	})

	if _, err := pipeline.Run(context.Background()); err == nil {
		t.Fatalf("A publish failure must fail the run")
	}

	// The item was never published, so it must reappear on the next run.
	count, _ := store.Count(context.Background())
	if count != 0 {
		t.Errorf("History must not be saved when publishing failed, got %d entries", count)
	}
}

func TestPipeline_SaveFailurePublishesNothing(t *testing.T) {
	published := fixedNow().Add(-time.Hour)
	store := history.NewMemoryStore()
	store.SaveErr = errors.New("database locked")
	sink := &memorySink{}
	pipeline := New(Config{
		Settings: testSettings(),
		Sources: []sources.Source{
			&fakeSource{id: "a", records: []sources.Record{record(1, published)}},
		},
		Store: store,
		Sink:  sink,
		Now:   fixedNow,
	})

	if _, err := pipeline.Run(context.Background()); err == nil {
		t.Fatalf("A history save failure must fail the run")
	}

	// The prior output must survive a failed save untouched.
	if len(sink.published) != 0 {
		t.Errorf("Nothing must be published when the history save failed, got %d publishes", len(sink.published))
	}
	if sink.staged != nil {
		t.Errorf("The staged document must be discarded after a failed save")
	}
}

func TestPipeline_KeywordFiltering(t *testing.T) {
	published := fixedNow().Add(-time.Hour)
	settings := testSettings()
	settings.Keywords = []string{"transfer"}
	settings.ExcludeKeywords = []string{"rumour"}

	pipeline := New(Config{
		Settings: settings,
		Sources: []sources.Source{
			&fakeSource{id: "a", records: []sources.Record{
				{Title: "Transfer confirmed", Link: "https://example.com/1", PublishedAt: &published},
				{Title: "Transfer rumour roundup", Link: "https://example.com/2", PublishedAt: &published},
				{Title: "Ticket prices rise", Link: "https://example.com/3", PublishedAt: &published},
			}},
		},
		Store: history.NewMemoryStore(),
		Sink:  &memorySink{},
		Now:   fixedNow,
	})

	result, err := pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if result.Report.Emitted != 1 {
		t.Fatalf("Expected 1 relevant item, got %d", result.Report.Emitted)
	}
	if result.Report.Filtered != 2 {
		t.Errorf("Expected 2 filtered items, got %d", result.Report.Filtered)
	}
	if result.Document.Items[0].Title != "Transfer confirmed" {
		t.Errorf("Unexpected surviving item: %q", result.Document.Items[0].Title)
	}
}

func TestPipeline_CrossSourceDuplicate(t *testing.T) {
	published := fixedNow().Add(-time.Hour)
	pipeline := New(Config{
		Settings: testSettings(),
		Sources: []sources.Source{
			&fakeSource{id: "a", records: []sources.Record{
				{Title: "Big story", Link: "https://example.com/big?utm_source=a", PublishedAt: &published},
			}},
			&fakeSource{id: "b", records: []sources.Record{
				{Title: "Big story (syndicated)", Link: "https://example.com/big?utm_source=b", PublishedAt: &published},
			}},
		},
		Store: history.NewMemoryStore(),
		Sink:  &memorySink{},
		Now:   fixedNow,
	})

	result, err := pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if result.Report.Emitted != 1 {
		t.Errorf("Same story from two sources should emit once, got %d", result.Report.Emitted)
	}
	if result.Report.Duplicates != 1 {
		t.Errorf("Expected 1 duplicate, got %d", result.Report.Duplicates)
	}
}

func TestPipeline_DroppedRecordsCounted(t *testing.T) {
	published := fixedNow().Add(-time.Hour)
	pipeline := New(Config{
		Settings: testSettings(),
		Sources: []sources.Source{
			&fakeSource{id: "a", records: []sources.Record{
				{Title: "", Link: "https://example.com/1", PublishedAt: &published},
				{Title: "Valid", Link: "https://example.com/2", PublishedAt: &published},
				{Title: "No link", Link: "", PublishedAt: &published},
			}},
		},
		Store: history.NewMemoryStore(),
		Sink:  &memorySink{},
		Now:   fixedNow,
	})

	result, err := pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if result.Report.Dropped != 2 {
		t.Errorf("Expected 2 dropped records, got %d", result.Report.Dropped)
	}
	if result.Report.Emitted != 1 {
		t.Errorf("Expected 1 emitted item, got %d", result.Report.Emitted)
	}
}

func TestPipeline_MaxItemsCap(t *testing.T) {
	settings := testSettings()
	settings.MaxItems = 3

	records := make([]sources.Record, 0, 6)
	for i := 0; i < 6; i++ {
		records = append(records, record(i, fixedNow().Add(-time.Duration(i+1)*time.Hour)))
	}

	pipeline := New(Config{
		Settings: settings,
		Sources:  []sources.Source{&fakeSource{id: "a", records: records}},
		Store:    history.NewMemoryStore(),
		Sink:     &memorySink{},
		Now:      fixedNow,
	})

	result, err := pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if result.Report.Emitted != 3 {
		t.Fatalf("Expected the cap to hold, got %d items", result.Report.Emitted)
	}
	if result.Document.Items[0].Title != "Story 0" {
		t.Errorf("Cap should keep the newest items, got %q first", result.Document.Items[0].Title)
	}

	// Every accepted id goes to history, capped or not, so a dropped item
	// does not resurface on the next run.
	if len(result.NewIDs) != 6 {
		t.Errorf("Expected all 6 accepted ids staged for history, got %d", len(result.NewIDs))
	}
}

func TestPipeline_RequireSource(t *testing.T) {
	settings := testSettings()
	settings.RequireSource = true

	pipeline := New(Config{
		Settings: settings,
		Sources: []sources.Source{
			&fakeSource{id: "empty", records: nil},
			&fakeSource{id: "broken", err: errors.New("down")},
		},
		Store: history.NewMemoryStore(),
		Sink:  &memorySink{},
		Now:   fixedNow,
	})

	if _, err := pipeline.Run(context.Background()); !errors.Is(err, ErrNoUsableItems) {
		t.Fatalf("Expected ErrNoUsableItems, got: %v", err)
	}
}

func TestPipeline_ConcurrentFetch(t *testing.T) {
	published := time.Now().Add(-time.Hour)
	delay := 100 * time.Millisecond

	srcs := make([]sources.Source, 0, 4)
	for i := 0; i < 4; i++ {
		srcs = append(srcs, &fakeSource{
			id:      fmt.Sprintf("src-%d", i),
			records: []sources.Record{record(i, published)},
			delay:   delay,
		})
	}

	pipeline := New(Config{
		Settings: testSettings(),
		Sources:  srcs,
		Store:    history.NewMemoryStore(),
		Sink:     &memorySink{},
		Now:      time.Now,
	})

	start := time.Now()
	result, err := pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if elapsed := time.Since(start); elapsed > 3*delay {
		t.Errorf("Sources should be fetched concurrently, run took %v", elapsed)
	}
	if result.Report.Emitted != 4 {
		t.Errorf("Expected 4 items, got %d", result.Report.Emitted)
	}
}
