// Package pipeline wires the aggregation stages together and owns the
// run-scoped state: which sources fetched, which ids were accepted, and
// whether the run as a whole succeeded.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vincehartono/pulsefeed/app/config"
	"github.com/vincehartono/pulsefeed/app/feed"
	"github.com/vincehartono/pulsefeed/app/history"
	"github.com/vincehartono/pulsefeed/app/sources"
)

type Stage string

const (
	StageIdle        Stage = "idle"
	StageFetching    Stage = "fetching"
	StageNormalizing Stage = "normalizing"
	StageFiltering   Stage = "filtering"
	StageDeduping    Stage = "deduping"
	StageMerging     Stage = "merging"
	StageSerializing Stage = "serializing"
	StageDone        Stage = "done"
	StageFailed      Stage = "failed"
)

var (
	ErrNoSources        = errors.New("no sources configured")
	ErrAllSourcesFailed = errors.New("all sources failed to fetch")
	ErrNoUsableItems    = errors.New("no source produced a usable item")
)

// Sink receives the serialized document in two phases: Stage prepares
// the write without touching the published output, Commit makes it
// visible. A run that fails between the two calls Discard, so prior
// output stays untouched.
type Sink interface {
	Stage(ctx context.Context, data []byte) error
	Commit(ctx context.Context) error
	Discard()
}

type Pipeline struct {
	settings   *config.Settings
	sources    []sources.Source
	store      history.Store
	sink       Sink
	normalizer *feed.Normalizer
	filterer   *feed.Filterer
	merger     *feed.Merger
	generator  *feed.Generator
	extractor  *feed.Extractor

	now func() time.Time
}

// Report summarizes one run for logging and the stats endpoint.
type Report struct {
	Stage        Stage
	SourceErrors map[string]error
	Fetched      int
	Dropped      int
	Filtered     int
	Duplicates   int
	Enriched     int
	Emitted      int
	Duration     time.Duration
}

// Result is the atomic outcome of a successful run: the document was
// published and the history committed, or Run returned an error and
// neither happened durably.
type Result struct {
	Document feed.Document
	XML      string
	NewIDs   []string
	Report   Report
}

type Config struct {
	Settings  *config.Settings
	Sources   []sources.Source
	Store     history.Store
	Sink      Sink
	Extractor *feed.Extractor // nil disables summary enrichment
	Now       func() time.Time
}

func New(cfg Config) *Pipeline {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Pipeline{
		settings:   cfg.Settings,
		sources:    cfg.Sources,
		store:      cfg.Store,
		sink:       cfg.Sink,
		normalizer: feed.NewNormalizer(cfg.Settings.SummaryMaxLength),
		filterer:   feed.NewFilterer(),
		merger:     feed.NewMerger(cfg.Settings.MaxItems, cfg.Settings.DaysLookback),
		generator:  feed.NewGenerator(),
		extractor:  cfg.Extractor,
		now:        now,
	}
}

type fetchResult struct {
	sourceID string
	records  []sources.Record
	err      error
}

// Run executes one complete aggregation pass. Per-record and per-source
// problems are logged and skipped; only configuration, publishing and
// history-save failures abort the run.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	started := p.now()
	report := Report{Stage: StageIdle, SourceErrors: make(map[string]error)}

	if len(p.sources) == 0 {
		report.Stage = StageFailed
		return nil, ErrNoSources
	}

	seen, err := p.store.Load(ctx)
	if err != nil {
		slog.Warn("Failed to load history, continuing with empty history", "error", err)
		seen = make(map[string]bool)
	}

	report.Stage = StageFetching
	results := p.fetchAll(ctx)

	failed := 0
	for _, result := range results {
		if result.err != nil {
			slog.Warn("Source fetch failed, skipping", "source", result.sourceID, "error", result.err)
			report.SourceErrors[result.sourceID] = result.err
			failed++
			continue
		}
		report.Fetched += len(result.records)
	}
	if failed == len(p.sources) {
		report.Stage = StageFailed
		return nil, ErrAllSourcesFailed
	}
	if p.settings.RequireSource && report.Fetched == 0 {
		report.Stage = StageFailed
		return nil, ErrNoUsableItems
	}

	// Aggregation is single-threaded from here: it is CPU-light and the
	// ordering guarantees depend on it.
	fetchedAt := p.now().UTC()

	report.Stage = StageNormalizing
	var items []feed.Item
	for _, result := range results {
		if result.err != nil {
			continue
		}
		for _, record := range result.records {
			item, err := p.normalizer.Run(record, result.sourceID, fetchedAt)
			if err != nil {
				slog.Warn("Dropping record", "source", result.sourceID, "error", err)
				report.Dropped++
				continue
			}
			items = append(items, item)
		}
	}

	report.Stage = StageFiltering
	var relevant []feed.Item
	for _, item := range items {
		includes, excludes := p.settings.FilterRules(item.SourceID)
		ok, reason := p.filterer.Accept(item, includes, excludes)
		if !ok {
			slog.Debug("Item filtered", "source", item.SourceID, "title", item.Title, "reason", reason)
			report.Filtered++
			continue
		}
		relevant = append(relevant, item)
	}

	report.Stage = StageDeduping
	deduper := feed.NewDeduper(seen)
	var fresh []feed.Item
	for _, item := range relevant {
		if !deduper.Accept(item) {
			slog.Debug("Item already seen", "source", item.SourceID, "id", item.ID)
			report.Duplicates++
			continue
		}
		fresh = append(fresh, item)
	}

	report.Stage = StageMerging
	merged := p.merger.Run(fresh, fetchedAt)

	if p.extractor != nil {
		report.Enriched = p.extractor.Run(ctx, merged)
	}

	report.Stage = StageSerializing
	doc := feed.Document{
		Title:       p.settings.Title,
		Link:        p.settings.Link,
		Description: p.settings.Description,
		SelfURL:     p.selfURL(),
		BuildTime:   fetchedAt,
		Items:       merged,
	}

	xml, err := p.generator.Run(doc)
	if err != nil {
		report.Stage = StageFailed
		return nil, fmt.Errorf("failed to serialize document: %w", err)
	}

	// Staged first so a history failure publishes nothing, committed
	// only after the save so a publish failure leaves the ids unsaved
	// and the items resurface next run.
	if err := p.sink.Stage(ctx, []byte(xml)); err != nil {
		report.Stage = StageFailed
		return nil, fmt.Errorf("failed to publish document: %w", err)
	}

	if err := p.store.Save(ctx, deduper.AcceptedIDs()); err != nil {
		p.sink.Discard()
		report.Stage = StageFailed
		return nil, fmt.Errorf("failed to save history: %w", err)
	}

	if err := p.sink.Commit(ctx); err != nil {
		report.Stage = StageFailed
		return nil, fmt.Errorf("failed to publish document: %w", err)
	}

	report.Stage = StageDone
	report.Emitted = len(merged)
	report.Duration = p.now().Sub(started)

	return &Result{
		Document: doc,
		XML:      xml,
		NewIDs:   deduper.AcceptedIDs(),
		Report:   report,
	}, nil
}

// fetchAll fans out over the configured sources. Each fetch carries its
// own timeout inside the adapter, so one hung source cannot stall the
// others; the pipeline waits for every source before aggregating.
func (p *Pipeline) fetchAll(ctx context.Context) []fetchResult {
	results := make([]fetchResult, len(p.sources))

	var wg sync.WaitGroup
	for i, source := range p.sources {
		wg.Add(1)
		go func(i int, source sources.Source) {
			defer wg.Done()
			records, err := source.Fetch(ctx)
			results[i] = fetchResult{sourceID: source.ID(), records: records, err: err}
		}(i, source)
	}
	wg.Wait()

	return results
}

func (p *Pipeline) selfURL() string {
	if p.settings.SiteBase == "" {
		return ""
	}
	return p.settings.SiteBase + "/feed.xml"
}
