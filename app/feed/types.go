package feed

import (
	"time"
)

// Item is the canonical representation of one news entry, shared by every
// source kind once normalization has run.
type Item struct {
	// ID is derived from the canonical link (or title+source when a
	// record carries no link) and is the deduplication key.
	ID          string
	Title       string
	Link        string
	PublishedAt time.Time // always UTC
	Summary     string
	SourceID    string

	// TimeApproximate marks items whose source gave no usable timestamp;
	// PublishedAt then holds the fetch time.
	TimeApproximate bool
}

// Document is the fully aggregated feed, regenerated from scratch each
// run. BuildTime is fixed by the orchestrator so serializing the same
// document twice yields identical bytes.
type Document struct {
	Title       string
	Link        string
	Description string
	SelfURL     string
	BuildTime   time.Time
	Items       []Item
}
