package feed

import (
	"sort"
	"time"
)

// Merger orders the surviving items and applies the output bounds: the
// lookback window and the item cap.
type Merger struct {
	maxItems int
	lookback time.Duration
}

func NewMerger(maxItems, daysLookback int) *Merger {
	return &Merger{
		maxItems: maxItems,
		lookback: time.Duration(daysLookback) * 24 * time.Hour,
	}
}

// Run sorts items newest first, ties broken by id ascending so the order
// is reproducible when many items share one date. Items older than the
// lookback window relative to now are dropped, then the cap applies.
func (m *Merger) Run(items []Item, now time.Time) []Item {
	merged := make([]Item, 0, len(items))

	cutoff := time.Time{}
	if m.lookback > 0 {
		cutoff = now.Add(-m.lookback)
	}

	for _, item := range items {
		if !cutoff.IsZero() && item.PublishedAt.Before(cutoff) {
			continue
		}
		merged = append(merged, item)
	}

	sort.Slice(merged, func(i, j int) bool {
		if !merged[i].PublishedAt.Equal(merged[j].PublishedAt) {
			return merged[i].PublishedAt.After(merged[j].PublishedAt)
		}
		return merged[i].ID < merged[j].ID
	})

	if m.maxItems > 0 && len(merged) > m.maxItems {
		merged = merged[:m.maxItems]
	}

	return merged
}
