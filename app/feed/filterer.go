package feed

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// Filterer decides whether an item is relevant based on include and
// exclude keyword sets. Matching is case-folded substring matching over
// title and summary; excludes always win.
type Filterer struct {
	folder cases.Caser
}

func NewFilterer() *Filterer {
	return &Filterer{
		folder: cases.Fold(),
	}
}

// Accept returns whether the item passes, and the reason when it does
// not. An empty include set accepts everything not excluded.
func (f *Filterer) Accept(item Item, includes, excludes []string) (bool, string) {
	haystack := f.folder.String(item.Title + "\n" + item.Summary)

	for _, term := range excludes {
		if term == "" {
			continue
		}
		if strings.Contains(haystack, f.folder.String(term)) {
			return false, fmt.Sprintf("contains excluded term '%s'", term)
		}
	}

	if len(includes) == 0 {
		return true, ""
	}

	for _, term := range includes {
		if strings.Contains(haystack, f.folder.String(term)) {
			return true, ""
		}
	}

	return false, fmt.Sprintf("matches none of %v", includes)
}
