package feed

// Deduper tracks item identity for one run. Two checks apply in order:
// the intra-run set (the same story carried by two sources) and the
// persisted history of ids emitted by earlier runs. Titles are never
// compared; identity is the canonical-link id only.
type Deduper struct {
	history  map[string]bool
	seen     map[string]bool
	accepted []string
}

func NewDeduper(history map[string]bool) *Deduper {
	if history == nil {
		history = make(map[string]bool)
	}
	return &Deduper{
		history: history,
		seen:    make(map[string]bool),
	}
}

// Accept reports whether the item's id is new to this run and to the
// persisted history, recording it when it is.
func (d *Deduper) Accept(item Item) bool {
	if d.seen[item.ID] {
		return false
	}
	d.seen[item.ID] = true

	if d.history[item.ID] {
		return false
	}

	d.accepted = append(d.accepted, item.ID)
	return true
}

// AcceptedIDs returns the ids accepted this run, in acceptance order.
// They are committed to the history only after the run succeeds.
func (d *Deduper) AcceptedIDs() []string {
	return d.accepted
}
