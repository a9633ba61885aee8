package history

import (
	"context"
)

// MemoryStore is an in-process Store. It backs tests and ad-hoc runs
// where persistence is not wanted.
type MemoryStore struct {
	ids     map[string]bool
	SaveErr error // when set, Save fails with this error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{ids: make(map[string]bool)}
}

func (s *MemoryStore) Load(ctx context.Context) (map[string]bool, error) {
	ids := make(map[string]bool, len(s.ids))
	for id := range s.ids {
		ids[id] = true
	}
	return ids, nil
}

func (s *MemoryStore) Save(ctx context.Context, ids []string) error {
	if s.SaveErr != nil {
		return s.SaveErr
	}
	for _, id := range ids {
		s.ids[id] = true
	}
	return nil
}

func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	return len(s.ids), nil
}

var _ Store = (*MemoryStore)(nil)
var _ Store = (*SQLiteStore)(nil)
