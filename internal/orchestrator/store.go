package orchestrator

import "sort"

// Store is the persistence abstraction for run records.
// Implementations can be in-memory or SQL backed.
// The Repository uses Store for all reads and writes and serializes access
// to it; callers of Repository do not need to know which Store is used.
type Store interface {
	GetRun(id RunID) (Run, bool, error)
	SaveRun(r Run) error
	ListRuns() ([]Run, error)
	Close() error
}

// InMemoryStore is an in-memory implementation of Store.
type InMemoryStore struct {
	runs map[RunID]Run
}

// NewInMemoryStore returns a new empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		runs: make(map[RunID]Run),
	}
}

// GetRun implements Store.GetRun.
func (s *InMemoryStore) GetRun(id RunID) (Run, bool, error) {
	r, ok := s.runs[id]
	return r, ok, nil
}

// SaveRun implements Store.SaveRun.
func (s *InMemoryStore) SaveRun(r Run) error {
	s.runs[r.ID] = r
	return nil
}

// ListRuns implements Store.ListRuns. Runs are ordered by creation time.
func (s *InMemoryStore) ListRuns() ([]Run, error) {
	runs := make([]Run, 0, len(s.runs))
	for _, r := range s.runs {
		runs = append(runs, r)
	}
	sortRuns(runs)
	return runs, nil
}

// Close implements Store.Close.
func (s *InMemoryStore) Close() error {
	return nil
}

func sortRuns(runs []Run) {
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].CreatedAt.Before(runs[j].CreatedAt)
	})
}
