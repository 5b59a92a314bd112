package orchestrator

import (
	"errors"
	"sync"
	"time"
)

// Repository defines the concurrency-safe contract for accessing and mutating
// run records.
type Repository interface {
	// Create records a new run. If an active run already exists for the same
	// source and output root, ErrRunInProgress is returned and nothing is stored.
	Create(r Run) error

	// Update applies fn to the stored run and persists the result.
	// ErrRunNotFound is returned if the run does not exist.
	Update(id RunID, fn func(*Run)) (Run, error)

	// Get returns a copy of the run. The ok return is false if it does not exist.
	Get(id RunID) (run Run, ok bool, err error)

	// List returns all runs ordered by creation time.
	List() ([]Run, error)

	// ActiveRunCount returns the number of runs that are queued or running.
	// Used for metrics.
	ActiveRunCount() int

	// RecoverInterrupted marks runs left queued or running by a previous
	// process as failed and returns how many it changed.
	RecoverInterrupted() (int, error)
}

var (
	// ErrRunNotFound is returned when a run id is unknown.
	ErrRunNotFound = errors.New("run not found")

	// ErrRunInProgress is returned when a run targeting the same output is
	// still queued or running.
	ErrRunInProgress = errors.New("a run for this target is already in progress")
)

// interruptedError is recorded on runs that were active when the previous
// process stopped.
const interruptedError = "interrupted"

// StoreRepository is a concurrency-safe implementation of Repository.
// It uses a Store for persistence; by default that is an InMemoryStore.
type StoreRepository struct {
	mu    sync.RWMutex
	store Store
	now   func() time.Time
}

// NewInMemoryRepository constructs a new repository with a default in-memory store.
func NewInMemoryRepository() *StoreRepository {
	return NewRepositoryWithStore(NewInMemoryStore())
}

// NewRepositoryWithStore constructs a repository that uses the given Store.
// Useful for testing or for plugging in a different persistence backend.
func NewRepositoryWithStore(store Store) *StoreRepository {
	return &StoreRepository{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// Create implements Repository.Create.
func (r *StoreRepository) Create(run Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	runs, err := r.store.ListRuns()
	if err != nil {
		return err
	}
	for _, existing := range runs {
		if existing.Active() && existing.Source == run.Source && existing.OutRoot == run.OutRoot {
			return ErrRunInProgress
		}
	}

	if run.CreatedAt.IsZero() {
		run.CreatedAt = r.now()
	}
	if run.Status == "" {
		run.Status = StatusQueued
	}
	return r.store.SaveRun(run)
}

// Update implements Repository.Update.
func (r *StoreRepository) Update(id RunID, fn func(*Run)) (Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok, err := r.store.GetRun(id)
	if err != nil {
		return Run{}, err
	}
	if !ok {
		return Run{}, ErrRunNotFound
	}
	fn(&run)
	run.ID = id
	if err := r.store.SaveRun(run); err != nil {
		return Run{}, err
	}
	return run, nil
}

// Get implements Repository.Get.
func (r *StoreRepository) Get(id RunID) (Run, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.store.GetRun(id)
}

// List implements Repository.List.
func (r *StoreRepository) List() ([]Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.store.ListRuns()
}

// ActiveRunCount implements Repository.ActiveRunCount.
func (r *StoreRepository) ActiveRunCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	runs, err := r.store.ListRuns()
	if err != nil {
		return 0
	}
	n := 0
	for _, run := range runs {
		if run.Active() {
			n++
		}
	}
	return n
}

// RecoverInterrupted implements Repository.RecoverInterrupted. It must run
// before any new run is submitted.
func (r *StoreRepository) RecoverInterrupted() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	runs, err := r.store.ListRuns()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, run := range runs {
		if !run.Active() {
			continue
		}
		now := r.now()
		run.Status = StatusError
		run.Stage = ""
		run.Error = interruptedError
		run.FinishedAt = &now
		if err := r.store.SaveRun(run); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
