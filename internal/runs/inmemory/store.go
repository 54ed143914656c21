package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dvloznov/billflow/internal/domain"
	"github.com/dvloznov/billflow/internal/runs"
)

// Store is an in-memory implementation of runs.Store.
// It is safe for concurrent use. Data is lost on restart.
type Store struct {
	mu   sync.RWMutex
	runs map[string]*runs.Run
}

// NewStore creates a new in-memory run store.
func NewStore() *Store {
	return &Store{
		runs: make(map[string]*runs.Run),
	}
}

// Save saves or updates a run.
func (s *Store) Save(ctx context.Context, run *runs.Run) error {
	if run.ID == "" {
		return fmt.Errorf("runs: %w: run id is required", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Copy to avoid external modifications
	runCopy := copyRun(run)
	s.runs[run.ID] = runCopy

	return nil
}

// Get retrieves a run by ID.
func (s *Store) Get(ctx context.Context, id string) (*runs.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, exists := s.runs[id]
	if !exists {
		return nil, fmt.Errorf("runs: run %s: %w", id, domain.ErrNotFound)
	}
	return copyRun(run), nil
}

// List retrieves runs newest first with optional filtering.
func (s *Store) List(ctx context.Context, filter runs.Filter) ([]*runs.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*runs.Run{}
	for _, run := range s.runs {
		if filter.Status != "" && run.Status != filter.Status {
			continue
		}
		if filter.RecordID != "" && run.RecordID != filter.RecordID {
			continue
		}
		result = append(result, copyRun(run))
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].StartedAt.Equal(result[j].StartedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].StartedAt.After(result[j].StartedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*runs.Run{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}

	return result, nil
}

func copyRun(run *runs.Run) *runs.Run {
	c := *run
	if run.FinishedAt != nil {
		t := *run.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}

// Ensure Store implements runs.Store.
var _ runs.Store = (*Store)(nil)
