package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dvloznov/billflow/internal/domain"
	"github.com/dvloznov/billflow/internal/kv"
)

// SnapshotKey is the kv key the ordered record list is persisted under.
const SnapshotKey = "records"

// RecordStore is the in-memory ledger: an ordered list of records, newest first.
// It never sorts; consuming views sort their own copies.
type RecordStore struct {
	mu      sync.RWMutex
	records []domain.FinancialRecord
}

// New creates an empty store.
func New() *RecordStore {
	return &RecordStore{}
}

// Insert prepends record. Ids must be unique.
func (s *RecordStore) Insert(record domain.FinancialRecord) error {
	if record.ID == "" {
		return fmt.Errorf("store: insert: %w: record id is required", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(record.ID) >= 0 {
		return fmt.Errorf("store: insert: %w: duplicate id %s", domain.ErrInvalidInput, record.ID)
	}

	s.records = append([]domain.FinancialRecord{record.Clone()}, s.records...)
	return nil
}

// Update replaces the record with the given id in place, keeping its position.
func (s *RecordStore) Update(id string, record domain.FinancialRecord) error {
	if record.ID != id {
		return fmt.Errorf("store: update %s: %w: id mismatch %s", id, domain.ErrInvalidInput, record.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("store: update %s: %w", id, domain.ErrNotFound)
	}
	s.records[i] = record.Clone()
	return nil
}

// Delete removes the record with the given id.
func (s *RecordStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("store: delete %s: %w", id, domain.ErrNotFound)
	}

	out := make([]domain.FinancialRecord, 0, len(s.records)-1)
	out = append(out, s.records[:i]...)
	out = append(out, s.records[i+1:]...)
	s.records = out
	return nil
}

// Find returns a copy of the record with the given id.
func (s *RecordStore) Find(id string) (domain.FinancialRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(id)
	if i < 0 {
		return domain.FinancialRecord{}, false
	}
	return s.records[i].Clone(), true
}

// FirstWhere returns the first record in store order matching pred.
func (s *RecordStore) FirstWhere(pred func(domain.FinancialRecord) bool) (domain.FinancialRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.records {
		if pred(r) {
			return r.Clone(), true
		}
	}
	return domain.FinancialRecord{}, false
}

// All returns a deep-copied snapshot in store order. Later mutations of the
// store are not visible through it.
func (s *RecordStore) All() []domain.FinancialRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.FinancialRecord, len(s.records))
	for i, r := range s.records {
		out[i] = r.Clone()
	}
	return out
}

// Len returns the number of records.
func (s *RecordStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *RecordStore) indexOf(id string) int {
	for i := range s.records {
		if s.records[i].ID == id {
			return i
		}
	}
	return -1
}

// Save writes the ordered snapshot to kv under SnapshotKey.
func (s *RecordStore) Save(ctx context.Context, store kv.Store) error {
	data, err := json.Marshal(s.All())
	if err != nil {
		return fmt.Errorf("store: encode snapshot: %w", err)
	}
	if err := store.Put(ctx, SnapshotKey, data); err != nil {
		return fmt.Errorf("store: save snapshot: %w", err)
	}
	return nil
}

// Load replaces the contents with the snapshot in kv. A missing snapshot
// leaves the store empty.
func (s *RecordStore) Load(ctx context.Context, store kv.Store) error {
	data, err := store.Get(ctx, SnapshotKey)
	if errors.Is(err, kv.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("store: load snapshot: %w", err)
	}

	var records []domain.FinancialRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("store: decode snapshot: %w", err)
	}

	seen := make(map[string]bool, len(records))
	for _, r := range records {
		if seen[r.ID] {
			return fmt.Errorf("store: decode snapshot: duplicate id %s", r.ID)
		}
		seen[r.ID] = true
	}

	s.mu.Lock()
	s.records = records
	s.mu.Unlock()
	return nil
}
