package store

import (
	"context"
	"errors"
	"testing"

	"github.com/dvloznov/billflow/internal/domain"
	"github.com/dvloznov/billflow/internal/kv"
	"github.com/shopspring/decimal"
)

func rec(id string) domain.FinancialRecord {
	return domain.FinancialRecord{
		ID:             id,
		Kind:           domain.KindExpense,
		WorkflowStatus: domain.StatusVerified,
		Extracted: domain.ExtractedData{
			CounterpartyName: "Vendor " + id,
			TotalAmount:      decimal.NewFromInt(10),
			LineItems:        []domain.LineItem{{Description: "item"}},
		},
	}
}

func ids(records []domain.FinancialRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestInsertPrepends(t *testing.T) {
	s := New()
	for _, id := range []string{"a", "b", "c"} {
		if err := s.Insert(rec(id)); err != nil {
			t.Fatalf("Insert(%s): %v", id, err)
		}
	}

	if got := ids(s.All()); !equalIDs(got, []string{"c", "b", "a"}) {
		t.Errorf("All() order = %v, want [c b a]", got)
	}
}

func TestInsertRejectsDuplicateID(t *testing.T) {
	s := New()
	_ = s.Insert(rec("a"))

	err := s.Insert(rec("a"))
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("duplicate Insert error = %v, want InvalidInput", err)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestUpdatePreservesPosition(t *testing.T) {
	s := New()
	for _, id := range []string{"a", "b", "c"} {
		_ = s.Insert(rec(id))
	}

	updated := rec("b")
	updated.Extracted.CounterpartyName = "Renamed"
	if err := s.Update("b", updated); err != nil {
		t.Fatalf("Update: %v", err)
	}

	all := s.All()
	if got := ids(all); !equalIDs(got, []string{"c", "b", "a"}) {
		t.Errorf("order after update = %v", got)
	}
	if all[1].Extracted.CounterpartyName != "Renamed" {
		t.Errorf("update not applied: %+v", all[1])
	}
}

func TestUpdateAndDeleteSignalNotFound(t *testing.T) {
	s := New()
	_ = s.Insert(rec("a"))

	if err := s.Update("zz", rec("zz")); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Update missing error = %v", err)
	}
	if err := s.Delete("zz"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Delete missing error = %v", err)
	}
	if err := s.Update("a", rec("b")); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("Update with mismatched id error = %v", err)
	}
	if s.Len() != 1 {
		t.Errorf("store changed by failed operations: len %d", s.Len())
	}
}

func TestDelete(t *testing.T) {
	s := New()
	for _, id := range []string{"a", "b", "c"} {
		_ = s.Insert(rec(id))
	}

	if err := s.Delete("b"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := s.Find("b"); ok {
		t.Error("Find after delete returned the record")
	}
	if got := ids(s.All()); !equalIDs(got, []string{"c", "a"}) {
		t.Errorf("All() after delete = %v", got)
	}
}

func TestSnapshotIsolation(t *testing.T) {
	s := New()
	_ = s.Insert(rec("a"))

	snap := s.All()
	_ = s.Insert(rec("b"))
	updated := rec("a")
	updated.Extracted.CounterpartyName = "Changed"
	_ = s.Update("a", updated)

	if len(snap) != 1 || snap[0].Extracted.CounterpartyName != "Vendor a" {
		t.Errorf("snapshot observed later mutations: %+v", snap)
	}

	snap[0].Extracted.LineItems[0].Description = "mutated"
	got, _ := s.Find("a")
	if got.Extracted.LineItems[0].Description != "item" {
		t.Error("mutating a snapshot changed the store")
	}
}

func TestFirstWhere(t *testing.T) {
	s := New()
	a := rec("a")
	a.WorkflowStatus = domain.StatusReviewNeeded
	b := rec("b")
	b.WorkflowStatus = domain.StatusReviewNeeded
	_ = s.Insert(a)
	_ = s.Insert(b)
	_ = s.Insert(rec("c"))

	got, ok := s.FirstWhere(func(r domain.FinancialRecord) bool {
		return r.WorkflowStatus == domain.StatusReviewNeeded
	})
	if !ok || got.ID != "b" {
		t.Errorf("FirstWhere = %s, %v; want b", got.ID, ok)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	backing := kv.NewMemory()

	s := New()
	_ = s.Insert(rec("a"))
	_ = s.Insert(rec("b"))
	if err := s.Save(ctx, backing); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded := New()
	if err := loaded.Load(ctx, backing); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := ids(loaded.All()); !equalIDs(got, []string{"b", "a"}) {
		t.Errorf("loaded order = %v", got)
	}
	r, _ := loaded.Find("a")
	if !r.Extracted.TotalAmount.Equal(decimal.NewFromInt(10)) {
		t.Errorf("loaded total = %s", r.Extracted.TotalAmount)
	}
}

func TestLoadMissingSnapshot(t *testing.T) {
	s := New()
	if err := s.Load(context.Background(), kv.NewMemory()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d", s.Len())
	}
}
