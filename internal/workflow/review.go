package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/billflow/internal/domain"
	"github.com/dvloznov/billflow/internal/logger"
	"github.com/dvloznov/billflow/internal/policy"
)

// SaveResult reports the saved record and where review goes next.
type SaveResult struct {
	Record     domain.FinancialRecord  `json:"record"`
	Next       *domain.FinancialRecord `json:"next,omitempty"`
	QueueEmpty bool                    `json:"queue_empty"`
}

// Save applies a human review: kind and extracted data are replaced and the
// record becomes VERIFIED, whether or not anything changed. The confidence
// score is kept from extraction. Nothing is applied if validation fails.
// Omitted custom fields keep their extracted values.
func (w *Workflow) Save(ctx context.Context, id string, kind domain.Kind, edited domain.ExtractedData) (SaveResult, error) {
	if err := domain.ValidateEdit(kind, edited); err != nil {
		return SaveResult{}, fmt.Errorf("workflow: save %s: %w", id, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	rec, ok := w.records.Find(id)
	if !ok {
		return SaveResult{}, fmt.Errorf("workflow: save %s: %w", id, domain.ErrNotFound)
	}
	if !policy.CanTransition(rec.WorkflowStatus, domain.StatusVerified) {
		return SaveResult{}, fmt.Errorf("workflow: save %s: %w: record is %s", id, domain.ErrInvalidInput, rec.WorkflowStatus)
	}

	edited = edited.Clone()
	edited.ConfidenceScore = rec.Extracted.ConfidenceScore
	if edited.CustomFields == nil {
		edited.CustomFields = rec.Extracted.CustomFields.Clone()
	} else {
		edited.CustomFields = edited.CustomFields.Scalars()
	}
	if edited.LineItems == nil {
		edited.LineItems = []domain.LineItem{}
	}

	rec.Kind = kind
	rec.Extracted = edited
	rec.WorkflowStatus = domain.StatusVerified
	if err := w.records.Update(id, rec); err != nil {
		return SaveResult{}, fmt.Errorf("workflow: save: %w", err)
	}

	result := SaveResult{Record: rec.Clone()}
	if next, ok := w.records.FirstWhere(needsReview); ok {
		w.active = next.ID
		result.Next = &next
	} else {
		w.active = ""
		result.QueueEmpty = true
	}
	w.persist(ctx)

	recLog := logger.ForRecord(w.log, id)
	recLog.Info().
		Str("kind", string(kind)).
		Str("next", w.active).
		Bool("queue_empty", result.QueueEmpty).
		Msg("record verified")
	return result, nil
}

// Delete removes a record and clears the active review target if it pointed
// at it.
func (w *Workflow) Delete(ctx context.Context, id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.records.Delete(id); err != nil {
		return fmt.Errorf("workflow: %w", err)
	}
	if w.active == id {
		w.active = ""
	}
	w.persist(ctx)

	recLog := logger.ForRecord(w.log, id)
	recLog.Info().Msg("record deleted")
	return nil
}

// Select makes id the active review target. Verified records may be
// selected for re-editing; they stay VERIFIED.
func (w *Workflow) Select(id string) (domain.FinancialRecord, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	rec, ok := w.records.Find(id)
	if !ok {
		return domain.FinancialRecord{}, fmt.Errorf("workflow: select %s: %w", id, domain.ErrNotFound)
	}
	w.active = id
	return rec, nil
}

// Active returns the active review target, if any.
func (w *Workflow) Active() (domain.FinancialRecord, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.active == "" {
		return domain.FinancialRecord{}, false
	}
	return w.records.Find(w.active)
}

// ClearActive leaves review mode.
func (w *Workflow) ClearActive() {
	w.mu.Lock()
	w.active = ""
	w.mu.Unlock()
}

// NextPending returns the first record awaiting review in store order.
func (w *Workflow) NextPending() (domain.FinancialRecord, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.records.FirstWhere(needsReview)
}

// SetPayment stores a payment status and optional YYYY-MM-DD due date.
// OVERDUE is derived, so it cannot be stored.
func (w *Workflow) SetPayment(ctx context.Context, id string, status domain.PaymentStatus, dueDate string) (domain.FinancialRecord, error) {
	if !status.Storable() {
		return domain.FinancialRecord{}, fmt.Errorf("workflow: payment %s: %w: status %q cannot be stored", id, domain.ErrInvalidInput, status)
	}
	if dueDate != "" {
		if _, err := time.Parse(domain.DateLayout, dueDate); err != nil {
			return domain.FinancialRecord{}, fmt.Errorf("workflow: payment %s: %w: due date %q is not YYYY-MM-DD", id, domain.ErrInvalidInput, dueDate)
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	rec, ok := w.records.Find(id)
	if !ok {
		return domain.FinancialRecord{}, fmt.Errorf("workflow: payment %s: %w", id, domain.ErrNotFound)
	}
	rec.PaymentStatus = status
	rec.DueDate = dueDate
	if err := w.records.Update(id, rec); err != nil {
		return domain.FinancialRecord{}, fmt.Errorf("workflow: payment: %w", err)
	}
	w.persist(ctx)

	recLog := logger.ForRecord(w.log, id)
	recLog.Info().Str("payment_status", string(status)).Str("due_date", dueDate).Msg("payment updated")
	return rec, nil
}
