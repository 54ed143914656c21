package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/billflow/internal/aggregation"
	"github.com/dvloznov/billflow/internal/domain"
	"github.com/dvloznov/billflow/internal/insights"
)

// Records returns a snapshot of the ledger, newest first.
func (w *Workflow) Records() []domain.FinancialRecord {
	return w.records.All()
}

// Record returns one record.
func (w *Workflow) Record(id string) (domain.FinancialRecord, error) {
	rec, ok := w.records.Find(id)
	if !ok {
		return domain.FinancialRecord{}, fmt.Errorf("workflow: record %s: %w", id, domain.ErrNotFound)
	}
	return rec, nil
}

// Dashboard computes the overview metrics from the current ledger.
func (w *Workflow) Dashboard(window int) aggregation.Dashboard {
	return aggregation.BuildDashboard(w.records.All(), window)
}

// Transactions computes the filtered transactions view as of today.
func (w *Workflow) Transactions(f aggregation.Filter) aggregation.View {
	return aggregation.FilteredView(w.records.All(), f, w.now())
}

// Now reads the workflow clock.
func (w *Workflow) Now() time.Time {
	return w.now()
}

// Today is the workflow clock's current date, used for payment status display.
func (w *Workflow) Today() string {
	return w.now().Format(domain.DateLayout)
}

// LastInsight returns the most recent successful insight text.
func (w *Workflow) LastInsight() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.insight
}

// Insights asks the advisor about the current aggregates. Only totals and
// top-counterparty lists are sent. On failure the previous text is returned
// alongside the error and kept.
func (w *Workflow) Insights(ctx context.Context) (string, error) {
	snapshot := w.records.All()
	if len(snapshot) == 0 {
		return w.LastInsight(), fmt.Errorf("workflow: insights: %w: add some invoices first", domain.ErrInvalidInput)
	}
	if w.advisor == nil {
		return w.LastInsight(), fmt.Errorf("workflow: insights: %w: no advisor configured", domain.ErrAdvisoryUnavailable)
	}

	summary := insights.SummaryFromDashboard(aggregation.BuildDashboard(snapshot, aggregation.DefaultWindow))
	text, err := w.advisor.Summarize(ctx, summary)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		if !errors.Is(err, domain.ErrAdvisoryUnavailable) && domain.KindOf(err) != domain.KindCanceled {
			err = fmt.Errorf("%w: %v", domain.ErrAdvisoryUnavailable, err)
		}
		w.log.Warn().Err(err).Msg("insights unavailable")
		return w.LastInsight(), fmt.Errorf("workflow: insights: %w", err)
	}

	w.mu.Lock()
	w.insight = text
	w.mu.Unlock()
	return text, nil
}
