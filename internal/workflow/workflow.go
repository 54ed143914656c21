// Package workflow is the reconciliation controller. A Workflow is the one
// explicit application state: the record store, the active review target and
// the last insight text, plus the collaborators that feed them.
package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/billflow/internal/documents"
	"github.com/dvloznov/billflow/internal/domain"
	"github.com/dvloznov/billflow/internal/extraction"
	"github.com/dvloznov/billflow/internal/insights"
	"github.com/dvloznov/billflow/internal/kv"
	"github.com/dvloznov/billflow/internal/policy"
	"github.com/dvloznov/billflow/internal/runs"
	"github.com/dvloznov/billflow/internal/runs/inmemory"
	"github.com/dvloznov/billflow/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Deps are the collaborators a Workflow is built from. Gateway is required;
// everything else has an in-process default.
type Deps struct {
	Gateway      extraction.Gateway
	Advisor      insights.Advisor
	Policy       policy.ConfidencePolicy
	Documents    documents.Store
	Runs         runs.Store
	KV           kv.Store
	CustomFields []string
	Logger       *zerolog.Logger
	Now          func() time.Time
	NewID        func() string

	// CustomFieldsSource, when set, is read on every upload and review and
	// takes precedence over CustomFields.
	CustomFieldsSource func() []string
}

// Workflow owns the ledger and serialises every mutation of it. The two
// remote calls (extraction and insights) run outside the lock.
type Workflow struct {
	mu      sync.Mutex
	records *store.RecordStore
	active  string
	insight string

	gateway      extraction.Gateway
	advisor      insights.Advisor
	policy       policy.ConfidencePolicy
	docs         documents.Store
	runs         runs.Store
	kv           kv.Store
	customFields func() []string
	log          zerolog.Logger
	now          func() time.Time
	newID        func() string
}

// New creates a Workflow with an empty store.
func New(deps Deps) *Workflow {
	w := &Workflow{
		records:      store.New(),
		gateway:      deps.Gateway,
		advisor:      deps.Advisor,
		policy:       deps.Policy,
		docs:         deps.Documents,
		runs:         deps.Runs,
		kv:           deps.KV,
		customFields: deps.CustomFieldsSource,
		log:          zerolog.Nop(),
		now:          deps.Now,
		newID:        deps.NewID,
	}
	if w.customFields == nil {
		static := append([]string(nil), deps.CustomFields...)
		w.customFields = func() []string { return static }
	}
	if w.policy.Threshold == 0 {
		w.policy = policy.Default()
	}
	if w.docs == nil {
		w.docs = documents.NewMemory()
	}
	if w.runs == nil {
		w.runs = inmemory.NewStore()
	}
	if deps.Logger != nil {
		w.log = *deps.Logger
	}
	if w.now == nil {
		w.now = time.Now
	}
	if w.newID == nil {
		w.newID = uuid.NewString
	}
	return w
}

// Restore loads the persisted ledger from kv, if one is configured.
// Records awaiting review are queued again with the first one active.
func (w *Workflow) Restore(ctx context.Context) error {
	if w.kv == nil {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.records.Load(ctx, w.kv); err != nil {
		return fmt.Errorf("workflow: restore: %w", err)
	}
	w.active = ""
	if next, ok := w.records.FirstWhere(needsReview); ok {
		w.active = next.ID
	}
	w.log.Info().Int("records", w.records.Len()).Str("active", w.active).Msg("ledger restored")
	return nil
}

// CustomFields returns the organization-defined extraction field names.
func (w *Workflow) CustomFields() []string {
	return append([]string(nil), w.customFields()...)
}

// Policy returns the confidence policy in force.
func (w *Workflow) Policy() policy.ConfidencePolicy {
	return w.policy
}

// Runs exposes the extraction-attempt log.
func (w *Workflow) Runs() runs.Store {
	return w.runs
}

// Document returns the stored bytes of a record's source document.
func (w *Workflow) Document(ctx context.Context, id string) ([]byte, domain.FinancialRecord, error) {
	rec, err := w.Record(id)
	if err != nil {
		return nil, domain.FinancialRecord{}, err
	}
	data, err := w.docs.Get(ctx, rec.DocumentRef)
	if err != nil {
		return nil, domain.FinancialRecord{}, fmt.Errorf("workflow: document for %s: %w", id, err)
	}
	return data, rec, nil
}

// persist writes the ledger snapshot. Failures are logged, never returned:
// the in-memory ledger stays authoritative. Callers hold w.mu.
func (w *Workflow) persist(ctx context.Context) {
	if w.kv == nil {
		return
	}
	if err := w.records.Save(context.WithoutCancel(ctx), w.kv); err != nil {
		w.log.Warn().Err(err).Msg("persist ledger failed")
	}
}

func needsReview(r domain.FinancialRecord) bool {
	return r.WorkflowStatus == domain.StatusReviewNeeded
}
