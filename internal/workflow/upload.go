package workflow

import (
	"context"
	"fmt"

	"github.com/dvloznov/billflow/internal/documents"
	"github.com/dvloznov/billflow/internal/domain"
	"github.com/dvloznov/billflow/internal/extraction"
	"github.com/dvloznov/billflow/internal/logger"
	"github.com/dvloznov/billflow/internal/runs"
)

// UploadRequest is one user upload: the document and the kind chosen before
// uploading ("Add Sale" or "Add Expense").
type UploadRequest struct {
	Document extraction.Document
	Kind     domain.Kind
}

// UploadResult reports what an upload produced.
type UploadResult struct {
	Record      domain.FinancialRecord `json:"record"`
	Run         runs.Run               `json:"run"`
	NeedsReview bool                   `json:"needs_review"`
}

// UploadStep is a single step of the upload pipeline.
type UploadStep interface {
	Execute(ctx context.Context, w *Workflow, state *UploadState) error
}

// UploadState holds the shared state across upload steps.
type UploadState struct {
	Request   UploadRequest
	Run       *runs.Run
	Extracted domain.ExtractedData
	DocRef    string
	Record    domain.FinancialRecord
}

// validateStep rejects unusable input before any remote call.
type validateStep struct{}

func (validateStep) Execute(ctx context.Context, w *Workflow, s *UploadState) error {
	if !s.Request.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", domain.ErrInvalidInput, s.Request.Kind)
	}
	return extraction.Validate(&s.Request.Document)
}

// extractStep calls the gateway. The lock is not held.
type extractStep struct{}

func (extractStep) Execute(ctx context.Context, w *Workflow, s *UploadState) error {
	if w.gateway == nil {
		return fmt.Errorf("%w: no extraction gateway configured", domain.ErrConfiguration)
	}
	data, err := w.gateway.Extract(ctx, s.Request.Document, s.Request.Kind, w.CustomFields())
	if err != nil {
		return err
	}
	s.Extracted = data
	return nil
}

// relevanceStep discards a result whose originating request was abandoned
// while the extraction call was outstanding.
type relevanceStep struct{}

func (relevanceStep) Execute(ctx context.Context, w *Workflow, s *UploadState) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("upload abandoned: %w", err)
	}
	return nil
}

// storeDocumentStep hands the bytes to the document store.
type storeDocumentStep struct{}

func (storeDocumentStep) Execute(ctx context.Context, w *Workflow, s *UploadState) error {
	ref, err := w.docs.Put(ctx, documents.Object{
		Filename: s.Request.Document.Filename,
		MIMEType: s.Request.Document.MIMEType,
		Data:     s.Request.Document.Bytes,
	})
	if err != nil {
		return fmt.Errorf("store document: %w", err)
	}
	s.DocRef = ref
	return nil
}

// buildRecordStep assigns the id and the initial status from the policy.
type buildRecordStep struct{}

func (buildRecordStep) Execute(ctx context.Context, w *Workflow, s *UploadState) error {
	s.Record = domain.FinancialRecord{
		ID:             w.newID(),
		Kind:           s.Request.Kind,
		DocumentRef:    s.DocRef,
		MIMEType:       s.Request.Document.MIMEType,
		Filename:       s.Request.Document.Filename,
		WorkflowStatus: w.policy.InitialStatus(s.Extracted.ConfidenceScore),
		PaymentStatus:  domain.PaymentUnpaid,
		UploadedAt:     w.now().UTC(),
		Extracted:      s.Extracted,
	}
	return nil
}

// insertStep adds the record and routes review in one critical section.
type insertStep struct{}

func (insertStep) Execute(ctx context.Context, w *Workflow, s *UploadState) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.records.Insert(s.Record); err != nil {
		return err
	}
	if s.Record.WorkflowStatus == domain.StatusReviewNeeded {
		w.active = s.Record.ID
	}
	w.persist(ctx)
	return nil
}

// defaultUploadSteps is the upload pipeline in order.
var defaultUploadSteps = []UploadStep{
	validateStep{},
	extractStep{},
	relevanceStep{},
	storeDocumentStep{},
	buildRecordStep{},
	insertStep{},
}

// Upload runs one document through extraction into the ledger. A failure at
// any step leaves the ledger untouched and the attempt's run marked FAILED.
func (w *Workflow) Upload(ctx context.Context, req UploadRequest) (UploadResult, error) {
	run := &runs.Run{
		ID:        w.newID(),
		Filename:  req.Document.Filename,
		Kind:      req.Kind,
		Status:    runs.StatusRunning,
		StartedAt: w.now().UTC(),
	}
	log := logger.WithFields(w.log, map[string]interface{}{
		"run_id":   run.ID,
		"filename": run.Filename,
		"kind":     string(req.Kind),
	})
	w.saveRun(ctx, run)
	log.Info().Msg("upload started")

	state := &UploadState{Request: req, Run: run}
	for i, step := range defaultUploadSteps {
		if err := step.Execute(ctx, w, state); err != nil {
			run.Fail(err, w.now().UTC())
			w.saveRun(ctx, run)
			log.Error().Err(err).Str("error_kind", string(run.ErrorKind)).Int("step", i+1).Msg("upload failed")
			return UploadResult{Run: *run}, fmt.Errorf("workflow: upload step %d failed: %w", i+1, err)
		}
	}

	run.Succeed(state.Record.ID, state.Record.Extracted.ConfidenceScore, w.now().UTC())
	w.saveRun(ctx, run)

	needsReview := state.Record.WorkflowStatus == domain.StatusReviewNeeded
	recLog := logger.ForRecord(log, state.Record.ID)
	recLog.Info().
		Int("confidence", state.Record.Extracted.ConfidenceScore).
		Str("status", string(state.Record.WorkflowStatus)).
		Ints("line_item_mismatches", domain.LineItemMismatches(state.Record.Extracted)).
		Msg("upload finished")

	return UploadResult{Record: state.Record.Clone(), Run: *run, NeedsReview: needsReview}, nil
}

func (w *Workflow) saveRun(ctx context.Context, run *runs.Run) {
	if err := w.runs.Save(context.WithoutCancel(ctx), run); err != nil {
		w.log.Warn().Err(err).Str("run_id", run.ID).Msg("save run failed")
	}
}
