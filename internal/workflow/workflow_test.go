package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dvloznov/billflow/internal/aggregation"
	"github.com/dvloznov/billflow/internal/domain"
	"github.com/dvloznov/billflow/internal/extraction"
	"github.com/dvloznov/billflow/internal/insights"
	"github.com/dvloznov/billflow/internal/kv"
	"github.com/dvloznov/billflow/internal/runs"
	"github.com/dvloznov/billflow/internal/workflow"
	"github.com/shopspring/decimal"
)

// MockGateway is a mock implementation of extraction.Gateway.
type MockGateway struct {
	ExtractFunc func(ctx context.Context, doc extraction.Document, kind domain.Kind, customFields []string) (domain.ExtractedData, error)
	Calls       int
}

func (m *MockGateway) Extract(ctx context.Context, doc extraction.Document, kind domain.Kind, customFields []string) (domain.ExtractedData, error) {
	m.Calls++
	return m.ExtractFunc(ctx, doc, kind, customFields)
}

// MockAdvisor is a mock implementation of insights.Advisor.
type MockAdvisor struct {
	SummarizeFunc func(ctx context.Context, s insights.Summary) (string, error)
	Calls         int
	Last          insights.Summary
}

func (m *MockAdvisor) Summarize(ctx context.Context, s insights.Summary) (string, error) {
	m.Calls++
	m.Last = s
	return m.SummarizeFunc(ctx, s)
}

// failingKV accepts reads but rejects every write.
type failingKV struct{ kv.Store }

func (failingKV) Put(ctx context.Context, key string, value []byte) error {
	return errors.New("disk full")
}

var pdf = extraction.Document{Bytes: []byte("%PDF-1.7 test"), MIMEType: "application/pdf", Filename: "bill.pdf"}

func returning(data domain.ExtractedData) *MockGateway {
	return &MockGateway{ExtractFunc: func(context.Context, extraction.Document, domain.Kind, []string) (domain.ExtractedData, error) {
		return data, nil
	}}
}

func extracted(name, amount string, confidence int) domain.ExtractedData {
	return domain.ExtractedData{
		CounterpartyName: name,
		DocumentDate:     "2024-03-15",
		TotalAmount:      decimal.RequireFromString(amount),
		Currency:         "INR",
		ConfidenceScore:  confidence,
		LineItems:        []domain.LineItem{},
	}
}

func newWorkflow(gw extraction.Gateway, opts ...func(*workflow.Deps)) *workflow.Workflow {
	n := 0
	deps := workflow.Deps{
		Gateway:      gw,
		CustomFields: []string{"Project Code"},
		Now:          func() time.Time { return time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC) },
		NewID: func() string {
			n++
			return fmt.Sprintf("id-%02d", n)
		},
	}
	for _, opt := range opts {
		opt(&deps)
	}
	return workflow.New(deps)
}

func upload(t *testing.T, w *workflow.Workflow, kind domain.Kind) domain.FinancialRecord {
	t.Helper()
	res, err := w.Upload(context.Background(), workflow.UploadRequest{Document: pdf, Kind: kind})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	return res.Record
}

func TestUploadConfidenceBoundary(t *testing.T) {
	tests := []struct {
		score int
		want  domain.WorkflowStatus
	}{
		{0, domain.StatusReviewNeeded},
		{79, domain.StatusReviewNeeded},
		{80, domain.StatusVerified},
		{100, domain.StatusVerified},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.score), func(t *testing.T) {
			w := newWorkflow(returning(extracted("Acme", "10", tt.score)))
			rec := upload(t, w, domain.KindExpense)

			if rec.WorkflowStatus != tt.want {
				t.Errorf("status = %s, want %s", rec.WorkflowStatus, tt.want)
			}
			_, active := w.Active()
			if active != (tt.want == domain.StatusReviewNeeded) {
				t.Errorf("active target set = %v for status %s", active, rec.WorkflowStatus)
			}
		})
	}
}

func TestCustomFieldsSourceIsReadPerUpload(t *testing.T) {
	fields := []string{"Project Code"}
	var requested [][]string
	gw := &MockGateway{ExtractFunc: func(ctx context.Context, doc extraction.Document, kind domain.Kind, custom []string) (domain.ExtractedData, error) {
		requested = append(requested, custom)
		return extracted("Acme", "10", 95), nil
	}}
	w := newWorkflow(gw, func(d *workflow.Deps) {
		d.CustomFieldsSource = func() []string { return fields }
	})

	upload(t, w, domain.KindExpense)
	fields = []string{"PO Number", "Cost Center"}
	upload(t, w, domain.KindExpense)

	if len(requested) != 2 || len(requested[0]) != 1 || requested[1][0] != "PO Number" {
		t.Errorf("gateway custom fields = %v", requested)
	}
	if got := w.CustomFields(); len(got) != 2 || got[1] != "Cost Center" {
		t.Errorf("CustomFields() = %v", got)
	}
}

func TestUploadBuildsRecord(t *testing.T) {
	gw := returning(extracted("Acme", "10", 90))
	w := newWorkflow(gw)

	res, err := w.Upload(context.Background(), workflow.UploadRequest{Document: pdf, Kind: domain.KindIncome})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	rec := res.Record
	if rec.ID == "" || rec.Kind != domain.KindIncome || rec.PaymentStatus != domain.PaymentUnpaid {
		t.Errorf("record = %+v", rec)
	}
	if rec.DocumentRef == "" || rec.Filename != "bill.pdf" || rec.MIMEType != "application/pdf" {
		t.Errorf("document fields = %q %q %q", rec.DocumentRef, rec.Filename, rec.MIMEType)
	}
	if !rec.UploadedAt.Equal(time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("UploadedAt = %v", rec.UploadedAt)
	}
	if res.Run.Status != runs.StatusSucceeded || res.Run.RecordID != rec.ID || res.Run.Confidence != 90 {
		t.Errorf("run = %+v", res.Run)
	}

	data, stored, err := w.Document(context.Background(), rec.ID)
	if err != nil || string(data) != string(pdf.Bytes) || stored.ID != rec.ID {
		t.Errorf("Document() = %q, %v", data, err)
	}
}

// Scenario A: a low-confidence expense is reviewed, corrected and verified.
func TestScenarioReviewAndCorrect(t *testing.T) {
	w := newWorkflow(returning(extracted("Ramesh Electronics", "12500.50", 75)))
	ctx := context.Background()

	rec := upload(t, w, domain.KindExpense)
	if rec.WorkflowStatus != domain.StatusReviewNeeded {
		t.Fatalf("status = %s, want REVIEW_NEEDED", rec.WorkflowStatus)
	}
	active, ok := w.Active()
	if !ok || active.ID != rec.ID {
		t.Fatalf("active target = %v, %v", active.ID, ok)
	}

	edited := rec.Extracted
	edited.TotalAmount = decimal.NewFromInt(12000)
	res, err := w.Save(ctx, rec.ID, domain.KindExpense, edited)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if res.Record.WorkflowStatus != domain.StatusVerified || !res.Record.Extracted.TotalAmount.Equal(decimal.NewFromInt(12000)) {
		t.Errorf("saved record = %+v", res.Record)
	}
	if !res.QueueEmpty || res.Next != nil {
		t.Errorf("queue should be empty: %+v", res)
	}
	if _, ok := w.Active(); ok {
		t.Error("active target still set after queue emptied")
	}
	if got := aggregation.TotalByKind(w.Records(), domain.KindExpense); !got.Equal(decimal.NewFromInt(12000)) {
		t.Errorf("TotalByKind(EXPENSE) = %s, want 12000", got)
	}
}

// Scenario B: net flow follows inserts and deletes.
func TestScenarioNetFlowAfterDelete(t *testing.T) {
	gw := &MockGateway{}
	w := newWorkflow(gw)
	ctx := context.Background()

	gw.ExtractFunc = func(_ context.Context, _ extraction.Document, kind domain.Kind, _ []string) (domain.ExtractedData, error) {
		if kind == domain.KindIncome {
			return extracted("Client", "45000", 95), nil
		}
		return extracted("Vendor", "1499", 95), nil
	}

	upload(t, w, domain.KindIncome)
	expense := upload(t, w, domain.KindExpense)

	if got := w.Dashboard(7).NetFlow; !got.Equal(decimal.NewFromInt(43501)) {
		t.Fatalf("NetFlow = %s, want 43501", got)
	}
	if err := w.Delete(ctx, expense.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got := w.Dashboard(7).NetFlow; !got.Equal(decimal.NewFromInt(45000)) {
		t.Errorf("NetFlow after delete = %s, want 45000", got)
	}
	if _, err := w.Record(expense.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Record after delete err = %v", err)
	}
	if v := w.Transactions(aggregation.Filter{}); v.Count != 1 {
		t.Errorf("Transactions count = %d, want 1", v.Count)
	}
}

// Scenario C: a network failure creates nothing and the next upload works.
func TestScenarioExtractionFailure(t *testing.T) {
	fail := true
	gw := &MockGateway{ExtractFunc: func(context.Context, extraction.Document, domain.Kind, []string) (domain.ExtractedData, error) {
		if fail {
			return domain.ExtractedData{}, fmt.Errorf("generate content: %w: connection reset", domain.ErrExtractionFailed)
		}
		return extracted("Acme", "10", 90), nil
	}}
	w := newWorkflow(gw)
	ctx := context.Background()

	res, err := w.Upload(ctx, workflow.UploadRequest{Document: pdf, Kind: domain.KindExpense})
	if !errors.Is(err, domain.ErrExtractionFailed) {
		t.Fatalf("Upload err = %v, want ErrExtractionFailed", err)
	}
	if len(w.Records()) != 0 {
		t.Fatalf("failed upload created a record")
	}
	if res.Run.Status != runs.StatusFailed || res.Run.ErrorKind != domain.KindExtractionFailed {
		t.Errorf("run = %+v", res.Run)
	}
	failed, _ := w.Runs().List(ctx, runs.Filter{Status: runs.StatusFailed})
	if len(failed) != 1 {
		t.Errorf("failed runs = %d, want 1", len(failed))
	}

	fail = false
	if _, err := w.Upload(ctx, workflow.UploadRequest{Document: pdf, Kind: domain.KindExpense}); err != nil {
		t.Fatalf("retry Upload: %v", err)
	}
	if len(w.Records()) != 1 {
		t.Errorf("records = %d, want 1", len(w.Records()))
	}
}

func TestUploadRejectsBeforeGateway(t *testing.T) {
	tests := []struct {
		name string
		req  workflow.UploadRequest
	}{
		{"unsupported type", workflow.UploadRequest{Document: extraction.Document{Bytes: []byte("hi"), MIMEType: "text/plain"}, Kind: domain.KindExpense}},
		{"empty document", workflow.UploadRequest{Document: extraction.Document{MIMEType: "application/pdf"}, Kind: domain.KindExpense}},
		{"unknown kind", workflow.UploadRequest{Document: pdf, Kind: "REFUND"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := returning(extracted("Acme", "1", 90))
			w := newWorkflow(gw)
			_, err := w.Upload(context.Background(), tt.req)
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Errorf("err = %v, want ErrInvalidInput", err)
			}
			if gw.Calls != 0 {
				t.Errorf("gateway called %d times", gw.Calls)
			}
			if len(w.Records()) != 0 {
				t.Error("record created")
			}
		})
	}
}

func TestUploadWithoutGatewayIsConfigurationError(t *testing.T) {
	w := newWorkflow(nil)
	_, err := w.Upload(context.Background(), workflow.UploadRequest{Document: pdf, Kind: domain.KindExpense})
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("err = %v, want ErrConfiguration", err)
	}
}

func TestUploadAbandonedResultIsDiscarded(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gw := &MockGateway{ExtractFunc: func(context.Context, extraction.Document, domain.Kind, []string) (domain.ExtractedData, error) {
		cancel() // the caller goes away while the call is outstanding
		return extracted("Late", "10", 90), nil
	}}
	w := newWorkflow(gw)

	res, err := w.Upload(ctx, workflow.UploadRequest{Document: pdf, Kind: domain.KindExpense})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(w.Records()) != 0 {
		t.Error("abandoned result was stored")
	}
	if res.Run.ErrorKind != domain.KindCanceled {
		t.Errorf("run error kind = %s", res.Run.ErrorKind)
	}
}

func TestSaveAlwaysVerifies(t *testing.T) {
	w := newWorkflow(returning(extracted("Acme", "10", 95)))
	rec := upload(t, w, domain.KindExpense)

	// Unchanged fields on an already-verified record.
	res, err := w.Save(context.Background(), rec.ID, rec.Kind, rec.Extracted)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if res.Record.WorkflowStatus != domain.StatusVerified {
		t.Errorf("status = %s", res.Record.WorkflowStatus)
	}
}

func TestSaveKeepsConfidenceAndReclassifies(t *testing.T) {
	data := extracted("Acme", "10", 40)
	data.CustomFields = domain.CustomFields{"Project Code": "PX-1"}
	w := newWorkflow(returning(data))
	rec := upload(t, w, domain.KindExpense)

	edited := rec.Extracted
	edited.ConfidenceScore = 100
	edited.CustomFields = nil
	res, err := w.Save(context.Background(), rec.ID, domain.KindIncome, edited)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if res.Record.Extracted.ConfidenceScore != 40 {
		t.Errorf("confidence = %d, want 40", res.Record.Extracted.ConfidenceScore)
	}
	if res.Record.Kind != domain.KindIncome {
		t.Errorf("kind = %s", res.Record.Kind)
	}
	if res.Record.Extracted.CustomFields["Project Code"] != "PX-1" {
		t.Errorf("custom fields = %v", res.Record.Extracted.CustomFields)
	}
}

func TestSaveReducesEditedCustomFieldsToScalars(t *testing.T) {
	w := newWorkflow(returning(extracted("Acme", "10", 40)))
	rec := upload(t, w, domain.KindExpense)

	edited := rec.Extracted
	edited.CustomFields = domain.CustomFields{
		"Project Code": map[string]any{"code": "PX-1", "phase": 2},
		"Tags":         []any{"a", "b"},
		"Hours":        3,
		"Billable":     true,
		"Note":         "ok",
	}
	res, err := w.Save(context.Background(), rec.ID, domain.KindExpense, edited)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	want := domain.CustomFields{
		"Project Code": `{"code":"PX-1","phase":2}`,
		"Tags":         `["a","b"]`,
		"Hours":        float64(3),
		"Billable":     true,
		"Note":         "ok",
	}
	got := res.Record.Extracted.CustomFields
	for k, v := range want {
		if got[k] != v {
			t.Errorf("custom field %q = %#v, want %#v", k, got[k], v)
		}
	}

	stored, err := w.Record(rec.ID)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if _, nested := stored.Extracted.CustomFields["Project Code"].(map[string]any); nested {
		t.Error("stored record kept a nested custom field value")
	}
}

func TestSaveRoutesToFirstPendingInStoreOrder(t *testing.T) {
	w := newWorkflow(returning(extracted("Acme", "10", 50)))
	first := upload(t, w, domain.KindExpense)
	second := upload(t, w, domain.KindExpense)
	third := upload(t, w, domain.KindExpense)

	// Store order is newest first: third, second, first.
	res, err := w.Save(context.Background(), second.ID, domain.KindExpense, second.Extracted)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if res.Next == nil || res.Next.ID != third.ID {
		t.Fatalf("next = %+v, want %s", res.Next, third.ID)
	}
	if active, _ := w.Active(); active.ID != third.ID {
		t.Errorf("active = %s, want %s", active.ID, third.ID)
	}

	_, _ = w.Save(context.Background(), third.ID, domain.KindExpense, third.Extracted)
	res, _ = w.Save(context.Background(), first.ID, domain.KindExpense, first.Extracted)
	if !res.QueueEmpty {
		t.Error("queue not reported empty")
	}
	if n := w.Dashboard(7).PendingReview; n != 0 {
		t.Errorf("pending = %d", n)
	}
}

func TestSaveRejectsInvalidEditsAtomically(t *testing.T) {
	w := newWorkflow(returning(extracted("Acme", "10", 50)))
	rec := upload(t, w, domain.KindExpense)

	edited := rec.Extracted
	edited.CounterpartyName = "Changed"
	edited.TotalAmount = decimal.NewFromInt(-1)

	if _, err := w.Save(context.Background(), rec.ID, domain.KindExpense, edited); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("Save err = %v, want ErrInvalidInput", err)
	}
	got, _ := w.Record(rec.ID)
	if got.Extracted.CounterpartyName != "Acme" || got.WorkflowStatus != domain.StatusReviewNeeded {
		t.Errorf("failed save partially applied: %+v", got)
	}

	if _, err := w.Save(context.Background(), "missing", domain.KindExpense, rec.Extracted); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Save missing err = %v", err)
	}
}

func TestDeleteClearsActiveTarget(t *testing.T) {
	w := newWorkflow(returning(extracted("Acme", "10", 50)))
	ctx := context.Background()
	older := upload(t, w, domain.KindExpense)
	newer := upload(t, w, domain.KindExpense)

	if active, _ := w.Active(); active.ID != newer.ID {
		t.Fatalf("active = %s, want %s", active.ID, newer.ID)
	}
	if err := w.Delete(ctx, newer.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := w.Active(); ok {
		t.Error("active target survived delete")
	}
	if next, ok := w.NextPending(); !ok || next.ID != older.ID {
		t.Errorf("NextPending = %s, %v", next.ID, ok)
	}

	if _, err := w.Select(older.ID); err != nil {
		t.Fatalf("Select: %v", err)
	}
	w.ClearActive()
	if _, ok := w.Active(); ok {
		t.Error("ClearActive left a target")
	}

	if err := w.Delete(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Delete missing err = %v", err)
	}
	if _, err := w.Select("missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Select missing err = %v", err)
	}
}

func TestSetPayment(t *testing.T) {
	w := newWorkflow(returning(extracted("Acme", "10", 90)))
	ctx := context.Background()
	rec := upload(t, w, domain.KindExpense)

	if _, err := w.SetPayment(ctx, rec.ID, domain.PaymentOverdue, ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("storing OVERDUE err = %v", err)
	}
	if _, err := w.SetPayment(ctx, rec.ID, domain.PaymentPartial, "15/06/2024"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("bad due date err = %v", err)
	}
	if _, err := w.SetPayment(ctx, "missing", domain.PaymentPaid, ""); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing record err = %v", err)
	}

	updated, err := w.SetPayment(ctx, rec.ID, domain.PaymentPartial, "2024-06-01")
	if err != nil {
		t.Fatalf("SetPayment: %v", err)
	}
	if updated.PaymentStatus != domain.PaymentPartial {
		t.Errorf("stored status = %s", updated.PaymentStatus)
	}

	view := w.Transactions(aggregation.Filter{Payment: domain.PaymentOverdue})
	if view.Count != 1 || view.Rows[0].Record.PaymentStatus != domain.PaymentPartial {
		t.Errorf("overdue view = %+v", view)
	}

	_, _ = w.SetPayment(ctx, rec.ID, domain.PaymentPaid, "2024-06-01")
	if view := w.Transactions(aggregation.Filter{Payment: domain.PaymentOverdue}); view.Count != 0 {
		t.Errorf("paid record shown overdue")
	}
}

func TestInsights(t *testing.T) {
	ctx := context.Background()
	advisor := &MockAdvisor{}
	w := newWorkflow(returning(extracted("Acme", "10", 90)), func(d *workflow.Deps) { d.Advisor = advisor })

	if _, err := w.Insights(ctx); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("empty store err = %v, want ErrInvalidInput", err)
	}
	if advisor.Calls != 0 {
		t.Error("advisor called on empty store")
	}

	upload(t, w, domain.KindExpense)

	advisor.SummarizeFunc = func(context.Context, insights.Summary) (string, error) { return "- Spend less.", nil }
	text, err := w.Insights(ctx)
	if err != nil || text != "- Spend less." {
		t.Fatalf("Insights = %q, %v", text, err)
	}
	if len(advisor.Last.TopVendors) != 1 || !advisor.Last.TotalExpense.Equal(decimal.NewFromInt(10)) {
		t.Errorf("summary sent = %+v", advisor.Last)
	}

	advisor.SummarizeFunc = func(context.Context, insights.Summary) (string, error) { return "", errors.New("quota") }
	text, err = w.Insights(ctx)
	if !errors.Is(err, domain.ErrAdvisoryUnavailable) {
		t.Errorf("failure err = %v, want ErrAdvisoryUnavailable", err)
	}
	if text != "- Spend less." || w.LastInsight() != "- Spend less." {
		t.Errorf("prior insight not retained: %q", text)
	}
}

func TestRestoreFromKV(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	withKV := func(d *workflow.Deps) { d.KV = store }

	w := newWorkflow(returning(extracted("Acme", "10", 50)), withKV)
	pending := upload(t, w, domain.KindExpense)

	restored := newWorkflow(nil, withKV)
	if err := restored.Restore(ctx); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if len(restored.Records()) != 1 {
		t.Fatalf("restored %d records", len(restored.Records()))
	}
	if active, ok := restored.Active(); !ok || active.ID != pending.ID {
		t.Errorf("restored active = %s, %v", active.ID, ok)
	}
}

func TestPersistFailureIsNotFatal(t *testing.T) {
	w := newWorkflow(returning(extracted("Acme", "10", 90)), func(d *workflow.Deps) {
		d.KV = failingKV{kv.NewMemory()}
	})
	rec := upload(t, w, domain.KindExpense)
	if _, err := w.Record(rec.ID); err != nil {
		t.Errorf("record missing after persist failure: %v", err)
	}
}
