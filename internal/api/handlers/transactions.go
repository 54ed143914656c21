package handlers

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/dvloznov/billflow/internal/aggregation"
	"github.com/dvloznov/billflow/internal/api/middleware"
	"github.com/dvloznov/billflow/internal/domain"
	"github.com/dvloznov/billflow/internal/reports"
	"github.com/dvloznov/billflow/internal/workflow"
	"github.com/rs/zerolog"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// TransactionsHandler handles the filtered transactions view and its exports.
type TransactionsHandler struct {
	wf  *workflow.Workflow
	org OrgSource
	log zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(wf *workflow.Workflow, org OrgSource, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{wf: wf, org: org, log: log}
}

// ParseFilter reads ?q=&from=&to=&kind=&payment= into a view filter.
func ParseFilter(r *http.Request) (aggregation.Filter, error) {
	query := r.URL.Query()
	f := aggregation.Filter{Search: query.Get("q")}

	var err error
	if f.From, err = dateParam(r, "from"); err != nil {
		return f, err
	}
	if f.To, err = dateParam(r, "to"); err != nil {
		return f, err
	}
	if raw := query.Get("kind"); raw != "" {
		if f.Kind, err = domain.ParseKind(raw); err != nil {
			return f, err
		}
	}
	if raw := query.Get("payment"); raw != "" {
		if f.Payment, err = domain.ParsePaymentStatus(raw); err != nil {
			return f, err
		}
	}
	return f, nil
}

// List handles GET /api/transactions
func (h *TransactionsHandler) List(w http.ResponseWriter, r *http.Request) {
	f, err := ParseFilter(r)
	if err != nil {
		middleware.WriteDomainError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, h.wf.Transactions(f))
}

// ExportXLSX handles GET /api/transactions/export.xlsx
func (h *TransactionsHandler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	f, err := ParseFilter(r)
	if err != nil {
		middleware.WriteDomainError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := reports.TransactionsXLSX(&buf, h.wf.Transactions(f)); err != nil {
		middleware.WriteDomainError(w, r, err)
		return
	}

	attachment(w, xlsxContentType, fmt.Sprintf("transactions-%s.xlsx", h.wf.Today()))
	w.Write(buf.Bytes())
}

// ExportPDF handles GET /api/transactions/export.pdf
func (h *TransactionsHandler) ExportPDF(w http.ResponseWriter, r *http.Request) {
	f, err := ParseFilter(r)
	if err != nil {
		middleware.WriteDomainError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := reports.StatementPDF(&buf, h.wf.Transactions(f), h.org.Get(), f.From, f.To, h.wf.Now()); err != nil {
		middleware.WriteDomainError(w, r, err)
		return
	}

	attachment(w, "application/pdf", fmt.Sprintf("statement-%s.pdf", h.wf.Today()))
	w.Write(buf.Bytes())
}
