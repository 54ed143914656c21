package handlers

import (
	"net/http"

	"github.com/dvloznov/billflow/internal/api/middleware"
	"github.com/dvloznov/billflow/internal/domain"
	"github.com/dvloznov/billflow/internal/workflow"
	"github.com/rs/zerolog"
)

// ReviewHandler handles the review queue endpoints.
type ReviewHandler struct {
	wf  *workflow.Workflow
	log zerolog.Logger
}

// NewReviewHandler creates a new review handler.
func NewReviewHandler(wf *workflow.Workflow, log zerolog.Logger) *ReviewHandler {
	return &ReviewHandler{wf: wf, log: log}
}

// ReviewState is the review screen: the active target and what is queued.
type ReviewState struct {
	Active       *domain.FinancialRecord `json:"active"`
	Mismatches   []int                   `json:"line_item_mismatches,omitempty"`
	Pending      []string                `json:"pending"`
	CustomFields []string                `json:"custom_fields"`
}

func (h *ReviewHandler) state() ReviewState {
	st := ReviewState{Pending: []string{}, CustomFields: h.wf.CustomFields()}
	if rec, ok := h.wf.Active(); ok {
		st.Active = &rec
		st.Mismatches = domain.LineItemMismatches(rec.Extracted)
	}
	for _, rec := range h.wf.Records() {
		if rec.WorkflowStatus == domain.StatusReviewNeeded {
			st.Pending = append(st.Pending, rec.ID)
		}
	}
	return st
}

// Get handles GET /api/review
func (h *ReviewHandler) Get(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, h.state())
}

// Select handles POST /api/review/{id}: make the record the review target.
func (h *ReviewHandler) Select(w http.ResponseWriter, r *http.Request) {
	if _, err := h.wf.Select(r.PathValue("id")); err != nil {
		middleware.WriteDomainError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, h.state())
}

// Clear handles DELETE /api/review: leave review mode.
func (h *ReviewHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.wf.ClearActive()
	middleware.WriteJSON(w, http.StatusOK, h.state())
}
