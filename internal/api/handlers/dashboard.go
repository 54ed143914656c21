package handlers

import (
	"net/http"

	"github.com/dvloznov/billflow/internal/aggregation"
	"github.com/dvloznov/billflow/internal/api/middleware"
	"github.com/dvloznov/billflow/internal/domain"
	"github.com/dvloznov/billflow/internal/workflow"
	"github.com/rs/zerolog"
)

// DashboardHandler handles the overview metrics and the insights advisor.
type DashboardHandler struct {
	wf  *workflow.Workflow
	log zerolog.Logger
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(wf *workflow.Workflow, log zerolog.Logger) *DashboardHandler {
	return &DashboardHandler{wf: wf, log: log}
}

// Get handles GET /api/dashboard?window=N
func (h *DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	window, err := intParam(r, "window", aggregation.DefaultWindow)
	if err != nil {
		middleware.WriteDomainError(w, r, err)
		return
	}
	if window == 0 {
		window = aggregation.DefaultWindow
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"dashboard": h.wf.Dashboard(window),
		"insight":   h.wf.LastInsight(),
	})
}

// InsightsResponse carries the advisor text. On failure Insight holds the
// previous text and Error explains why it was not refreshed.
type InsightsResponse struct {
	Insight string           `json:"insight"`
	Error   string           `json:"error,omitempty"`
	Kind    domain.ErrorKind `json:"kind,omitempty"`
}

// Insights handles POST /api/insights
func (h *DashboardHandler) Insights(w http.ResponseWriter, r *http.Request) {
	text, err := h.wf.Insights(r.Context())
	if err != nil {
		middleware.WriteJSON(w, middleware.StatusFor(err), InsightsResponse{
			Insight: text,
			Error:   err.Error(),
			Kind:    domain.KindOf(err),
		})
		return
	}
	middleware.WriteJSON(w, http.StatusOK, InsightsResponse{Insight: text})
}
