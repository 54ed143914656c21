// Package api exposes the reconciliation workflow over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/dvloznov/billflow/internal/api/handlers"
	"github.com/dvloznov/billflow/internal/api/middleware"
	"github.com/dvloznov/billflow/internal/workflow"
	"github.com/rs/zerolog"
)

// Services are what the HTTP layer is built from.
type Services struct {
	Workflow *workflow.Workflow
	Profile  handlers.ProfileStore
	Logger   zerolog.Logger
}

// NewRouter registers every endpoint and wraps the mux in the middleware chain.
func NewRouter(s Services) http.Handler {
	log := s.Logger

	records := handlers.NewRecordsHandler(s.Workflow, s.Profile, log)
	review := handlers.NewReviewHandler(s.Workflow, log)
	transactions := handlers.NewTransactionsHandler(s.Workflow, s.Profile, log)
	dashboard := handlers.NewDashboardHandler(s.Workflow, log)
	runsHandler := handlers.NewRunsHandler(s.Workflow.Runs(), log)
	organization := handlers.NewOrganizationHandler(s.Profile, log)

	mux := http.NewServeMux()

	// Records endpoints
	mux.HandleFunc("POST /api/records/upload", records.Upload)
	mux.HandleFunc("GET /api/records", records.List)
	mux.HandleFunc("GET /api/records/{id}", records.Get)
	mux.HandleFunc("PUT /api/records/{id}", records.Save)
	mux.HandleFunc("DELETE /api/records/{id}", records.Delete)
	mux.HandleFunc("PUT /api/records/{id}/payment", records.SetPayment)
	mux.HandleFunc("GET /api/records/{id}/document", records.Document)
	mux.HandleFunc("GET /api/records/{id}/invoice.pdf", records.Invoice)

	// Review queue endpoints
	mux.HandleFunc("GET /api/review", review.Get)
	mux.HandleFunc("DELETE /api/review", review.Clear)
	mux.HandleFunc("POST /api/review/{id}", review.Select)

	// Overview endpoints
	mux.HandleFunc("GET /api/dashboard", dashboard.Get)
	mux.HandleFunc("POST /api/insights", dashboard.Insights)

	// Transactions endpoints
	mux.HandleFunc("GET /api/transactions", transactions.List)
	mux.HandleFunc("GET /api/transactions/export.xlsx", transactions.ExportXLSX)
	mux.HandleFunc("GET /api/transactions/export.pdf", transactions.ExportPDF)

	// Runs endpoints
	mux.HandleFunc("GET /api/runs", runsHandler.List)
	mux.HandleFunc("GET /api/runs/{id}", runsHandler.Get)

	// Organization endpoints
	mux.HandleFunc("GET /api/organization", organization.Get)
	mux.HandleFunc("PUT /api/organization", organization.Update)

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return middleware.Chain(mux,
		middleware.Recovery(log),
		middleware.RequestID,
		middleware.Logger(log),
		middleware.CORS,
	)
}
