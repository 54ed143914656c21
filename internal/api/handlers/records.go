package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/dvloznov/billflow/internal/api/middleware"
	"github.com/dvloznov/billflow/internal/domain"
	"github.com/dvloznov/billflow/internal/extraction"
	"github.com/dvloznov/billflow/internal/reports"
	"github.com/dvloznov/billflow/internal/workflow"
	"github.com/rs/zerolog"
)

// MaxUploadBytes caps an uploaded document.
const MaxUploadBytes = 20 << 20

// RecordsHandler handles record endpoints.
type RecordsHandler struct {
	wf  *workflow.Workflow
	org OrgSource
	log zerolog.Logger
}

// NewRecordsHandler creates a new records handler.
func NewRecordsHandler(wf *workflow.Workflow, org OrgSource, log zerolog.Logger) *RecordsHandler {
	return &RecordsHandler{wf: wf, org: org, log: log}
}

// Upload handles POST /api/records/upload?kind=INCOME|EXPENSE.
// The document is the multipart field "file", or the raw body with the
// filename in ?filename=.
func (h *RecordsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	kind, err := domain.ParseKind(r.URL.Query().Get("kind"))
	if err != nil {
		middleware.WriteDomainError(w, r, err)
		return
	}

	doc, err := readDocument(w, r)
	if err != nil {
		middleware.WriteDomainError(w, r, err)
		return
	}

	result, err := h.wf.Upload(r.Context(), workflow.UploadRequest{Document: doc, Kind: kind})
	if err != nil {
		h.log.Warn().Err(err).Str("run_id", result.Run.ID).Str("filename", doc.Filename).Msg("Upload failed")
		middleware.WriteJSON(w, middleware.StatusFor(err), map[string]interface{}{
			"error": err.Error(),
			"kind":  domain.KindOf(err),
			"run":   result.Run,
		})
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, result)
}

func readDocument(w http.ResponseWriter, r *http.Request) (extraction.Document, error) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
			return extraction.Document{}, fmt.Errorf("%w: invalid multipart upload: %v", domain.ErrInvalidInput, err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return extraction.Document{}, fmt.Errorf("%w: multipart field \"file\" is required", domain.ErrInvalidInput)
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			return extraction.Document{}, fmt.Errorf("%w: reading upload: %v", domain.ErrInvalidInput, err)
		}
		return extraction.Document{
			Bytes:    data,
			MIMEType: header.Header.Get("Content-Type"),
			Filename: filepath.Base(header.Filename),
		}, nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return extraction.Document{}, fmt.Errorf("%w: document exceeds %d bytes", domain.ErrInvalidInput, MaxUploadBytes)
		}
		return extraction.Document{}, fmt.Errorf("%w: reading upload: %v", domain.ErrInvalidInput, err)
	}
	filename := r.URL.Query().Get("filename")
	if filename == "" {
		filename = "document"
	}
	return extraction.Document{
		Bytes:    data,
		MIMEType: r.Header.Get("Content-Type"),
		Filename: filepath.Base(filename),
	}, nil
}

// List handles GET /api/records
func (h *RecordsHandler) List(w http.ResponseWriter, r *http.Request) {
	records := h.wf.Records()
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"records": records,
		"count":   len(records),
	})
}

// Get handles GET /api/records/{id}
func (h *RecordsHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.wf.Record(r.PathValue("id"))
	if err != nil {
		middleware.WriteDomainError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"record":                 rec,
		"display_payment_status": domain.DisplayPaymentStatus(rec, h.wf.Now()),
		"line_item_mismatches":   domain.LineItemMismatches(rec.Extracted),
	})
}

// SaveRequest is the body of PUT /api/records/{id}.
type SaveRequest struct {
	Kind      domain.Kind          `json:"kind"`
	Extracted domain.ExtractedData `json:"extracted"`
}

// Save handles PUT /api/records/{id}: the confirmed review edit.
func (h *RecordsHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req SaveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteDomainError(w, r, err)
		return
	}

	kind, err := domain.ParseKind(string(req.Kind))
	if err != nil {
		middleware.WriteDomainError(w, r, err)
		return
	}

	result, err := h.wf.Save(r.Context(), r.PathValue("id"), kind, req.Extracted)
	if err != nil {
		middleware.WriteDomainError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, result)
}

// Delete handles DELETE /api/records/{id}
func (h *RecordsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.wf.Delete(r.Context(), r.PathValue("id")); err != nil {
		middleware.WriteDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PaymentRequest is the body of PUT /api/records/{id}/payment.
type PaymentRequest struct {
	PaymentStatus string `json:"payment_status"`
	DueDate       string `json:"due_date"`
}

// SetPayment handles PUT /api/records/{id}/payment
func (h *RecordsHandler) SetPayment(w http.ResponseWriter, r *http.Request) {
	var req PaymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteDomainError(w, r, err)
		return
	}
	status, err := domain.ParsePaymentStatus(req.PaymentStatus)
	if err != nil {
		middleware.WriteDomainError(w, r, err)
		return
	}

	rec, err := h.wf.SetPayment(r.Context(), r.PathValue("id"), status, req.DueDate)
	if err != nil {
		middleware.WriteDomainError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"record":                 rec,
		"display_payment_status": domain.DisplayPaymentStatus(rec, h.wf.Now()),
	})
}

// Document handles GET /api/records/{id}/document: the stored original.
func (h *RecordsHandler) Document(w http.ResponseWriter, r *http.Request) {
	data, rec, err := h.wf.Document(r.Context(), r.PathValue("id"))
	if err != nil {
		middleware.WriteDomainError(w, r, err)
		return
	}
	contentType := rec.MIMEType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", rec.Filename))
	w.Write(data)
}

// Invoice handles GET /api/records/{id}/invoice.pdf
func (h *RecordsHandler) Invoice(w http.ResponseWriter, r *http.Request) {
	rec, err := h.wf.Record(r.PathValue("id"))
	if err != nil {
		middleware.WriteDomainError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := reports.InvoicePDF(&buf, rec, h.org.Get(), h.wf.Now()); err != nil {
		middleware.WriteDomainError(w, r, err)
		return
	}

	attachment(w, "application/pdf", fmt.Sprintf("invoice-%s.pdf", rec.ID))
	w.Write(buf.Bytes())
}
