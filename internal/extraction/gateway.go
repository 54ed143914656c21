package extraction

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/dvloznov/billflow/internal/domain"
)

// Gateway converts a raw document into structured ExtractedData.
// Implementations must not touch the record store.
type Gateway interface {
	Extract(ctx context.Context, doc Document, declaredKind domain.Kind, customFields []string) (domain.ExtractedData, error)
}

// Document is an uploaded image or PDF.
type Document struct {
	Bytes    []byte
	MIMEType string
	Filename string
}

// SupportedMIMETypes lists the payloads the extraction service accepts.
var SupportedMIMETypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
	"image/heic":      true,
	"image/heif":      true,
	"application/pdf": true,
}

// Validate rejects unusable documents before any remote call. A missing MIME
// type is sniffed from the payload and written back to doc.
func Validate(doc *Document) error {
	if len(doc.Bytes) == 0 {
		return fmt.Errorf("extraction: %w: document is empty", domain.ErrInvalidInput)
	}

	mimeType := strings.ToLower(strings.TrimSpace(doc.MIMEType))
	if i := strings.Index(mimeType, ";"); i != -1 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = sniff(doc.Bytes)
	}
	if mimeType == "image/jpg" {
		mimeType = "image/jpeg"
	}

	if !SupportedMIMETypes[mimeType] {
		return fmt.Errorf("extraction: %w: unsupported document type %q", domain.ErrInvalidInput, mimeType)
	}
	doc.MIMEType = mimeType
	return nil
}

func sniff(b []byte) string {
	mimeType := http.DetectContentType(b)
	if i := strings.Index(mimeType, ";"); i != -1 {
		mimeType = mimeType[:i]
	}
	// DetectContentType has no HEIC signature; look for the ftyp brand.
	if mimeType == "application/octet-stream" && len(b) >= 12 && string(b[4:8]) == "ftyp" {
		switch string(b[8:12]) {
		case "heic", "heix", "heim", "heis":
			return "image/heic"
		case "mif1", "msf1":
			return "image/heif"
		}
	}
	return mimeType
}
