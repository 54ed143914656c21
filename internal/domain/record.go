package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Kind classifies a record as money in or money out.
type Kind string

const (
	// KindIncome is a sale: the counterparty is the customer.
	KindIncome Kind = "INCOME"
	// KindExpense is a purchase: the counterparty is the vendor.
	KindExpense Kind = "EXPENSE"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k == KindIncome || k == KindExpense
}

// ParseKind accepts the kind name in any case.
func ParseKind(s string) (Kind, error) {
	k := Kind(normalizeEnum(s))
	if !k.Valid() {
		return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidInput, s)
	}
	return k, nil
}

// WorkflowStatus is the reconciliation state of a record.
type WorkflowStatus string

const (
	// StatusProcessing exists only while the extraction call is outstanding.
	StatusProcessing WorkflowStatus = "PROCESSING"
	// StatusReviewNeeded marks a low-confidence extraction awaiting human confirmation.
	StatusReviewNeeded WorkflowStatus = "REVIEW_NEEDED"
	// StatusVerified is terminal.
	StatusVerified WorkflowStatus = "VERIFIED"
)

// FinancialRecord is one reviewed (or reviewable) document in the ledger.
type FinancialRecord struct {
	ID             string         `json:"id"`
	Kind           Kind           `json:"kind"`
	DocumentRef    string         `json:"document_ref"`
	MIMEType       string         `json:"mime_type,omitempty"`
	Filename       string         `json:"filename,omitempty"`
	WorkflowStatus WorkflowStatus `json:"workflow_status"`
	PaymentStatus  PaymentStatus  `json:"payment_status"`
	DueDate        string         `json:"due_date,omitempty"` // YYYY-MM-DD or empty
	UploadedAt     time.Time      `json:"uploaded_at"`
	Extracted      ExtractedData  `json:"extracted"`
}

// ExtractedData is the structured payload produced by the extraction gateway.
type ExtractedData struct {
	CounterpartyName string           `json:"counterparty_name"`
	DocumentDate     string           `json:"document_date"` // YYYY-MM-DD
	TotalAmount      decimal.Decimal  `json:"total_amount"`
	Currency         string           `json:"currency"`
	TaxAmount        *decimal.Decimal `json:"tax_amount,omitempty"`
	ConfidenceScore  int              `json:"confidence_score"`
	LineItems        []LineItem       `json:"line_items"`
	CustomFields     CustomFields     `json:"custom_fields,omitempty"`
}

// LineItem is one row of the document body, in document order.
type LineItem struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit,omitempty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Total       decimal.Decimal `json:"total"`
}

// LineItemTolerance is the largest difference between total and
// quantity*unitPrice still treated as rounding.
var LineItemTolerance = decimal.NewFromFloat(0.01)

// Consistent reports whether total ≈ quantity × unitPrice.
func (li LineItem) Consistent() bool {
	expected := li.Quantity.Mul(li.UnitPrice)
	return li.Total.Sub(expected).Abs().LessThanOrEqual(LineItemTolerance)
}

// LineItemMismatches returns the indexes of line items whose total does not
// match quantity × unit price. A mismatch is a review signal, not an error.
func LineItemMismatches(data ExtractedData) []int {
	var idx []int
	for i, li := range data.LineItems {
		if !li.Consistent() {
			idx = append(idx, i)
		}
	}
	return idx
}

// CounterpartyOrUnknown returns the counterparty name used for grouping.
func (d ExtractedData) CounterpartyOrUnknown() string {
	if d.CounterpartyName == "" {
		return UnknownCounterparty
	}
	return d.CounterpartyName
}

// UnknownCounterparty groups records without a counterparty name.
const UnknownCounterparty = "Unknown"

// Clone returns a deep copy so callers never alias store state.
func (r FinancialRecord) Clone() FinancialRecord {
	r.Extracted = r.Extracted.Clone()
	return r
}

// Clone deep-copies line items, tax and custom fields.
func (d ExtractedData) Clone() ExtractedData {
	if d.LineItems != nil {
		items := make([]LineItem, len(d.LineItems))
		copy(items, d.LineItems)
		d.LineItems = items
	}
	if d.TaxAmount != nil {
		tax := *d.TaxAmount
		d.TaxAmount = &tax
	}
	d.CustomFields = d.CustomFields.Clone()
	return d
}

// ValidateEdit checks user-supplied review edits. Nothing is applied when it fails.
func ValidateEdit(kind Kind, data ExtractedData) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidInput, kind)
	}
	if data.TotalAmount.IsNegative() {
		return fmt.Errorf("%w: total amount must not be negative", ErrInvalidInput)
	}
	if data.TaxAmount != nil && data.TaxAmount.IsNegative() {
		return fmt.Errorf("%w: tax amount must not be negative", ErrInvalidInput)
	}
	if data.DocumentDate != "" {
		if _, err := time.Parse(DateLayout, data.DocumentDate); err != nil {
			return fmt.Errorf("%w: document date %q is not YYYY-MM-DD", ErrInvalidInput, data.DocumentDate)
		}
	}
	for i, li := range data.LineItems {
		if li.Quantity.IsNegative() {
			return fmt.Errorf("%w: line item %d has negative quantity", ErrInvalidInput, i)
		}
	}
	return nil
}

// DateLayout is the ISO date format used for document and due dates.
const DateLayout = "2006-01-02"
