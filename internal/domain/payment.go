package domain

import (
	"fmt"
	"time"
)

// PaymentStatus tracks settlement of a record. OVERDUE is only ever derived.
type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "UNPAID"
	PaymentPartial PaymentStatus = "PARTIAL"
	PaymentPaid    PaymentStatus = "PAID"
	PaymentOverdue PaymentStatus = "OVERDUE"
)

// ParsePaymentStatus accepts any of the four statuses in any case.
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	p := PaymentStatus(normalizeEnum(s))
	switch p {
	case PaymentUnpaid, PaymentPartial, PaymentPaid, PaymentOverdue:
		return p, nil
	}
	return "", fmt.Errorf("%w: unknown payment status %q", ErrInvalidInput, s)
}

// Storable reports whether p may be written to a record.
func (p PaymentStatus) Storable() bool {
	return p == PaymentUnpaid || p == PaymentPartial || p == PaymentPaid
}

// DisplayPaymentStatus is the payment status shown everywhere a status is
// displayed or filtered on: anything not PAID whose due date is strictly
// before today reads as OVERDUE. The stored field is never changed.
func DisplayPaymentStatus(r FinancialRecord, today time.Time) PaymentStatus {
	if r.PaymentStatus == PaymentPaid {
		return PaymentPaid
	}
	if r.DueDate != "" && r.DueDate < today.Format(DateLayout) {
		return PaymentOverdue
	}
	if r.PaymentStatus == "" {
		return PaymentUnpaid
	}
	return r.PaymentStatus
}
