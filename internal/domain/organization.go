package domain

import "time"

// StorageProvider names where uploaded documents live.
type StorageProvider string

const (
	StorageBillflow StorageProvider = "billflow"
	StorageGoogle   StorageProvider = "google"
	StorageOneDrive StorageProvider = "onedrive"
)

// Organization is the single tenant's profile. The core reads Currency as an
// extraction default, Name when rendering documents and CustomFields as the
// extra field names requested from extraction.
//
// A nil CustomFields means the profile has never set the list; an empty one
// means it was cleared.
type Organization struct {
	Name             string          `json:"name" yaml:"name"`
	TaxID            string          `json:"tax_id,omitempty" yaml:"tax_id,omitempty"`
	Currency         string          `json:"currency" yaml:"currency"`
	StorageProvider  StorageProvider `json:"storage_provider" yaml:"storage_provider"`
	JoinedAt         time.Time       `json:"joined_at" yaml:"joined_at"`
	BusinessKeywords []string        `json:"business_keywords,omitempty" yaml:"business_keywords,omitempty"`
	CustomFields     []string        `json:"custom_fields" yaml:"custom_fields"`
}

// DefaultCurrency is used when neither the document nor the profile names one.
const DefaultCurrency = "INR"

// CurrencyOrDefault returns the profile currency or DefaultCurrency.
func (o Organization) CurrencyOrDefault() string {
	if o.Currency == "" {
		return DefaultCurrency
	}
	return o.Currency
}
