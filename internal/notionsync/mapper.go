package notionsync

import (
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/billflow/internal/domain"
	"github.com/jomei/notionapi"
)

// Property names of the records database.
const (
	PropCounterparty  = "Counterparty"
	PropRecordID      = "Record ID"
	PropKind          = "Kind"
	PropAmount        = "Amount"
	PropTax           = "Tax"
	PropCurrency      = "Currency"
	PropDate          = "Date"
	PropDueDate       = "Due Date"
	PropPaymentStatus = "Payment Status"
	PropConfidence    = "Confidence"
	PropDocument      = "Document"
)

// RecordToNotionProperties converts a record to Notion properties.
// The payment status written is the stored one; OVERDUE is never mirrored.
func RecordToNotionProperties(rec domain.FinancialRecord) notionapi.Properties {
	data := rec.Extracted
	amount, _ := data.TotalAmount.Float64()

	props := notionapi.Properties{
		PropCounterparty: notionapi.TitleProperty{
			Title: richText(data.CounterpartyOrUnknown()),
		},
		PropRecordID: notionapi.RichTextProperty{
			RichText: richText(rec.ID),
		},
		PropKind: notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(rec.Kind)},
		},
		PropAmount: notionapi.NumberProperty{
			Number: amount,
		},
		PropConfidence: notionapi.NumberProperty{
			Number: float64(data.ConfidenceScore),
		},
	}

	if data.Currency != "" {
		props[PropCurrency] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: data.Currency},
		}
	}

	if data.TaxAmount != nil {
		tax, _ := data.TaxAmount.Float64()
		props[PropTax] = notionapi.NumberProperty{Number: tax}
	}

	payment := rec.PaymentStatus
	if payment == "" {
		payment = domain.PaymentUnpaid
	}
	props[PropPaymentStatus] = notionapi.SelectProperty{
		Select: notionapi.Option{Name: string(payment)},
	}

	if d, ok := dateProperty(data.DocumentDate); ok {
		props[PropDate] = d
	}
	if d, ok := dateProperty(rec.DueDate); ok {
		props[PropDueDate] = d
	}

	if rec.DocumentRef != "" {
		props[PropDocument] = notionapi.RichTextProperty{
			RichText: richText(rec.DocumentRef),
		}
	}

	return props
}

func richText(content string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{
				Content: content,
			},
		},
	}
}

func dateProperty(s string) (notionapi.DateProperty, bool) {
	if s == "" {
		return notionapi.DateProperty{}, false
	}
	t, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		return notionapi.DateProperty{}, false
	}
	d := notionapi.Date(t)
	return notionapi.DateProperty{
		Date: &notionapi.DateObject{Start: &d},
	}, true
}

// extractRecordID extracts the record ID from a Notion page's properties.
// Returns empty string if not found.
func extractRecordID(page notionapi.Page) string {
	prop, ok := page.Properties[PropRecordID]
	if !ok {
		return ""
	}
	switch rt := prop.(type) {
	case *notionapi.RichTextProperty:
		if len(rt.RichText) > 0 {
			return rt.RichText[0].PlainText
		}
	case notionapi.RichTextProperty:
		if len(rt.RichText) > 0 {
			if rt.RichText[0].PlainText != "" {
				return rt.RichText[0].PlainText
			}
			if rt.RichText[0].Text != nil {
				return rt.RichText[0].Text.Content
			}
		}
	}
	return ""
}

// syncedProperties are the properties compared when deciding whether an
// existing page needs an update.
var syncedProperties = []string{
	PropCounterparty,
	PropKind,
	PropAmount,
	PropTax,
	PropCurrency,
	PropDate,
	PropDueDate,
	PropPaymentStatus,
	PropConfidence,
	PropDocument,
}

// changedProperties returns the mapped properties of rec that differ from
// what page currently holds, or nil when the page is up to date. A due date
// removed from the record is cleared on the page; other properties the
// record no longer carries are left as they are.
func changedProperties(page notionapi.Page, rec domain.FinancialRecord) notionapi.Properties {
	want := RecordToNotionProperties(rec)
	changed := notionapi.Properties{}

	for _, name := range syncedProperties {
		var current string
		if prop, ok := page.Properties[name]; ok {
			current = propertyValue(prop)
		}

		prop, ok := want[name]
		if !ok {
			if name == PropDueDate && current != "" {
				changed[name] = notionapi.DateProperty{}
			}
			continue
		}
		if propertyValue(prop) != current {
			changed[name] = prop
		}
	}

	if len(changed) == 0 {
		return nil
	}
	return changed
}

// propertyValue renders the comparable value of a property. Pages read back
// from Notion hold pointer properties; mapped ones hold values.
func propertyValue(prop notionapi.Property) string {
	switch p := prop.(type) {
	case notionapi.TitleProperty:
		return plainText(p.Title)
	case *notionapi.TitleProperty:
		return plainText(p.Title)
	case notionapi.RichTextProperty:
		return plainText(p.RichText)
	case *notionapi.RichTextProperty:
		return plainText(p.RichText)
	case notionapi.SelectProperty:
		return p.Select.Name
	case *notionapi.SelectProperty:
		return p.Select.Name
	case notionapi.NumberProperty:
		return strconv.FormatFloat(p.Number, 'f', -1, 64)
	case *notionapi.NumberProperty:
		return strconv.FormatFloat(p.Number, 'f', -1, 64)
	case notionapi.DateProperty:
		return dateValue(p.Date)
	case *notionapi.DateProperty:
		return dateValue(p.Date)
	}
	return ""
}

func plainText(parts []notionapi.RichText) string {
	var b strings.Builder
	for _, rt := range parts {
		switch {
		case rt.PlainText != "":
			b.WriteString(rt.PlainText)
		case rt.Text != nil:
			b.WriteString(rt.Text.Content)
		}
	}
	return b.String()
}

func dateValue(d *notionapi.DateObject) string {
	if d == nil || d.Start == nil {
		return ""
	}
	return time.Time(*d.Start).Format(domain.DateLayout)
}
