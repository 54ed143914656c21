package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dvloznov/billflow/internal/domain"
	"github.com/shopspring/decimal"
)

// coreFields lists every accepted spelling of a core field, most preferred
// first. The canonical spelling always wins over an alias.
var coreFields = []struct {
	name    string
	aliases []string
}{
	{"counterpartyName", []string{"counterpartyName", "counterparty_name"}},
	{"documentDate", []string{"documentDate", "document_date", "invoiceDate", "invoice_date", "date"}},
	{"totalAmount", []string{"totalAmount", "total_amount"}},
	{"currency", []string{"currency"}},
	{"taxAmount", []string{"taxAmount", "tax_amount"}},
	{"confidenceScore", []string{"confidenceScore", "confidence_score"}},
	{"lineItems", []string{"lineItems", "line_items"}},
}

// knownKeys is the set of all core spellings.
var knownKeys = func() map[string]bool {
	keys := make(map[string]bool)
	for _, f := range coreFields {
		for _, a := range f.aliases {
			keys[a] = true
		}
	}
	return keys
}()

// Normalize turns the model's JSON object into ExtractedData. Absent fields
// become zero values; keys outside the core shape land in CustomFields.
func Normalize(raw string) (domain.ExtractedData, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()

	var obj map[string]interface{}
	if err := dec.Decode(&obj); err != nil {
		return domain.ExtractedData{}, fmt.Errorf("extraction: %w: unmarshal JSON: %v", domain.ErrExtractionFailed, err)
	}
	if obj == nil {
		return domain.ExtractedData{}, fmt.Errorf("extraction: %w: response is not an object", domain.ErrExtractionFailed)
	}

	fields := make(map[string]interface{}, len(coreFields))
	for _, f := range coreFields {
		for _, alias := range f.aliases {
			if v, ok := obj[alias]; ok && v != nil {
				fields[f.name] = v
				break
			}
		}
	}

	var custom domain.CustomFields
	for k, v := range obj {
		if knownKeys[k] {
			continue
		}
		if custom == nil {
			custom = make(domain.CustomFields)
		}
		custom.Set(k, v)
	}

	data, err := normalizeFields(fields)
	if err != nil {
		return domain.ExtractedData{}, fmt.Errorf("extraction: %w: %v", domain.ErrExtractionFailed, err)
	}
	data.CustomFields = custom
	return data, nil
}

func normalizeFields(m map[string]interface{}) (domain.ExtractedData, error) {
	var data domain.ExtractedData
	var err error

	if data.CounterpartyName, err = getStringField(m, "counterpartyName"); err != nil {
		return data, err
	}
	date, err := getStringField(m, "documentDate")
	if err != nil {
		return data, err
	}
	data.DocumentDate = normalizeDate(date)

	if data.TotalAmount, err = getAmountField(m, "totalAmount"); err != nil {
		return data, err
	}
	currency, err := getStringField(m, "currency")
	if err != nil {
		return data, err
	}
	data.Currency = strings.ToUpper(currency)

	if data.TaxAmount, err = getOptionalAmountField(m, "taxAmount"); err != nil {
		return data, err
	}

	score, err := getDecimalField(m, "confidenceScore")
	if err != nil {
		return data, err
	}
	data.ConfidenceScore = clampScore(score)

	data.LineItems, err = getLineItems(m, "lineItems")
	if err != nil {
		return data, err
	}
	return data, nil
}

func getLineItems(m map[string]interface{}, key string) ([]domain.LineItem, error) {
	items := []domain.LineItem{}
	v, ok := m[key]
	if !ok || v == nil {
		return items, nil
	}
	arr, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("field %q has type %T, want array", key, v)
	}

	for i, elem := range arr {
		obj, ok := elem.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("line item %d is %T, want object", i, elem)
		}

		var li domain.LineItem
		var err error
		if li.Description, err = getStringField(obj, "description"); err != nil {
			return nil, fmt.Errorf("line item %d: %w", i, err)
		}
		if li.Unit, err = getStringField(obj, "unit"); err != nil {
			return nil, fmt.Errorf("line item %d: %w", i, err)
		}
		if li.Quantity, err = getAmountField(obj, "quantity"); err != nil {
			return nil, fmt.Errorf("line item %d: %w", i, err)
		}
		unitPriceKey := "unitPrice"
		if _, ok := obj[unitPriceKey]; !ok {
			unitPriceKey = "unit_price"
		}
		if li.UnitPrice, err = getAmountField(obj, unitPriceKey); err != nil {
			return nil, fmt.Errorf("line item %d: %w", i, err)
		}
		if li.Total, err = getAmountField(obj, "total"); err != nil {
			return nil, fmt.Errorf("line item %d: %w", i, err)
		}
		items = append(items, li)
	}
	return items, nil
}

func getStringField(m map[string]interface{}, key string) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", nil
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val), nil
	case json.Number:
		return val.String(), nil
	default:
		return "", fmt.Errorf("field %q has type %T, want string", key, v)
	}
}

// getDecimalField reads a number, or a numeric string with thousands
// separators or a currency symbol. Absent or null is zero.
func getDecimalField(m map[string]interface{}, key string) (decimal.Decimal, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return decimal.Zero, nil
	}
	switch val := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(val.String())
		if err != nil {
			return decimal.Zero, fmt.Errorf("field %q: %w", key, err)
		}
		return d, nil
	case float64:
		return decimal.NewFromFloat(val), nil
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return decimal.Zero, nil
		}
		s = strings.Map(func(r rune) rune {
			if (r >= '0' && r <= '9') || r == '.' || r == '-' {
				return r
			}
			return -1
		}, s)
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, fmt.Errorf("field %q: %q is not a number", key, val)
		}
		return d, nil
	default:
		return decimal.Zero, fmt.Errorf("field %q has type %T, want number", key, v)
	}
}

// getAmountField is getDecimalField that refuses negative values.
func getAmountField(m map[string]interface{}, key string) (decimal.Decimal, error) {
	d, err := getDecimalField(m, key)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("field %q is negative: %s", key, d)
	}
	return d, nil
}

func getOptionalAmountField(m map[string]interface{}, key string) (*decimal.Decimal, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
		return nil, nil
	}
	d, err := getAmountField(m, key)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// clampScore rounds to the nearest integer and clamps into 0..100.
// Scores given as a 0..1 fraction are scaled up.
func clampScore(d decimal.Decimal) int {
	f, _ := d.Float64()
	if f > 0 && f < 1 {
		f *= 100
	}
	f = math.Round(f)
	switch {
	case f < 0:
		return 0
	case f > 100:
		return 100
	}
	return int(f)
}

// normalizeDate keeps valid ISO dates, converts a few common layouts and
// drops anything else.
func normalizeDate(s string) string {
	if s == "" {
		return ""
	}
	layouts := []string{domain.DateLayout, "2006/01/02", "02-01-2006", "02/01/2006", "2 Jan 2006", "January 2, 2006", time.RFC3339}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(domain.DateLayout)
		}
	}
	return ""
}
