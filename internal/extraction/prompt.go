package extraction

import (
	"strings"

	"github.com/dvloznov/billflow/internal/domain"
	"google.golang.org/genai"
)

// buildPrompt asks for the ExtractedData fields. The declared kind only
// decides which party is the counterparty.
func buildPrompt(kind domain.Kind, customFields []string, defaultCurrency string, keywords []string) string {
	entity, docType := "Vendor/Supplier", "Purchase Bill or Expense Receipt"
	if kind == domain.KindIncome {
		entity, docType = "Customer/Client", "Sales Invoice or Receipt"
	}

	var b strings.Builder
	b.WriteString("Analyze this image of a " + docType + ".\n")
	b.WriteString("Extract the following details:\n")
	b.WriteString("- Counterparty Name (the name of the " + entity + ").\n")
	b.WriteString("- Document date (YYYY-MM-DD format).\n")
	b.WriteString("- Total Amount.\n")
	b.WriteString("- Currency as an ISO code (default to " + defaultCurrency + " if not specified).\n")
	b.WriteString("- Tax Amount (GST/VAT if visible).\n")
	b.WriteString("- Line Items (description, quantity, unit (e.g. kg, pcs, bags, box), unit price, total).\n")

	if len(customFields) > 0 {
		b.WriteString("\nAlso look for these specific fields: " + strings.Join(customFields, ", ") + ".\n")
		b.WriteString("Return each one as a top-level string property named exactly as listed.\n")
	}
	if len(keywords) > 0 {
		b.WriteString("\nThe business deals in: " + strings.Join(keywords, ", ") + ".\n")
	}

	b.WriteString("\nEvaluate the clarity of the document and provide a confidence score (0-100).\n")
	b.WriteString("If a field is not found or illegible, use null or 0. Never guess amounts.\n")
	b.WriteString("Return ONLY valid raw JSON. Do NOT wrap the response in code fences.\n")
	return b.String()
}

// responseSchema describes the ExtractedData JSON shape, plus one string
// property per custom field.
func responseSchema(customFields []string) *genai.Schema {
	str := &genai.Schema{Type: genai.TypeString}
	num := &genai.Schema{Type: genai.TypeNumber}

	props := map[string]*genai.Schema{
		"counterpartyName": str,
		"documentDate":     str,
		"totalAmount":      num,
		"currency":         str,
		"taxAmount":        {Type: genai.TypeNumber, Nullable: genai.Ptr(true)},
		"confidenceScore":  num,
		"lineItems": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"description": str,
					"quantity":    num,
					"unit":        str,
					"unitPrice":   num,
					"total":       num,
				},
			},
		},
	}
	for _, name := range customFields {
		if _, taken := props[name]; taken {
			continue
		}
		props[name] = &genai.Schema{Type: genai.TypeString, Nullable: genai.Ptr(true)}
	}

	return &genai.Schema{
		Type:       genai.TypeObject,
		Properties: props,
		Required:   []string{"totalAmount", "confidenceScore"},
	}
}
