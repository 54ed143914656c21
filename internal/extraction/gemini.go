package extraction

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/billflow/internal/domain"
	"github.com/dvloznov/billflow/internal/gemini"
	"google.golang.org/genai"
)

// GeminiExtractor is the Gateway backed by Gemini generate-content with the
// document sent as an inline blob.
type GeminiExtractor struct {
	gen   gemini.Generator
	model string
	org   func() domain.Organization
}

// Option configures a GeminiExtractor.
type Option func(*GeminiExtractor)

// WithModel overrides gemini.DefaultModelName.
func WithModel(model string) Option {
	return func(e *GeminiExtractor) {
		if model != "" {
			e.model = model
		}
	}
}

// WithOrganization feeds the profile currency and business keywords into the prompt.
func WithOrganization(org domain.Organization) Option {
	return WithOrganizationSource(func() domain.Organization { return org })
}

// WithOrganizationSource reads the profile on every call, so profile edits
// apply to the next upload.
func WithOrganizationSource(src func() domain.Organization) Option {
	return func(e *GeminiExtractor) {
		if src != nil {
			e.org = src
		}
	}
}

// NewGeminiExtractor creates an extractor. A nil generator means credentials
// were never configured; every Extract then fails with ErrConfiguration.
func NewGeminiExtractor(gen gemini.Generator, opts ...Option) *GeminiExtractor {
	e := &GeminiExtractor{
		gen:   gen,
		model: gemini.DefaultModelName,
		org:   func() domain.Organization { return domain.Organization{} },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract validates doc, calls the model and normalizes its reply.
func (e *GeminiExtractor) Extract(ctx context.Context, doc Document, declaredKind domain.Kind, customFields []string) (domain.ExtractedData, error) {
	if e.gen == nil {
		return domain.ExtractedData{}, fmt.Errorf("extraction: %w: gemini client is not configured", domain.ErrConfiguration)
	}
	if err := Validate(&doc); err != nil {
		return domain.ExtractedData{}, err
	}

	org := e.org()
	currency := org.CurrencyOrDefault()

	contents := []*genai.Content{
		{
			Role: genai.RoleUser,
			Parts: []*genai.Part{
				{InlineData: &genai.Blob{MIMEType: doc.MIMEType, Data: doc.Bytes}},
				{Text: buildPrompt(declaredKind, customFields, currency, org.BusinessKeywords)},
			},
		},
	}
	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0),
		ResponseMIMEType: "application/json",
		ResponseSchema:   responseSchema(customFields),
	}

	resp, err := e.gen.GenerateContent(ctx, e.model, contents, cfg)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return domain.ExtractedData{}, fmt.Errorf("extraction: generate content: %w", err)
		}
		return domain.ExtractedData{}, fmt.Errorf("extraction: generate content: %w: %v", domain.ErrExtractionFailed, err)
	}
	if resp == nil {
		return domain.ExtractedData{}, fmt.Errorf("extraction: %w: no response from model", domain.ErrExtractionFailed)
	}

	rawText := resp.Text()
	if rawText == "" {
		return domain.ExtractedData{}, fmt.Errorf("extraction: %w: empty response from model", domain.ErrExtractionFailed)
	}

	data, err := Normalize(gemini.CleanJSON(rawText))
	if err != nil {
		return domain.ExtractedData{}, err
	}
	if data.Currency == "" {
		data.Currency = currency
	}
	return data, nil
}

var _ Gateway = (*GeminiExtractor)(nil)
