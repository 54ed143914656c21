package insights

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dvloznov/billflow/internal/aggregation"
	"github.com/dvloznov/billflow/internal/domain"
	"github.com/shopspring/decimal"
	"google.golang.org/genai"
)

type fakeGenerator struct {
	GenerateContentFunc func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	prompt              string
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.prompt = contents[0].Parts[0].Text
	}
	return f.GenerateContentFunc(ctx, model, contents, cfg)
}

func reply(text string) func(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return func(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		return &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{{Text: text}}}}},
		}, nil
	}
}

func summary() Summary {
	return Summary{
		TotalIncome:  decimal.NewFromInt(45000),
		TotalExpense: decimal.NewFromInt(1499),
		NetCashFlow:  decimal.NewFromInt(43501),
		TopVendors:   []aggregation.CounterpartyTotal{{Name: "Ramesh Electronics", Value: decimal.NewFromInt(1499)}},
	}
}

func TestSummarize(t *testing.T) {
	gen := &fakeGenerator{GenerateContentFunc: reply("  - Cash flow is healthy.\n- Diversify.\n")}
	a := NewGeminiAdvisor(gen, "", "INR")

	text, err := a.Summarize(context.Background(), summary())
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if text != "- Cash flow is healthy.\n- Diversify." {
		t.Errorf("text = %q", text)
	}

	for _, want := range []string{"₹45000.00", "₹43501.00", "Ramesh Electronics: ₹1499.00", "No income data.", "3 distinct"} {
		if !strings.Contains(gen.prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, gen.prompt)
		}
	}
}

func TestSummarizeReadsCurrencyPerCall(t *testing.T) {
	gen := &fakeGenerator{GenerateContentFunc: reply("- ok")}
	currency := "INR"
	a := NewGeminiAdvisorWithCurrency(gen, "", func() string { return currency })

	tests := []struct {
		currency string
		want     string
	}{
		{"INR", "₹45000.00"},
		{"USD", "$45000.00"},
		{"", "₹45000.00"},
	}
	for _, tt := range tests {
		currency = tt.currency
		if _, err := a.Summarize(context.Background(), summary()); err != nil {
			t.Fatalf("Summarize(%q): %v", tt.currency, err)
		}
		if !strings.Contains(gen.prompt, "Total Sales: "+tt.want) {
			t.Errorf("currency %q: prompt missing %q:\n%s", tt.currency, tt.want, gen.prompt)
		}
	}
}

func TestSummarizeFailures(t *testing.T) {
	tests := []struct {
		name string
		gen  *fakeGenerator
	}{
		{"transport error", &fakeGenerator{GenerateContentFunc: func(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return nil, errors.New("503")
		}}},
		{"empty text", &fakeGenerator{GenerateContentFunc: reply("   ")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGeminiAdvisor(tt.gen, "", "").Summarize(context.Background(), summary())
			if !errors.Is(err, domain.ErrAdvisoryUnavailable) {
				t.Errorf("err = %v, want ErrAdvisoryUnavailable", err)
			}
		})
	}

	if _, err := NewGeminiAdvisor(nil, "", "").Summarize(context.Background(), summary()); !errors.Is(err, domain.ErrAdvisoryUnavailable) {
		t.Errorf("nil client err = %v", err)
	}
}

func TestSummaryFromDashboard(t *testing.T) {
	var vendors []aggregation.CounterpartyTotal
	for i := 0; i < 8; i++ {
		vendors = append(vendors, aggregation.CounterpartyTotal{Name: string(rune('A' + i)), Value: decimal.NewFromInt(int64(10 - i))})
	}
	d := aggregation.Dashboard{
		TotalIncome:  decimal.NewFromInt(5),
		TotalExpense: decimal.NewFromInt(3),
		NetFlow:      decimal.NewFromInt(2),
		TopVendors:   vendors,
	}

	s := SummaryFromDashboard(d)
	if len(s.TopVendors) != 5 {
		t.Errorf("TopVendors len = %d, want 5", len(s.TopVendors))
	}
	if !s.NetCashFlow.Equal(decimal.NewFromInt(2)) {
		t.Errorf("NetCashFlow = %s", s.NetCashFlow)
	}
	if len(s.TopCustomers) != 0 {
		t.Errorf("TopCustomers = %+v", s.TopCustomers)
	}
}

func TestSymbol(t *testing.T) {
	if symbol("usd") != "$" || symbol("CHF") != "CHF " {
		t.Errorf("symbol mapping wrong: %q %q", symbol("usd"), symbol("CHF"))
	}
}
