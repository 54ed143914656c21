package insights

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dvloznov/billflow/internal/aggregation"
	"github.com/dvloznov/billflow/internal/domain"
	"github.com/dvloznov/billflow/internal/gemini"
	"github.com/shopspring/decimal"
	"google.golang.org/genai"
)

// Summary is everything the advisor is allowed to see: totals and the top
// counterparty lists. Raw records never leave the process.
type Summary struct {
	TotalIncome  decimal.Decimal                 `json:"total_income"`
	TotalExpense decimal.Decimal                 `json:"total_expense"`
	NetCashFlow  decimal.Decimal                 `json:"net_cash_flow"`
	TopVendors   []aggregation.CounterpartyTotal `json:"top_vendors"`
	TopCustomers []aggregation.CounterpartyTotal `json:"top_customers"`
}

// SummaryFromDashboard keeps only the aggregate fields of d.
func SummaryFromDashboard(d aggregation.Dashboard) Summary {
	return Summary{
		TotalIncome:  d.TotalIncome,
		TotalExpense: d.TotalExpense,
		NetCashFlow:  d.NetFlow,
		TopVendors:   limit(d.TopVendors, aggregation.DefaultTopLimit),
		TopCustomers: limit(d.TopCustomers, aggregation.DefaultTopLimit),
	}
}

func limit(in []aggregation.CounterpartyTotal, n int) []aggregation.CounterpartyTotal {
	if len(in) > n {
		in = in[:n]
	}
	out := make([]aggregation.CounterpartyTotal, len(in))
	copy(out, in)
	return out
}

// Advisor turns a Summary into free-form observations.
type Advisor interface {
	Summarize(ctx context.Context, s Summary) (string, error)
}

// GeminiAdvisor is the Advisor backed by Gemini.
type GeminiAdvisor struct {
	gen      gemini.Generator
	model    string
	currency func() string
}

// NewGeminiAdvisor creates an advisor with a fixed currency code. The
// currency only affects how amounts are written in the prompt.
func NewGeminiAdvisor(gen gemini.Generator, model, currency string) *GeminiAdvisor {
	return NewGeminiAdvisorWithCurrency(gen, model, func() string { return currency })
}

// NewGeminiAdvisorWithCurrency creates an advisor that reads the currency
// code on every call, so organization profile edits apply to the next
// summary.
func NewGeminiAdvisorWithCurrency(gen gemini.Generator, model string, currency func() string) *GeminiAdvisor {
	if model == "" {
		model = gemini.DefaultModelName
	}
	if currency == nil {
		currency = func() string { return domain.DefaultCurrency }
	}
	return &GeminiAdvisor{gen: gen, model: model, currency: currency}
}

func (a *GeminiAdvisor) currencyCode() string {
	if c := a.currency(); c != "" {
		return c
	}
	return domain.DefaultCurrency
}

// Summarize asks the model for three observations. Every failure is
// ErrAdvisoryUnavailable.
func (a *GeminiAdvisor) Summarize(ctx context.Context, s Summary) (string, error) {
	if a.gen == nil {
		return "", fmt.Errorf("insights: %w: gemini client is not configured", domain.ErrAdvisoryUnavailable)
	}

	resp, err := a.gen.GenerateContent(ctx, a.model, genai.Text(buildPrompt(s, a.currencyCode())), nil)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("insights: generate content: %w", err)
		}
		return "", fmt.Errorf("insights: generate content: %w: %v", domain.ErrAdvisoryUnavailable, err)
	}
	if resp == nil {
		return "", fmt.Errorf("insights: %w: no response from model", domain.ErrAdvisoryUnavailable)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("insights: %w: empty response from model", domain.ErrAdvisoryUnavailable)
	}
	return text, nil
}

func buildPrompt(s Summary, currency string) string {
	sym := symbol(currency)
	money := func(d decimal.Decimal) string { return sym + d.StringFixed(2) }

	var b strings.Builder
	b.WriteString("Act as a smart financial assistant for a small business owner.\n")
	b.WriteString("Analyze the following financial snapshot based on recently uploaded documents:\n\n")
	b.WriteString("Financial Summary:\n")
	b.WriteString("- Total Sales: " + money(s.TotalIncome) + "\n")
	b.WriteString("- Total Expenses: " + money(s.TotalExpense) + "\n")
	b.WriteString("- Net Cash Flow: " + money(s.NetCashFlow) + "\n\n")

	b.WriteString("Top Expense Sources (Vendors):\n")
	writeList(&b, s.TopVendors, money, "No expense data.")
	b.WriteString("\nTop Income Sources (Customers):\n")
	writeList(&b, s.TopCustomers, money, "No income data.")

	b.WriteString("\nPlease provide 3 distinct, actionable insights or observations.\n")
	b.WriteString("Focus on cash flow health, spending concentration, and revenue diversity.\n")
	b.WriteString("Keep it encouraging but realistic. Format with simple bullet points.\n")
	b.WriteString("If the data is sparse (e.g. 0 income), give general advice on what to track next.\n")
	return b.String()
}

func writeList(b *strings.Builder, list []aggregation.CounterpartyTotal, money func(decimal.Decimal) string, empty string) {
	if len(list) == 0 {
		b.WriteString(empty + "\n")
		return
	}
	for _, c := range list {
		b.WriteString("- " + c.Name + ": " + money(c.Value) + "\n")
	}
}

var symbols = map[string]string{
	"INR": "₹",
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
}

func symbol(currency string) string {
	if s, ok := symbols[strings.ToUpper(currency)]; ok {
		return s
	}
	return strings.ToUpper(currency) + " "
}

var _ Advisor = (*GeminiAdvisor)(nil)
