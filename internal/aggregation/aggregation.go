// Package aggregation derives dashboard metrics and filtered views from a
// record snapshot. Every function is pure and recomputes from scratch.
package aggregation

import (
	"sort"

	"github.com/dvloznov/billflow/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	// DefaultWindow is the number of time-series buckets shown on the dashboard.
	DefaultWindow = 7
	// DefaultTopLimit is the size of the top vendor and customer lists.
	DefaultTopLimit = 5
	// NoDateBucket collects records without a document date.
	NoDateBucket = "N/A"
)

// TotalByKind sums totalAmount over records of kind.
func TotalByKind(records []domain.FinancialRecord, kind domain.Kind) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		if r.Kind == kind {
			total = total.Add(r.Extracted.TotalAmount)
		}
	}
	return total
}

// NetFlow is income minus expense.
func NetFlow(records []domain.FinancialRecord) decimal.Decimal {
	return TotalByKind(records, domain.KindIncome).Sub(TotalByKind(records, domain.KindExpense))
}

// PendingReviewCount counts records awaiting review.
func PendingReviewCount(records []domain.FinancialRecord) int {
	n := 0
	for _, r := range records {
		if r.WorkflowStatus == domain.StatusReviewNeeded {
			n++
		}
	}
	return n
}

// SeriesPoint is one time-series bucket.
type SeriesPoint struct {
	Bucket  string          `json:"bucket"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
}

// TimeSeries groups records by the MM-DD part of their document date and
// returns the last window buckets in ascending bucket order. The year is
// ignored, so the same day in different years shares a bucket.
func TimeSeries(records []domain.FinancialRecord, window int) []SeriesPoint {
	if window <= 0 {
		window = DefaultWindow
	}

	var points []SeriesPoint
	index := make(map[string]int)
	for _, r := range records {
		bucket := monthDay(r.Extracted.DocumentDate)
		i, ok := index[bucket]
		if !ok {
			i = len(points)
			index[bucket] = i
			points = append(points, SeriesPoint{Bucket: bucket, Income: decimal.Zero, Expense: decimal.Zero})
		}
		switch r.Kind {
		case domain.KindIncome:
			points[i].Income = points[i].Income.Add(r.Extracted.TotalAmount)
		case domain.KindExpense:
			points[i].Expense = points[i].Expense.Add(r.Extracted.TotalAmount)
		}
	}

	sort.SliceStable(points, func(i, j int) bool { return points[i].Bucket < points[j].Bucket })
	if len(points) > window {
		points = points[len(points)-window:]
	}
	if points == nil {
		points = []SeriesPoint{}
	}
	return points
}

func monthDay(date string) string {
	if len(date) <= 5 {
		return NoDateBucket
	}
	return date[5:]
}

// CounterpartyTotal is one entry of a top-counterparty list.
type CounterpartyTotal struct {
	Name  string          `json:"name"`
	Value decimal.Decimal `json:"value"`
}

// TopCounterparties groups records of kind by counterparty, sorts by sum
// descending and keeps the first limit. Ties keep first-seen order.
func TopCounterparties(records []domain.FinancialRecord, kind domain.Kind, limit int) []CounterpartyTotal {
	var groups []CounterpartyTotal
	index := make(map[string]int)
	for _, r := range records {
		if r.Kind != kind {
			continue
		}
		name := r.Extracted.CounterpartyOrUnknown()
		i, ok := index[name]
		if !ok {
			i = len(groups)
			index[name] = i
			groups = append(groups, CounterpartyTotal{Name: name, Value: decimal.Zero})
		}
		groups[i].Value = groups[i].Value.Add(r.Extracted.TotalAmount)
	}

	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Value.GreaterThan(groups[j].Value) })
	if limit > 0 && len(groups) > limit {
		groups = groups[:limit]
	}
	if groups == nil {
		groups = []CounterpartyTotal{}
	}
	return groups
}

// Dashboard bundles the metrics shown on the overview screen.
type Dashboard struct {
	TotalIncome   decimal.Decimal     `json:"total_income"`
	TotalExpense  decimal.Decimal     `json:"total_expense"`
	NetFlow       decimal.Decimal     `json:"net_flow"`
	PendingReview int                 `json:"pending_review"`
	RecordCount   int                 `json:"record_count"`
	Series        []SeriesPoint       `json:"series"`
	TopVendors    []CounterpartyTotal `json:"top_vendors"`
	TopCustomers  []CounterpartyTotal `json:"top_customers"`
}

// BuildDashboard computes every dashboard metric from one snapshot.
func BuildDashboard(records []domain.FinancialRecord, window int) Dashboard {
	income := TotalByKind(records, domain.KindIncome)
	expense := TotalByKind(records, domain.KindExpense)
	return Dashboard{
		TotalIncome:   income,
		TotalExpense:  expense,
		NetFlow:       income.Sub(expense),
		PendingReview: PendingReviewCount(records),
		RecordCount:   len(records),
		Series:        TimeSeries(records, window),
		TopVendors:    TopCounterparties(records, domain.KindExpense, DefaultTopLimit),
		TopCustomers:  TopCounterparties(records, domain.KindIncome, DefaultTopLimit),
	}
}
