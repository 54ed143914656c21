package aggregation

import (
	"sort"
	"strings"
	"time"

	"github.com/dvloznov/billflow/internal/domain"
	"github.com/shopspring/decimal"
)

// Filter holds the independent, conjunctive filters of the transactions
// view. Zero fields do not filter.
type Filter struct {
	Search  string               // case-insensitive substring of the counterparty name
	From    string               // inclusive YYYY-MM-DD lower bound on documentDate
	To      string               // inclusive YYYY-MM-DD upper bound on documentDate
	Kind    domain.Kind          // exact match
	Payment domain.PaymentStatus // exact match on the displayed status
}

// Row is one record in a filtered view with its derived payment status.
type Row struct {
	Record        domain.FinancialRecord `json:"record"`
	PaymentStatus domain.PaymentStatus   `json:"display_payment_status"`
	Signed        decimal.Decimal        `json:"signed_amount"`
}

// View is the filtered, newest-first record list plus its signed net value.
type View struct {
	Rows  []Row           `json:"rows"`
	Net   decimal.Decimal `json:"net"`
	Count int             `json:"count"`
}

// FilteredView applies f to records, sorts the result by documentDate
// descending and sums +amount for income and -amount for expense.
func FilteredView(records []domain.FinancialRecord, f Filter, today time.Time) View {
	search := strings.ToLower(strings.TrimSpace(f.Search))

	rows := []Row{}
	net := decimal.Zero
	for _, r := range records {
		if search != "" && !strings.Contains(strings.ToLower(r.Extracted.CounterpartyName), search) {
			continue
		}
		if f.From != "" && r.Extracted.DocumentDate < f.From {
			continue
		}
		if f.To != "" && r.Extracted.DocumentDate > f.To {
			continue
		}
		if f.Kind != "" && r.Kind != f.Kind {
			continue
		}
		status := domain.DisplayPaymentStatus(r, today)
		if f.Payment != "" && status != f.Payment {
			continue
		}

		signed := r.Extracted.TotalAmount
		if r.Kind == domain.KindExpense {
			signed = signed.Neg()
		}
		net = net.Add(signed)
		rows = append(rows, Row{Record: r.Clone(), PaymentStatus: status, Signed: signed})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Record.Extracted.DocumentDate > rows[j].Record.Extracted.DocumentDate
	})

	return View{Rows: rows, Net: net, Count: len(rows)}
}

// Records returns the records of v in view order.
func (v View) Records() []domain.FinancialRecord {
	out := make([]domain.FinancialRecord, len(v.Rows))
	for i, row := range v.Rows {
		out[i] = row.Record
	}
	return out
}
