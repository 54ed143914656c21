package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dvloznov/billflow/internal/aggregation"
	"github.com/dvloznov/billflow/internal/app"
	"github.com/dvloznov/billflow/internal/bqexport"
	"github.com/dvloznov/billflow/internal/config"
	"github.com/dvloznov/billflow/internal/domain"
	"github.com/dvloznov/billflow/internal/extraction"
	"github.com/dvloznov/billflow/internal/logger"
	"github.com/dvloznov/billflow/internal/notionsync"
	"github.com/dvloznov/billflow/internal/reports"
	"github.com/dvloznov/billflow/internal/workflow"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type command struct {
	name  string
	help  string
	run   func(ctx context.Context, a *app.App, log zerolog.Logger, args []string)
	limit time.Duration
}

var commands = []command{
	{"upload", "Extract a receipt or invoice into the ledger", runUpload, 5 * time.Minute},
	{"records", "List ledger records", runRecords, time.Minute},
	{"review", "Show the review queue, or correct and confirm a record", runReview, time.Minute},
	{"pay", "Set a record's payment status and due date", runPay, time.Minute},
	{"delete", "Delete a record", runDelete, time.Minute},
	{"dashboard", "Show totals, the time series and top counterparties", runDashboard, time.Minute},
	{"transactions", "Show the filtered transactions view", runTransactions, time.Minute},
	{"insights", "Ask the advisor about current totals", runInsights, 2 * time.Minute},
	{"report", "Write an invoice PDF, statement PDF or XLSX export", runReport, time.Minute},
	{"export-bq", "Export verified records to BigQuery", runExportBQ, 10 * time.Minute},
	{"sync-notion", "Mirror verified records into a Notion database", runSyncNotion, 10 * time.Minute},
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	name := os.Args[1]
	if name == "help" || name == "-h" || name == "--help" {
		printUsage()
		return
	}

	var cmd *command
	for i := range commands {
		if commands[i].name == name {
			cmd = &commands[i]
		}
	}
	if cmd == nil {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", name)
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load(os.Getenv("BILLFLOW_CONFIG"))
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log := logger.NewWithLevel(cfg.Log.Level)

	ctx, cancel := context.WithTimeout(context.Background(), cmd.limit)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer a.Close()

	cmd.run(ctx, a, log, os.Args[2:])
}

func printUsage() {
	fmt.Println("billflow CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	for _, c := range commands {
		fmt.Printf("  %-13s %s\n", c.name, c.help)
	}
	fmt.Println("\nConfiguration is read from ./config.yaml, $BILLFLOW_CONFIG and BILLFLOW_* variables.")
	fmt.Println("Run 'cli <command> -h' for more information on a command.")
}

func runUpload(ctx context.Context, a *app.App, log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	filePath := fs.String("file", "", "Path to the receipt or invoice (PDF, PNG, JPEG, WEBP)")
	kindFlag := fs.String("kind", "", "INCOME or EXPENSE")
	fs.Parse(args)

	if *filePath == "" || *kindFlag == "" {
		log.Fatal().Msg("Usage: cli upload -file PATH -kind INCOME|EXPENSE")
	}
	kind, err := domain.ParseKind(*kindFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid kind")
	}

	data, err := os.ReadFile(*filePath)
	if err != nil {
		log.Fatal().Err(err).Str("file", *filePath).Msg("Failed to read file")
	}

	res, err := a.Workflow.Upload(ctx, workflow.UploadRequest{
		Document: extraction.Document{
			Bytes:    data,
			MIMEType: mime.TypeByExtension(strings.ToLower(filepath.Ext(*filePath))),
			Filename: filepath.Base(*filePath),
		},
		Kind: kind,
	})
	if err != nil {
		log.Fatal().Err(err).Str("run_id", res.Run.ID).Str("error_kind", string(domain.KindOf(err))).Msg("Upload failed")
	}

	rec := res.Record
	fmt.Printf("Created %s %s: %s %s %s (confidence %d)\n",
		strings.ToLower(string(rec.Kind)), rec.ID, rec.Extracted.CounterpartyOrUnknown(),
		rec.Extracted.TotalAmount.StringFixed(2), rec.Extracted.Currency, rec.Extracted.ConfidenceScore)
	if res.NeedsReview {
		fmt.Printf("Needs review: run 'cli review -approve %s' after checking the extraction.\n", rec.ID)
	}
	if bad := domain.LineItemMismatches(rec.Extracted); len(bad) > 0 {
		fmt.Printf("Line items with inconsistent totals: %v\n", bad)
	}
}

func runRecords(ctx context.Context, a *app.App, log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("records", flag.ExitOnError)
	id := fs.String("id", "", "Show one record in detail")
	fs.Parse(args)

	if *id != "" {
		rec, err := a.Workflow.Record(*id)
		if err != nil {
			log.Fatal().Err(err).Msg("Record not found")
		}
		printRecord(rec, a.Workflow.Now())
		return
	}

	records := a.Workflow.Records()
	fmt.Printf("%d records\n", len(records))
	for _, rec := range records {
		fmt.Printf("%-36s %-7s %-13s %-10s %-30s %12s %s\n",
			rec.ID, rec.Kind, rec.WorkflowStatus, rec.Extracted.DocumentDate,
			rec.Extracted.CounterpartyOrUnknown(), rec.Extracted.TotalAmount.StringFixed(2),
			domain.DisplayPaymentStatus(rec, a.Workflow.Now()))
	}
}

func printRecord(rec domain.FinancialRecord, now time.Time) {
	x := rec.Extracted
	fmt.Println("\n=== Record ===")
	fmt.Printf("ID:           %s\n", rec.ID)
	fmt.Printf("Kind:         %s\n", rec.Kind)
	fmt.Printf("Status:       %s\n", rec.WorkflowStatus)
	fmt.Printf("Counterparty: %s\n", x.CounterpartyOrUnknown())
	fmt.Printf("Date:         %s\n", x.DocumentDate)
	fmt.Printf("Total:        %s %s\n", x.TotalAmount.StringFixed(2), x.Currency)
	if x.TaxAmount != nil {
		fmt.Printf("Tax:          %s\n", x.TaxAmount.StringFixed(2))
	}
	fmt.Printf("Confidence:   %d\n", x.ConfidenceScore)
	fmt.Printf("Payment:      %s (due %s)\n", domain.DisplayPaymentStatus(rec, now), rec.DueDate)
	fmt.Printf("Document:     %s\n", rec.DocumentRef)

	bad := make(map[int]bool)
	for _, i := range domain.LineItemMismatches(x) {
		bad[i] = true
	}
	fmt.Printf("\n=== Line items (%d) ===\n", len(x.LineItems))
	for i, li := range x.LineItems {
		mark := ""
		if bad[i] {
			mark = "  <- total does not match quantity x unit price"
		}
		fmt.Printf("%d. %s: %s x %s = %s%s\n", i+1, li.Description,
			li.Quantity.String(), li.UnitPrice.StringFixed(2), li.Total.StringFixed(2), mark)
	}
	for k, v := range x.CustomFields {
		fmt.Printf("%s: %v\n", k, v)
	}
	fmt.Println()
}

func runReview(ctx context.Context, a *app.App, log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("review", flag.ExitOnError)
	id := fs.String("id", "", "Save the record with this ID, applying any edits below")
	approve := fs.String("approve", "", "Confirm the record with this ID as extracted")
	var edits reviewEdits
	fs.StringVar(&edits.kind, "kind", "", "Corrected kind: INCOME or EXPENSE")
	fs.StringVar(&edits.total, "total", "", "Corrected total amount")
	fs.StringVar(&edits.counterparty, "counterparty", "", "Corrected counterparty name")
	fs.Parse(args)

	target := *id
	if target == "" {
		target = *approve
	}
	if target == "" && !edits.empty() {
		log.Fatal().Msg("Usage: cli review -id ID [-kind KIND] [-total AMOUNT] [-counterparty NAME]")
	}

	if target != "" {
		rec, err := a.Workflow.Record(target)
		if err != nil {
			log.Fatal().Err(err).Msg("Record not found")
		}
		kind, data, err := edits.apply(rec)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid edit")
		}
		res, err := a.Workflow.Save(ctx, rec.ID, kind, data)
		if err != nil {
			log.Fatal().Err(err).Msg("Save failed")
		}
		fmt.Printf("Record %s is %s\n", res.Record.ID, res.Record.WorkflowStatus)
		if res.Next != nil {
			fmt.Printf("Next for review: %s (%s)\n", res.Next.ID, res.Next.Extracted.CounterpartyOrUnknown())
		} else {
			fmt.Println("Review queue is empty.")
		}
		return
	}

	active, ok := a.Workflow.Active()
	if !ok {
		fmt.Println("Nothing to review.")
		return
	}
	printRecord(active, a.Workflow.Now())
}

// reviewEdits holds the corrections given on the review command line.
// Empty values keep what was extracted.
type reviewEdits struct {
	kind         string
	total        string
	counterparty string
}

func (e reviewEdits) empty() bool {
	return e.kind == "" && e.total == "" && e.counterparty == ""
}

func (e reviewEdits) apply(rec domain.FinancialRecord) (domain.Kind, domain.ExtractedData, error) {
	kind := rec.Kind
	data := rec.Extracted

	if e.kind != "" {
		k, err := domain.ParseKind(e.kind)
		if err != nil {
			return "", domain.ExtractedData{}, err
		}
		kind = k
	}
	if e.total != "" {
		total, err := decimal.NewFromString(strings.TrimSpace(e.total))
		if err != nil {
			return "", domain.ExtractedData{}, fmt.Errorf("%w: total %q is not a number", domain.ErrInvalidInput, e.total)
		}
		data.TotalAmount = total
	}
	if name := strings.TrimSpace(e.counterparty); name != "" {
		data.CounterpartyName = name
	}
	return kind, data, nil
}

func runPay(ctx context.Context, a *app.App, log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("pay", flag.ExitOnError)
	id := fs.String("id", "", "Record ID")
	status := fs.String("status", "PAID", "UNPAID, PARTIAL or PAID")
	due := fs.String("due", "", "Due date YYYY-MM-DD")
	fs.Parse(args)

	if *id == "" {
		log.Fatal().Msg("Usage: cli pay -id ID [-status PAID] [-due YYYY-MM-DD]")
	}
	ps, err := domain.ParsePaymentStatus(*status)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid payment status")
	}
	rec, err := a.Workflow.SetPayment(ctx, *id, ps, *due)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set payment")
	}
	fmt.Printf("Record %s payment is %s\n", rec.ID, domain.DisplayPaymentStatus(rec, a.Workflow.Now()))
}

func runDelete(ctx context.Context, a *app.App, log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	id := fs.String("id", "", "Record ID")
	fs.Parse(args)

	if *id == "" {
		log.Fatal().Msg("Usage: cli delete -id ID")
	}
	if err := a.Workflow.Delete(ctx, *id); err != nil {
		log.Fatal().Err(err).Msg("Delete failed")
	}
	fmt.Printf("Deleted %s\n", *id)
}

func dashboardFlags() (*flag.FlagSet, *int) {
	fs := flag.NewFlagSet("dashboard", flag.ExitOnError)
	window := fs.Int("window", aggregation.DefaultWindow, "Number of most recent MM-DD date buckets in the time series")
	return fs, window
}

func runDashboard(ctx context.Context, a *app.App, log zerolog.Logger, args []string) {
	fs, window := dashboardFlags()
	fs.Parse(args)

	d := a.Workflow.Dashboard(*window)
	fmt.Println("\n=== Dashboard ===")
	fmt.Printf("Records:        %d (%d awaiting review)\n", d.RecordCount, d.PendingReview)
	fmt.Printf("Total income:   %s\n", d.TotalIncome.StringFixed(2))
	fmt.Printf("Total expense:  %s\n", d.TotalExpense.StringFixed(2))
	fmt.Printf("Net flow:       %s\n", d.NetFlow.StringFixed(2))

	fmt.Println("\n=== Recent ===")
	for _, p := range d.Series {
		fmt.Printf("%s  income %12s  expense %12s\n", p.Bucket, p.Income.StringFixed(2), p.Expense.StringFixed(2))
	}
	printTop("Top vendors", d.TopVendors)
	printTop("Top customers", d.TopCustomers)
	fmt.Println()
}

func printTop(title string, list []aggregation.CounterpartyTotal) {
	fmt.Printf("\n=== %s ===\n", title)
	for i, c := range list {
		fmt.Printf("%d. %-30s %12s\n", i+1, c.Name, c.Value.StringFixed(2))
	}
}

func filterFlags(fs *flag.FlagSet) func() aggregation.Filter {
	q := fs.String("q", "", "Counterparty search")
	from := fs.String("from", "", "From date YYYY-MM-DD")
	to := fs.String("to", "", "To date YYYY-MM-DD")
	kind := fs.String("kind", "", "INCOME or EXPENSE")
	payment := fs.String("payment", "", "UNPAID, PARTIAL, PAID or OVERDUE")

	return func() aggregation.Filter {
		f := aggregation.Filter{Search: *q, From: *from, To: *to}
		for _, d := range []string{*from, *to} {
			if d == "" {
				continue
			}
			if _, err := time.Parse(domain.DateLayout, d); err != nil {
				fmt.Fprintf(os.Stderr, "invalid date %q, expected YYYY-MM-DD\n", d)
				os.Exit(2)
			}
		}
		var err error
		if *kind != "" {
			if f.Kind, err = domain.ParseKind(*kind); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(2)
			}
		}
		if *payment != "" {
			if f.Payment, err = domain.ParsePaymentStatus(*payment); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(2)
			}
		}
		return f
	}
}

func runTransactions(ctx context.Context, a *app.App, log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("transactions", flag.ExitOnError)
	filter := filterFlags(fs)
	fs.Parse(args)

	view := a.Workflow.Transactions(filter())
	for _, row := range view.Rows {
		rec := row.Record
		fmt.Printf("%-10s %-7s %-30s %12s %-8s %s\n",
			rec.Extracted.DocumentDate, rec.Kind, rec.Extracted.CounterpartyOrUnknown(),
			row.Signed.StringFixed(2), row.PaymentStatus, rec.ID)
	}
	fmt.Printf("\n%d transactions, net value %s\n", view.Count, view.Net.StringFixed(2))
}

func runInsights(ctx context.Context, a *app.App, log zerolog.Logger, args []string) {
	text, err := a.Workflow.Insights(ctx)
	if err != nil {
		log.Fatal().Err(err).Str("error_kind", string(domain.KindOf(err))).Msg("Insights unavailable")
	}
	fmt.Println(text)
}

func runReport(ctx context.Context, a *app.App, log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	kind := fs.String("type", "statement", "invoice, statement or xlsx")
	id := fs.String("id", "", "Record ID (invoice only)")
	out := fs.String("out", "", "Output file (default: stdout)")
	filter := filterFlags(fs)
	fs.Parse(args)

	var w io.Writer = os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			log.Fatal().Err(err).Str("out", *out).Msg("Failed to create output file")
		}
		defer f.Close()
		w = f
	}

	org := a.Profile.Get()
	var err error
	switch *kind {
	case "invoice":
		rec, rerr := a.Workflow.Record(*id)
		if rerr != nil {
			log.Fatal().Err(rerr).Msg("Record not found")
		}
		err = reports.InvoicePDF(w, rec, org, a.Workflow.Now())
	case "statement":
		f := filter()
		err = reports.StatementPDF(w, a.Workflow.Transactions(f), org, f.From, f.To, a.Workflow.Now())
	case "xlsx":
		err = reports.TransactionsXLSX(w, a.Workflow.Transactions(filter()))
	default:
		log.Fatal().Str("type", *kind).Msg("Unknown report type")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Report failed")
	}
	if *out != "" {
		fmt.Fprintf(os.Stderr, "Wrote %s\n", *out)
	}
}

func runExportBQ(ctx context.Context, a *app.App, log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("export-bq", flag.ExitOnError)
	project := fs.String("project", a.Config.BigQuery.Project, "Google Cloud project")
	dataset := fs.String("dataset", a.Config.BigQuery.Dataset, "BigQuery dataset")
	fs.Parse(args)

	wh, err := bqexport.NewBigQueryWarehouse(ctx, *project, *dataset)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize BigQuery warehouse")
	}
	defer wh.Close()

	res, err := bqexport.NewExporter(wh, &log).ExportVerified(ctx, a.Workflow.Records())
	if err != nil {
		log.Fatal().Err(err).Msg("Export failed")
	}
	fmt.Printf("Exported %d, line items repaired %d, already present %d, awaiting review %d\n", res.Exported, res.Repaired, res.Skipped, res.Unverified)
}

func runSyncNotion(ctx context.Context, a *app.App, log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("sync-notion", flag.ExitOnError)
	token := fs.String("notion-token", a.Config.Notion.Token, "Notion API token")
	dbID := fs.String("notion-db-id", a.Config.Notion.DatabaseID, "Notion database ID")
	dryRun := fs.Bool("dry-run", false, "Dry run mode - preview changes without syncing")
	fs.Parse(args)

	client, err := notionsync.NewNotionClient(*token)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize Notion client")
	}

	res, err := notionsync.SyncRecords(ctx, a.Workflow.Records(), client, *dbID, *dryRun)
	if err != nil {
		log.Fatal().Err(err).Msg("Sync failed")
	}
	fmt.Printf("Created %d, updated %d, unchanged %d, archived %d, failed %d\n", res.Created, res.Updated, res.Skipped, res.Archived, res.Failed)
}
