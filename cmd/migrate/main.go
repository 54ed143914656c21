package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dvloznov/billflow/internal/bqexport"
	"github.com/dvloznov/billflow/internal/config"
	"github.com/dvloznov/billflow/internal/logger"
)

func main() {
	cfg, err := config.Load(os.Getenv("BILLFLOW_CONFIG"))
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log := logger.NewWithLevel(cfg.Log.Level)

	projectID := flag.String("project", cfg.BigQuery.Project, "GCP project ID")
	datasetID := flag.String("dataset", cfg.BigQuery.Dataset, "BigQuery dataset ID")
	appliedBy := flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
	dir := flag.String("migrations", "", "Directory of NNNN_name.sql files (default: built-in export schema)")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	wh, err := bqexport.NewBigQueryWarehouse(ctx, *projectID, *datasetID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to BigQuery")
	}
	defer wh.Close()

	fsys := bqexport.Migrations()
	if *dir != "" {
		fsys = os.DirFS(*dir)
	}

	log.Info().Str("project", *projectID).Str("dataset", *datasetID).Msg("Applying migrations")

	n, err := bqexport.NewMigrator(wh, *appliedBy, &log).Apply(ctx, fsys)
	if err != nil {
		log.Fatal().Err(err).Int("applied", n).Msg("Migration failed")
	}

	if n == 0 {
		fmt.Println("No new migrations to apply. Dataset is up to date.")
	} else {
		fmt.Printf("Successfully applied %d migration(s)\n", n)
	}
}
