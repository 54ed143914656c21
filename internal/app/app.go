// Package app assembles the workflow and its collaborators from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dvloznov/billflow/internal/config"
	"github.com/dvloznov/billflow/internal/documents"
	"github.com/dvloznov/billflow/internal/domain"
	"github.com/dvloznov/billflow/internal/extraction"
	"github.com/dvloznov/billflow/internal/gemini"
	"github.com/dvloznov/billflow/internal/insights"
	"github.com/dvloznov/billflow/internal/kv"
	"github.com/dvloznov/billflow/internal/policy"
	"github.com/dvloznov/billflow/internal/profile"
	"github.com/dvloznov/billflow/internal/workflow"
	"github.com/rs/zerolog"
)

// App is a wired workflow plus the resources it owns.
type App struct {
	Config   *config.Config
	Workflow *workflow.Workflow
	Profile  *profile.Holder

	closers []io.Closer
}

// New builds the application from cfg and restores the persisted ledger.
// A missing Gemini key is not fatal: uploads and insights then fail with a
// configuration error while every other operation keeps working.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	a := &App{Config: cfg}

	holder, err := profile.NewHolder(cfg.Profile.Path)
	if err != nil {
		return nil, fmt.Errorf("app: load profile: %w", err)
	}
	holder.DefaultCustomFields(cfg.Review.CustomFields)
	a.Profile = holder

	var store kv.Store
	switch cfg.KV.Driver {
	case config.KVSQLite:
		db, err := kv.OpenSQLite(cfg.KV.Path, cfg.KV.LogMode)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		a.closers = append(a.closers, db)
		store = db
	default:
		store = kv.NewMemory()
	}

	docs, err := documents.New(ctx, domain.StorageProvider(cfg.Storage.Provider), cfg.Storage.Bucket)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("app: %w", err)
	}
	if c, ok := docs.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}

	gen, err := gemini.NewGenerator(ctx, cfg.Gemini.APIKey)
	if err != nil {
		if !errors.Is(err, domain.ErrConfiguration) {
			a.Close()
			return nil, fmt.Errorf("app: %w", err)
		}
		log.Warn().Err(err).Msg("Gemini is not configured; uploads and insights are unavailable")
		gen = nil
	}

	org := holder.Get()
	a.Workflow = workflow.New(workflow.Deps{
		Gateway: extraction.NewGeminiExtractor(gen,
			extraction.WithModel(cfg.Gemini.Model),
			extraction.WithOrganizationSource(holder.Get),
		),
		Advisor: insights.NewGeminiAdvisorWithCurrency(gen, cfg.Gemini.Model, func() string {
			return holder.Get().CurrencyOrDefault()
		}),
		Policy:             policy.New(cfg.Policy.ConfidenceThreshold),
		Documents:          docs,
		KV:                 store,
		CustomFieldsSource: holder.CustomFields,
		Logger:             &log,
	})

	if err := a.Workflow.Restore(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("app: %w", err)
	}

	log.Info().
		Str("kv_driver", cfg.KV.Driver).
		Str("storage_provider", cfg.Storage.Provider).
		Int("confidence_threshold", cfg.Policy.ConfidenceThreshold).
		Str("organization", org.Name).
		Msg("Application initialized")

	return a, nil
}

// Close releases the kv database and document store clients.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
