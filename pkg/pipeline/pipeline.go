// Package pipeline runs one end-to-end pass: generate users, derive metrics,
// project scenarios, then export and optionally persist the results.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"saas-growth/pkg/calculator"
	"saas-growth/pkg/config"
	"saas-growth/pkg/database"
	"saas-growth/pkg/export"
	"saas-growth/pkg/forecast"
	"saas-growth/pkg/metrics"
	"saas-growth/pkg/models"
	"saas-growth/pkg/simulation"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
)

// Result summarizes a completed run.
type Result struct {
	RunID    string
	Files    []string
	Manifest string
	KPI      metrics.KPISnapshot
	Cohorts  []models.CohortResult
}

// Run executes the pipeline for cfg. cfg is validated first.
func Run(ctx context.Context, cfg models.Config, log zerolog.Logger) (Result, error) {
	if err := config.Validate(cfg); err != nil {
		return Result{}, err
	}
	w, err := config.Window(cfg)
	if err != nil {
		return Result{}, err
	}
	runID := uuid.NewString()
	log = log.With().Str("run_id", runID).Logger()
	log.Info().Int("users", cfg.Users).Int64("seed", cfg.Seed).Int("workers", cfg.Workers).
		Str("start", cfg.Start).Str("end", cfg.End).Msg("pipeline started")

	gen := simulation.Generator{Seed: cfg.Seed, Workers: cfg.Workers}
	if cfg.Verbose {
		bar := progressbar.Default(int64(cfg.Users), "users")
		gen.Progress = func() { _ = bar.Add(1) }
		defer func() { _ = bar.Finish() }()
	}
	users, err := gen.Generate(ctx, cfg.Users, w)
	if err != nil {
		return Result{}, fmt.Errorf("generate: %w", err)
	}
	log.Info().Str("stage", "generate").Int("rows", len(users)).Msg("users resolved")

	events, tickets := simulation.GenerateActivity(users, w, cfg.Seed)
	invoices := metrics.Invoices(users, w.End)
	log.Info().Str("stage", "activity").Int("events", len(events)).Int("tickets", len(tickets)).
		Int("invoices", len(invoices)).Msg("activity derived")

	revenue := metrics.MonthlyRevenue(users, w.End)
	history := metrics.History(revenue)
	var opts []forecast.Option
	if cfg.CorrectedAdds {
		opts = append(opts, forecast.WithGrossAdds(forecast.GrossAddsCorrected))
	}
	projection, err := forecast.Project(history, cfg.ChurnRate, opts...)
	if err != nil {
		return Result{}, fmt.Errorf("project: %w", err)
	}
	log.Info().Str("stage", "forecast").Int("history_months", projection.Fit.Months).
		Float64("growth_rate", projection.Fit.GrowthRate).Bool("corrected_adds", cfg.CorrectedAdds).Msg("scenarios projected")

	cohorts, err := calculator.Run(ctx, users, invoices, calculator.Config{
		StartMonthInclusive: cfg.CohortFrom,
		EndMonthInclusive:   cfg.CohortTo,
		Observation:         w.End,
		Verbose:             cfg.Verbose,
	}, log)
	if err != nil {
		return Result{}, fmt.Errorf("cohort ltv: %w", err)
	}

	risks := metrics.ClassifyChurnRisk(users, events, tickets, w.End)
	kpi := metrics.Snapshot(metrics.KPIInputs{
		Reference:  w.End,
		Projection: projection,
		Users:      users,
		Invoices:   invoices,
		Risks:      risks,
	})
	bridge := metrics.MRRBridge(users, w.End)

	b := export.Bundle{
		Users:        users,
		Funnel:       metrics.Funnel(users),
		Conversion:   metrics.ConversionSummary(users),
		MonthlyChurn: metrics.MonthlyChurnRates(users, w.End),
		Cohorts:      metrics.CohortMatrix(users, w.End),
		Revenue:      revenue,
		Bridge:       bridge,
		NRR:          metrics.NetRevenueRetention(bridge),
		Economics:    metrics.SummarizeEconomics(metrics.UnitEconomicsByUser(users)),
		RFM:          metrics.RFM(invoices, events, w.End),
		Risks:        risks,
		KPI:          kpi,
		History:      history,
		Projection:   projection,
		CohortLTV:    cohorts,
		Events:       events,
		Tickets:      tickets,
		Invoices:     invoices,
	}
	files, err := export.WriteAll(cfg.OutputDir, b, log)
	if err != nil {
		return Result{}, fmt.Errorf("export: %w", err)
	}
	manifest, err := export.WriteChecksums(cfg.OutputDir, runID, cfg.Seed, export.VerifiedFiles)
	if err != nil {
		return Result{}, fmt.Errorf("checksums: %w", err)
	}
	files = append(files, filepath.Base(manifest))
	log.Info().Str("stage", "export").Int("files", len(files)).Str("dir", cfg.OutputDir).Msg("outputs written")

	if cfg.DSN != "" {
		if err := persist(ctx, cfg.DSN, database.Run{
			ID:        runID,
			Users:     users,
			Forecasts: projection.All(),
			KPI:       kpi,
		}, log); err != nil {
			return Result{}, fmt.Errorf("persist: %w", err)
		}
	}

	return Result{RunID: runID, Files: files, Manifest: manifest, KPI: kpi, Cohorts: cohorts}, nil
}

func persist(ctx context.Context, dsn string, run database.Run, log zerolog.Logger) error {
	db, driver, err := database.Open(dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping %s: %w", driver, err)
	}
	if err := database.SaveRun(ctx, db, run); err != nil {
		return err
	}
	log.Info().Str("stage", "persist").Str("driver", driver).Int("users", len(run.Users)).
		Int("forecasts", len(run.Forecasts)).Msg("run stored")
	return nil
}
