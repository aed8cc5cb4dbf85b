// Package calculator computes the average lifetime value of monthly sign-up
// cohorts from generated users and their invoices.
package calculator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"saas-growth/pkg/metrics"
	"saas-growth/pkg/models"

	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
)

// ErrInvalidMonth is returned for a cohort bound that is not a MMYYYY month.
var ErrInvalidMonth = errors.New("invalid cohort month")

// Config bounds the cohort report. Empty bounds default to the first sign-up
// month and the observation month.
type Config struct {
	StartMonthInclusive string // "MMYYYY"
	EndMonthInclusive   string // "MMYYYY"
	Observation         time.Time
	Verbose             bool
}

// Run computes one CohortResult per month. Revenue counts invoices dated up to
// the observation date.
func Run(ctx context.Context, users []models.User, invoices []models.Invoice, cfg Config, log zerolog.Logger) ([]models.CohortResult, error) {
	if len(users) == 0 {
		return nil, nil
	}
	start, end, err := bounds(users, cfg)
	if err != nil {
		return nil, err
	}

	cohortOf := make(map[string]time.Time, len(users))
	for _, u := range users {
		cohortOf[u.UserID] = metrics.MonthStart(u.SignUpDate)
	}
	type tally struct {
		clients, paying, invoices int
		revenue                   float64
		seen                      map[string]bool
	}
	byCohort := map[time.Time]*tally{}
	get := func(m time.Time) *tally {
		t, ok := byCohort[m]
		if !ok {
			t = &tally{seen: map[string]bool{}}
			byCohort[m] = t
		}
		return t
	}
	for _, u := range users {
		get(cohortOf[u.UserID]).clients++
	}
	for _, inv := range invoices {
		if inv.Date.After(cfg.Observation) {
			continue
		}
		m, ok := cohortOf[inv.CustomerID]
		if !ok {
			continue
		}
		t := get(m)
		t.invoices++
		t.revenue += inv.Amount
		if !t.seen[inv.CustomerID] {
			t.seen[inv.CustomerID] = true
			t.paying++
		}
	}

	months := metrics.MonthRange(start, end)
	bar := progressbar.DefaultSilent(int64(len(months)))
	if cfg.Verbose {
		bar = progressbar.Default(int64(len(months)), "cohorts")
	}

	results := make([]models.CohortResult, 0, len(months))
	for _, m := range months {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t := get(m)
		ltv := metrics.Round2(metrics.SafeDivide(t.revenue, float64(t.clients)))
		results = append(results, models.CohortResult{
			MonthYear:     formatMonth(m),
			LTVAvg:        ltv,
			CohortClients: t.clients,
			PayingClients: t.paying,
			InvoicesRead:  t.invoices,
		})

		_ = bar.Add(1)
		log.Debug().
			Str("cohort", formatMonth(m)).
			Float64("ltv", ltv).
			Int("clients", t.clients).
			Int("paying", t.paying).
			Int("invoices", t.invoices).
			Msg("cohort computed")
	}
	_ = bar.Finish()
	return results, nil
}

func bounds(users []models.User, cfg Config) (time.Time, time.Time, error) {
	start := metrics.MonthStart(users[0].SignUpDate)
	for _, u := range users[1:] {
		if m := metrics.MonthStart(u.SignUpDate); m.Before(start) {
			start = m
		}
	}
	end := metrics.MonthStart(cfg.Observation)

	var err error
	if cfg.StartMonthInclusive != "" {
		if start, err = parseMonth(cfg.StartMonthInclusive); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("start_month: %w", err)
		}
	}
	if cfg.EndMonthInclusive != "" {
		if end, err = parseMonth(cfg.EndMonthInclusive); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("end_month: %w", err)
		}
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end_month %s < start_month %s",
			ErrInvalidMonth, formatMonth(end), formatMonth(start))
	}
	return start, end, nil
}

// parseMonth("MMYYYY") -> first day of the month, UTC
func parseMonth(mmyyyy string) (time.Time, error) {
	if len(mmyyyy) != 6 {
		return time.Time{}, fmt.Errorf("%w: want MMYYYY (e.g. 012025), got %q", ErrInvalidMonth, mmyyyy)
	}
	for _, c := range mmyyyy {
		if c < '0' || c > '9' {
			return time.Time{}, fmt.Errorf("%w: non-digit in %q", ErrInvalidMonth, mmyyyy)
		}
	}
	month := int(mmyyyy[0]-'0')*10 + int(mmyyyy[1]-'0')
	year := int(mmyyyy[2]-'0')*1000 + int(mmyyyy[3]-'0')*100 + int(mmyyyy[4]-'0')*10 + int(mmyyyy[5]-'0')
	if month < 1 || month > 12 {
		return time.Time{}, fmt.Errorf("%w: month %02d", ErrInvalidMonth, month)
	}
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC), nil
}

func formatMonth(t time.Time) string {
	return fmt.Sprintf("%02d/%04d", int(t.Month()), t.Year())
}
