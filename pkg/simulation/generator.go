// Package simulation generates synthetic SaaS users with a resolved lifecycle:
// sign-up, activation, conversion, plan changes and churn.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"saas-growth/pkg/models"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

var (
	ErrInvalidPopulation = errors.New("population size must be positive")
	ErrInvalidWindow     = errors.New("window end must be after window start")
)

// Window is the simulated date range, both ends inclusive.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow truncates both bounds to UTC midnight.
func NewWindow(start, end time.Time) Window {
	return Window{Start: day(start), End: day(end)}
}

// Validate rejects zero and non-increasing windows.
func (w Window) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return fmt.Errorf("%w: window bounds are required", ErrInvalidWindow)
	}
	if !w.End.After(w.Start) {
		return fmt.Errorf("%w: start=%s end=%s", ErrInvalidWindow,
			w.Start.Format(time.DateOnly), w.End.Format(time.DateOnly))
	}
	return nil
}

// Days is the window length in whole days.
func (w Window) Days() int {
	return daysBetween(w.Start, w.End)
}

// Generator produces user tables. The zero value generates sequentially with seed 0.
type Generator struct {
	Seed    int64
	Workers int
	// Progress, when set, is called once per resolved user. It must be safe
	// for concurrent use when Workers > 1.
	Progress func()
}

// Generate resolves population users over w. Output is ordered by user index
// and identical for a given seed whatever the worker count.
func (g Generator) Generate(ctx context.Context, population int, w Window) ([]models.User, error) {
	if population <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidPopulation, population)
	}
	w = NewWindow(w.Start, w.End)
	if err := w.Validate(); err != nil {
		return nil, err
	}

	users := make([]models.User, population)
	resolveRange := func(ctx context.Context, from, to int) error {
		for i := from; i < to; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			users[i] = ResolveUser(i, w, NewUserSource(g.Seed, i))
			if g.Progress != nil {
				g.Progress()
			}
		}
		return nil
	}

	workers := g.Workers
	if workers <= 1 {
		if err := resolveRange(ctx, 0, population); err != nil {
			return nil, err
		}
		return users, nil
	}

	eg, egCtx := errgroup.WithContext(ctx)
	chunk := (population + workers - 1) / workers
	for from := 0; from < population; from += chunk {
		to := min(from+chunk, population)
		eg.Go(func() error { return resolveRange(egCtx, from, to) })
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return users, nil
}

// UserID formats the ordinal identifier of the user at index.
func UserID(index int) string {
	return fmt.Sprintf("U%06d", index+1)
}

// ResolveUser resolves every lifecycle field of one user from rng. Each step
// depends only on fields resolved before it.
func ResolveUser(index int, w Window, rng Source) models.User {
	signUp := w.Start.AddDate(0, 0, int(signUpFraction(rng)*float64(w.Days())))
	channel := pickChannel(rng)
	initial := pickInitialPlan(rng)

	u := models.User{
		UserID:             UserID(index),
		SignUpDate:         signUp,
		AcquisitionChannel: channel,
		InitialPlan:        initial,
		CurrentPlan:        initial,
		Activated:          rng.Float64() < activationRate,
	}

	// latest lifecycle event; later events are delayed from it
	last := signUp

	if initial == models.PlanFree && u.Activated && rng.Float64() < conversionRate {
		date := signUp.AddDate(0, 0, delayDays(rng, conversionMean))
		paid := models.PlanPro
		if rng.Float64() < convertBasicShare {
			paid = models.PlanBasic
		}
		if !date.After(w.End) {
			u.ConvertedToPaid = true
			u.ConversionDate = &date
			u.PlanChanges = append(u.PlanChanges, models.PlanChange{
				Kind: models.ChangeConversion, Date: date, From: models.PlanFree, To: paid,
			})
			u.CurrentPlan = paid
			last = date
		}
	}

	if u.ConvertedToPaid {
		if u.CurrentPlan == models.PlanBasic && rng.Float64() < upgradeRate {
			date := u.ConversionDate.AddDate(0, 0, delayDays(rng, upgradeMean))
			if !date.After(w.End) {
				u.PlanChanges = append(u.PlanChanges, models.PlanChange{
					Kind: models.ChangeUpgrade, Date: date, From: models.PlanBasic, To: models.PlanPro,
				})
				u.NumUpgrades++
				u.CurrentPlan = models.PlanPro
				last = date
			}
		}
		if u.CurrentPlan == models.PlanPro && rng.Float64() < downgradeRate {
			date := last.AddDate(0, 0, delayDays(rng, downgradeMean))
			if !date.After(w.End) {
				u.PlanChanges = append(u.PlanChanges, models.PlanChange{
					Kind: models.ChangeDowngrade, Date: date, From: models.PlanPro, To: models.PlanBasic,
				})
				u.NumDowngrades++
				u.CurrentPlan = models.PlanBasic
				last = date
			}
		}
	}

	u.LifetimeDays = daysBetween(signUp, w.End)
	profile := churnProfileFor(u.CurrentPlan, u.Activated)
	if rng.Float64() < profile.probability {
		date := last.AddDate(0, 0, delayDays(rng, profile.meanDays))
		if !date.After(w.End) {
			u.Churned = true
			u.ChurnDate = &date
			u.LifetimeDays = daysBetween(signUp, date)
		}
	}

	u.CAC = drawCAC(rng, channel)
	return u
}

func pickChannel(rng Source) models.Channel {
	r := rng.Float64()
	acc := 0.0
	for _, cw := range channelWeights {
		acc += cw.weight
		if r < acc {
			return cw.channel
		}
	}
	return channelWeights[len(channelWeights)-1].channel
}

func pickInitialPlan(rng Source) models.Plan {
	if rng.Float64() < freeShare {
		return models.PlanFree
	}
	if rng.Float64() < basicShare {
		return models.PlanBasic
	}
	return models.PlanPro
}

func drawCAC(rng Source, channel models.Channel) float64 {
	dist := channelCAC[channel]
	cac := math.Max(0, dist.mean+dist.std*rng.NormFloat64())
	return decimal.NewFromFloat(cac).Round(2).InexactFloat64()
}

func day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
