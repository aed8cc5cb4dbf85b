// Package forecast projects MRR and customer counts twelve months forward
// under base, optimistic and pessimistic scenarios.
package forecast

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"saas-growth/pkg/models"
)

// Horizon is the number of projected months per scenario.
const Horizon = 12

var (
	ErrInsufficientHistory = errors.New("at least two months of history are required")
	ErrInvalidGrowth       = errors.New("fitted growth rate is not finite")
	ErrInvalidChurnRate    = errors.New("churn rate must be within [0, 1]")
)

// Scenario scales the fitted growth rate and the base churn rate.
type Scenario struct {
	Name             string
	GrowthMultiplier float64
	ChurnMultiplier  float64
}

var (
	Base        = Scenario{Name: "base", GrowthMultiplier: 1.0, ChurnMultiplier: 1.0}
	Optimistic  = Scenario{Name: "optimistic", GrowthMultiplier: 1.5, ChurnMultiplier: 0.8}
	Pessimistic = Scenario{Name: "pessimistic", GrowthMultiplier: 0.5, ChurnMultiplier: 1.5}
)

// GrossAdds selects how new customers are estimated each month.
type GrossAdds int

const (
	// GrossAddsReference keeps the historical formula new = floor(c*g) + churned,
	// which counts churned customers as new ones.
	GrossAddsReference GrossAdds = iota
	// GrossAddsCorrected uses new = floor(c*(g+churn)).
	GrossAddsCorrected
)

type options struct {
	grossAdds GrossAdds
}

// Option configures a projection.
type Option func(*options)

// WithGrossAdds selects the new-customer formula.
func WithGrossAdds(mode GrossAdds) Option {
	return func(o *options) { o.grossAdds = mode }
}

// Fit is the starting point of a projection: the last observed month and the
// mean month-over-month MRR growth of the history.
type Fit struct {
	Month      time.Time
	MRR        float64
	Customers  int
	GrowthRate float64
	Months     int // observed months used for the fit
}

// FitGrowth averages month-over-month MRR growth. A month whose predecessor
// has zero MRR contributes a rate of 0.
func FitGrowth(history []models.MonthPoint) (Fit, error) {
	if len(history) < 2 {
		return Fit{}, fmt.Errorf("%w: got %d", ErrInsufficientHistory, len(history))
	}
	sorted := make([]models.MonthPoint, len(history))
	copy(sorted, history)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Month.Before(sorted[j].Month) })

	sum := 0.0
	for i := 1; i < len(sorted); i++ {
		sum += growthRate(sorted[i].MRR, sorted[i-1].MRR)
	}
	avg := sum / float64(len(sorted)-1)
	if math.IsNaN(avg) || math.IsInf(avg, 0) {
		return Fit{}, fmt.Errorf("%w: %v", ErrInvalidGrowth, avg)
	}

	last := sorted[len(sorted)-1]
	return Fit{
		Month:      last.Month,
		MRR:        last.MRR,
		Customers:  last.ActiveCustomers,
		GrowthRate: avg,
		Months:     len(sorted),
	}, nil
}

// Projection holds the three scenario forecasts built from one fit.
type Projection struct {
	Fit           Fit
	BaseChurnRate float64
	Base          []models.ForecastPoint
	Optimistic    []models.ForecastPoint
	Pessimistic   []models.ForecastPoint
}

// Project fits history and projects every scenario from the fitted point.
func Project(history []models.MonthPoint, baseChurnRate float64, opts ...Option) (Projection, error) {
	fit, err := FitGrowth(history)
	if err != nil {
		return Projection{}, err
	}
	return ProjectFit(fit, baseChurnRate, opts...)
}

// ProjectFit projects every scenario from an existing fit.
func ProjectFit(fit Fit, baseChurnRate float64, opts ...Option) (Projection, error) {
	if math.IsNaN(baseChurnRate) || baseChurnRate < 0 || baseChurnRate > 1 {
		return Projection{}, fmt.Errorf("%w: got %v", ErrInvalidChurnRate, baseChurnRate)
	}
	if math.IsNaN(fit.GrowthRate) || math.IsInf(fit.GrowthRate, 0) {
		return Projection{}, fmt.Errorf("%w: %v", ErrInvalidGrowth, fit.GrowthRate)
	}
	o := options{grossAdds: GrossAddsReference}
	for _, opt := range opts {
		opt(&o)
	}

	run := func(s Scenario) []models.ForecastPoint {
		return ProjectForward(fit, s.Name, fit.GrowthRate*s.GrowthMultiplier,
			baseChurnRate*s.ChurnMultiplier, Horizon, o.grossAdds)
	}
	return Projection{
		Fit:           fit,
		BaseChurnRate: baseChurnRate,
		Base:          run(Base),
		Optimistic:    run(Optimistic),
		Pessimistic:   run(Pessimistic),
	}, nil
}

// ProjectForward compounds growth and churn for months steps from start.
func ProjectForward(start Fit, scenario string, growth, churn float64, months int, mode GrossAdds) []models.ForecastPoint {
	out := make([]models.ForecastPoint, 0, months)
	mrr := start.MRR
	customers := start.Customers
	month := start.Month

	for i := 0; i < months; i++ {
		month = month.AddDate(0, 1, 0)

		churned := int(math.Floor(float64(customers) * churn))
		var added int
		switch mode {
		case GrossAddsCorrected:
			added = int(math.Floor(float64(customers) * (growth + churn)))
		default:
			added = int(math.Floor(float64(customers)*growth)) + churned
		}
		customers = max(0, customers-churned+added)
		mrr *= 1 + growth

		out = append(out, models.ForecastPoint{
			Scenario:         scenario,
			Month:            month,
			MRR:              mrr,
			ARR:              mrr * 12,
			ActiveCustomers:  customers,
			NewCustomers:     added,
			ChurnedCustomers: churned,
			NetNewCustomers:  added - churned,
		})
	}
	return out
}

// Final returns the last projected month of the named scenario.
func (p Projection) Final(scenario string) (models.ForecastPoint, bool) {
	var rows []models.ForecastPoint
	switch scenario {
	case Base.Name:
		rows = p.Base
	case Optimistic.Name:
		rows = p.Optimistic
	case Pessimistic.Name:
		rows = p.Pessimistic
	}
	if len(rows) == 0 {
		return models.ForecastPoint{}, false
	}
	return rows[len(rows)-1], true
}

// All concatenates the scenarios in base, optimistic, pessimistic order.
func (p Projection) All() []models.ForecastPoint {
	out := make([]models.ForecastPoint, 0, len(p.Base)+len(p.Optimistic)+len(p.Pessimistic))
	out = append(out, p.Base...)
	out = append(out, p.Optimistic...)
	return append(out, p.Pessimistic...)
}

func growthRate(current, previous float64) float64 {
	if previous == 0 {
		return 0
	}
	return (current - previous) / previous
}
