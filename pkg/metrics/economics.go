package metrics

import (
	"sort"

	"saas-growth/pkg/models"

	"gonum.org/v1/gonum/stat"
)

// UnitEconomics is the LTV and CAC position of one user.
type UnitEconomics struct {
	UserID         string
	Channel        models.Channel
	CurrentPlan    models.Plan
	CAC            float64
	LifetimeDays   int
	LifetimeMonths float64
	MonthlyPrice   float64
	LTV            float64
	LTVCACRatio    float64
	Churned        bool
}

// UnitEconomicsByUser values each user at current plan price times lifetime
// in 30-day months.
func UnitEconomicsByUser(users []models.User) []UnitEconomics {
	out := make([]UnitEconomics, 0, len(users))
	for _, u := range users {
		price := u.CurrentPlan.Price()
		months := float64(u.LifetimeDays) / 30.0
		ltv := price * months
		out = append(out, UnitEconomics{
			UserID:         u.UserID,
			Channel:        u.AcquisitionChannel,
			CurrentPlan:    u.CurrentPlan,
			CAC:            u.CAC,
			LifetimeDays:   u.LifetimeDays,
			LifetimeMonths: Round2(months),
			MonthlyPrice:   price,
			LTV:            Round2(ltv),
			LTVCACRatio:    Round2(SafeDivide(ltv, u.CAC)),
			Churned:        u.Churned,
		})
	}
	return out
}

// EconomicsSummary averages unit economics over a segment.
type EconomicsSummary struct {
	Segment           string
	Users             int
	AvgCAC            float64
	AvgLTV            float64
	AvgLTVCACRatio    float64
	MedianLTVCACRatio float64
}

// SummarizeEconomics segments overall, by channel and by plan.
func SummarizeEconomics(rows []UnitEconomics) []EconomicsSummary {
	out := []EconomicsSummary{summarizeEconomics("Overall", rows)}
	for _, ch := range models.Channels {
		var seg []UnitEconomics
		for _, r := range rows {
			if r.Channel == ch {
				seg = append(seg, r)
			}
		}
		if len(seg) > 0 {
			out = append(out, summarizeEconomics("Channel: "+string(ch), seg))
		}
	}
	for _, p := range models.Plans {
		var seg []UnitEconomics
		for _, r := range rows {
			if r.CurrentPlan == p {
				seg = append(seg, r)
			}
		}
		if len(seg) > 0 {
			out = append(out, summarizeEconomics("Plan: "+string(p), seg))
		}
	}
	return out
}

func summarizeEconomics(segment string, rows []UnitEconomics) EconomicsSummary {
	s := EconomicsSummary{Segment: segment, Users: len(rows)}
	if len(rows) == 0 {
		return s
	}
	cac := make([]float64, len(rows))
	ltv := make([]float64, len(rows))
	ratios := make([]float64, len(rows))
	for i, r := range rows {
		cac[i], ltv[i], ratios[i] = r.CAC, r.LTV, r.LTVCACRatio
	}
	s.AvgCAC = stat.Mean(cac, nil)
	s.AvgLTV = stat.Mean(ltv, nil)
	s.AvgLTVCACRatio = stat.Mean(ratios, nil)
	s.MedianLTVCACRatio = median(ratios)
	return s
}

// median averages the two middle values of an even-length sample.
func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
