package metrics

import (
	"time"

	"saas-growth/pkg/forecast"
	"saas-growth/pkg/models"
)

// KPISnapshot is the one-row headline view of a run.
type KPISnapshot struct {
	SnapshotDate           time.Time
	CurrentMRR             float64
	CurrentARR             float64
	ActiveCustomers        int
	AvgMRRPerCustomer      float64
	MRRGrowthRateMonthly   float64 // percent
	ProjectedARR12m        float64
	ARRGrowthYoYProjected  float64 // percent
	AvgRevenuePerCustomer  float64
	EstimatedLTV           float64
	EstimatedCAC           float64
	LTVCACRatio            float64
	HighRiskCustomers      int
	ChurnRiskPct           float64
	TotalCustomersAnalyzed int
}

// KPIInputs gathers the tables a snapshot is computed from.
type KPIInputs struct {
	Reference  time.Time
	Projection forecast.Projection
	Users      []models.User
	Invoices   []models.Invoice
	Risks      []RiskSignal
}

// Snapshot computes headline KPIs. Estimated LTV is average invoiced revenue
// per customer over the base churn rate; estimated CAC is the mean generated CAC.
func Snapshot(in KPIInputs) KPISnapshot {
	fit := in.Projection.Fit
	currentARR := fit.MRR * 12
	projected := 0.0
	if last, ok := in.Projection.Final(forecast.Base.Name); ok {
		projected = last.ARR
	}

	customers := map[string]bool{}
	total := 0.0
	for _, inv := range in.Invoices {
		customers[inv.CustomerID] = true
		total += inv.Amount
	}
	avgRevenue := SafeDivide(total, float64(len(customers)))

	cac := 0.0
	for _, u := range in.Users {
		cac += u.CAC
	}
	avgCAC := SafeDivide(cac, float64(len(in.Users)))
	ltv := SafeDivide(avgRevenue, in.Projection.BaseChurnRate)

	high := 0
	for _, r := range in.Risks {
		if r.Risk == RiskHigh {
			high++
		}
	}

	return KPISnapshot{
		SnapshotDate:           in.Reference,
		CurrentMRR:             Round2(fit.MRR),
		CurrentARR:             Round2(currentARR),
		ActiveCustomers:        fit.Customers,
		AvgMRRPerCustomer:      Round2(SafeDivide(fit.MRR, float64(fit.Customers))),
		MRRGrowthRateMonthly:   Round2(fit.GrowthRate * 100),
		ProjectedARR12m:        Round2(projected),
		ARRGrowthYoYProjected:  Round2(SafeDivide(projected-currentARR, currentARR) * 100),
		AvgRevenuePerCustomer:  Round2(avgRevenue),
		EstimatedLTV:           Round2(ltv),
		EstimatedCAC:           Round2(avgCAC),
		LTVCACRatio:            Round2(SafeDivide(ltv, avgCAC)),
		HighRiskCustomers:      high,
		ChurnRiskPct:           Round2(SafeDivide(float64(high), float64(len(in.Risks))) * 100),
		TotalCustomersAnalyzed: len(in.Risks),
	}
}
