package forecast

import (
	"errors"
	"math"
	"testing"
	"time"

	"saas-growth/pkg/models"
)

func month(y int, m time.Month) time.Time {
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

func TestFitGrowth_AveragesMonthOverMonth(t *testing.T) {
	history := []models.MonthPoint{
		{Month: month(2024, 3), MRR: 121, ActiveCustomers: 12},
		{Month: month(2024, 1), MRR: 100, ActiveCustomers: 10},
		{Month: month(2024, 2), MRR: 110, ActiveCustomers: 11},
	}
	fit, err := FitGrowth(history)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(fit.GrowthRate-0.10) > 1e-12 {
		t.Fatalf("growth = %v, want 0.10", fit.GrowthRate)
	}
	if !fit.Month.Equal(month(2024, 3)) || fit.MRR != 121 || fit.Customers != 12 {
		t.Fatalf("fit should start from the last month, got %+v", fit)
	}
}

func TestFitGrowth_ZeroPreviousMRR(t *testing.T) {
	history := []models.MonthPoint{
		{Month: month(2024, 1), MRR: 0},
		{Month: month(2024, 2), MRR: 100},
		{Month: month(2024, 3), MRR: 150},
	}
	fit, err := FitGrowth(history)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(fit.GrowthRate-0.25) > 1e-12 {
		t.Fatalf("growth = %v, want 0.25", fit.GrowthRate)
	}
}

func TestProject_InsufficientHistory(t *testing.T) {
	for _, h := range [][]models.MonthPoint{
		nil,
		{{Month: month(2024, 1), MRR: 100, ActiveCustomers: 1}},
	} {
		if _, err := Project(h, 0.05); !errors.Is(err, ErrInsufficientHistory) {
			t.Fatalf("len=%d: expected ErrInsufficientHistory, got %v", len(h), err)
		}
	}
}

func TestProject_InvalidChurnRate(t *testing.T) {
	fit := Fit{Month: month(2024, 1), MRR: 1, Customers: 1, GrowthRate: 0.05}
	for _, rate := range []float64{-0.1, 1.5, math.NaN()} {
		if _, err := ProjectFit(fit, rate); !errors.Is(err, ErrInvalidChurnRate) {
			t.Fatalf("rate=%v: expected ErrInvalidChurnRate, got %v", rate, err)
		}
	}
}

func TestProjectFit_ScenarioOrdering(t *testing.T) {
	fit := Fit{Month: month(2024, 12), MRR: 100000, Customers: 1000, GrowthRate: 0.05}
	p, err := ProjectFit(fit, 0.05)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	base, _ := p.Final(Base.Name)
	opt, _ := p.Final(Optimistic.Name)
	pess, _ := p.Final(Pessimistic.Name)
	if !(opt.ARR > base.ARR && base.ARR > pess.ARR) {
		t.Fatalf("expected optimistic > base > pessimistic, got %.2f / %.2f / %.2f", opt.ARR, base.ARR, pess.ARR)
	}
	want := 100000 * math.Pow(1.05, 12) * 12
	if math.Abs(base.ARR-want) > 1e-6 {
		t.Fatalf("base ARR = %v, want %v", base.ARR, want)
	}
}

func TestProjectFit_RowsAndARR(t *testing.T) {
	fit := Fit{Month: month(2024, 11), MRR: 5000, Customers: 100, GrowthRate: 0.03}
	p, err := ProjectFit(fit, 0.05)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, rows := range [][]models.ForecastPoint{p.Base, p.Optimistic, p.Pessimistic} {
		if len(rows) != Horizon {
			t.Fatalf("got %d rows, want %d", len(rows), Horizon)
		}
		for i, r := range rows {
			if r.ARR != r.MRR*12 {
				t.Fatalf("%s row %d: arr %v != mrr*12 %v", r.Scenario, i, r.ARR, r.MRR*12)
			}
			if r.NetNewCustomers != r.NewCustomers-r.ChurnedCustomers {
				t.Fatalf("%s row %d: net new mismatch", r.Scenario, i)
			}
			if r.ActiveCustomers < 0 {
				t.Fatalf("%s row %d: negative customers", r.Scenario, i)
			}
		}
		if !rows[0].Month.Equal(month(2024, 12)) || !rows[1].Month.Equal(month(2025, 1)) {
			t.Fatalf("months should advance one calendar month: %v, %v", rows[0].Month, rows[1].Month)
		}
	}
	if got := len(p.All()); got != 3*Horizon {
		t.Fatalf("All() = %d rows", got)
	}
	if p.All()[Horizon].Scenario != Optimistic.Name {
		t.Fatalf("All() order should be base, optimistic, pessimistic")
	}
}

func TestProjectForward_ReferenceGrossAdds(t *testing.T) {
	start := Fit{Month: month(2024, 1), MRR: 1000, Customers: 1000}
	rows := ProjectForward(start, "base", 0.05, 0.05, 1, GrossAddsReference)
	r := rows[0]
	// churned = 50, new = 50 + 50, customers = 1000 - 50 + 100
	if r.ChurnedCustomers != 50 || r.NewCustomers != 100 || r.ActiveCustomers != 1050 || r.NetNewCustomers != 50 {
		t.Fatalf("unexpected reference row: %+v", r)
	}
	if math.Abs(r.MRR-1050) > 1e-9 {
		t.Fatalf("mrr = %v, want 1050", r.MRR)
	}
}

func TestProjectForward_CorrectedGrossAdds(t *testing.T) {
	start := Fit{Month: month(2024, 1), MRR: 1000, Customers: 1000}
	rows := ProjectForward(start, "base", 0.05, 0.02, 1, GrossAddsCorrected)
	r := rows[0]
	// churned = 20, new = floor(1000 * 0.07) = 70
	if r.ChurnedCustomers != 20 || r.NewCustomers != 70 || r.ActiveCustomers != 1050 {
		t.Fatalf("unexpected corrected row: %+v", r)
	}
}

func TestProject_WithGrossAddsOption(t *testing.T) {
	history := []models.MonthPoint{
		{Month: month(2024, 1), MRR: 1000, ActiveCustomers: 1000},
		{Month: month(2024, 2), MRR: 1001.6, ActiveCustomers: 1000},
	}
	// growth and churn of 0.16%: floor(1.6)+floor(1.6) = 2 against floor(3.2) = 3
	ref, err := Project(history, 0.0016)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cor, err := Project(history, 0.0016, WithGrossAdds(GrossAddsCorrected))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref.Base[0].NewCustomers != 2 || cor.Base[0].NewCustomers != 3 {
		t.Fatalf("new customers = %d (reference) / %d (corrected), want 2 / 3",
			ref.Base[0].NewCustomers, cor.Base[0].NewCustomers)
	}
	if ref.Base[0].MRR != cor.Base[0].MRR {
		t.Fatal("gross adds mode must not change MRR")
	}
}
