package export

import (
	"fmt"
	"os"

	"saas-growth/pkg/forecast"
	"saas-growth/pkg/metrics"
	"saas-growth/pkg/models"

	"github.com/rs/zerolog"
)

// File names of the exported artifacts.
const (
	UsersFile          = "users.csv"
	SampleUsersFile    = "sample_10_users.csv"
	FunnelFile         = "funnel_metrics.csv"
	ConversionFile     = "conversion_summary.csv"
	MonthlyChurnFile   = "monthly_churn.csv"
	CohortFile         = "cohort_retention.csv"
	RevenueFile        = "revenue_summary.csv"
	BridgeFile         = "mrr_bridge.csv"
	NRRFile            = "net_revenue_retention.csv"
	EconomicsFile      = "unit_economics.csv"
	CustomersFile      = "customer_metrics.csv"
	KPIFile            = "kpi_snapshot.csv"
	HistoryFile        = "historical_mrr.csv"
	BaseForecastFile   = "base_forecast.csv"
	ScenarioFile       = "scenario_summary.csv"
	CohortLTVFile      = "cohort_ltv.csv"
	EventsFile         = "events.csv"
	TicketsFile        = "support_tickets.csv"
	TransactionsFile   = "transactions.csv"
	SubscriptionsFile  = "subscriptions.csv"
	ReportFile         = "summary_report.txt"
	ChecksumFile       = "verify_checksums.txt"
	sampleUsers        = 10
	cohortColumnPrefix = "month_"
)

// VerifiedFiles are the outputs covered by the checksum manifest.
var VerifiedFiles = []string{KPIFile, BaseForecastFile, ScenarioFile}

// Bundle gathers every table of a run.
type Bundle struct {
	Users        []models.User
	Funnel       []metrics.FunnelStage
	Conversion   []metrics.SegmentSummary
	MonthlyChurn []metrics.MonthlyChurn
	Cohorts      []metrics.CohortRetention
	Revenue      []metrics.RevenueMonth
	Bridge       []metrics.BridgeMonth
	NRR          []metrics.NRRMonth
	Economics    []metrics.EconomicsSummary
	RFM          []metrics.RFMScore
	Risks        []metrics.RiskSignal
	KPI          metrics.KPISnapshot
	History      []models.MonthPoint
	Projection   forecast.Projection
	CohortLTV    []models.CohortResult
	Events       []models.ActivityEvent
	Tickets      []models.SupportTicket
	Invoices     []models.Invoice
}

type table struct {
	name   string
	header []string
	rows   [][]string
}

// WriteAll writes every CSV table and the summary report into dir and returns
// the written file names in write order.
func WriteAll(dir string, b Bundle, log zerolog.Logger) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	tables := []table{
		usersTable(UsersFile, b.Users),
		usersTable(SampleUsersFile, b.Users[:min(sampleUsers, len(b.Users))]),
		funnelTable(b.Funnel),
		conversionTable(b.Conversion),
		monthlyChurnTable(b.MonthlyChurn),
		cohortTable(b.Cohorts),
		revenueTable(b.Revenue),
		bridgeTable(b.Bridge),
		nrrTable(b.NRR),
		economicsTable(b.Economics),
		customersTable(b.RFM, b.Risks),
		kpiTable(b.KPI),
		historyTable(b.History),
		forecastTable(BaseForecastFile, b.Projection.Base),
		forecastTable(ScenarioFile, b.Projection.All()),
		cohortLTVTable(b.CohortLTV),
		eventsTable(b.Events),
		ticketsTable(b.Tickets),
		transactionsTable(b.Invoices),
		subscriptionsTable(metrics.Subscriptions(b.Users)),
	}

	written := make([]string, 0, len(tables)+1)
	for _, t := range tables {
		if err := writeCSV(dir, t.name, t.header, t.rows); err != nil {
			return written, err
		}
		log.Debug().Str("file", t.name).Int("rows", len(t.rows)).Msg("table written")
		written = append(written, t.name)
	}

	if err := WriteReport(dir, b); err != nil {
		return written, err
	}
	return append(written, ReportFile), nil
}

func usersTable(name string, users []models.User) table {
	t := table{name: name, header: []string{
		"user_id", "signup_date", "acquisition_channel", "initial_plan", "current_plan",
		"activated", "converted_to_paid", "conversion_date", "num_upgrades", "num_downgrades",
		"churned", "churn_date", "lifetime_days", "cac",
	}}
	for _, u := range users {
		t.rows = append(t.rows, []string{
			u.UserID, date(u.SignUpDate), string(u.AcquisitionChannel), string(u.InitialPlan), string(u.CurrentPlan),
			boolStr(u.Activated), boolStr(u.ConvertedToPaid), optDate(u.ConversionDate),
			itoa(u.NumUpgrades), itoa(u.NumDowngrades),
			boolStr(u.Churned), optDate(u.ChurnDate), itoa(u.LifetimeDays), money(u.CAC),
		})
	}
	return t
}

func funnelTable(stages []metrics.FunnelStage) table {
	t := table{name: FunnelFile, header: []string{"stage", "users", "conversion_rate", "cumulative_rate"}}
	for _, s := range stages {
		t.rows = append(t.rows, []string{s.Stage, itoa(s.Users), ratio(s.ConversionRate), ratio(s.CumulativeRate)})
	}
	return t
}

func conversionTable(segments []metrics.SegmentSummary) table {
	t := table{name: ConversionFile, header: []string{
		"segment", "total_users", "activated", "activation_rate", "converted", "conversion_rate", "churned", "churn_rate",
	}}
	for _, s := range segments {
		t.rows = append(t.rows, []string{
			s.Segment, itoa(s.TotalUsers), itoa(s.Activated), ratio(s.ActivationRate),
			itoa(s.Converted), ratio(s.ConversionRate), itoa(s.Churned), ratio(s.ChurnRate),
		})
	}
	return t
}

func monthlyChurnTable(rows []metrics.MonthlyChurn) table {
	t := table{name: MonthlyChurnFile, header: []string{"month", "active_at_start", "churned", "churn_rate"}}
	for _, r := range rows {
		t.rows = append(t.rows, []string{month(r.Month), itoa(r.ActiveAtStart), itoa(r.Churned), ratio(r.Rate)})
	}
	return t
}

func cohortTable(rows []metrics.CohortRetention) table {
	header := []string{"cohort_month", "cohort_size"}
	for k := 0; k < metrics.CohortOffsets; k++ {
		header = append(header, fmt.Sprintf("%s%d", cohortColumnPrefix, k))
	}
	t := table{name: CohortFile, header: header}
	for _, r := range rows {
		row := []string{month(r.CohortMonth), itoa(r.CohortSize)}
		for k := 0; k < metrics.CohortOffsets; k++ {
			if k < len(r.Rates) {
				row = append(row, ratio(r.Rates[k]))
			} else {
				row = append(row, "")
			}
		}
		t.rows = append(t.rows, row)
	}
	return t
}

func revenueTable(rows []metrics.RevenueMonth) table {
	t := table{name: RevenueFile, header: []string{"month", "mrr", "arr", "active_users", "paying_users", "arpu", "arppu"}}
	for _, r := range rows {
		t.rows = append(t.rows, []string{
			month(r.Month), money(r.MRR), money(r.ARR), itoa(r.ActiveUsers), itoa(r.PayingUsers), money(r.ARPU), money(r.ARPPU),
		})
	}
	return t
}

func bridgeTable(rows []metrics.BridgeMonth) table {
	t := table{name: BridgeFile, header: []string{
		"month", "starting_mrr", "new_mrr", "expansion_mrr", "contraction_mrr", "churned_mrr", "net_new_mrr", "ending_mrr",
	}}
	for _, r := range rows {
		t.rows = append(t.rows, []string{
			month(r.Month), money(r.StartingMRR), money(r.NewMRR), money(r.ExpansionMRR),
			money(r.ContractionMRR), money(r.ChurnedMRR), money(r.NetNewMRR), money(r.EndingMRR),
		})
	}
	return t
}

func nrrTable(rows []metrics.NRRMonth) table {
	t := table{name: NRRFile, header: []string{"month", "nrr", "nrr_pct"}}
	for _, r := range rows {
		t.rows = append(t.rows, []string{month(r.Month), ratio(r.NRR), money(r.Pct)})
	}
	return t
}

func economicsTable(rows []metrics.EconomicsSummary) table {
	t := table{name: EconomicsFile, header: []string{
		"segment", "users", "avg_cac", "avg_ltv", "avg_ltv_cac_ratio", "median_ltv_cac_ratio",
	}}
	for _, r := range rows {
		t.rows = append(t.rows, []string{
			r.Segment, itoa(r.Users), money(r.AvgCAC), money(r.AvgLTV), money(r.AvgLTVCACRatio), money(r.MedianLTVCACRatio),
		})
	}
	return t
}

// customersTable joins RFM scores with churn risk. Customers without a risk
// row have churned.
func customersTable(scores []metrics.RFMScore, risks []metrics.RiskSignal) table {
	byID := make(map[string]metrics.RiskSignal, len(risks))
	for _, r := range risks {
		byID[r.CustomerID] = r
	}
	t := table{name: CustomersFile, header: []string{
		"customer_id", "recency_days", "frequency_180d", "monetary_180d", "r_score", "f_score", "m_score",
		"rfm_code", "rfm_segment", "days_since_login", "days_since_feature_use", "bad_ticket", "churn_risk",
	}}
	for _, s := range scores {
		login, feature, bad, risk := "", "", "", "churned"
		if r, ok := byID[s.CustomerID]; ok {
			login, feature, bad, risk = itoa(r.DaysSinceLogin), itoa(r.DaysSinceFeatureUse), boolStr(r.BadTicket), string(r.Risk)
		}
		t.rows = append(t.rows, []string{
			s.CustomerID, itoa(s.RecencyDays), itoa(s.Frequency180d), money(s.Monetary180d),
			itoa(s.RScore), itoa(s.FScore), itoa(s.MScore), s.Code, s.Segment,
			login, feature, bad, risk,
		})
	}
	return t
}

func kpiTable(k metrics.KPISnapshot) table {
	return table{
		name: KPIFile,
		header: []string{
			"snapshot_date", "current_mrr", "current_arr", "active_customers", "avg_mrr_per_customer",
			"mrr_growth_rate_monthly", "projected_arr_12m", "arr_growth_yoy_projected",
			"avg_revenue_per_customer", "estimated_ltv", "estimated_cac", "ltv_cac_ratio",
			"high_risk_customers", "churn_risk_pct", "total_customers_analyzed",
		},
		rows: [][]string{{
			date(k.SnapshotDate), money(k.CurrentMRR), money(k.CurrentARR), itoa(k.ActiveCustomers), money(k.AvgMRRPerCustomer),
			money(k.MRRGrowthRateMonthly), money(k.ProjectedARR12m), money(k.ARRGrowthYoYProjected),
			money(k.AvgRevenuePerCustomer), money(k.EstimatedLTV), money(k.EstimatedCAC), money(k.LTVCACRatio),
			itoa(k.HighRiskCustomers), money(k.ChurnRiskPct), itoa(k.TotalCustomersAnalyzed),
		}},
	}
}

func historyTable(points []models.MonthPoint) table {
	t := table{name: HistoryFile, header: []string{"month", "mrr", "arr", "active_customers"}}
	for _, p := range points {
		t.rows = append(t.rows, []string{month(p.Month), money(p.MRR), money(p.MRR * 12), itoa(p.ActiveCustomers)})
	}
	return t
}

func forecastTable(name string, points []models.ForecastPoint) table {
	t := table{name: name, header: []string{
		"month", "mrr", "arr", "active_customers", "new_customers", "churned_customers", "net_new_customers", "scenario",
	}}
	for _, p := range points {
		t.rows = append(t.rows, []string{
			month(p.Month), money(p.MRR), money(p.ARR), itoa(p.ActiveCustomers),
			itoa(p.NewCustomers), itoa(p.ChurnedCustomers), itoa(p.NetNewCustomers), p.Scenario,
		})
	}
	return t
}

func cohortLTVTable(rows []models.CohortResult) table {
	t := table{name: CohortLTVFile, header: []string{"month_year", "ltv_avg", "cohort_clients", "paying_clients", "invoices_read"}}
	for _, r := range rows {
		t.rows = append(t.rows, []string{r.MonthYear, money(r.LTVAvg), itoa(r.CohortClients), itoa(r.PayingClients), itoa(r.InvoicesRead)})
	}
	return t
}

func eventsTable(events []models.ActivityEvent) table {
	t := table{name: EventsFile, header: []string{"event_id", "customer_id", "event_name", "timestamp"}}
	for _, e := range events {
		t.rows = append(t.rows, []string{e.EventID, e.CustomerID, e.Name, date(e.Timestamp)})
	}
	return t
}

func ticketsTable(tickets []models.SupportTicket) table {
	t := table{name: TicketsFile, header: []string{"ticket_id", "customer_id", "created_at", "closed_at", "satisfaction_score"}}
	for _, tk := range tickets {
		score := ""
		if tk.Satisfaction != nil {
			score = itoa(*tk.Satisfaction)
		}
		t.rows = append(t.rows, []string{tk.TicketID, tk.CustomerID, date(tk.CreatedAt), optDate(tk.ClosedAt), score})
	}
	return t
}

// Every invoice is settled in USD when issued.
func transactionsTable(invoices []models.Invoice) table {
	t := table{name: TransactionsFile, header: []string{
		"transaction_id", "customer_id", "transaction_date", "plan", "amount", "currency", "invoice_status",
	}}
	for _, inv := range invoices {
		t.rows = append(t.rows, []string{
			inv.InvoiceID, inv.CustomerID, date(inv.Date), string(inv.Plan), money(inv.Amount), "USD", "paid",
		})
	}
	return t
}

func subscriptionsTable(subs []metrics.Subscription) table {
	t := table{name: SubscriptionsFile, header: []string{
		"subscription_id", "customer_id", "plan", "start_date", "end_date", "status", "started_by", "plan_price",
	}}
	for _, s := range subs {
		t.rows = append(t.rows, []string{
			s.SubscriptionID, s.CustomerID, string(s.Plan), date(s.StartDate), optDate(s.EndDate),
			s.Status, s.StartedBy, money(s.Price),
		})
	}
	return t
}
