package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"saas-growth/pkg/forecast"
	"saas-growth/pkg/metrics"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const reportWidth = 70

// WriteReport writes the human-readable summary of the KPI snapshot and the
// scenario outcomes to dir/summary_report.txt.
func WriteReport(dir string, b Bundle) error {
	path := filepath.Join(dir, ReportFile)
	if err := os.WriteFile(path, []byte(Report(b)), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", ReportFile, err)
	}
	return nil
}

// Report renders the summary with thousands separators.
func Report(b Bundle) string {
	p := message.NewPrinter(language.English)
	k := b.KPI
	rule := strings.Repeat("=", reportWidth)
	sep := strings.Repeat("-", reportWidth)

	var sb strings.Builder
	line := func(format string, args ...any) {
		sb.WriteString(p.Sprintf(format, args...))
		sb.WriteByte('\n')
	}

	line(rule)
	line("SaaS Growth Analytics - Summary Report")
	line(rule)
	line("Snapshot: %s", date(k.SnapshotDate))
	line("Users simulated:          %d", len(b.Users))
	line("")
	line("KEY METRICS")
	line(sep)
	line("Current MRR:              $%.2f", k.CurrentMRR)
	line("Current ARR:              $%.2f", k.CurrentARR)
	line("Active Customers:         %d", k.ActiveCustomers)
	line("Avg MRR per Customer:     $%.2f", k.AvgMRRPerCustomer)
	line("")
	line("GROWTH METRICS")
	line(sep)
	line("Monthly MRR Growth:       %.2f%%", k.MRRGrowthRateMonthly)
	line("Projected ARR (12m):      $%.2f", k.ProjectedARR12m)
	line("YoY ARR Growth:           %.2f%%", k.ARRGrowthYoYProjected)
	line("")
	line("CUSTOMER HEALTH")
	line(sep)
	line("Estimated LTV:            $%.2f", k.EstimatedLTV)
	line("Estimated CAC:            $%.2f", k.EstimatedCAC)
	line("LTV:CAC Ratio:            %.2fx", k.LTVCACRatio)
	line("High Risk Customers:      %d (%.1f%%)", k.HighRiskCustomers, k.ChurnRiskPct)
	line("")
	line("SCENARIOS (12-Month Projection)")
	line(sep)

	base, okBase := b.Projection.Final(forecast.Base.Name)
	opt, okOpt := b.Projection.Final(forecast.Optimistic.Name)
	pess, okPess := b.Projection.Final(forecast.Pessimistic.Name)
	if okBase && okOpt && okPess {
		line("Base Case ARR:            $%.2f", base.ARR)
		line("Optimistic ARR:           $%.2f (%+.1f%%)", opt.ARR, metrics.SafeDivide(opt.ARR-base.ARR, base.ARR)*100)
		line("Pessimistic ARR:          $%.2f (%+.1f%%)", pess.ARR, metrics.SafeDivide(pess.ARR-base.ARR, base.ARR)*100)
	} else {
		line("No projection available.")
	}
	line(rule)
	return sb.String()
}
