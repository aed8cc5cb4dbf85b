package metrics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"saas-growth/pkg/models"

	"gonum.org/v1/gonum/stat"
)

// Invoices bills every user that is ever on a paid plan once a month, from
// conversion (or sign-up for initially paid users) while the user is active
// and until end. Each invoice is priced at the plan in effect on its date.
func Invoices(users []models.User, end time.Time) []models.Invoice {
	var out []models.Invoice
	for _, u := range users {
		var start time.Time
		switch {
		case u.ConversionDate != nil:
			start = *u.ConversionDate
		case u.InitialPlan.Paid():
			start = u.SignUpDate
		default:
			continue
		}
		for k := 0; ; k++ {
			date := billingDate(start, k)
			if date.After(end) || !u.ActiveAt(date) {
				break
			}
			plan := u.PlanAt(date)
			if !plan.Paid() {
				continue
			}
			out = append(out, models.Invoice{
				InvoiceID:  fmt.Sprintf("INV%08d", len(out)+1),
				CustomerID: u.UserID,
				Date:       date,
				Plan:       plan,
				Amount:     plan.Price(),
			})
		}
	}
	return out
}

// billingDate is the k-th monthly anniversary of start. Anniversaries that
// fall past the end of a shorter month are moved to its last day.
func billingDate(start time.Time, k int) time.Time {
	m := MonthStart(start).AddDate(0, k, 0)
	return time.Date(m.Year(), m.Month(), min(start.Day(), MonthEnd(m).Day()), 0, 0, 0, 0, time.UTC)
}

// rfmWindowDays bounds the frequency and monetary lookback.
const rfmWindowDays = 180

// RFMScore holds the recency, frequency and monetary quintile scores of a
// paying customer. Scores run 1 (worst) to 5 (best).
type RFMScore struct {
	CustomerID    string
	RecencyDays   int
	Frequency180d int
	Monetary180d  float64
	RScore        int
	FScore        int
	MScore        int
	Code          string
	Segment       string
}

// RFM scores every customer with at least one invoice. Recency counts days
// from the latest invoice or activity event to reference.
func RFM(invoices []models.Invoice, events []models.ActivityEvent, reference time.Time) []RFMScore {
	type agg struct {
		last      time.Time
		frequency int
		monetary  float64
	}
	windowStart := reference.AddDate(0, 0, -rfmWindowDays)
	byCustomer := map[string]*agg{}
	var order []string
	for _, inv := range invoices {
		if inv.Date.After(reference) {
			continue
		}
		a, ok := byCustomer[inv.CustomerID]
		if !ok {
			a = &agg{}
			byCustomer[inv.CustomerID] = a
			order = append(order, inv.CustomerID)
		}
		if inv.Date.After(a.last) {
			a.last = inv.Date
		}
		if inv.Date.After(windowStart) {
			a.frequency++
			a.monetary += inv.Amount
		}
	}
	for _, e := range events {
		if a, ok := byCustomer[e.CustomerID]; ok && e.Timestamp.After(a.last) && !e.Timestamp.After(reference) {
			a.last = e.Timestamp
		}
	}

	out := make([]RFMScore, len(order))
	recency := make([]float64, len(order))
	frequency := make([]float64, len(order))
	monetary := make([]float64, len(order))
	for i, id := range order {
		a := byCustomer[id]
		out[i] = RFMScore{
			CustomerID:    id,
			RecencyDays:   daysBetween(a.last, reference),
			Frequency180d: a.frequency,
			Monetary180d:  a.monetary,
		}
		recency[i] = float64(out[i].RecencyDays)
		frequency[i] = float64(a.frequency)
		monetary[i] = a.monetary
	}

	r := quintiles(recency, false)
	f := quintiles(frequency, true)
	m := quintiles(monetary, true)
	for i := range out {
		out[i].RScore, out[i].FScore, out[i].MScore = r[i], f[i], m[i]
		out[i].Code = fmt.Sprintf("%d%d%d", r[i], f[i], m[i])
		out[i].Segment = rfmSegment(r[i] + f[i] + m[i])
	}
	return out
}

// quintiles bins values into 1..5 by their empirical CDF. Equal values share
// a score.
func quintiles(values []float64, higherIsBetter bool) []int {
	n := len(values)
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	scores := make([]int, n)
	for i, v := range values {
		// Share of values at or below v; ties share a score.
		atOrBelow := int(math.Round(stat.CDF(v, stat.Empirical, sorted, nil) * float64(n)))
		q := (atOrBelow*5 + n - 1) / n
		if !higherIsBetter {
			q = 6 - q
		}
		scores[i] = q
	}
	return scores
}

func rfmSegment(total int) string {
	switch {
	case total >= 12:
		return "Champions"
	case total >= 9:
		return "Loyal"
	case total >= 6:
		return "At Risk"
	default:
		return "Lost"
	}
}

// ChurnRisk is the health class of an active customer.
type ChurnRisk string

const (
	RiskHigh   ChurnRisk = "high"
	RiskMedium ChurnRisk = "medium"
	RiskLow    ChurnRisk = "low"
)

// Churn-risk thresholds in days before the reference date.
const (
	highLoginGap     = 30
	highFeatureGap   = 60
	badTicketWindow  = 90
	badSatisfaction  = 2
	mediumLoginGap   = 14
	mediumFeatureGap = 30
)

// RiskSignal carries the signals behind a churn-risk class. Gaps are -1 when
// the customer never produced the event.
type RiskSignal struct {
	CustomerID          string
	DaysSinceLogin      int
	DaysSinceFeatureUse int
	BadTicket           bool
	Risk                ChurnRisk
}

// ClassifyChurnRisk labels every non-churned user from login, feature-use and
// support-ticket signals observed up to reference.
func ClassifyChurnRisk(users []models.User, events []models.ActivityEvent, tickets []models.SupportTicket, reference time.Time) []RiskSignal {
	lastLogin := map[string]time.Time{}
	lastFeature := map[string]time.Time{}
	for _, e := range events {
		if e.Timestamp.After(reference) {
			continue
		}
		switch e.Name {
		case "login":
			if e.Timestamp.After(lastLogin[e.CustomerID]) {
				lastLogin[e.CustomerID] = e.Timestamp
			}
		case "feature_use":
			if e.Timestamp.After(lastFeature[e.CustomerID]) {
				lastFeature[e.CustomerID] = e.Timestamp
			}
		}
	}
	badTicket := map[string]bool{}
	since := reference.AddDate(0, 0, -badTicketWindow)
	for _, t := range tickets {
		if t.Satisfaction != nil && *t.Satisfaction <= badSatisfaction &&
			t.CreatedAt.After(since) && !t.CreatedAt.After(reference) {
			badTicket[t.CustomerID] = true
		}
	}

	var out []RiskSignal
	for _, u := range users {
		if u.Churned {
			continue
		}
		s := RiskSignal{
			CustomerID:          u.UserID,
			DaysSinceLogin:      gap(lastLogin, u.UserID, reference),
			DaysSinceFeatureUse: gap(lastFeature, u.UserID, reference),
			BadTicket:           badTicket[u.UserID],
		}
		s.Risk = classify(s)
		out = append(out, s)
	}
	return out
}

func gap(last map[string]time.Time, id string, reference time.Time) int {
	t, ok := last[id]
	if !ok {
		return -1
	}
	return daysBetween(t, reference)
}

func classify(s RiskSignal) ChurnRisk {
	switch {
	case s.DaysSinceLogin < 0 || s.DaysSinceLogin > highLoginGap,
		s.DaysSinceFeatureUse < 0 || s.DaysSinceFeatureUse > highFeatureGap,
		s.BadTicket:
		return RiskHigh
	case s.DaysSinceLogin > mediumLoginGap, s.DaysSinceFeatureUse > mediumFeatureGap:
		return RiskMedium
	default:
		return RiskLow
	}
}
