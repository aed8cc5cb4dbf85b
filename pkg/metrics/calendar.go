// Package metrics derives funnel, retention, revenue, unit economics and
// customer-health tables from a generated user table.
package metrics

import (
	"time"

	"github.com/shopspring/decimal"
)

// SafeDivide returns 0 when the denominator is zero.
func SafeDivide(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

// Round2 rounds to cents.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// MonthStart truncates t to the first day of its month (UTC).
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// MonthEnd is the last day of t's month.
func MonthEnd(t time.Time) time.Time {
	return MonthStart(t).AddDate(0, 1, -1)
}

// MonthRange lists month starts from start to end, both inclusive.
func MonthRange(start, end time.Time) []time.Time {
	cur := MonthStart(start)
	last := MonthStart(end)
	var out []time.Time
	for !cur.After(last) {
		out = append(out, cur)
		cur = cur.AddDate(0, 1, 0)
	}
	return out
}

// observedAt caps the end of month m at the observation end.
func observedAt(m, end time.Time) time.Time {
	t := MonthEnd(m)
	if t.After(end) {
		return end
	}
	return t
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
