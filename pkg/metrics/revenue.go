package metrics

import (
	"time"

	"saas-growth/pkg/models"
)

// RevenueMonth is the recurring revenue position at the end of a month.
type RevenueMonth struct {
	Month       time.Time
	MRR         float64
	ARR         float64
	ActiveUsers int
	PayingUsers int
	ARPU        float64
	ARPPU       float64
}

// MonthlyRevenue prices every active user at the plan in effect on the last
// observed day of each month, from the first sign-up month to end.
func MonthlyRevenue(users []models.User, end time.Time) []RevenueMonth {
	if len(users) == 0 {
		return nil
	}
	months := MonthRange(firstSignUp(users), end)
	out := make([]RevenueMonth, 0, len(months))
	for _, m := range months {
		at := observedAt(m, end)
		row := RevenueMonth{Month: m}
		for _, u := range users {
			if !u.ActiveAt(at) {
				continue
			}
			row.ActiveUsers++
			if p := u.PlanAt(at); p.Paid() {
				row.PayingUsers++
				row.MRR += p.Price()
			}
		}
		row.ARR = row.MRR * 12
		row.ARPU = SafeDivide(row.MRR, float64(row.ActiveUsers))
		row.ARPPU = SafeDivide(row.MRR, float64(row.PayingUsers))
		out = append(out, row)
	}
	return out
}

// History turns the revenue table into the projector input: MRR and paying
// customers per month.
func History(revenue []RevenueMonth) []models.MonthPoint {
	out := make([]models.MonthPoint, 0, len(revenue))
	for _, r := range revenue {
		out = append(out, models.MonthPoint{Month: r.Month, MRR: r.MRR, ActiveCustomers: r.PayingUsers})
	}
	return out
}

// BridgeMonth decomposes the MRR movement of a month. EndingMRR always equals
// StartingMRR + NetNewMRR.
type BridgeMonth struct {
	Month          time.Time
	StartingMRR    float64
	NewMRR         float64
	ExpansionMRR   float64
	ContractionMRR float64
	ChurnedMRR     float64
	NetNewMRR      float64
	EndingMRR      float64
}

// MRRBridge compares each user's month-end contribution with the previous
// month-end. Free→paid is new, paid→nothing is churned, and paid→paid moves
// are expansion or contraction.
func MRRBridge(users []models.User, end time.Time) []BridgeMonth {
	if len(users) == 0 {
		return nil
	}
	months := MonthRange(firstSignUp(users), end)
	out := make([]BridgeMonth, 0, len(months))
	prevAt := time.Time{}
	starting := 0.0
	for _, m := range months {
		at := observedAt(m, end)
		row := BridgeMonth{Month: m, StartingMRR: starting}
		for _, u := range users {
			before := 0.0
			if !prevAt.IsZero() {
				before = contribution(u, prevAt)
			}
			after := contribution(u, at)
			switch {
			case before == after:
			case before == 0:
				row.NewMRR += after
			case after == 0:
				row.ChurnedMRR += before
			case after > before:
				row.ExpansionMRR += after - before
			default:
				row.ContractionMRR += before - after
			}
		}
		row.NetNewMRR = row.NewMRR + row.ExpansionMRR - row.ContractionMRR - row.ChurnedMRR
		row.EndingMRR = row.StartingMRR + row.NetNewMRR
		out = append(out, row)
		starting = row.EndingMRR
		prevAt = at
	}
	return out
}

func contribution(u models.User, at time.Time) float64 {
	if !u.ActiveAt(at) {
		return 0
	}
	return u.PlanAt(at).Price()
}

// NRRMonth is the net revenue retention of a month.
type NRRMonth struct {
	Month time.Time
	NRR   float64
	Pct   float64
}

// NetRevenueRetention computes (start + expansion - contraction - churned) / start
// per bridge month, 0 when the month starts without MRR.
func NetRevenueRetention(bridge []BridgeMonth) []NRRMonth {
	out := make([]NRRMonth, 0, len(bridge))
	for _, b := range bridge {
		nrr := SafeDivide(b.StartingMRR+b.ExpansionMRR-b.ContractionMRR-b.ChurnedMRR, b.StartingMRR)
		out = append(out, NRRMonth{Month: b.Month, NRR: nrr, Pct: nrr * 100})
	}
	return out
}
