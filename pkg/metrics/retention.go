package metrics

import (
	"time"

	"saas-growth/pkg/models"
)

// Retention horizons in days after sign-up.
const (
	week1Days  = 7
	week4Days  = 28
	month3Days = 90
)

// CohortOffsets is the number of month columns (month_0..month_12) of the cohort matrix.
const CohortOffsets = 13

// RetentionFlags tells whether a user was still active at fixed horizons.
type RetentionFlags struct {
	UserID       string
	SignUpDate   time.Time
	CurrentPlan  models.Plan
	Week1        bool
	Week4        bool
	Month3       bool
	LifetimeDays int
	Churned      bool
}

// RetentionByUser evaluates the 7/28/90-day horizons for every user.
func RetentionByUser(users []models.User) []RetentionFlags {
	out := make([]RetentionFlags, 0, len(users))
	for _, u := range users {
		out = append(out, RetentionFlags{
			UserID:       u.UserID,
			SignUpDate:   u.SignUpDate,
			CurrentPlan:  u.CurrentPlan,
			Week1:        retainedAfter(u, week1Days),
			Week4:        retainedAfter(u, week4Days),
			Month3:       retainedAfter(u, month3Days),
			LifetimeDays: u.LifetimeDays,
			Churned:      u.Churned,
		})
	}
	return out
}

func retainedAfter(u models.User, days int) bool {
	return u.ChurnDate == nil || u.ChurnDate.After(u.SignUpDate.AddDate(0, 0, days))
}

// MonthlyChurn is the churn rate of one calendar month.
type MonthlyChurn struct {
	Month         time.Time
	ActiveAtStart int // active at some point in the month
	Churned       int
	Rate          float64
}

// MonthlyChurnRates covers every month from the first sign-up to end.
func MonthlyChurnRates(users []models.User, end time.Time) []MonthlyChurn {
	if len(users) == 0 {
		return nil
	}
	months := MonthRange(firstSignUp(users), end)
	out := make([]MonthlyChurn, 0, len(months))
	for _, m := range months {
		row := MonthlyChurn{Month: m}
		for _, u := range users {
			if MonthStart(u.SignUpDate).After(m) {
				continue
			}
			if u.ChurnDate != nil {
				cm := MonthStart(*u.ChurnDate)
				if cm.Before(m) {
					continue
				}
				if cm.Equal(m) {
					row.Churned++
				}
			}
			row.ActiveAtStart++
		}
		row.Rate = SafeDivide(float64(row.Churned), float64(row.ActiveAtStart))
		out = append(out, row)
	}
	return out
}

// CohortRetention is one row of the cohort matrix. Rates[k] is the share of
// the cohort still active at the end of month k after sign-up; offsets past
// the observation end are not reported.
type CohortRetention struct {
	CohortMonth time.Time
	CohortSize  int
	Rates       []float64
}

// CohortMatrix groups users by sign-up month.
func CohortMatrix(users []models.User, end time.Time) []CohortRetention {
	cohorts := map[time.Time][]models.User{}
	for _, u := range users {
		m := MonthStart(u.SignUpDate)
		cohorts[m] = append(cohorts[m], u)
	}
	if len(cohorts) == 0 {
		return nil
	}

	var out []CohortRetention
	for _, m := range MonthRange(firstSignUp(users), end) {
		members := cohorts[m]
		if len(members) == 0 {
			continue
		}
		row := CohortRetention{CohortMonth: m, CohortSize: len(members)}
		for k := 0; k < CohortOffsets; k++ {
			target := MonthEnd(m.AddDate(0, k, 0))
			if target.After(end) {
				break
			}
			retained := 0
			for _, u := range members {
				if u.ActiveAt(target) {
					retained++
				}
			}
			row.Rates = append(row.Rates, SafeDivide(float64(retained), float64(len(members))))
		}
		out = append(out, row)
	}
	return out
}

func firstSignUp(users []models.User) time.Time {
	first := users[0].SignUpDate
	for _, u := range users[1:] {
		if u.SignUpDate.Before(first) {
			first = u.SignUpDate
		}
	}
	return first
}
