package metrics

import (
	"fmt"
	"strings"
	"time"

	"saas-growth/pkg/models"
)

// Subscription statuses.
const (
	SubscriptionActive  = "active"
	SubscriptionChurned = "churned"
	SubscriptionChanged = "changed"
)

// Subscription is one uninterrupted stretch of a user on a single paid plan.
// EndDate is nil while the period is still running.
type Subscription struct {
	SubscriptionID string
	CustomerID     string
	Plan           models.Plan
	StartDate      time.Time
	EndDate        *time.Time
	Status         string
	StartedBy      string
	Price          float64
}

// Subscriptions splits each paying user's history into plan periods. A period
// opens at sign-up for initially paid users or at a change to a paid plan, and
// closes at the next plan change or at churn.
func Subscriptions(users []models.User) []Subscription {
	var out []Subscription
	for _, u := range users {
		var (
			periods []Subscription
			open    *Subscription
		)
		start := func(plan models.Plan, at time.Time, by string) {
			periods = append(periods, Subscription{
				SubscriptionID: fmt.Sprintf("SUB%s-%d", strings.TrimPrefix(u.UserID, "U"), len(periods)+1),
				CustomerID:     u.UserID,
				Plan:           plan,
				StartDate:      at,
				Status:         SubscriptionActive,
				StartedBy:      by,
				Price:          plan.Price(),
			})
			open = &periods[len(periods)-1]
		}
		if u.InitialPlan.Paid() {
			start(u.InitialPlan, u.SignUpDate, "signup")
		}
		for _, c := range u.PlanChanges {
			if u.ChurnDate != nil && !c.Date.Before(*u.ChurnDate) {
				break
			}
			if open != nil {
				end := c.Date
				open.EndDate, open.Status = &end, SubscriptionChanged
				open = nil
			}
			if c.To.Paid() {
				start(c.To, c.Date, string(c.Kind))
			}
		}
		if open != nil && u.ChurnDate != nil {
			end := *u.ChurnDate
			open.EndDate, open.Status = &end, SubscriptionChurned
		}
		out = append(out, periods...)
	}
	return out
}
