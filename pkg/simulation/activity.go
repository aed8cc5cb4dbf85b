package simulation

import (
	"fmt"
	"sort"

	"saas-growth/pkg/models"
)

var eventTypes = []string{"login", "feature_use", "page_view", "export_data", "invite_sent"}

const (
	ticketRate      = 0.20
	minEvents       = 5
	maxEvents       = 20
	maxTickets      = 3
	maxTicketDays   = 7
	maxSatisfaction = 5
)

// GenerateActivity derives usage events and support tickets for users. Each
// user draws from its own activity stream, so the lifecycle table is not
// affected by this step.
func GenerateActivity(users []models.User, w Window, seed int64) ([]models.ActivityEvent, []models.SupportTicket) {
	w = NewWindow(w.Start, w.End)
	var (
		events  []models.ActivityEvent
		tickets []models.SupportTicket
	)
	for i, u := range users {
		rng := NewActivitySource(seed, i)
		end := u.EndDate(w.End)
		span := daysBetween(u.SignUpDate, end)

		if u.Activated {
			n := minEvents + rng.IntN(maxEvents-minEvents+1)
			own := make([]models.ActivityEvent, 0, n)
			for j := 0; j < n; j++ {
				own = append(own, models.ActivityEvent{
					CustomerID: u.UserID,
					Name:       eventTypes[rng.IntN(len(eventTypes))],
					Timestamp:  u.SignUpDate.AddDate(0, 0, rng.IntN(span+1)),
				})
			}
			sort.SliceStable(own, func(a, b int) bool { return own[a].Timestamp.Before(own[b].Timestamp) })
			for _, e := range own {
				e.EventID = fmt.Sprintf("EVT%08d", len(events)+1)
				events = append(events, e)
			}
		}

		if rng.Float64() < ticketRate {
			n := 1 + rng.IntN(maxTickets)
			for j := 0; j < n; j++ {
				created := u.SignUpDate.AddDate(0, 0, rng.IntN(span+1))
				closed := created.AddDate(0, 0, 1+rng.IntN(maxTicketDays))
				t := models.SupportTicket{
					TicketID:   fmt.Sprintf("TKT%06d", len(tickets)+1),
					CustomerID: u.UserID,
					CreatedAt:  created,
				}
				if !closed.After(end) {
					score := 1 + rng.IntN(maxSatisfaction)
					t.ClosedAt = &closed
					t.Satisfaction = &score
				}
				tickets = append(tickets, t)
			}
		}
	}
	return events, tickets
}
