package models

import (
	"time"
)

/*
PLANS & CHANNELS → fixed categorical values of the simulation.
*/

// Plan is a subscription tier.
type Plan string

const (
	PlanFree  Plan = "Free"
	PlanBasic Plan = "Basic"
	PlanPro   Plan = "Pro"
)

// Paid reports whether the plan bills a monthly price.
func (p Plan) Paid() bool {
	return p == PlanBasic || p == PlanPro
}

// Price is the monthly list price of the plan in dollars.
func (p Plan) Price() float64 {
	switch p {
	case PlanBasic:
		return 49
	case PlanPro:
		return 199
	default:
		return 0
	}
}

// Channel is the acquisition channel a user signed up through.
type Channel string

const (
	ChannelOrganic  Channel = "organic_search"
	ChannelPaid     Channel = "paid_ads"
	ChannelReferral Channel = "referral"
	ChannelOutbound Channel = "sales_outbound"
	ChannelContent  Channel = "content_marketing"
)

// Channels and Plans list the categorical values in reporting order.
var (
	Channels = []Channel{ChannelOrganic, ChannelPaid, ChannelReferral, ChannelOutbound, ChannelContent}
	Plans    = []Plan{PlanFree, PlanBasic, PlanPro}
)

// ChangeKind classifies a dated plan transition.
type ChangeKind string

const (
	ChangeConversion ChangeKind = "conversion"
	ChangeUpgrade    ChangeKind = "upgrade"
	ChangeDowngrade  ChangeKind = "downgrade"
)

// PlanChange is one dated plan transition of a user.
type PlanChange struct {
	Kind ChangeKind
	Date time.Time
	From Plan
	To   Plan
}

/*
GENERATE → one fully resolved user per simulated sign-up.
*/

// User is the lifecycle record of a simulated user. Optional dates are nil
// whenever their flag is false.
type User struct {
	UserID             string
	SignUpDate         time.Time
	AcquisitionChannel Channel
	InitialPlan        Plan
	CurrentPlan        Plan
	Activated          bool
	ConvertedToPaid    bool
	ConversionDate     *time.Time
	PlanChanges        []PlanChange // conversion, upgrade, downgrade in date order
	NumUpgrades        int
	NumDowngrades      int
	Churned            bool
	ChurnDate          *time.Time
	LifetimeDays       int
	CAC                float64
}

// PlanAt returns the plan in effect on day t.
func (u User) PlanAt(t time.Time) Plan {
	plan := u.InitialPlan
	for _, c := range u.PlanChanges {
		if c.Date.After(t) {
			break
		}
		plan = c.To
	}
	return plan
}

// ActiveAt reports whether the user had signed up by t and had not churned by t.
func (u User) ActiveAt(t time.Time) bool {
	if u.SignUpDate.After(t) {
		return false
	}
	return u.ChurnDate == nil || u.ChurnDate.After(t)
}

// EndDate is the churn date, or windowEnd for retained users.
func (u User) EndDate(windowEnd time.Time) time.Time {
	if u.ChurnDate != nil {
		return *u.ChurnDate
	}
	return windowEnd
}

/*
DERIVED → rows produced from the user table.
*/

// Invoice is one monthly billing row for a paying user.
type Invoice struct {
	InvoiceID  string
	CustomerID string
	Date       time.Time
	Plan       Plan
	Amount     float64
}

// ActivityEvent is a product usage event.
type ActivityEvent struct {
	EventID    string
	CustomerID string
	Name       string
	Timestamp  time.Time
}

// SupportTicket is a support request; ClosedAt and Satisfaction are nil while open.
type SupportTicket struct {
	TicketID     string
	CustomerID   string
	CreatedAt    time.Time
	ClosedAt     *time.Time
	Satisfaction *int
}

// MonthPoint is one month of observed history fed to the projector.
type MonthPoint struct {
	Month           time.Time
	MRR             float64
	ActiveCustomers int
}

// ForecastPoint is one projected month.
type ForecastPoint struct {
	Scenario         string
	Month            time.Time
	MRR              float64
	ARR              float64
	ActiveCustomers  int
	NewCustomers     int
	ChurnedCustomers int
	NetNewCustomers  int
}

// CohortResult holds the LTV metrics of one sign-up month cohort.
type CohortResult struct {
	MonthYear     string  // "MM/YYYY"
	LTVAvg        float64 // average invoiced revenue per cohort user
	CohortClients int     // users who signed up in the month
	PayingClients int     // cohort users with at least one invoice
	InvoicesRead  int
}

/*
CONFIG → run parameters, loaded from env then flags.
*/

// Config holds the parameters of one pipeline run.
type Config struct {
	Users         int     `env:"USERS" envDefault:"10000" validate:"gt=0"`
	Start         string  `env:"START" envDefault:"2022-01-01" validate:"required,datetime=2006-01-02"`
	End           string  `env:"END" envDefault:"2024-12-31" validate:"required,datetime=2006-01-02"`
	Seed          int64   `env:"SEED" envDefault:"42"`
	Workers       int     `env:"WORKERS" envDefault:"1" validate:"gte=1,lte=256"`
	OutputDir     string  `env:"OUTPUT_DIR" envDefault:"outputs" validate:"required"`
	ChurnRate     float64 `env:"CHURN_RATE" envDefault:"0.05" validate:"gte=0,lte=1"`
	CorrectedAdds bool    `env:"CORRECTED_ADDS" envDefault:"false"`
	DSN           string  `env:"DSN"`
	CohortFrom    string  `env:"COHORT_FROM" validate:"omitempty,len=6,numeric"` // "MMYYYY"
	CohortTo      string  `env:"COHORT_TO" validate:"omitempty,len=6,numeric"`   // "MMYYYY"
	Env           string  `env:"ENV" envDefault:"development" validate:"oneof=development production test"`
	Verbose       bool    `env:"VERBOSE" envDefault:"true"`
}
