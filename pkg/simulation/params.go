package simulation

import "saas-growth/pkg/models"

// Lifecycle probabilities and mean delays (days).
const (
	freeShare         = 0.80 // initial plan Free
	basicShare        = 0.70 // Basic among the non-Free remainder
	activationRate    = 0.65
	conversionRate    = 0.25 // Free and activated users only
	conversionMean    = 15.0
	convertBasicShare = 0.70
	upgradeRate       = 0.20 // Basic -> Pro after conversion
	upgradeMean       = 60.0
	downgradeRate     = 0.10 // Pro -> Basic after conversion
	downgradeMean     = 90.0
)

type channelWeight struct {
	channel models.Channel
	weight  float64
}

var channelWeights = []channelWeight{
	{models.ChannelOrganic, 0.30},
	{models.ChannelPaid, 0.25},
	{models.ChannelReferral, 0.20},
	{models.ChannelOutbound, 0.15},
	{models.ChannelContent, 0.10},
}

type cacDist struct {
	mean, std float64
}

var channelCAC = map[models.Channel]cacDist{
	models.ChannelOrganic:  {200, 50},
	models.ChannelPaid:     {500, 100},
	models.ChannelReferral: {100, 30},
	models.ChannelOutbound: {800, 150},
	models.ChannelContent:  {150, 40},
}

type churnProfile struct {
	probability float64
	meanDays    float64
}

// churnProfileFor keys churn on the final plan; unactivated users churn fast
// regardless of plan.
func churnProfileFor(plan models.Plan, activated bool) churnProfile {
	switch {
	case !activated:
		return churnProfile{0.80, 7}
	case plan == models.PlanFree:
		return churnProfile{0.60, 45}
	case plan == models.PlanBasic:
		return churnProfile{0.30, 180}
	default:
		return churnProfile{0.15, 365}
	}
}
