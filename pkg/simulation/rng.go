package simulation

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// Source is the random stream a single user is resolved from.
// *rand.Rand satisfies it, and so does rand.Source.
type Source interface {
	Uint64() uint64
	Float64() float64
	ExpFloat64() float64
	NormFloat64() float64
	IntN(n int) int
}

// activitySalt separates activity streams from lifecycle streams under the same seed.
const activitySalt uint64 = 0x9e3779b97f4a7c15

// NewUserSource returns the lifecycle stream of the user at index.
// Streams depend only on (seed, index), so any partitioning of users across
// workers yields the same table.
func NewUserSource(seed int64, index int) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(index)))
}

// NewActivitySource returns the activity stream of the user at index.
func NewActivitySource(seed int64, index int) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed)^activitySalt, uint64(index)))
}

// delayDays draws an exponential delay with the given mean, rounded up to
// whole days. The result is always at least one day.
func delayDays(rng Source, meanDays float64) int {
	d := int(math.Ceil(rng.ExpFloat64() * meanDays))
	if d < 1 {
		d = 1
	}
	return d
}

// signUpFraction draws the position of a sign-up inside the window from
// Beta(2, 5), which front-loads acquisition.
func signUpFraction(rng Source) float64 {
	return distuv.Beta{Alpha: 2, Beta: 5, Src: rng}.Rand()
}
