package simulation

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"saas-growth/pkg/models"
)

var testWindow = NewWindow(
	time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC),
	time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
)

// scriptedSource replays fixed uniforms and returns constant exponential and
// normal draws.
type scriptedSource struct {
	uniforms []float64
	exp      float64
	norm     float64
}

func (s *scriptedSource) Float64() float64 {
	if len(s.uniforms) == 0 {
		return 0.999
	}
	v := s.uniforms[0]
	s.uniforms = s.uniforms[1:]
	return v
}

func (s *scriptedSource) Uint64() uint64       { return 0 }
func (s *scriptedSource) ExpFloat64() float64  { return s.exp }
func (s *scriptedSource) NormFloat64() float64 { return s.norm }
func (s *scriptedSource) IntN(n int) int       { return 0 }

func TestResolveUser_FreeConvertsThenChurns(t *testing.T) {
	// channel, plan, activated, converts, basic, no upgrade, churns
	rng := &scriptedSource{uniforms: []float64{0.1, 0.5, 0.1, 0.1, 0.1, 0.9, 0.1}, exp: 1}
	u := ResolveUser(0, testWindow, rng)

	if u.UserID != "U000001" {
		t.Fatalf("user id = %q", u.UserID)
	}
	if u.AcquisitionChannel != models.ChannelOrganic || u.InitialPlan != models.PlanFree {
		t.Fatalf("unexpected channel/plan: %s/%s", u.AcquisitionChannel, u.InitialPlan)
	}
	if !u.ConvertedToPaid || u.CurrentPlan != models.PlanBasic {
		t.Fatalf("expected conversion to Basic, got converted=%v plan=%s", u.ConvertedToPaid, u.CurrentPlan)
	}
	if got := u.ConversionDate.Sub(u.SignUpDate); got != 15*24*time.Hour {
		t.Fatalf("conversion delay = %v, want 15 days", got)
	}
	if !u.Churned || u.ChurnDate == nil {
		t.Fatal("expected churn")
	}
	if got := u.ChurnDate.Sub(*u.ConversionDate); got != 180*24*time.Hour {
		t.Fatalf("churn delay from conversion = %v, want 180 days", got)
	}
	if u.LifetimeDays != 195 {
		t.Fatalf("lifetime = %d, want 195", u.LifetimeDays)
	}
	if u.CAC != 200 {
		t.Fatalf("cac = %v, want 200", u.CAC)
	}
}

func TestResolveUser_ChurnBeyondWindowClamps(t *testing.T) {
	// channel, plan Basic (two draws), activated, churns (but too late)
	rng := &scriptedSource{uniforms: []float64{0.1, 0.9, 0.1, 0.1, 0.1}, exp: 10}
	u := ResolveUser(3, testWindow, rng)

	if u.InitialPlan != models.PlanBasic {
		t.Fatalf("initial plan = %s, want Basic", u.InitialPlan)
	}
	if u.Churned || u.ChurnDate != nil {
		t.Fatalf("expected clamp to not-churned, got churned=%v date=%v", u.Churned, u.ChurnDate)
	}
	want := int(testWindow.End.Sub(u.SignUpDate).Hours() / 24)
	if u.LifetimeDays != want {
		t.Fatalf("lifetime = %d, want %d", u.LifetimeDays, want)
	}
}

func TestResolveUser_UnactivatedChurnsFast(t *testing.T) {
	// channel referral, Free, not activated, churns
	rng := &scriptedSource{uniforms: []float64{0.6, 0.5, 0.9, 0.1}, exp: 1, norm: -10}
	u := ResolveUser(0, testWindow, rng)

	if u.Activated || u.ConvertedToPaid {
		t.Fatalf("expected unactivated, unconverted user: %+v", u)
	}
	if u.AcquisitionChannel != models.ChannelReferral {
		t.Fatalf("channel = %s", u.AcquisitionChannel)
	}
	if !u.Churned || u.LifetimeDays != 7 {
		t.Fatalf("expected churn after 7 days, got churned=%v lifetime=%d", u.Churned, u.LifetimeDays)
	}
	if u.CAC != 0 {
		t.Fatalf("cac should floor at zero, got %v", u.CAC)
	}
}

func TestResolveUser_UpgradeThenDowngradeOrdered(t *testing.T) {
	// channel, Free, activated, converts, Basic, upgrades, downgrades, no churn
	rng := &scriptedSource{uniforms: []float64{0.1, 0.5, 0.1, 0.1, 0.1, 0.1, 0.05, 0.99}, exp: 1}
	u := ResolveUser(0, testWindow, rng)

	if u.NumUpgrades != 1 || u.NumDowngrades != 1 {
		t.Fatalf("upgrades=%d downgrades=%d, want 1/1", u.NumUpgrades, u.NumDowngrades)
	}
	if u.CurrentPlan != models.PlanBasic {
		t.Fatalf("final plan = %s, want Basic", u.CurrentPlan)
	}
	if len(u.PlanChanges) != 3 {
		t.Fatalf("plan changes = %d, want 3", len(u.PlanChanges))
	}
	for i := 1; i < len(u.PlanChanges); i++ {
		if !u.PlanChanges[i].Date.After(u.PlanChanges[i-1].Date) {
			t.Fatalf("plan change %d not after previous: %v", i, u.PlanChanges)
		}
	}
	up := u.PlanChanges[1].Date
	if got := u.PlanAt(up); got != models.PlanPro {
		t.Fatalf("plan at upgrade = %s, want Pro", got)
	}
	if got := u.PlanAt(up.AddDate(0, 0, -1)); got != models.PlanBasic {
		t.Fatalf("plan before upgrade = %s, want Basic", got)
	}
}

func TestGenerate_InvalidPopulation(t *testing.T) {
	_, err := Generator{Seed: 1}.Generate(context.Background(), 0, testWindow)
	if !errors.Is(err, ErrInvalidPopulation) {
		t.Fatalf("expected ErrInvalidPopulation, got %v", err)
	}
}

func TestGenerate_InvalidWindow(t *testing.T) {
	cases := []Window{
		{},
		{Start: testWindow.End, End: testWindow.Start},
		{Start: testWindow.Start, End: testWindow.Start},
	}
	for _, w := range cases {
		if _, err := (Generator{}).Generate(context.Background(), 10, w); !errors.Is(err, ErrInvalidWindow) {
			t.Fatalf("window %v: expected ErrInvalidWindow, got %v", w, err)
		}
	}
}

func TestGenerate_LifecycleInvariants(t *testing.T) {
	users, err := Generator{Seed: 7}.Generate(context.Background(), 3000, testWindow)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(users) != 3000 {
		t.Fatalf("got %d users", len(users))
	}
	seen := map[string]bool{}
	for _, u := range users {
		if seen[u.UserID] {
			t.Fatalf("duplicate id %s", u.UserID)
		}
		seen[u.UserID] = true

		if u.SignUpDate.Before(testWindow.Start) || u.SignUpDate.After(testWindow.End) {
			t.Fatalf("%s: sign-up %v outside window", u.UserID, u.SignUpDate)
		}
		if u.ConvertedToPaid != (u.ConversionDate != nil) {
			t.Fatalf("%s: converted flag/date mismatch", u.UserID)
		}
		if u.Churned != (u.ChurnDate != nil) {
			t.Fatalf("%s: churned flag/date mismatch", u.UserID)
		}
		if u.ConvertedToPaid && (u.InitialPlan != models.PlanFree || !u.Activated) {
			t.Fatalf("%s: conversion requires activated Free user", u.UserID)
		}
		if u.LifetimeDays < 0 || u.CAC < 0 {
			t.Fatalf("%s: negative lifetime or cac", u.UserID)
		}

		prev := u.SignUpDate
		for _, c := range u.PlanChanges {
			if !c.Date.After(prev) || c.Date.After(testWindow.End) {
				t.Fatalf("%s: plan change %v out of order", u.UserID, c)
			}
			prev = c.Date
		}
		if u.ChurnDate != nil {
			if !u.ChurnDate.After(prev) || u.ChurnDate.After(testWindow.End) {
				t.Fatalf("%s: churn %v not after last event %v", u.UserID, u.ChurnDate, prev)
			}
		}
		if u.PlanAt(testWindow.End) != u.CurrentPlan {
			t.Fatalf("%s: timeline ends on %s, current plan %s", u.UserID, u.PlanAt(testWindow.End), u.CurrentPlan)
		}
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	g := Generator{Seed: 42}
	a, err := g.Generate(context.Background(), 500, testWindow)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	b, err := g.Generate(context.Background(), 500, testWindow)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatal("two runs with the same seed differ")
	}

	c, err := Generator{Seed: 43}.Generate(context.Background(), 500, testWindow)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if reflect.DeepEqual(a, c) {
		t.Fatal("different seeds produced identical tables")
	}
}

func TestGenerate_ParallelMatchesSequential(t *testing.T) {
	seq, err := Generator{Seed: 42}.Generate(context.Background(), 1001, testWindow)
	if err != nil {
		t.Fatalf("sequential: %v", err)
	}
	par, err := Generator{Seed: 42, Workers: 4}.Generate(context.Background(), 1001, testWindow)
	if err != nil {
		t.Fatalf("parallel: %v", err)
	}
	if !reflect.DeepEqual(seq, par) {
		t.Fatal("parallel output differs from sequential output")
	}
}

func TestGenerate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (Generator{}).Generate(ctx, 10, testWindow); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestGenerate_RatesWithinSamplingNoise(t *testing.T) {
	users, err := Generator{Seed: 42}.Generate(context.Background(), 1000, testWindow)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	var activated, inactive, inactiveChurned, pro, proChurned int
	for _, u := range users {
		if u.Activated {
			activated++
		} else {
			inactive++
			if u.Churned {
				inactiveChurned++
			}
		}
		if u.Activated && u.CurrentPlan == models.PlanPro {
			pro++
			if u.Churned {
				proChurned++
			}
		}
	}

	rate := float64(activated) / float64(len(users))
	if rate < 0.60 || rate > 0.70 {
		t.Fatalf("activation rate %.3f outside [0.60, 0.70]", rate)
	}
	if pro == 0 || inactive == 0 {
		t.Fatalf("degenerate sample: pro=%d inactive=%d", pro, inactive)
	}
	inactiveRate := float64(inactiveChurned) / float64(inactive)
	proRate := float64(proChurned) / float64(pro)
	if inactiveRate <= proRate {
		t.Fatalf("unactivated churn %.3f should exceed Pro churn %.3f", inactiveRate, proRate)
	}
}

func TestGenerate_Progress(t *testing.T) {
	calls := 0
	g := Generator{Seed: 1, Progress: func() { calls++ }}
	if _, err := g.Generate(context.Background(), 25, testWindow); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if calls != 25 {
		t.Fatalf("progress called %d times, want 25", calls)
	}
}

func TestSignUpFraction_FrontLoaded(t *testing.T) {
	const n = 20000
	sum := 0.0
	for i := 0; i < n; i++ {
		x := signUpFraction(NewUserSource(5, i))
		if x < 0 || x > 1 {
			t.Fatalf("draw %d = %v outside [0, 1]", i, x)
		}
		sum += x
	}
	// Beta(2, 5) has mean 2/7.
	if mean := sum / n; mean < 0.27 || mean > 0.30 {
		t.Fatalf("mean sign-up fraction = %v, want about 0.286", mean)
	}
}
