package metrics

import (
	"fmt"

	"saas-growth/pkg/models"
)

// retainedPaidDays is the survival threshold of the last funnel stage.
const retainedPaidDays = 30

// FunnelStage is one step of the sign-up → paid → retained funnel.
// ConversionRate is relative to the previous stage.
type FunnelStage struct {
	Stage          string
	Users          int
	ConversionRate float64
	CumulativeRate float64
}

// Funnel computes stage-wise conditional conversion rates.
func Funnel(users []models.User) []FunnelStage {
	var activated, freeActivated, converted, retained int
	for _, u := range users {
		if u.Activated {
			activated++
			if u.InitialPlan == models.PlanFree {
				freeActivated++
			}
		}
		if u.ConvertedToPaid {
			converted++
			if !u.Churned || u.LifetimeDays > retainedPaidDays {
				retained++
			}
		}
	}

	activation := SafeDivide(float64(activated), float64(len(users)))
	conversion := SafeDivide(float64(converted), float64(freeActivated))
	retention := SafeDivide(float64(retained), float64(converted))

	return []FunnelStage{
		{Stage: "Total Sign-ups", Users: len(users), ConversionRate: 1, CumulativeRate: 1},
		{Stage: "Activated", Users: activated, ConversionRate: activation, CumulativeRate: activation},
		{Stage: "Converted to Paid", Users: converted, ConversionRate: conversion, CumulativeRate: activation * conversion},
		{Stage: fmt.Sprintf("Retained (%d+ days)", retainedPaidDays), Users: retained, ConversionRate: retention,
			CumulativeRate: activation * conversion * retention},
	}
}

// SegmentSummary aggregates activation, conversion and churn for a segment.
type SegmentSummary struct {
	Segment        string
	TotalUsers     int
	Activated      int
	ActivationRate float64
	Converted      int
	ConversionRate float64
	Churned        int
	ChurnRate      float64
}

// ConversionSummary segments users overall, by channel and by current plan.
// Empty segments are omitted.
func ConversionSummary(users []models.User) []SegmentSummary {
	out := []SegmentSummary{summarize("Overall", users)}
	for _, ch := range models.Channels {
		if s := summarize("Channel: "+string(ch), filterUsers(users, func(u models.User) bool {
			return u.AcquisitionChannel == ch
		})); s.TotalUsers > 0 {
			out = append(out, s)
		}
	}
	for _, p := range models.Plans {
		if s := summarize("Plan: "+string(p), filterUsers(users, func(u models.User) bool {
			return u.CurrentPlan == p
		})); s.TotalUsers > 0 {
			out = append(out, s)
		}
	}
	return out
}

func summarize(segment string, users []models.User) SegmentSummary {
	s := SegmentSummary{Segment: segment, TotalUsers: len(users)}
	for _, u := range users {
		if u.Activated {
			s.Activated++
		}
		if u.ConvertedToPaid {
			s.Converted++
		}
		if u.Churned {
			s.Churned++
		}
	}
	n := float64(len(users))
	s.ActivationRate = SafeDivide(float64(s.Activated), n)
	s.ConversionRate = SafeDivide(float64(s.Converted), n)
	s.ChurnRate = SafeDivide(float64(s.Churned), n)
	return s
}

func filterUsers(users []models.User, keep func(models.User) bool) []models.User {
	var out []models.User
	for _, u := range users {
		if keep(u) {
			out = append(out, u)
		}
	}
	return out
}
