package calculator

import (
	"context"
	"errors"
	"testing"
	"time"

	"saas-growth/pkg/models"

	"github.com/rs/zerolog"
)

func TestParseMonth_Valid(t *testing.T) {
	got, err := parseMonth("032025")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestParseMonth_InvalidLength(t *testing.T) {
	_, err := parseMonth("32025") // 5 chars
	if !errors.Is(err, ErrInvalidMonth) {
		t.Fatalf("expected ErrInvalidMonth, got %v", err)
	}
}

func TestParseMonth_InvalidMonth(t *testing.T) {
	_, err := parseMonth("132025") // 13th month
	if !errors.Is(err, ErrInvalidMonth) {
		t.Fatalf("expected ErrInvalidMonth, got %v", err)
	}
}

func TestParseMonth_NonDigit(t *testing.T) {
	if _, err := parseMonth("0a2025"); err == nil {
		t.Fatal("expected error for non-digit month, got nil")
	}
}

func TestFormatMonth(t *testing.T) {
	d := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	if fm := formatMonth(d); fm != "11/2025" {
		t.Fatalf("got %q, want %q", fm, "11/2025")
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func fixture() ([]models.User, []models.Invoice) {
	users := []models.User{
		{UserID: "U1", SignUpDate: day(2024, 1, 3)},
		{UserID: "U2", SignUpDate: day(2024, 1, 20)},
		{UserID: "U3", SignUpDate: day(2024, 3, 9)},
	}
	invoices := []models.Invoice{
		{CustomerID: "U1", Date: day(2024, 1, 10), Amount: 49},
		{CustomerID: "U1", Date: day(2024, 2, 10), Amount: 49},
		{CustomerID: "U3", Date: day(2024, 3, 9), Amount: 199},
		{CustomerID: "U3", Date: day(2024, 4, 9), Amount: 199}, // after observation
	}
	return users, invoices
}

func TestRun_DefaultBounds(t *testing.T) {
	users, invoices := fixture()
	got, err := Run(context.Background(), users, invoices, Config{Observation: day(2024, 3, 31)}, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d cohorts, want 3", len(got))
	}
	jan := got[0]
	if jan.MonthYear != "01/2024" || jan.CohortClients != 2 || jan.PayingClients != 1 || jan.InvoicesRead != 2 || jan.LTVAvg != 49 {
		t.Fatalf("january: %+v", jan)
	}
	if got[1].CohortClients != 0 || got[1].LTVAvg != 0 {
		t.Fatalf("empty february cohort: %+v", got[1])
	}
	if got[2].InvoicesRead != 1 || got[2].LTVAvg != 199 {
		t.Fatalf("march: %+v", got[2])
	}
}

func TestRun_ExplicitBounds(t *testing.T) {
	users, invoices := fixture()
	cfg := Config{StartMonthInclusive: "032024", EndMonthInclusive: "032024", Observation: day(2024, 4, 30)}
	got, err := Run(context.Background(), users, invoices, cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].LTVAvg != 398 {
		t.Fatalf("got %+v", got)
	}
}

func TestRun_EndBeforeStart(t *testing.T) {
	users, invoices := fixture()
	cfg := Config{StartMonthInclusive: "062024", EndMonthInclusive: "012024", Observation: day(2024, 6, 30)}
	if _, err := Run(context.Background(), users, invoices, cfg, zerolog.Nop()); !errors.Is(err, ErrInvalidMonth) {
		t.Fatalf("expected ErrInvalidMonth, got %v", err)
	}
}

func TestRun_Cancelled(t *testing.T) {
	users, invoices := fixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Run(ctx, users, invoices, Config{Observation: day(2024, 3, 31)}, zerolog.Nop()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
