package workdays_test

import (
	"testing"
	"time"

	"github.com/oredesk/permitflow/internal/pkg/workdays"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 0, 0, 0, time.UTC)
}

func TestAdd_SkipsWeekend(t *testing.T) {
	// 2026-01-02 is a Friday; +1 working day lands on Monday the 5th.
	got := workdays.Add(date(2026, time.January, 2), 1)
	if got.Day() != 5 || got.Weekday() != time.Monday {
		t.Fatalf("expected Monday Jan 5, got %s", got)
	}
}

func TestAdd_MidWeek(t *testing.T) {
	// Monday + 3 working days = Thursday same week.
	got := workdays.Add(date(2026, time.January, 5), 3)
	if got.Weekday() != time.Thursday || got.Day() != 8 {
		t.Fatalf("expected Thursday Jan 8, got %s", got)
	}
}

func TestAdd_FourteenDays(t *testing.T) {
	// 14 working days from a Monday spans exactly two weekends.
	start := date(2026, time.January, 5)
	got := workdays.Add(start, 14)
	if got.Weekday() != time.Friday || got.Day() != 23 {
		t.Fatalf("expected Friday Jan 23, got %s", got)
	}
}

func TestAdd_ZeroIsIdentity(t *testing.T) {
	start := date(2026, time.January, 3) // Saturday
	if got := workdays.Add(start, 0); !got.Equal(start) {
		t.Fatalf("expected unchanged, got %s", got)
	}
}

func TestAdd_FromWeekend(t *testing.T) {
	// Saturday + 1 working day = Monday.
	got := workdays.Add(date(2026, time.January, 3), 1)
	if got.Weekday() != time.Monday {
		t.Fatalf("expected Monday, got %s", got.Weekday())
	}
}

func TestBetween(t *testing.T) {
	from := date(2026, time.January, 2) // Friday
	to := date(2026, time.January, 7)   // Wednesday
	if n := workdays.Between(from, to); n != 3 {
		t.Fatalf("expected 3 working days, got %d", n)
	}
	if n := workdays.Between(to, from); n != 0 {
		t.Fatalf("expected 0 for reversed range, got %d", n)
	}
}

func TestIsWeekend(t *testing.T) {
	if !workdays.IsWeekend(date(2026, time.January, 3)) {
		t.Error("Saturday should be a weekend")
	}
	if workdays.IsWeekend(date(2026, time.January, 5)) {
		t.Error("Monday should not be a weekend")
	}
}
