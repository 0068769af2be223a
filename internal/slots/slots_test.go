package slots

import (
	"testing"
	"time"
)

func chicago(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Chicago")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	return loc
}

func TestRoundTo15(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2025-09-21 10:00:00", "2025-09-21 10:00"},
		{"2025-09-21 10:01:00", "2025-09-21 10:15"},
		{"2025-09-21 10:15:00", "2025-09-21 10:15"},
		{"2025-09-21 10:29:59", "2025-09-21 10:30"},
		{"2025-09-21 10:46:00", "2025-09-21 11:00"},
		{"2025-09-21 23:50:00", "2025-09-22 00:00"},
	}
	for _, tt := range tests {
		in, err := time.ParseInLocation("2006-01-02 15:04:05", tt.in, time.UTC)
		if err != nil {
			t.Fatalf("parse %s: %v", tt.in, err)
		}
		if got := FormatWhen(RoundTo15(in)); got != tt.want {
			t.Fatalf("RoundTo15(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestRoundTo15Idempotent(t *testing.T) {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 24*60; i += 7 {
		in := start.Add(time.Duration(i)*time.Minute + 13*time.Second)
		once := RoundTo15(in)
		twice := RoundTo15(once)
		if !once.Equal(twice) {
			t.Fatalf("RoundTo15 not idempotent for %v: %v vs %v", in, once, twice)
		}
		switch once.Minute() {
		case 0, 15, 30, 45:
		default:
			t.Fatalf("RoundTo15(%v) minute = %d", in, once.Minute())
		}
		if once.Second() != 0 || once.Before(in.Truncate(time.Minute)) {
			t.Fatalf("RoundTo15(%v) = %v", in, once)
		}
	}
}

func TestDates(t *testing.T) {
	loc := chicago(t)
	g := NewGenerator(loc, 5)
	g.Now = func() time.Time { return time.Date(2025, 9, 21, 22, 0, 0, 0, loc) }

	dates := g.Dates()
	if len(dates) != 5 {
		t.Fatalf("expected 5 dates, got %d", len(dates))
	}
	if dates[0].Label != "Today, Sun, Sep 21" || dates[0].Date != "2025-09-21" {
		t.Fatalf("unexpected first slot: %+v", dates[0])
	}
	if dates[1].Label != "Mon, Sep 22" || dates[4].Date != "2025-09-25" {
		t.Fatalf("unexpected slots: %+v", dates)
	}
}

func TestTimesAreThirtyMinutesApart(t *testing.T) {
	loc := chicago(t)
	g := NewGenerator(loc, 5)
	for _, iso := range []string{"2025-09-21", "2025-03-09", "2025-11-02"} {
		day, err := g.ParseDate(iso)
		if err != nil {
			t.Fatalf("ParseDate: %v", err)
		}
		times := g.Times(day)
		if len(times) != 36 {
			t.Fatalf("%s: expected 36 slots, got %d", iso, len(times))
		}
		if times[0].Label != "6:00 AM" || times[len(times)-1].Label != "11:30 PM" {
			t.Fatalf("%s: unexpected bounds %s..%s", iso, times[0].Label, times[len(times)-1].Label)
		}
		for i := 1; i < len(times); i++ {
			if times[i].Epoch-times[i-1].Epoch != 1800 {
				t.Fatalf("%s: slot %d not 30 minutes after previous", iso, i)
			}
		}
	}
}

func TestParseWhen(t *testing.T) {
	loc := chicago(t)
	g := NewGenerator(loc, 5)
	g.Now = func() time.Time { return time.Date(2025, 9, 21, 9, 0, 0, 0, loc) }

	tests := []struct {
		in   string
		want string
	}{
		{"today 6pm", "2025-09-21 18:00"},
		{"Tomorrow 7:31 a.m.", "2025-09-22 07:45"},
		{"2025-09-21 2:30 PM", "2025-09-21 14:30"},
		{"9/21/2025 12 am", "2025-09-21 00:00"},
		{"2025-09-21   14:50", "2025-09-21 15:00"},
	}
	for _, tt := range tests {
		got, err := g.ParseWhen(tt.in)
		if err != nil {
			t.Fatalf("ParseWhen(%q): %v", tt.in, err)
		}
		if FormatWhen(got) != tt.want {
			t.Fatalf("ParseWhen(%q) = %s, want %s", tt.in, FormatWhen(got), tt.want)
		}
	}

	for _, bad := range []string{"", "whenever", "2025-02-30 1 pm", "today 13pm", "2025-09-21 25:00"} {
		if _, err := g.ParseWhen(bad); err == nil {
			t.Fatalf("ParseWhen(%q) expected error", bad)
		}
	}
}
