// Package slots builds the date and time options offered by the booking picker
// and normalizes requested times onto quarter-hour boundaries.
package slots

import (
	"fmt"
	"time"
)

const (
	// DateLayout is the ISO date carried in picker payloads.
	DateLayout = "2006-01-02"
	// WhenLayout is how a desired time is stored and displayed.
	WhenLayout = "2006-01-02 15:04"

	firstSlotHour = 6
	slotStep      = 30 * time.Minute
)

// Slot is one selectable picker option.
type Slot struct {
	Label string
	// Date is set for date slots (YYYY-MM-DD).
	Date string
	// Epoch is set for time slots.
	Epoch int64
}

// Generator produces picker options in the display timezone.
type Generator struct {
	Location  *time.Location
	DaysAhead int
	Now       func() time.Time
}

// NewGenerator returns a generator for loc showing daysAhead days.
func NewGenerator(loc *time.Location, daysAhead int) *Generator {
	if loc == nil {
		loc = time.UTC
	}
	if daysAhead <= 0 {
		daysAhead = 5
	}
	return &Generator{Location: loc, DaysAhead: daysAhead, Now: time.Now}
}

func (g *Generator) now() time.Time {
	if g.Now == nil {
		return time.Now().In(g.Location)
	}
	return g.Now().In(g.Location)
}

// Dates returns one slot per day starting today.
func (g *Generator) Dates() []Slot {
	now := g.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, g.Location)
	out := make([]Slot, 0, g.DaysAhead)
	for i := 0; i < g.DaysAhead; i++ {
		d := today.AddDate(0, 0, i)
		label := d.Format("Mon, Jan 02")
		if i == 0 {
			label = "Today, " + label
		}
		out = append(out, Slot{Label: label, Date: d.Format(DateLayout)})
	}
	return out
}

// Times returns the slots from 6:00 AM through 11:59 PM of day, every 30 minutes.
func (g *Generator) Times(day time.Time) []Slot {
	day = day.In(g.Location)
	cur := time.Date(day.Year(), day.Month(), day.Day(), firstSlotHour, 0, 0, 0, g.Location)
	end := time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 0, 0, g.Location)
	var out []Slot
	for !cur.After(end) {
		out = append(out, Slot{Label: FormatClock(cur), Epoch: cur.Unix()})
		cur = cur.Add(slotStep)
	}
	return out
}

// ParseDate reads a YYYY-MM-DD picker value in the display timezone.
func (g *Generator) ParseDate(value string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, value, g.Location)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse picker date %q: %w", value, err)
	}
	return t, nil
}

// FromEpoch converts epoch seconds into the display timezone.
func (g *Generator) FromEpoch(epoch int64) time.Time {
	return time.Unix(epoch, 0).In(g.Location)
}

// RoundTo15 rounds t up to the next quarter hour, dropping seconds.
// A value already on a boundary is returned unchanged.
func RoundTo15(t time.Time) time.Time {
	minutes := (t.Minute() + 14) / 15 * 15
	base := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
	if minutes == 60 {
		return base.Add(time.Hour)
	}
	return base.Add(time.Duration(minutes) * time.Minute)
}

// FormatClock renders a 12-hour clock label such as "6:30 PM".
func FormatClock(t time.Time) string {
	return t.Format("3:04 PM")
}

// FormatWhen renders a stored desired time.
func FormatWhen(t time.Time) string {
	return t.Format(WhenLayout)
}
