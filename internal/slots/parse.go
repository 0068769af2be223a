package slots

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrUnparsable is returned when free text does not describe a date and time.
var ErrUnparsable = errors.New("slots: unrecognized date/time")

var (
	relativeWhen = regexp.MustCompile(`(?i)^(today|tomorrow)\s+(\d{1,2})(?::(\d{2}))?\s*([ap]\.?m\.?)$`)
	isoWhen      = regexp.MustCompile(`(?i)^(\d{4})-(\d{2})-(\d{2})\s+(\d{1,2})(?::(\d{2}))?\s*([ap]\.?m\.?)$`)
	usWhen       = regexp.MustCompile(`(?i)^(\d{1,2})/(\d{1,2})/(\d{4})\s+(\d{1,2})(?::(\d{2}))?\s*([ap]\.?m\.?)$`)
	iso24When    = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})\s+(\d{1,2}):(\d{2})$`)
)

// ParseWhen reads phrases like "today 6pm", "tomorrow 7:30 am",
// "2025-09-21 2:30 PM", "9/21/2025 2 pm" or "2025-09-21 14:30" and returns
// the time rounded up to the next quarter hour.
func (g *Generator) ParseWhen(text string) (time.Time, error) {
	s := strings.Join(strings.Fields(text), " ")
	if s == "" {
		return time.Time{}, ErrUnparsable
	}

	if m := relativeWhen.FindStringSubmatch(s); m != nil {
		day := g.now()
		if strings.EqualFold(m[1], "tomorrow") {
			day = day.AddDate(0, 0, 1)
		}
		h, mm, ok := to24h(m[2], m[3], m[4])
		if !ok {
			return time.Time{}, ErrUnparsable
		}
		return g.build(day.Year(), int(day.Month()), day.Day(), h, mm)
	}
	if m := isoWhen.FindStringSubmatch(s); m != nil {
		h, mm, ok := to24h(m[4], m[5], m[6])
		if !ok {
			return time.Time{}, ErrUnparsable
		}
		return g.build(atoi(m[1]), atoi(m[2]), atoi(m[3]), h, mm)
	}
	if m := usWhen.FindStringSubmatch(s); m != nil {
		h, mm, ok := to24h(m[4], m[5], m[6])
		if !ok {
			return time.Time{}, ErrUnparsable
		}
		return g.build(atoi(m[3]), atoi(m[1]), atoi(m[2]), h, mm)
	}
	if m := iso24When.FindStringSubmatch(s); m != nil {
		return g.build(atoi(m[1]), atoi(m[2]), atoi(m[3]), atoi(m[4]), atoi(m[5]))
	}
	return time.Time{}, ErrUnparsable
}

// build rejects out-of-range components instead of letting time.Date normalize them.
func (g *Generator) build(year, month, day, hour, minute int) (time.Time, error) {
	if month < 1 || month > 12 || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return time.Time{}, ErrUnparsable
	}
	t := time.Date(year, time.Month(month), day, hour, minute, 0, 0, g.Location)
	if t.Day() != day {
		return time.Time{}, ErrUnparsable
	}
	return RoundTo15(t), nil
}

func to24h(hour, minute, meridiem string) (int, int, bool) {
	h := atoi(hour)
	m := 0
	if minute != "" {
		m = atoi(minute)
	}
	if h < 1 || h > 12 {
		return 0, 0, false
	}
	pm := strings.HasPrefix(strings.ToLower(meridiem), "p")
	switch {
	case pm && h != 12:
		h += 12
	case !pm && h == 12:
		h = 0
	}
	return h, m, true
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}
