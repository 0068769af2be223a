package conversation

import (
	"fmt"
	"strings"

	"github.com/m3rciful/ridebot/internal/trip"
)

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}

// RenderTrips formats the "my trips" listing.
func RenderTrips(trips []trip.Trip) string {
	lines := make([]string, 0, len(trips))
	for _, t := range trips {
		line := fmt.Sprintf("#%s: %s → %s\n  %.1f mi • %d min • $%.2f • %s • %s • %s %s",
			t.ID, orDash(t.Dep.Label), orDash(t.Dest.Label),
			t.Miles, t.Minutes, t.Fare, orDash(string(t.Status)),
			orDash(t.DesiredTimeText), orDash(t.DriverName), t.DriverCar)
		lines = append(lines, strings.TrimSpace(line))
	}
	return "Your recent trips:\n\n" + strings.Join(lines, "\n\n")
}
