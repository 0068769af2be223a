package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/m3rciful/ridebot/core/logger"
	"github.com/m3rciful/ridebot/core/metrics"
	"github.com/m3rciful/ridebot/core/telegram/callbacks"
	"github.com/m3rciful/ridebot/internal/fare"
	"github.com/m3rciful/ridebot/internal/geo"
	"github.com/m3rciful/ridebot/internal/messaging"
	"github.com/m3rciful/ridebot/internal/phone"
	"github.com/m3rciful/ridebot/internal/session"
	"github.com/m3rciful/ridebot/internal/trip"
)

const dataPickup = "pickup_raw"

func (c *Controller) onPickup(ctx context.Context, m Message) error {
	text := strings.TrimSpace(m.Text)
	if text == "" {
		c.send(ctx, m.ChatID, "Please enter the pickup address.", nil)
		return nil
	}
	next := &session.Session{
		UserID: m.SenderID,
		State:  session.AwaitDropoff{},
		Data:   map[string]string{dataPickup: text},
	}
	if err := c.sessions.Put(ctx, next); err != nil {
		return c.fail(ctx, m.ChatID, "session.put", err)
	}
	c.send(ctx, m.ChatID, "Got it. Now enter the drop-off address:", nil)
	return nil
}

func (c *Controller) onDropoff(ctx context.Context, m Message, sess *session.Session) error {
	text := strings.TrimSpace(m.Text)
	if text == "" {
		c.send(ctx, m.ChatID, "Please enter the drop-off address.", nil)
		return nil
	}
	pickup := sess.Data[dataPickup]
	if pickup == "" {
		return c.NewRide(ctx, m)
	}

	dep, err := c.geo.Geocode(ctx, pickup)
	if err != nil {
		c.reset(ctx, m, "Could not find the pickup address. Please include street, city, and state.", "geocode_pickup", ignoreNoMatch(err))
		return nil
	}
	dest, err := c.geo.Geocode(ctx, text)
	if err != nil {
		c.reset(ctx, m, "Could not find the drop-off address. Please include street, city, and state.", "geocode_dropoff", ignoreNoMatch(err))
		return nil
	}
	rt, err := c.geo.Route(ctx, dep, dest)
	if err == nil && (rt.Meters <= 0 || rt.Seconds <= 0) {
		err = geo.ErrNoRoute
	}
	if err != nil {
		c.reset(ctx, m, "Could not calculate the route. Please check the addresses and try again.", "route", err)
		return nil
	}

	miles := fare.MetersToMiles(rt.Meters)
	minutes := fare.SecondsToMinutes(rt.Seconds)
	price := c.rates.Quote(miles, minutes)
	t, err := c.trips.Create(ctx, trip.NewTrip{
		UserID:   m.SenderID,
		ChatID:   m.ChatID,
		Username: m.Username,
		Dep:      trip.Place(dep),
		Dest:     trip.Place(dest),
		Miles:    miles,
		Minutes:  int(minutes),
		Fare:     price,
	})
	if err != nil {
		c.clearSession(ctx, m.SenderID)
		return c.fail(ctx, m.ChatID, "trip.create", err)
	}
	metrics.TripsCreated.Inc()

	if err := c.sessions.Put(ctx, &session.Session{UserID: m.SenderID, State: session.AwaitWhen{TripID: t.ID}}); err != nil {
		return c.fail(ctx, m.ChatID, "session.put", err)
	}
	summary := fmt.Sprintf("✅ Ride summary:\n• Pickup: %s\n• Drop-off: %s\n\nDistance: %.1f miles\nETA: %d min\nPrice: $%.2f\n\nWhen do you need the car?",
		dep.Label, dest.Label, miles, int(minutes), price)
	c.send(ctx, m.ChatID, summary, messaging.InlineRows(
		[]messaging.Button{{Text: "📆 Pick date & time", Data: callbacks.Data(callbacks.VerbDateSelect, t.ID)}},
	))
	logger.Info(ctx, component, "conversation.quote",
		slog.String("status", "ok"),
		slog.String("trip_id", t.ID),
		slog.Float64("miles", miles),
		slog.Float64("fare", price),
	)
	return nil
}

// ignoreNoMatch drops the plain "nothing found" error so only provider
// failures are logged with a cause.
func ignoreNoMatch(err error) error {
	if errors.Is(err, geo.ErrNoMatch) {
		return nil
	}
	return err
}

func (c *Controller) onPhone(ctx context.Context, m Message, tripID string) error {
	number, err := phone.Normalize(m.Text, c.opts.CountryCode)
	if err != nil {
		c.send(ctx, m.ChatID, "Phone format is invalid. Please enter like +1 850 555 1234.", nil)
		return nil
	}
	t, err := c.trips.SetPhone(ctx, tripID, number)
	switch {
	case errors.Is(err, trip.ErrNotFound):
		c.clearSession(ctx, m.SenderID)
		c.send(ctx, m.ChatID, textSomethingWrong, nil)
		return nil
	case errors.Is(err, trip.ErrStatusConflict):
		c.clearSession(ctx, m.SenderID)
		c.send(ctx, m.ChatID, alreadyText(t), nil)
		return nil
	case err != nil:
		return c.fail(ctx, m.ChatID, "trip.set_phone", err)
	}
	if err := c.trips.SavePhone(ctx, m.SenderID, number); err != nil {
		logger.Warn(ctx, component, "profile.save",
			slog.String("status", "fail"),
			slog.Int64("user_id", m.SenderID),
			slog.String("err", err.Error()),
		)
	}
	c.askConfirm(ctx, m.ChatID, t, fmt.Sprintf("Thanks! Phone saved: %s", number))
	c.clearSession(ctx, m.SenderID)
	return nil
}

func (c *Controller) askConfirm(ctx context.Context, chatID int64, t *trip.Trip, lead string) {
	when := t.DesiredTimeText
	if when == "" {
		when = "unspecified"
	}
	text := fmt.Sprintf("%s\nRequested time: %s\n\nReady to confirm ride #%s?", lead, when, t.ID)
	c.send(ctx, chatID, text, messaging.InlineRows(
		[]messaging.Button{{Text: fmt.Sprintf("Confirm $%.2f", t.Fare), Data: callbacks.Data(callbacks.VerbConfirm, t.ID)}},
	))
}
