// Package dispatch fans confirmed trips out to drivers and resolves the
// first accept.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/m3rciful/ridebot/core/logger"
	"github.com/m3rciful/ridebot/core/metrics"
	"github.com/m3rciful/ridebot/core/telegram/callbacks"
	"github.com/m3rciful/ridebot/core/telegram/sender"
	"github.com/m3rciful/ridebot/internal/messaging"
	"github.com/m3rciful/ridebot/internal/trip"
)

const component = "dispatch"

// Trips is the part of the trip store the broadcaster needs.
type Trips interface {
	Get(ctx context.Context, id string) (*trip.Trip, error)
	Transition(ctx context.Context, id string, from, to trip.Status, d *trip.Driver) (*trip.Trip, error)
}

// Tap is a driver pressing accept or decline on a broadcast message.
type Tap struct {
	TripID string
	// DriverID is the driver named in the button payload.
	DriverID int64
	// SenderID is the user who pressed the button.
	SenderID  int64
	ChatID    int64
	MessageID int
}

// Summary reports how a broadcast went.
type Summary struct {
	Delivered int
	Failed    int
}

// Broadcaster sends trips to drivers and handles their answers.
type Broadcaster struct {
	trips   Trips
	gw      messaging.Gateway
	drivers Directory
	fan     *sender.FanOut
}

// New returns a Broadcaster. A nil fan gets default options.
func New(trips Trips, gw messaging.Gateway, drivers Directory, fan *sender.FanOut) *Broadcaster {
	if fan == nil {
		fan = sender.NewFanOut(sender.Options{})
	}
	return &Broadcaster{trips: trips, gw: gw, drivers: drivers, fan: fan}
}

// DriverText renders the request as shown to drivers.
func DriverText(t *trip.Trip) string {
	return fmt.Sprintf("🚖 New ride request #%s\nClient phone: %s\nWhen: %s\n%s → %s\n%.1f mi • %d min • $%.2f",
		t.ID, t.PassengerPhone, t.DesiredTimeText, t.Dep.Label, t.Dest.Label, t.Miles, t.Minutes, t.Fare)
}

// Broadcast sends t to every registered driver with accept and decline buttons.
func (b *Broadcaster) Broadcast(ctx context.Context, t *trip.Trip) Summary {
	if len(b.drivers.IDs) == 0 {
		logger.Warn(ctx, component, "dispatch.broadcast",
			slog.String("status", "skip"),
			slog.String("trip_id", t.ID),
			slog.String("reason", "no_drivers"),
		)
		return Summary{}
	}
	text := DriverText(t)
	tasks := make([]sender.Task, 0, len(b.drivers.IDs))
	for _, id := range b.drivers.IDs {
		id := id
		did := strconv.FormatInt(id, 10)
		markup := messaging.InlineRows(
			[]messaging.Button{{Text: "Accept " + t.ID, Data: callbacks.Data(callbacks.VerbAccept, t.ID, did)}},
			[]messaging.Button{{Text: "Decline " + t.ID, Data: callbacks.Data(callbacks.VerbDecline, t.ID, did)}},
		)
		tasks = append(tasks, sender.Task{Key: did, Run: func(ctx context.Context) error {
			_, err := b.gw.Send(ctx, id, text, markup)
			return err
		}})
	}

	var sum Summary
	for _, r := range b.fan.Run(ctx, "broadcast", tasks) {
		if r.Err != nil {
			sum.Failed++
			metrics.Dispatch(metrics.OutcomeDeliveryFail)
			continue
		}
		sum.Delivered++
	}
	metrics.Dispatch(metrics.OutcomeBroadcast)
	status := "ok"
	if sum.Delivered == 0 {
		status = "fail"
	}
	logger.Info(ctx, component, "dispatch.broadcast",
		slog.String("status", status),
		slog.String("trip_id", t.ID),
		slog.Int("count", sum.Delivered),
		slog.Int("failed", sum.Failed),
	)
	return sum
}

func (b *Broadcaster) verify(ctx context.Context, action string, tap Tap) bool {
	if tap.SenderID == tap.DriverID && b.drivers.Has(tap.DriverID) {
		return true
	}
	logger.Warn(ctx, component, "dispatch."+action,
		slog.String("status", "skip"),
		slog.String("trip_id", tap.TripID),
		slog.Int64("driver_id", tap.DriverID),
		slog.Int64("user_id", tap.SenderID),
		slog.String("reason", "not_driver"),
	)
	return false
}

// Accept assigns the trip to the tapping driver if it is still pending. The
// status check and the assignment are one conditional write, so among
// concurrent accepts exactly one wins; the others are told who took it.
func (b *Broadcaster) Accept(ctx context.Context, tap Tap) error {
	if !b.verify(ctx, "accept", tap) {
		return nil
	}
	prof := b.drivers.Profile(tap.DriverID)
	driver := &trip.Driver{ID: tap.DriverID, Name: prof.Name, Car: prof.Car}

	t, err := b.trips.Transition(ctx, tap.TripID, trip.StatusPending, trip.StatusAccepted, driver)
	switch {
	case errors.Is(err, trip.ErrNotFound):
		messaging.EditOrClear(ctx, b.gw, tap.ChatID, tap.MessageID, fmt.Sprintf("❌ Ride #%s not found.", tap.TripID))
		return nil
	case errors.Is(err, trip.ErrStatusConflict):
		metrics.Dispatch(metrics.OutcomeAcceptLost)
		text := fmt.Sprintf("ℹ️ Ride #%s is already %s.", t.ID, t.Status)
		if t.Status == trip.StatusAccepted {
			takenBy := t.DriverName
			if takenBy == "" {
				takenBy = "another driver"
			}
			text = fmt.Sprintf("ℹ️ Ride #%s already accepted by %s.", t.ID, takenBy)
		}
		messaging.EditOrClear(ctx, b.gw, tap.ChatID, tap.MessageID, text)
		return nil
	case err != nil:
		return fmt.Errorf("accept %s: %w", tap.TripID, err)
	}

	metrics.Dispatch(metrics.OutcomeAccepted)
	logger.Info(ctx, component, "dispatch.accept",
		slog.String("status", "ok"),
		slog.String("trip_id", t.ID),
		slog.Int64("driver_id", tap.DriverID),
	)
	messaging.EditOrClear(ctx, b.gw, tap.ChatID, tap.MessageID, fmt.Sprintf("✅ Ride #%s accepted.", t.ID))

	passenger := fmt.Sprintf("✅ Your request #%s has been confirmed.\nDriver: %s\nCar: %s\nDriver will contact you via SMS.",
		t.ID, prof.Name, prof.Car)
	if _, ok := messaging.SendLogged(ctx, b.gw, t.ChatID, passenger, nil); !ok {
		messaging.SendLogged(ctx, b.gw, tap.ChatID,
			fmt.Sprintf("⚠️ Could not notify the client for ride #%s. Please contact them by SMS.", t.ID), nil)
		return nil
	}
	messaging.SendLogged(ctx, b.gw, tap.ChatID, fmt.Sprintf("✅ Client notified for ride #%s.", t.ID), nil)
	return nil
}

// Decline acknowledges the driver's own message and, only while the trip is
// still pending, marks it declined and tells the passenger.
func (b *Broadcaster) Decline(ctx context.Context, tap Tap) error {
	if !b.verify(ctx, "decline", tap) {
		return nil
	}
	messaging.EditOrClear(ctx, b.gw, tap.ChatID, tap.MessageID, fmt.Sprintf("❌ Ride #%s declined.", tap.TripID))

	t, err := b.trips.Transition(ctx, tap.TripID, trip.StatusPending, trip.StatusDeclined, nil)
	switch {
	case errors.Is(err, trip.ErrNotFound), errors.Is(err, trip.ErrStatusConflict):
		metrics.Dispatch(metrics.OutcomeDeclineNoop)
		return nil
	case err != nil:
		return fmt.Errorf("decline %s: %w", tap.TripID, err)
	}

	metrics.Dispatch(metrics.OutcomeDeclined)
	logger.Info(ctx, component, "dispatch.decline",
		slog.String("status", "ok"),
		slog.String("trip_id", t.ID),
		slog.Int64("driver_id", tap.DriverID),
	)
	messaging.SendLogged(ctx, b.gw, t.ChatID, fmt.Sprintf("❌ Sorry, your request #%s was declined.", t.ID), nil)
	return nil
}
