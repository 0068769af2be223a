package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/m3rciful/ridebot/core/logger"
	"github.com/m3rciful/ridebot/core/metrics"
	"github.com/m3rciful/ridebot/core/telegram/callbacks"
	"github.com/m3rciful/ridebot/core/telegram/keyboard"
	"github.com/m3rciful/ridebot/internal/messaging"
	"github.com/m3rciful/ridebot/internal/session"
	"github.com/m3rciful/ridebot/internal/slots"
	"github.com/m3rciful/ridebot/internal/trip"
)

const timesPerRow = 3

func (c *Controller) onDateSelect(ctx context.Context, cb Callback, p callbacks.Payload) error {
	if _, ok, err := c.ownTrip(ctx, cb, p.TripID); !ok {
		return err
	}
	var rows [][]messaging.Button
	for _, d := range c.slots.Dates() {
		rows = append(rows, []messaging.Button{{Text: d.Label, Data: callbacks.Data(callbacks.VerbDatePick, p.TripID, d.Date)}})
	}
	c.send(ctx, cb.ChatID, "Choose a date:", messaging.InlineRows(rows...))
	return nil
}

func (c *Controller) onDatePick(ctx context.Context, cb Callback, p callbacks.Payload) error {
	day, err := c.slots.ParseDate(p.Extra)
	if err != nil {
		logger.Warn(ctx, component, "callback.malformed",
			slog.String("status", "skip"),
			slog.String("verb", p.Verb),
			slog.String("trip_id", p.TripID),
		)
		return nil
	}
	if _, ok, err := c.ownTrip(ctx, cb, p.TripID); !ok {
		return err
	}
	messaging.EditOrClear(ctx, c.gw, cb.ChatID, cb.MessageID, "✅ Date: "+p.Extra)
	c.send(ctx, cb.ChatID, "Choose a time for "+p.Extra+":", timeButtons(p.TripID, c.slots.Times(day)))
	return nil
}

func timeButtons(tripID string, times []slots.Slot) *messaging.Markup {
	if len(times) == 0 {
		return messaging.InlineRows(
			[]messaging.Button{{Text: "No times available", Data: callbacks.Data(callbacks.VerbDateSelect, tripID)}},
		)
	}
	buttons := make([]messaging.Button, 0, len(times))
	for _, s := range times {
		buttons = append(buttons, messaging.Button{
			Text: s.Label,
			Data: callbacks.Data(callbacks.VerbTimePick, tripID, strconv.FormatInt(s.Epoch, 10)),
		})
	}
	return messaging.InlineRows(keyboard.Chunk(buttons, timesPerRow)...)
}

func (c *Controller) onTimePick(ctx context.Context, cb Callback, p callbacks.Payload) error {
	epoch, err := p.ExtraInt64()
	if err != nil {
		logger.Warn(ctx, component, "callback.malformed",
			slog.String("status", "skip"),
			slog.String("verb", p.Verb),
			slog.String("trip_id", p.TripID),
		)
		return nil
	}
	if _, ok, err := c.ownTrip(ctx, cb, p.TripID); !ok {
		return err
	}
	t, err := c.trips.SetDesiredTime(ctx, p.TripID, c.slots.FromEpoch(epoch))
	switch {
	case errors.Is(err, trip.ErrStatusConflict):
		messaging.EditOrClear(ctx, c.gw, cb.ChatID, cb.MessageID, alreadyText(t))
		return nil
	case err != nil:
		return c.fail(ctx, cb.ChatID, "trip.set_time", err)
	}
	picked := c.slots.FromEpoch(t.DesiredTimeEpoch)
	messaging.EditOrClear(ctx, c.gw, cb.ChatID, cb.MessageID, "✅ Time: "+slots.FormatClock(picked))

	saved, err := c.trips.SavedPhone(ctx, cb.SenderID)
	if err != nil {
		logger.Warn(ctx, component, "profile.get",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
	if saved != "" {
		c.send(ctx, cb.ChatID, "Time saved. Use your saved phone?", messaging.InlineRows(
			[]messaging.Button{{Text: "Use saved phone", Data: callbacks.Data(callbacks.VerbUsePhone, t.ID)}},
			[]messaging.Button{{Text: "Enter new number", Data: callbacks.Data(callbacks.VerbChangePhone, t.ID)}},
		))
		return nil
	}
	return c.awaitPhone(ctx, cb, t.ID, "Time saved. Please enter your phone number.")
}

func (c *Controller) awaitPhone(ctx context.Context, cb Callback, tripID, prompt string) error {
	next := &session.Session{UserID: cb.SenderID, State: session.AwaitPhone{TripID: tripID}}
	if err := c.sessions.Put(ctx, next); err != nil {
		return c.fail(ctx, cb.ChatID, "session.put", err)
	}
	c.send(ctx, cb.ChatID, prompt, nil)
	return nil
}

func (c *Controller) onUsePhone(ctx context.Context, cb Callback, p callbacks.Payload) error {
	if _, ok, err := c.ownTrip(ctx, cb, p.TripID); !ok {
		return err
	}
	saved, err := c.trips.SavedPhone(ctx, cb.SenderID)
	if err != nil {
		return c.fail(ctx, cb.ChatID, "profile.get", err)
	}
	if saved == "" {
		return c.awaitPhone(ctx, cb, p.TripID, "No saved phone found. Please enter your number.")
	}
	t, err := c.trips.SetPhone(ctx, p.TripID, saved)
	switch {
	case errors.Is(err, trip.ErrStatusConflict):
		messaging.EditOrClear(ctx, c.gw, cb.ChatID, cb.MessageID, alreadyText(t))
		return nil
	case err != nil:
		return c.fail(ctx, cb.ChatID, "trip.set_phone", err)
	}
	messaging.EditOrClear(ctx, c.gw, cb.ChatID, cb.MessageID, "✅ Using saved phone.")
	c.askConfirm(ctx, cb.ChatID, t, fmt.Sprintf("Using saved phone: %s", saved))
	c.clearSession(ctx, cb.SenderID)
	return nil
}

func (c *Controller) onChangePhone(ctx context.Context, cb Callback, p callbacks.Payload) error {
	if _, ok, err := c.ownTrip(ctx, cb, p.TripID); !ok {
		return err
	}
	messaging.EditOrClear(ctx, c.gw, cb.ChatID, cb.MessageID, "✏️ Entering a new number.")
	return c.awaitPhone(ctx, cb, p.TripID, "Please enter your phone number.")
}

// onConfirm moves the trip to pending and broadcasts it. The move is a
// conditional write from await_when, so a repeated tap finds the trip
// already pending and only reports its status.
func (c *Controller) onConfirm(ctx context.Context, cb Callback, p callbacks.Payload) error {
	t, ok, err := c.ownTrip(ctx, cb, p.TripID)
	if !ok {
		return err
	}
	if t.Status != trip.StatusAwaitWhen {
		metrics.Dispatch(metrics.OutcomeConfirmRepeat)
		messaging.EditOrClear(ctx, c.gw, cb.ChatID, cb.MessageID, alreadyText(t))
		return nil
	}
	if !t.HasDesiredTime() {
		c.send(ctx, cb.ChatID, "Please pick date & time first.", nil)
		return nil
	}
	if !t.HasPhone() {
		c.send(ctx, cb.ChatID, "Please enter your phone number first.", nil)
		return nil
	}

	t, err = c.trips.Transition(ctx, t.ID, trip.StatusAwaitWhen, trip.StatusPending, nil)
	switch {
	case errors.Is(err, trip.ErrStatusConflict):
		metrics.Dispatch(metrics.OutcomeConfirmRepeat)
		messaging.EditOrClear(ctx, c.gw, cb.ChatID, cb.MessageID, alreadyText(t))
		return nil
	case errors.Is(err, trip.ErrNotFound):
		c.send(ctx, cb.ChatID, textSomethingWrong, nil)
		return nil
	case err != nil:
		return c.fail(ctx, cb.ChatID, "trip.confirm", err)
	}

	messaging.EditOrClear(ctx, c.gw, cb.ChatID, cb.MessageID,
		fmt.Sprintf("✅ Request #%s sent to the driver.\nDriver will contact you via SMS.", t.ID))
	sum := c.dispatch.Broadcast(ctx, t)
	logger.Info(ctx, component, "conversation.confirm",
		slog.String("status", "ok"),
		slog.String("trip_id", t.ID),
		slog.Int("count", sum.Delivered),
	)
	return nil
}
