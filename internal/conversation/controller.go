// Package conversation drives the booking dialogue: it reads the user's
// session, reacts to a message or button tap and stores the next state.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/m3rciful/ridebot/core/logger"
	"github.com/m3rciful/ridebot/core/telegram/callbacks"
	"github.com/m3rciful/ridebot/internal/dispatch"
	"github.com/m3rciful/ridebot/internal/fare"
	"github.com/m3rciful/ridebot/internal/geo"
	"github.com/m3rciful/ridebot/internal/messaging"
	"github.com/m3rciful/ridebot/internal/session"
	"github.com/m3rciful/ridebot/internal/slots"
	"github.com/m3rciful/ridebot/internal/trip"
)

const component = "conversation"

const (
	textSomethingWrong = "Something went wrong. Please start again."
	textUsePicker      = "Please use 📆 Pick date & time."
)

// Message is an inbound text message.
type Message struct {
	ChatID   int64
	SenderID int64
	Username string
	Text     string
}

// Callback is an inbound inline button tap.
type Callback struct {
	ChatID    int64
	SenderID  int64
	MessageID int
	Data      string
}

// Dispatcher hands confirmed trips to drivers and resolves their answers.
type Dispatcher interface {
	Broadcast(ctx context.Context, t *trip.Trip) dispatch.Summary
	Accept(ctx context.Context, tap dispatch.Tap) error
	Decline(ctx context.Context, tap dispatch.Tap) error
}

// Deps are the collaborators of a Controller.
type Deps struct {
	Sessions session.Store
	Trips    *trip.Store
	Geo      geo.Client
	Gateway  messaging.Gateway
	Dispatch Dispatcher
	Slots    *slots.Generator
	Rates    fare.Rates
}

// Options tunes a Controller.
type Options struct {
	// AdminID may run /repair and /reschedule. Zero disables both.
	AdminID     int64
	CountryCode string
	ListLimit   int
}

// Controller is stateless between calls; everything it remembers lives in
// the session and trip stores.
type Controller struct {
	sessions session.Store
	trips    *trip.Store
	geo      geo.Client
	gw       messaging.Gateway
	dispatch Dispatcher
	slots    *slots.Generator
	rates    fare.Rates
	opts     Options
	commands []Command
}

// New wires a Controller.
func New(d Deps, opts Options) *Controller {
	if d.Slots == nil {
		d.Slots = slots.NewGenerator(nil, 0)
	}
	if opts.ListLimit <= 0 {
		opts.ListLimit = trip.DefaultListLimit
	}
	c := &Controller{
		sessions: d.Sessions,
		trips:    d.Trips,
		geo:      d.Geo,
		gw:       d.Gateway,
		dispatch: d.Dispatch,
		slots:    d.Slots,
		rates:    d.Rates,
		opts:     opts,
	}
	c.commands = c.buildCommands()
	return c
}

// HandleMessage runs a global command when the text names one and otherwise
// feeds the text to the current conversation step.
func (c *Controller) HandleMessage(ctx context.Context, m Message) error {
	if cmd, ok := c.Lookup(m.Text, m.SenderID); ok {
		return cmd.Run(ctx, m)
	}
	return c.HandleText(ctx, m)
}

// HandleText interprets text according to the user's session state.
func (c *Controller) HandleText(ctx context.Context, m Message) error {
	sess, err := c.sessions.Get(ctx, m.SenderID)
	if err != nil {
		return c.fail(ctx, m.ChatID, "session.get", err)
	}
	logger.Debug(ctx, component, "conversation.text",
		slog.Int64("user_id", m.SenderID),
		slog.String("state", sess.State.Kind()),
	)
	switch st := sess.State.(type) {
	case session.AwaitPickup:
		return c.onPickup(ctx, m)
	case session.AwaitDropoff:
		return c.onDropoff(ctx, m, sess)
	case session.AwaitWhen:
		c.send(ctx, m.ChatID, textUsePicker, nil)
		return nil
	case session.AwaitPhone:
		return c.onPhone(ctx, m, st.TripID)
	default:
		c.showMenu(ctx, m.ChatID)
		return nil
	}
}

// HandleCallback routes a button tap by its verb. Malformed payloads and
// unknown verbs are logged and ignored.
func (c *Controller) HandleCallback(ctx context.Context, cb Callback) error {
	p, err := callbacks.Parse(cb.Data)
	if err != nil {
		logger.Warn(ctx, component, "callback.malformed",
			slog.String("status", "skip"),
			slog.String("payload", logger.SanitizeLimit(cb.Data, 64)),
		)
		return nil
	}
	switch p.Verb {
	case callbacks.VerbDateSelect:
		return c.onDateSelect(ctx, cb, p)
	case callbacks.VerbDatePick:
		return c.onDatePick(ctx, cb, p)
	case callbacks.VerbTimePick:
		return c.onTimePick(ctx, cb, p)
	case callbacks.VerbUsePhone:
		return c.onUsePhone(ctx, cb, p)
	case callbacks.VerbChangePhone:
		return c.onChangePhone(ctx, cb, p)
	case callbacks.VerbConfirm:
		return c.onConfirm(ctx, cb, p)
	case callbacks.VerbAccept, callbacks.VerbDecline:
		driverID, err := p.ExtraInt64()
		if err != nil {
			logger.Warn(ctx, component, "callback.malformed",
				slog.String("status", "skip"),
				slog.String("verb", p.Verb),
				slog.String("trip_id", p.TripID),
			)
			return nil
		}
		tap := dispatch.Tap{
			TripID:    p.TripID,
			DriverID:  driverID,
			SenderID:  cb.SenderID,
			ChatID:    cb.ChatID,
			MessageID: cb.MessageID,
		}
		if p.Verb == callbacks.VerbAccept {
			return c.dispatch.Accept(ctx, tap)
		}
		return c.dispatch.Decline(ctx, tap)
	}
	logger.Debug(ctx, component, "callback.unknown",
		slog.String("status", "skip"),
		slog.String("verb", logger.SanitizeLimit(p.Verb, 32)),
	)
	return nil
}

func (c *Controller) send(ctx context.Context, chatID int64, text string, m *messaging.Markup) {
	messaging.SendLogged(ctx, c.gw, chatID, text, m)
}

func (c *Controller) showMenu(ctx context.Context, chatID int64) {
	c.send(ctx, chatID, "Choose an action:", mainMenu())
}

// fail tells the user to start over and returns err for the handler summary.
func (c *Controller) fail(ctx context.Context, chatID int64, op string, err error) error {
	c.send(ctx, chatID, textSomethingWrong, nil)
	return fmt.Errorf("%s: %w", op, err)
}

// reset drops the session after an unrecoverable step, explains why and
// shows the menu.
func (c *Controller) reset(ctx context.Context, m Message, text, reason string, cause error) {
	attrs := []slog.Attr{
		slog.String("status", "fail"),
		slog.Int64("user_id", m.SenderID),
		slog.String("reason", reason),
	}
	if cause != nil {
		attrs = append(attrs, slog.String("err", logger.SanitizeLimit(cause.Error(), 256)))
	}
	logger.Warn(ctx, component, "conversation.reset", attrs...)
	if err := c.sessions.Delete(ctx, m.SenderID); err != nil {
		logger.Warn(ctx, component, "session.delete",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
	c.send(ctx, m.ChatID, text, nil)
	c.showMenu(ctx, m.ChatID)
}

func (c *Controller) clearSession(ctx context.Context, userID int64) {
	if err := c.sessions.Delete(ctx, userID); err != nil {
		logger.Warn(ctx, component, "session.delete",
			slog.String("status", "fail"),
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
	}
}

// ownTrip loads the trip a passenger button refers to. It reports false
// when the trip is gone or belongs to someone else; the user has already
// been told in the first case.
func (c *Controller) ownTrip(ctx context.Context, cb Callback, id string) (*trip.Trip, bool, error) {
	t, err := c.trips.Get(ctx, id)
	if errors.Is(err, trip.ErrNotFound) {
		c.send(ctx, cb.ChatID, textSomethingWrong, nil)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, c.fail(ctx, cb.ChatID, "trip.get", err)
	}
	if t.UserID != cb.SenderID {
		logger.Warn(ctx, component, "callback.foreign_trip",
			slog.String("status", "skip"),
			slog.String("trip_id", id),
			slog.Int64("user_id", cb.SenderID),
		)
		return nil, false, nil
	}
	return t, true, nil
}

func alreadyText(t *trip.Trip) string {
	return fmt.Sprintf("ℹ️ Request #%s is already %s.", t.ID, t.Status)
}

func normalizeCommand(text string) string {
	f := strings.Fields(text)
	if len(f) == 0 {
		return ""
	}
	name := strings.ToLower(f[0])
	if i := strings.IndexByte(name, '@'); i > 0 {
		name = name[:i]
	}
	return name
}
