package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/m3rciful/ridebot/core/logger"
	"github.com/m3rciful/ridebot/internal/messaging"
	"github.com/m3rciful/ridebot/internal/session"
	"github.com/m3rciful/ridebot/internal/slots"
	"github.com/m3rciful/ridebot/internal/trip"
)

// Reply keyboard labels.
const (
	LabelNewRide  = "📝 New ride"
	LabelMyTrips  = "🚖 My trips"
	LabelSettings = "⚙️ Settings"
	LabelHelp     = "ℹ️ Help"
)

const helpText = "Flow:\n1) Pickup & drop-off\n2) Pick date & time\n" +
	"3) Enter phone (saved for next time)\n4) Confirm. The driver will contact you via SMS."

func mainMenu() *messaging.Markup {
	return &messaging.Markup{Reply: [][]string{
		{LabelNewRide, LabelMyTrips},
		{LabelSettings, LabelHelp},
	}}
}

// Command is a global command, available in every conversation state.
type Command struct {
	// Name includes the leading slash.
	Name string
	// Aliases are exact texts that trigger the command, e.g. reply keyboard labels.
	Aliases     []string
	Description string
	// Admin commands are only run for Options.AdminID.
	Admin bool
	// Hidden commands are left out of the published command list.
	Hidden bool
	Run    func(ctx context.Context, m Message) error
}

func (c *Controller) buildCommands() []Command {
	return []Command{
		{Name: "/start", Description: "Open menu", Run: c.Start},
		{Name: "/menu", Description: "Open menu", Run: c.Start},
		{Name: "/newride", Aliases: []string{LabelNewRide}, Description: "Start a new ride", Run: c.NewRide},
		{Name: "/mytrips", Aliases: []string{LabelMyTrips}, Description: "Show recent trips", Run: c.MyTrips},
		{Name: "/help", Aliases: []string{LabelHelp}, Description: "How it works", Run: c.Help},
		{Name: "/settings", Aliases: []string{LabelSettings}, Description: "Show saved phone", Hidden: true, Run: c.Settings},
		{Name: "/repair", Description: "Rebuild a trip's user record", Admin: true, Run: c.Repair},
		{Name: "/reschedule", Description: "Set a trip's pickup time", Admin: true, Run: c.Reschedule},
	}
}

// Commands returns the command table.
func (c *Controller) Commands() []Command {
	return append([]Command(nil), c.commands...)
}

// Lookup finds the command text invokes for senderID. Admin commands are
// invisible to everyone but the admin.
func (c *Controller) Lookup(text string, senderID int64) (Command, bool) {
	text = strings.TrimSpace(text)
	name := normalizeCommand(text)
	for _, cmd := range c.commands {
		hit := strings.HasPrefix(name, "/") && cmd.Name == name
		for _, a := range cmd.Aliases {
			if text == a {
				hit = true
			}
		}
		if !hit {
			continue
		}
		if cmd.Admin && (c.opts.AdminID == 0 || senderID != c.opts.AdminID) {
			return Command{}, false
		}
		return cmd, true
	}
	return Command{}, false
}

// MenuCommands is the list published to the chat's command menu.
func (c *Controller) MenuCommands() []messaging.Command {
	var out []messaging.Command
	for _, cmd := range c.commands {
		if cmd.Admin || cmd.Hidden {
			continue
		}
		out = append(out, messaging.Command{Name: strings.TrimPrefix(cmd.Name, "/"), Description: cmd.Description})
	}
	return out
}

// Start resets the conversation and greets the user with the main menu.
func (c *Controller) Start(ctx context.Context, m Message) error {
	c.clearSession(ctx, m.SenderID)
	if err := c.gw.SetCommands(ctx, c.MenuCommands()); err != nil {
		logger.Warn(ctx, component, "commands.set",
			slog.String("status", "fail"),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
	}
	c.send(ctx, m.ChatID, "Hello! I’m your ride assistant.", mainMenu())
	return nil
}

// NewRide starts a booking from scratch.
func (c *Controller) NewRide(ctx context.Context, m Message) error {
	if err := c.sessions.Put(ctx, &session.Session{UserID: m.SenderID, State: session.AwaitPickup{}}); err != nil {
		return c.fail(ctx, m.ChatID, "session.put", err)
	}
	c.send(ctx, m.ChatID, "Please enter the pickup address.", nil)
	return nil
}

// MyTrips lists the user's most recent trips, newest first.
func (c *Controller) MyTrips(ctx context.Context, m Message) error {
	trips, err := c.trips.ListRecent(ctx, m.SenderID, c.opts.ListLimit)
	if err != nil {
		return c.fail(ctx, m.ChatID, "trip.list", err)
	}
	if len(trips) == 0 {
		c.send(ctx, m.ChatID, "You have no trips yet.", nil)
	} else {
		c.send(ctx, m.ChatID, RenderTrips(trips), nil)
	}
	c.showMenu(ctx, m.ChatID)
	return nil
}

// Help explains the booking flow.
func (c *Controller) Help(ctx context.Context, m Message) error {
	c.showMenu(ctx, m.ChatID)
	c.send(ctx, m.ChatID, helpText, nil)
	return nil
}

// Settings shows the phone kept in the user's profile.
func (c *Controller) Settings(ctx context.Context, m Message) error {
	saved, err := c.trips.SavedPhone(ctx, m.SenderID)
	if err != nil {
		return c.fail(ctx, m.ChatID, "profile.get", err)
	}
	text := "⚙️ Settings\nNo saved phone yet. It will be saved on your next booking."
	if saved != "" {
		text = fmt.Sprintf("⚙️ Settings\nSaved phone: %s\nEnter a new number during your next booking to change it.", saved)
	}
	c.send(ctx, m.ChatID, text, mainMenu())
	return nil
}

// Repair rebuilds the user-side copy of a trip from the by-id record.
func (c *Controller) Repair(ctx context.Context, m Message) error {
	args := strings.Fields(m.Text)
	if len(args) != 2 {
		c.send(ctx, m.ChatID, "Usage: /repair <trip_id>", nil)
		return nil
	}
	id := strings.ToLower(args[1])
	changed, err := c.trips.Repair(ctx, id)
	switch {
	case errors.Is(err, trip.ErrNotFound):
		c.send(ctx, m.ChatID, fmt.Sprintf("❌ Ride #%s not found.", id), nil)
		return nil
	case err != nil:
		return c.fail(ctx, m.ChatID, "trip.repair", err)
	case changed:
		c.send(ctx, m.ChatID, fmt.Sprintf("🔧 Trip #%s repaired.", id), nil)
	default:
		c.send(ctx, m.ChatID, fmt.Sprintf("✅ Trip #%s is consistent.", id), nil)
	}
	return nil
}

// Reschedule sets a trip's pickup time from free text such as
// "/reschedule abc123 tomorrow 7:30 am".
func (c *Controller) Reschedule(ctx context.Context, m Message) error {
	args := strings.Fields(m.Text)
	if len(args) < 3 {
		c.send(ctx, m.ChatID, "Usage: /reschedule <trip_id> <when>", nil)
		return nil
	}
	id := strings.ToLower(args[1])
	when, err := c.slots.ParseWhen(strings.Join(args[2:], " "))
	if errors.Is(err, slots.ErrUnparsable) {
		c.send(ctx, m.ChatID, `Could not understand the time. Try "tomorrow 7:30 am" or "2025-09-21 2:30 PM".`, nil)
		return nil
	}
	if err != nil {
		return c.fail(ctx, m.ChatID, "slots.parse", err)
	}
	t, err := c.trips.SetDesiredTime(ctx, id, when)
	switch {
	case errors.Is(err, trip.ErrNotFound):
		c.send(ctx, m.ChatID, fmt.Sprintf("❌ Ride #%s not found.", id), nil)
		return nil
	case errors.Is(err, trip.ErrStatusConflict):
		c.send(ctx, m.ChatID, alreadyText(t), nil)
		return nil
	case err != nil:
		return c.fail(ctx, m.ChatID, "trip.set_time", err)
	}
	c.send(ctx, m.ChatID, fmt.Sprintf("🕒 Trip #%s rescheduled to %s.", t.ID, t.DesiredTimeText), nil)
	return nil
}
