// Package messaging is the outbound side of the chat: send, edit, clear
// buttons and publish the command list.
package messaging

import (
	"context"
	"log/slog"

	"github.com/m3rciful/ridebot/core/logger"
)

const component = "messaging"

// Button is an inline button; Data comes back verbatim in the callback.
type Button struct {
	Text string
	Data string
}

// Markup is either an inline keyboard or a persistent reply keyboard.
type Markup struct {
	Inline [][]Button
	Reply  [][]string
}

// InlineRows builds an inline markup.
func InlineRows(rows ...[]Button) *Markup { return &Markup{Inline: rows} }

// Command is an entry of the bot command menu.
type Command struct {
	Name        string
	Description string
}

// Gateway sends and edits chat messages.
type Gateway interface {
	// Send returns the id of the new message.
	Send(ctx context.Context, chatID int64, text string, m *Markup) (int, error)
	// Edit replaces the text of a message and drops its inline buttons.
	Edit(ctx context.Context, chatID int64, messageID int, text string) error
	// ClearButtons drops the inline buttons of a message, keeping its text.
	ClearButtons(ctx context.Context, chatID int64, messageID int) error
	SetCommands(ctx context.Context, cmds []Command) error
}

// EditOrClear edits the message and, when the edit fails, falls back to
// clearing its buttons so no stale control stays tappable. Failures are
// logged and never returned.
func EditOrClear(ctx context.Context, g Gateway, chatID int64, messageID int, text string) {
	err := g.Edit(ctx, chatID, messageID, text)
	if err == nil {
		return
	}
	logger.Warn(ctx, component, "edit.fallback",
		slog.Int64("chat_id", chatID),
		slog.Int("message_id", messageID),
		slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
	)
	if err := g.ClearButtons(ctx, chatID, messageID); err != nil {
		logger.Warn(ctx, component, "clear.fail",
			slog.Int64("chat_id", chatID),
			slog.Int("message_id", messageID),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
	}
}

// SendLogged sends and logs a failure instead of returning it.
func SendLogged(ctx context.Context, g Gateway, chatID int64, text string, m *Markup) (int, bool) {
	id, err := g.Send(ctx, chatID, text, m)
	if err != nil {
		logger.Warn(ctx, component, "send.fail",
			slog.Int64("chat_id", chatID),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return 0, false
	}
	return id, true
}
