package messaging

import (
	"context"
	"regexp"
	"strconv"

	"github.com/m3rciful/ridebot/core/metrics"
	"github.com/m3rciful/ridebot/core/telegram/helpers"
	"github.com/m3rciful/ridebot/core/telegram/keyboard"
	"github.com/m3rciful/ridebot/core/telegram/netutil"

	tele "gopkg.in/telebot.v4"
)

var tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)

// API is the subset of *tele.Bot used by Telebot.
type API interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
	EditReplyMarkup(msg tele.Editable, markup *tele.ReplyMarkup) (*tele.Message, error)
	SetCommands(opts ...interface{}) error
}

// Telebot implements Gateway on a telebot bot. Every call is a single
// attempt bounded by the bot's HTTP client timeout.
type Telebot struct {
	api API
}

// NewTelebot wraps api.
func NewTelebot(api API) *Telebot { return &Telebot{api: api} }

func (t *Telebot) Send(ctx context.Context, chatID int64, text string, m *Markup) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var opts []interface{}
	if rm := toReplyMarkup(m); rm != nil {
		opts = append(opts, rm)
	}
	msg, err := t.api.Send(tele.ChatID(chatID), text, opts...)
	if err != nil {
		return 0, outboundErr("send", err)
	}
	helpers.CountMessage(ctx, m != nil)
	return msg.ID, nil
}

func (t *Telebot) Edit(ctx context.Context, chatID int64, messageID int, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := t.api.Edit(stored(chatID, messageID), text); err != nil {
		return outboundErr("edit", err)
	}
	helpers.CountMessage(ctx, false)
	return nil
}

func (t *Telebot) ClearButtons(ctx context.Context, chatID int64, messageID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := t.api.EditReplyMarkup(stored(chatID, messageID), nil); err != nil {
		return outboundErr("clear_buttons", err)
	}
	return nil
}

func (t *Telebot) SetCommands(ctx context.Context, cmds []Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	list := make([]tele.Command, 0, len(cmds))
	for _, c := range cmds {
		list = append(list, tele.Command{Text: c.Name, Description: c.Description})
	}
	if err := t.api.SetCommands(list); err != nil {
		return outboundErr("set_commands", err)
	}
	return nil
}

func stored(chatID int64, messageID int) tele.StoredMessage {
	return tele.StoredMessage{MessageID: strconv.Itoa(messageID), ChatID: chatID}
}

func toReplyMarkup(m *Markup) *tele.ReplyMarkup {
	if m == nil {
		return nil
	}
	if len(m.Reply) > 0 {
		return keyboard.ReplyButtons(m.Reply...)
	}
	rows := make([][]keyboard.InlineBtn, 0, len(m.Inline))
	for _, row := range m.Inline {
		r := make([]keyboard.InlineBtn, 0, len(row))
		for _, b := range row {
			r = append(r, keyboard.InlineBtn{Text: b.Text, Data: b.Data})
		}
		rows = append(rows, r)
	}
	return keyboard.InlineButtonsRows(rows...)
}

// outboundErr counts the failure and strips the bot token from the message.
func outboundErr(action string, err error) error {
	metrics.Outbound(action, netutil.Kind(err))
	return &OutboundError{Action: action, msg: tokenRe.ReplaceAllString(err.Error(), "bot<redacted>"), err: err}
}

// OutboundError wraps a failed Telegram call.
type OutboundError struct {
	Action string
	msg    string
	err    error
}

func (e *OutboundError) Error() string { return "telegram " + e.Action + ": " + e.msg }
func (e *OutboundError) Unwrap() error { return e.err }
