// Package callbacks encodes and parses inline button payloads of the form
// <verb>:<trip_id>[:<extra>].
package callbacks

import (
	"errors"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Button verbs.
const (
	VerbDateSelect  = "datesel"
	VerbDatePick    = "datepick"
	VerbTimePick    = "timepick"
	VerbUsePhone    = "usephone"
	VerbChangePhone = "changephone"
	VerbConfirm     = "confirm"
	VerbAccept      = "accept"
	VerbDecline     = "decline"
)

// MaxDataLen is the Telegram limit for callback_data.
const MaxDataLen = 64

// ErrMalformed reports payloads that do not follow the verb:trip[:extra] shape.
var ErrMalformed = errors.New("callbacks: malformed payload")

// Payload is a decoded button payload.
type Payload struct {
	Verb   string
	TripID string
	Extra  string
}

// Encode renders the payload; an empty Extra is omitted.
func (p Payload) Encode() string {
	if p.Extra == "" {
		return p.Verb + ":" + p.TripID
	}
	return p.Verb + ":" + p.TripID + ":" + p.Extra
}

// Data is a shorthand for Payload{verb, tripID, extra}.Encode().
func Data(verb, tripID string, extra ...string) string {
	p := Payload{Verb: verb, TripID: tripID}
	if len(extra) > 0 {
		p.Extra = strings.Join(extra, ":")
	}
	return p.Encode()
}

// Parse decodes raw callback data. A telebot unique prefix (\f) is tolerated.
func Parse(raw string) (Payload, error) {
	raw = strings.TrimSpace(strings.TrimPrefix(raw, "\f"))
	if raw == "" || len(raw) > MaxDataLen {
		return Payload{}, ErrMalformed
	}
	parts := strings.SplitN(raw, ":", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return Payload{}, ErrMalformed
	}
	p := Payload{Verb: parts[0], TripID: parts[1]}
	if len(parts) == 3 {
		p.Extra = parts[2]
	}
	return p, nil
}

// ExtraInt64 parses Extra as a base-10 integer (epoch seconds, driver ids).
func (p Payload) ExtraInt64() (int64, error) {
	n, err := strconv.ParseInt(p.Extra, 10, 64)
	if err != nil {
		return 0, ErrMalformed
	}
	return n, nil
}

// FromContext parses the callback carried by c.
func FromContext(c tele.Context) (Payload, error) {
	cb := c.Callback()
	if cb == nil {
		return Payload{}, ErrMalformed
	}
	return Parse(cb.Data)
}

// Verb returns the verb of raw data, or "" when it is malformed.
func Verb(raw string) string {
	p, err := Parse(raw)
	if err != nil {
		return ""
	}
	return p.Verb
}
