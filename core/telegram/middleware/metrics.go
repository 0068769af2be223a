package middleware

import (
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/ridebot/core/metrics"
	tghelpers "github.com/m3rciful/ridebot/core/telegram/helpers"
)

// Update kinds used for metrics labels and rate limit exclusions.
const (
	KindCallback    = "callback"
	KindMessage     = "message"
	KindInlineQuery = "inline_query"
	KindOther       = "other"
)

// UpdateKind classifies an update.
func UpdateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return KindCallback
	case upd.Message != nil:
		return KindMessage
	case upd.Query != nil:
		return KindInlineQuery
	}
	return KindOther
}

// MessageMetricsMiddleware counts inbound updates and makes sure the update
// context carries message counters for the handler summary.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		metrics.UpdatesTotal.WithLabelValues(UpdateKind(c.Update())).Inc()
		ctx := tghelpers.BuildContext(c)
		tghelpers.StoreContext(c, tghelpers.WithCounters(ctx))
		return next(c)
	}
}
