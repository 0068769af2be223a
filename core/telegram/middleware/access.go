package middleware

import (
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/ridebot/core/logger"
	tghelpers "github.com/m3rciful/ridebot/core/telegram/helpers"
)

// AdminOptions defines how admin-only checks should behave.
type AdminOptions struct {
	AdminID  int64
	OnReject tele.HandlerFunc
}

// AdminOnlyMiddleware ensures that only the admin user can invoke downstream handlers.
// With AdminID unset nobody is admin.
func AdminOnlyMiddleware(opts AdminOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			if sender == nil || opts.AdminID == 0 || sender.ID != opts.AdminID {
				attrs := []slog.Attr{slog.String("status", "skip"), slog.String("cause", "not_admin")}
				if sender != nil {
					attrs = append(attrs, slog.Int64("user_id", sender.ID))
				}
				logger.Warn(tghelpers.BuildContext(c), "tg", "tg.admin_reject", attrs...)
				if opts.OnReject != nil {
					return opts.OnReject(c)
				}
				return nil
			}
			return next(c)
		}
	}
}
