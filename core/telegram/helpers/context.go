package helpers

import (
	"context"
	"sync/atomic"

	"github.com/m3rciful/ridebot/core/logger"

	tele "gopkg.in/telebot.v4"
)

const contextKey = "logger_ctx"

type countersKey struct{}

// Counters tracks outbound messages produced while handling one update.
type Counters struct {
	messages atomic.Int64
	keyboard atomic.Bool
}

// StoreContext attaches reusable context to tele.Context for downstream helpers.
func StoreContext(c tele.Context, ctx context.Context) {
	if c == nil || ctx == nil {
		return
	}
	c.Set(contextKey, ctx)
}

// ContextFrom telegram context if previously stored by middleware.
func ContextFrom(c tele.Context) (context.Context, bool) {
	if c == nil {
		return nil, false
	}
	if v := c.Get(contextKey); v != nil {
		if ctx, ok := v.(context.Context); ok {
			return ctx, true
		}
	}
	return nil, false
}

// BuildContext constructs a context.Context from tele.Context,
// enriching it with RID, update/user/chat metadata and message counters.
func BuildContext(c tele.Context) context.Context {
	if cached, ok := ContextFrom(c); ok {
		return cached
	}

	upd := c.Update()
	user := c.Sender()
	chat := c.Chat()

	var (
		chatID int64
		userID int64
	)
	if chat != nil {
		chatID = chat.ID
	}
	if user != nil {
		userID = user.ID
	}

	rid, _ := c.Get("rid").(string)
	if rid == "" {
		rid = logger.BuildRID(upd.ID, chatID, userID)
	}

	ctx := context.Background()
	ctx = logger.WithRID(ctx, rid)
	ctx = logger.WithUpdateMeta(ctx, upd.ID, userID, chatID)
	ctx = logger.WithLogger(ctx, logger.Component("tg"))
	ctx = WithCounters(ctx)
	StoreContext(c, ctx)
	return ctx
}

// WithHandler enriches stored context with handler metadata for downstream logs.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := BuildContext(c)
	if handler == "" {
		return ctx
	}
	ctx = logger.WithHandler(ctx, handler)
	StoreContext(c, ctx)
	return ctx
}

// WithCounters attaches a fresh message counter unless ctx already has one.
func WithCounters(ctx context.Context) context.Context {
	if _, ok := ctx.Value(countersKey{}).(*Counters); ok {
		return ctx
	}
	return context.WithValue(ctx, countersKey{}, &Counters{})
}

// CountMessage records one outbound message on the counters carried by ctx.
func CountMessage(ctx context.Context, hasKeyboard bool) {
	cnt, ok := ctx.Value(countersKey{}).(*Counters)
	if !ok {
		return
	}
	cnt.messages.Add(1)
	if hasKeyboard {
		cnt.keyboard.Store(true)
	}
}

// GetCounters reads message count and keyboard presence from ctx.
func GetCounters(ctx context.Context) (int, bool) {
	cnt, ok := ctx.Value(countersKey{}).(*Counters)
	if !ok {
		return 0, false
	}
	return int(cnt.messages.Load()), cnt.keyboard.Load()
}
