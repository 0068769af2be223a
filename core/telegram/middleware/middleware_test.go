package middleware

import (
	"errors"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"

	tghelpers "github.com/m3rciful/ridebot/core/telegram/helpers"
)

func newContext(t *testing.T, upd tele.Update) tele.Context {
	t.Helper()
	bot, err := tele.NewBot(tele.Settings{Offline: true})
	if err != nil {
		t.Fatalf("NewBot: %v", err)
	}
	return bot.NewContext(upd)
}

func textUpdate(id int, userID int64, text string) tele.Update {
	user := &tele.User{ID: userID}
	return tele.Update{ID: id, Message: &tele.Message{
		Sender: user,
		Chat:   &tele.Chat{ID: userID, Type: tele.ChatPrivate},
		Text:   text,
	}}
}

func callbackUpdate(id int, userID int64, data string) tele.Update {
	user := &tele.User{ID: userID}
	return tele.Update{ID: id, Callback: &tele.Callback{
		Sender:  user,
		Data:    data,
		Message: &tele.Message{Chat: &tele.Chat{ID: userID}},
	}}
}

func TestUpdateKind(t *testing.T) {
	cases := []struct {
		upd  tele.Update
		want string
	}{
		{upd: textUpdate(1, 5, "hi"), want: KindMessage},
		{upd: callbackUpdate(2, 5, "confirm:abc123"), want: KindCallback},
		{upd: tele.Update{Query: &tele.Query{}}, want: KindInlineQuery},
		{upd: tele.Update{}, want: KindOther},
	}
	for _, tc := range cases {
		if got := UpdateKind(tc.upd); got != tc.want {
			t.Fatalf("UpdateKind = %q, want %q", got, tc.want)
		}
	}
}

func TestAdminOnlyMiddleware(t *testing.T) {
	cases := []struct {
		name    string
		adminID int64
		sender  int64
		allowed bool
	}{
		{name: "admin", adminID: 1, sender: 1, allowed: true},
		{name: "stranger", adminID: 1, sender: 2},
		{name: "no admin configured", adminID: 0, sender: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ran, rejected := false, false
			h := AdminOnlyMiddleware(AdminOptions{
				AdminID:  tc.adminID,
				OnReject: func(tele.Context) error { rejected = true; return nil },
			})(func(tele.Context) error { ran = true; return nil })

			if err := h(newContext(t, textUpdate(1, tc.sender, "/repair abc"))); err != nil {
				t.Fatalf("handler: %v", err)
			}
			if ran != tc.allowed || rejected == tc.allowed {
				t.Fatalf("ran=%v rejected=%v, want allowed=%v", ran, rejected, tc.allowed)
			}
		})
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	calls, limited := 0, 0
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval:  time.Hour,
		Exclude:   map[string]struct{}{KindCallback: {}},
		OnLimited: func(tele.Context) error { limited++; return nil },
	})
	h := mw(func(tele.Context) error { calls++; return nil })

	_ = h(newContext(t, textUpdate(1, 9, "a")))
	_ = h(newContext(t, textUpdate(2, 9, "b")))
	_ = h(newContext(t, callbackUpdate(3, 9, "accept:abc123:11")))
	_ = h(newContext(t, textUpdate(4, 10, "c")))

	if calls != 3 || limited != 1 {
		t.Fatalf("calls=%d limited=%d", calls, limited)
	}
}

func TestRecoverMiddleware(t *testing.T) {
	h := RecoverMiddleware(func(tele.Context) error { panic("boom") })
	if err := h(newContext(t, textUpdate(1, 5, "x"))); err == nil {
		t.Fatal("expected error from recovered panic")
	}
	sentinel := errors.New("plain")
	h = RecoverMiddleware(func(tele.Context) error { return sentinel })
	if err := h(newContext(t, textUpdate(1, 5, "x"))); !errors.Is(err, sentinel) {
		t.Fatalf("err = %v", err)
	}
}

func TestLoggerMiddlewareStoresContext(t *testing.T) {
	c := newContext(t, callbackUpdate(77, 5, "datesel:abc123"))
	h := LoggerMiddleware(MessageMetricsMiddleware(func(c tele.Context) error {
		ctx, ok := tghelpers.ContextFrom(c)
		if !ok {
			t.Fatal("context not stored")
		}
		tghelpers.CountMessage(ctx, true)
		return nil
	}))
	if err := h(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rid, _ := c.Get("rid").(string); rid != "77:5:5" {
		t.Fatalf("rid = %q", rid)
	}
	ctx, _ := tghelpers.ContextFrom(c)
	if msgs, kb := tghelpers.GetCounters(ctx); msgs != 1 || !kb {
		t.Fatalf("counters = %d %v", msgs, kb)
	}
}
