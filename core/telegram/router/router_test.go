package router

import (
	"errors"
	"testing"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/ridebot/core/telegram"
)

type codedErr struct{}

func (codedErr) Error() string { return "conflict" }
func (codedErr) Code() string  { return "status conflict" }

type plainErr struct{}

func (*plainErr) Error() string { return "plain" }

func newContext(t *testing.T, upd tele.Update) tele.Context {
	t.Helper()
	bot, err := tele.NewBot(tele.Settings{Offline: true})
	if err != nil {
		t.Fatalf("NewBot: %v", err)
	}
	return bot.NewContext(upd)
}

func textUpdate(text string) tele.Update {
	user := &tele.User{ID: 500}
	return tele.Update{ID: 1, Message: &tele.Message{Sender: user, Chat: &tele.Chat{ID: 500}, Text: text}}
}

func TestNormalizeHandlerName(t *testing.T) {
	cases := map[string]string{
		"/MyTrips": "mytrips",
		" ":        "unknown",
		"new ride": "new_ride",
	}
	for in, want := range cases {
		if got := normalizeHandlerName(in); got != want {
			t.Fatalf("normalizeHandlerName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDeriveErrorCode(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{err: nil, want: ""},
		{err: codedErr{}, want: "STATUS_CONFLICT"},
		{err: &plainErr{}, want: "PLAINERR"},
		{err: errors.New("x"), want: "ERRORSTRING"},
	}
	for _, tc := range cases {
		if got := deriveErrorCode(tc.err); got != tc.want {
			t.Fatalf("deriveErrorCode(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestTextRoutesPreferAliasesThenFallback(t *testing.T) {
	reg := tg.NewRegistry()
	var ran []string
	_ = reg.RegisterCommand("/mytrips", tg.Command{
		Description: "Show recent trips",
		Aliases:     []string{"🚖 My trips"},
		Handler:     func(tele.Context) error { ran = append(ran, "mytrips"); return nil },
	})
	reg.SetTextFallback(func(c tele.Context) error { ran = append(ran, "fallback:"+c.Text()); return nil })

	routes := TextRoutes(reg, TextOptions{})
	if len(routes) != 2 || routes[0].Endpoint != tele.OnText {
		t.Fatalf("routes %+v", routes)
	}
	text := routes[0].Handler
	_ = text(newContext(t, textUpdate("🚖 My trips")))
	_ = text(newContext(t, textUpdate("100 Main St")))

	if len(ran) != 2 || ran[0] != "mytrips" || ran[1] != "fallback:100 Main St" {
		t.Fatalf("ran %v", ran)
	}
}

func TestCommandRoutesGateAdmin(t *testing.T) {
	reg := tg.NewRegistry()
	ran, rejected := 0, 0
	_ = reg.RegisterCommand("/repair", tg.Command{
		Description: "Repair",
		AdminOnly:   true,
		Handler:     func(tele.Context) error { ran++; return nil },
	})
	routes := CommandRoutes(reg, CommandRouteOptions{
		AdminID:       1,
		OnAdminReject: func(tele.Context) error { rejected++; return nil },
	})
	if len(routes) != 1 || routes[0].Endpoint != "/repair" {
		t.Fatalf("routes %+v", routes)
	}
	_ = routes[0].Handler(newContext(t, textUpdate("/repair abc123")))
	if ran != 0 || rejected != 1 {
		t.Fatalf("ran=%d rejected=%d", ran, rejected)
	}
}
