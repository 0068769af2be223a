package app

import (
	"context"
	"strings"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/ridebot/core/telegram/callbacks"
	"github.com/m3rciful/ridebot/core/telegram/router"
	"github.com/m3rciful/ridebot/internal/config"
	"github.com/m3rciful/ridebot/internal/geo"
	"github.com/m3rciful/ridebot/internal/kv"
	"github.com/m3rciful/ridebot/internal/messaging"
	"github.com/m3rciful/ridebot/internal/session"
	"github.com/m3rciful/ridebot/internal/trip"
)

const (
	passenger = int64(500)
	driver    = int64(11)
	admin     = int64(1)
)

type stubGeo struct{}

func (stubGeo) Geocode(_ context.Context, text string) (geo.Place, error) {
	if strings.Contains(text, "nowhere") {
		return geo.Place{}, geo.ErrNoMatch
	}
	return geo.Place{Label: text + ", FL", Lat: 25.7, Lng: -80.2}, nil
}

func (stubGeo) Route(context.Context, geo.Place, geo.Place) (geo.Route, error) {
	return geo.Route{Meters: 3000, Seconds: 600}, nil
}

type fixture struct {
	svc   *Service
	store *kv.Memory
	rec   *messaging.Recorder
	bot   *tele.Bot
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.Default()
	cfg.Telegram.AdminID = admin
	cfg.Drivers.ChatIDs = []int64{driver}
	cfg.Drivers.Profiles = config.DriverProfiles{driver: {Name: "Ana", Car: "Toyota Camry"}}

	store := kv.NewMemory()
	rec := messaging.NewRecorder()
	svc, err := NewService(&cfg, Deps{
		KV:       store,
		Sessions: session.NewKVStore(store),
		Geo:      stubGeo{},
		Gateway:  rec,
		Now:      func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	bot, err := tele.NewBot(tele.Settings{Offline: true})
	if err != nil {
		t.Fatalf("NewBot: %v", err)
	}
	return &fixture{svc: svc, store: store, rec: rec, bot: bot}
}

var updateSeq int

func (f *fixture) text(from int64, text string) tele.Context {
	updateSeq++
	user := &tele.User{ID: from, Username: "rider"}
	return f.bot.NewContext(tele.Update{ID: updateSeq, Message: &tele.Message{
		Sender: user,
		Chat:   &tele.Chat{ID: from, Type: tele.ChatPrivate},
		Text:   text,
	}})
}

func (f *fixture) callback(from int64, messageID int, data string) tele.Context {
	updateSeq++
	return f.bot.NewContext(tele.Update{ID: updateSeq, Callback: &tele.Callback{
		Sender:  &tele.User{ID: from},
		Data:    data,
		Message: &tele.Message{ID: messageID, Chat: &tele.Chat{ID: from}},
	}})
}

func (f *fixture) say(t *testing.T, text string) {
	t.Helper()
	c := f.text(passenger, text)
	if _, cmd, ok := f.svc.Registry.LookupCommand(text); ok {
		if err := cmd.Handler(c); err != nil {
			t.Fatalf("command %q: %v", text, err)
		}
		return
	}
	if err := f.svc.Registry.TextFallback()(c); err != nil {
		t.Fatalf("text %q: %v", text, err)
	}
}

func (f *fixture) tap(t *testing.T, from int64, messageID int, data string) {
	t.Helper()
	h, ok := f.svc.Registry.GetCallback(callbacks.Verb(data))
	if !ok {
		t.Fatalf("no callback handler for %q", data)
	}
	if err := h(f.callback(from, messageID, data)); err != nil {
		t.Fatalf("callback %q: %v", data, err)
	}
}

func lastButton(t *testing.T, rec *messaging.Recorder, chat int64) (messaging.Sent, messaging.Button) {
	t.Helper()
	msg, ok := rec.Last(chat)
	if !ok || msg.Markup == nil || len(msg.Markup.Inline) == 0 {
		t.Fatalf("expected inline buttons for %d, got %+v", chat, msg)
	}
	return msg, msg.Markup.Inline[0][0]
}

func TestRegistryMirrorsCommandTable(t *testing.T) {
	f := newFixture(t)
	reg := f.svc.Registry

	visible := reg.ListCommands(true)
	var names []string
	for _, c := range visible {
		names = append(names, c.Text)
	}
	if got := strings.Join(names, ","); got != "help,menu,mytrips,newride,start" {
		t.Fatalf("visible commands %s", got)
	}
	if got := strings.Join(reg.ListCallbacks(), ","); got != "accept,changephone,confirm,datepick,datesel,decline,timepick,usephone" {
		t.Fatalf("callbacks %s", got)
	}
	if _, cmd, ok := reg.LookupCommand("/repair"); !ok || !cmd.AdminOnly {
		t.Fatalf("repair not admin-only: %+v", cmd)
	}
}

func TestBookingThroughTelegramHandlers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.say(t, "/start")
	f.say(t, "📝 New ride")
	f.say(t, "100 Main St")
	f.say(t, "200 Ocean Dr")

	msg, btn := lastButton(t, f.rec, passenger)
	if !strings.Contains(msg.Text, "Price: $12.66") {
		t.Fatalf("summary %q", msg.Text)
	}
	f.tap(t, passenger, msg.MessageID, btn.Data)

	msg, btn = lastButton(t, f.rec, passenger)
	f.tap(t, passenger, msg.MessageID, btn.Data)

	msg, btn = lastButton(t, f.rec, passenger)
	f.tap(t, passenger, msg.MessageID, btn.Data)

	f.say(t, "850 555 1234")
	msg, btn = lastButton(t, f.rec, passenger)
	if !strings.HasPrefix(btn.Data, callbacks.VerbConfirm+":") {
		t.Fatalf("expected confirm button, got %+v", btn)
	}
	tripID := strings.TrimPrefix(btn.Data, callbacks.VerbConfirm+":")
	f.tap(t, passenger, msg.MessageID, btn.Data)

	offer, accept := lastButton(t, f.rec, driver)
	if !strings.Contains(offer.Text, "+18505551234") {
		t.Fatalf("driver offer %q", offer.Text)
	}
	f.tap(t, driver, offer.MessageID, accept.Data)

	got, err := f.svc.Trips.Get(ctx, tripID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != trip.StatusAccepted || got.DriverID != driver || got.DriverName != "Ana" {
		t.Fatalf("trip after accept %+v", got)
	}
	last, _ := f.rec.Last(passenger)
	if !strings.Contains(last.Text, "Driver: Ana") {
		t.Fatalf("passenger notice %q", last.Text)
	}
}

func TestAdminRejectFallsBackToText(t *testing.T) {
	f := newFixture(t)
	routes := router.CommandRoutes(f.svc.Registry, router.CommandRouteOptions{
		AdminID:       admin,
		OnAdminReject: f.svc.HandleText,
	})
	var repair tele.HandlerFunc
	for _, r := range routes {
		if r.Endpoint == "/repair" {
			repair = r.Handler
		}
	}
	if repair == nil {
		t.Fatal("no /repair route")
	}

	if err := repair(f.text(passenger, "/repair abc123")); err != nil {
		t.Fatalf("repair: %v", err)
	}
	msg, ok := f.rec.Last(passenger)
	if !ok || msg.Text != "Choose an action:" {
		t.Fatalf("non-admin should see the menu, got %+v", msg)
	}

	if err := repair(f.text(admin, "/repair abc123")); err != nil {
		t.Fatalf("repair: %v", err)
	}
	msg, _ = f.rec.Last(admin)
	if msg.Text != "❌ Ride #abc123 not found." {
		t.Fatalf("admin reply %q", msg.Text)
	}
}

func TestNewServiceRequiresDeps(t *testing.T) {
	cfg := config.Default()
	if _, err := NewService(&cfg, Deps{}); err == nil {
		t.Fatal("expected error")
	}
}
