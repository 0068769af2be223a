package app

import (
	"fmt"
	"time"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/ridebot/core/telegram"
	"github.com/m3rciful/ridebot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/ridebot/core/telegram/helpers"
	"github.com/m3rciful/ridebot/core/telegram/sender"
	"github.com/m3rciful/ridebot/internal/config"
	"github.com/m3rciful/ridebot/internal/conversation"
	"github.com/m3rciful/ridebot/internal/dispatch"
	"github.com/m3rciful/ridebot/internal/geo"
	"github.com/m3rciful/ridebot/internal/kv"
	"github.com/m3rciful/ridebot/internal/messaging"
	"github.com/m3rciful/ridebot/internal/session"
	"github.com/m3rciful/ridebot/internal/slots"
	"github.com/m3rciful/ridebot/internal/trip"
)

// Deps are the outside-world adapters a Service runs on.
type Deps struct {
	KV       kv.Store
	Sessions session.Store
	Geo      geo.Client
	Gateway  messaging.Gateway
	// Now overrides the clock of the date and time picker.
	Now func() time.Time
}

// Service is the bot's domain wiring: stores, dispatch, the conversation
// controller and the telegram registry that routes updates into it.
type Service struct {
	Trips      *trip.Store
	Dispatch   *dispatch.Broadcaster
	Controller *conversation.Controller
	Registry   *tg.Registry
}

// NewService wires the domain components for cfg on top of d.
func NewService(cfg *config.Config, d Deps) (*Service, error) {
	if d.KV == nil || d.Sessions == nil || d.Geo == nil || d.Gateway == nil {
		return nil, fmt.Errorf("app: incomplete dependencies")
	}

	trips := trip.NewStore(d.KV)

	profiles := make(map[int64]dispatch.Profile, len(cfg.Drivers.Profiles))
	for id, p := range cfg.Drivers.Profiles {
		profiles[id] = dispatch.Profile{Name: p.Name, Car: p.Car}
	}
	fan := sender.NewFanOut(sender.Options{
		Workers: cfg.Drivers.BroadcastWorkers,
		Timeout: time.Duration(cfg.Telegram.RequestTimeoutSeconds) * time.Second,
	})
	broadcaster := dispatch.New(trips, d.Gateway, dispatch.Directory{
		IDs:      append([]int64(nil), cfg.Drivers.ChatIDs...),
		Profiles: profiles,
	}, fan)

	gen := slots.NewGenerator(cfg.Location(), cfg.Booking.PickerDaysAhead)
	if d.Now != nil {
		gen.Now = d.Now
	}

	controller := conversation.New(conversation.Deps{
		Sessions: d.Sessions,
		Trips:    trips,
		Geo:      d.Geo,
		Gateway:  d.Gateway,
		Dispatch: broadcaster,
		Slots:    gen,
		Rates:    cfg.Rates(),
	}, conversation.Options{
		AdminID:     cfg.Telegram.AdminID,
		CountryCode: cfg.Booking.CountryCode,
		ListLimit:   cfg.Booking.TripsListLimit,
	})

	s := &Service{
		Trips:      trips,
		Dispatch:   broadcaster,
		Controller: controller,
	}
	reg, err := s.buildRegistry()
	if err != nil {
		return nil, err
	}
	s.Registry = reg
	return s, nil
}

var callbackVerbs = []string{
	callbacks.VerbDateSelect,
	callbacks.VerbDatePick,
	callbacks.VerbTimePick,
	callbacks.VerbUsePhone,
	callbacks.VerbChangePhone,
	callbacks.VerbConfirm,
	callbacks.VerbAccept,
	callbacks.VerbDecline,
}

func (s *Service) buildRegistry() (*tg.Registry, error) {
	reg := tg.NewRegistry()
	for _, cmd := range s.Controller.Commands() {
		run := cmd.Run
		err := reg.RegisterCommand(cmd.Name, tg.Command{
			Description: cmd.Description,
			AdminOnly:   cmd.Admin,
			Hidden:      cmd.Hidden,
			Aliases:     cmd.Aliases,
			Handler: func(c tele.Context) error {
				return run(tghelpers.BuildContext(c), messageFrom(c))
			},
		})
		if err != nil {
			return nil, fmt.Errorf("app: register %s: %w", cmd.Name, err)
		}
	}
	for _, verb := range callbackVerbs {
		if err := reg.RegisterCallback(verb, s.HandleCallback); err != nil {
			return nil, fmt.Errorf("app: register callback %s: %w", verb, err)
		}
	}
	reg.SetCallbackNotFound(s.HandleCallback)
	reg.SetTextFallback(s.HandleText)
	return reg, nil
}

// HandleText feeds a text update to the controller.
func (s *Service) HandleText(c tele.Context) error {
	return s.Controller.HandleMessage(tghelpers.BuildContext(c), messageFrom(c))
}

// HandleCallback feeds a button tap to the controller.
func (s *Service) HandleCallback(c tele.Context) error {
	cb := c.Callback()
	if cb == nil {
		return nil
	}
	in := conversation.Callback{Data: cb.Data}
	if cb.Sender != nil {
		in.SenderID = cb.Sender.ID
	}
	if cb.Message != nil {
		in.MessageID = cb.Message.ID
		if cb.Message.Chat != nil {
			in.ChatID = cb.Message.Chat.ID
		}
	}
	if in.ChatID == 0 {
		in.ChatID = in.SenderID
	}
	return s.Controller.HandleCallback(tghelpers.BuildContext(c), in)
}

func messageFrom(c tele.Context) conversation.Message {
	m := conversation.Message{Text: c.Text()}
	if u := c.Sender(); u != nil {
		m.SenderID = u.ID
		m.Username = u.Username
	}
	if chat := c.Chat(); chat != nil {
		m.ChatID = chat.ID
	} else {
		m.ChatID = m.SenderID
	}
	return m
}
