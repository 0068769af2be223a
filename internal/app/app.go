// Package app assembles the ride bot from configuration: infrastructure,
// domain services and the telegram runtime options.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/ridebot/core/bootstrap"
	"github.com/m3rciful/ridebot/core/logger"
	"github.com/m3rciful/ridebot/core/metrics"
	tg "github.com/m3rciful/ridebot/core/telegram"
	"github.com/m3rciful/ridebot/core/telegram/router"
	"github.com/m3rciful/ridebot/internal/config"
	"github.com/m3rciful/ridebot/internal/geo"
	"github.com/m3rciful/ridebot/internal/kv"
	"github.com/m3rciful/ridebot/internal/messaging"
	"github.com/m3rciful/ridebot/internal/session"
)

const component = "app"

// App owns the bot's connections and runtime wiring.
type App struct {
	cfg    *config.Config
	infra  *bootstrap.Result
	bot    *tele.Bot
	svc    *Service
	checks map[string]metrics.Check
}

// New connects storage, builds the bot and wires the domain services.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	opts := bootstrap.Options{Config: cfg.CoreConfig()}
	if cfg.Store.Backend == config.BackendPostgres {
		opts.Database = &cfg.Database
	}
	if cfg.Session.Backend == config.BackendRedis {
		opts.Redis = &bootstrap.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}
	}
	infra, err := bootstrap.Run(ctx, opts)
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, infra: infra, checks: map[string]metrics.Check{}}
	if err := a.wire(); err != nil {
		_ = infra.Close()
		return nil, err
	}
	logger.Info(ctx, component, "app.wired",
		slog.String("mode", cfg.Telegram.RunMode),
		slog.String("db", cfg.Store.Backend),
		slog.String("cache", cfg.Session.Backend),
		slog.Int("drivers", len(cfg.Drivers.ChatIDs)),
	)
	return a, nil
}

func (a *App) wire() error {
	cfg := a.cfg

	var store kv.Store
	if a.infra.DB != nil {
		store = kv.NewPostgres(a.infra.DB, cfg.Store.Table)
		db := a.infra.DB
		a.checks["db"] = func(ctx context.Context) error { return db.PingContext(ctx) }
	} else {
		store = kv.NewMemory()
	}

	var sessions session.Store
	if a.infra.Redis != nil {
		client := a.infra.Redis
		sessions = session.NewRedisStore(client, cfg.SessionTTL())
		a.checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	} else {
		sessions = session.NewKVStore(store)
	}

	maps, err := geo.NewGoogleClient(cfg.Maps.APIKey, geo.Options{
		RegionHint: cfg.Maps.RegionHint,
		Country:    cfg.Maps.Country,
		Language:   cfg.Maps.Language,
		Timeout:    secondsToDuration(cfg.Maps.TimeoutSeconds),
	})
	if err != nil {
		return err
	}

	bot, err := tg.NewBot(cfg.CoreConfig())
	if err != nil {
		return err
	}
	a.bot = bot

	svc, err := NewService(cfg, Deps{
		KV:       store,
		Sessions: sessions,
		Geo:      maps,
		Gateway:  messaging.NewTelebot(bot),
	})
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	a.svc = svc
	return nil
}

// TelegramRunOptions returns the middleware chain, routes and hooks for the bot runtime.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	if a.svc == nil || a.bot == nil {
		return tg.RunOptions{}, fmt.Errorf("app: not wired")
	}
	core := a.cfg.CoreConfig()
	reg := a.svc.Registry

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID:       core.Telegram.AdminID,
		OnAdminReject: a.svc.HandleText,
	})
	routes = append(routes, router.TextRoutes(reg, router.TextOptions{})...)
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))

	return tg.RunOptions{
		Config:      core,
		Registry:    reg,
		Bot:         a.bot,
		Middlewares: tg.DefaultMiddlewares(core, nil),
		Routes:      routes,
		OnStart: func(ctx context.Context, _ tg.Runtime) error {
			if listen := core.Metrics.Listen; listen != "" {
				go func() {
					if err := metrics.Serve(ctx, listen, a.checks); err != nil {
						logger.Error(ctx, component, "metrics.serve",
							slog.String("status", "fail"),
							slog.String("err", err.Error()),
						)
					}
				}()
			}
			return nil
		},
	}, nil
}

// Close releases database and redis connections.
func (a *App) Close() error {
	return a.infra.Close()
}

func secondsToDuration(s int) time.Duration {
	return time.Duration(s) * time.Second
}
