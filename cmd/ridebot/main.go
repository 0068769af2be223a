// Command ridebot runs the ride booking Telegram bot.
package main

import (
	"context"
	"errors"
	"log"

	corecmd "github.com/m3rciful/ridebot/core/cmd"
	"github.com/m3rciful/ridebot/internal/app"
	"github.com/m3rciful/ridebot/internal/config"
)

func main() {
	err := corecmd.Run(corecmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			cfg, err := config.Load(path)
			if err != nil {
				return nil, err
			}
			return cfg, nil
		},
		Bootstrap: func(ctx context.Context, c corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			cfg, ok := c.(*config.Config)
			if !ok {
				return nil, errUnexpectedConfig
			}
			a, err := app.New(ctx, cfg)
			if err != nil {
				return nil, err
			}
			return a, nil
		},
	})
	if err != nil {
		log.Fatal(err)
	}
}

var errUnexpectedConfig = errors.New("ridebot: unexpected config type")
