package cmd

import (
	"context"
	"errors"
	"strings"
	"testing"

	coreconfig "github.com/m3rciful/ridebot/core/config"
	coretelegram "github.com/m3rciful/ridebot/core/telegram"
)

type carrier struct{ cfg *coreconfig.Config }

func (c carrier) CoreConfig() *coreconfig.Config { return c.cfg }

type app struct {
	closed bool
}

func (a *app) TelegramRunOptions() (coretelegram.RunOptions, error) {
	return coretelegram.RunOptions{Config: &coreconfig.Config{}}, nil
}

func (a *app) Close() error {
	a.closed = true
	return nil
}

func TestRunContextLifecycle(t *testing.T) {
	t.Setenv("RIDEBOT_TEST_CONFIG", "config.yaml")
	a := &app{}
	var hooks []string
	err := RunContext(context.Background(), Options{
		ConfigEnvVar: "RIDEBOT_TEST_CONFIG",
		LoadConfig: func(path string) (ConfigCarrier, error) {
			if path != "config.yaml" {
				t.Fatalf("path %q", path)
			}
			return carrier{cfg: &coreconfig.Config{}}, nil
		},
		Bootstrap:      func(context.Context, ConfigCarrier) (TelegramApp, error) { return a, nil },
		ShutdownLogger: func() error { hooks = append(hooks, "logger"); return nil },
		RunTelegram: func(ctx context.Context, opts coretelegram.RunOptions) error {
			if err := opts.OnStart(ctx, coretelegram.Runtime{}); err != nil {
				return err
			}
			hooks = append(hooks, "run")
			return opts.OnStop(ctx, coretelegram.Runtime{})
		},
	})
	if err != nil {
		t.Fatalf("RunContext: %v", err)
	}
	if !a.closed {
		t.Fatal("app not closed")
	}
	if strings.Join(hooks, ",") != "run,logger" {
		t.Fatalf("hooks %v", hooks)
	}
}

func TestRunContextErrors(t *testing.T) {
	load := func(string) (ConfigCarrier, error) { return carrier{cfg: &coreconfig.Config{}}, nil }
	cases := []struct {
		name string
		opts Options
		want string
	}{
		{name: "no loader", opts: Options{}, want: "LoadConfig is required"},
		{name: "no path", opts: Options{
			ConfigEnvVar: "RIDEBOT_UNSET_CONFIG",
			LoadConfig:   load,
			Bootstrap:    func(context.Context, ConfigCarrier) (TelegramApp, error) { return nil, nil },
		}, want: "config path not provided"},
		{name: "missing core", opts: Options{
			DefaultConfigPath: "x.yaml",
			LoadConfig:        func(string) (ConfigCarrier, error) { return carrier{}, nil },
			Bootstrap:         func(context.Context, ConfigCarrier) (TelegramApp, error) { return nil, nil },
			ShutdownLogger:    func() error { return nil },
		}, want: "missing core configuration"},
		{name: "bootstrap", opts: Options{
			DefaultConfigPath: "x.yaml",
			LoadConfig:        load,
			Bootstrap: func(context.Context, ConfigCarrier) (TelegramApp, error) {
				return nil, errors.New("db down")
			},
			ShutdownLogger: func() error { return nil },
		}, want: "bootstrap failed: db down"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := RunContext(context.Background(), tc.opts)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want %q", err, tc.want)
			}
		})
	}
}
