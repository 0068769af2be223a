package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sample = `
telegram:
  token: "yaml-token"
  admin_id: 7
maps:
  api_key: "maps-key"
store:
  backend: memory
booking:
  trips_list_limit: 3
drivers:
  chat_ids: [11, 12]
  profiles:
    11: {name: "Ana", car: "Toyota Camry"}
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadLayersFileOverDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "yaml-token" || cfg.Telegram.AdminID != 7 {
		t.Fatalf("telegram section %+v", cfg.Telegram)
	}
	if cfg.Store.Backend != BackendMemory || cfg.Store.Table != DefaultTable {
		t.Fatalf("store section %+v", cfg.Store)
	}
	if cfg.Booking.TripsListLimit != 3 || cfg.Booking.PickerDaysAhead != 5 {
		t.Fatalf("booking section %+v", cfg.Booking)
	}
	if cfg.Fare.Base != 3.00 || cfg.Fare.ShortTripMinimum != 10.00 {
		t.Fatalf("fare defaults lost: %+v", cfg.Fare)
	}
	if len(cfg.Drivers.ChatIDs) != 2 || cfg.Drivers.Profiles[11].Name != "Ana" {
		t.Fatalf("drivers section %+v", cfg.Drivers)
	}
	if cfg.Location().String() != "America/Chicago" {
		t.Fatalf("location %s", cfg.Location())
	}
	if cfg.CoreConfig().Telegram.RunMode != "longpoll" {
		t.Fatalf("core config not normalized: %+v", cfg.CoreConfig().Telegram)
	}
}

func TestLoadEnvironmentWins(t *testing.T) {
	t.Setenv("BOT_TOKEN", "env-token")
	t.Setenv("FARE_PER_MILE", "3.25")
	t.Setenv("DRIVER_CHAT_IDS", "21,22,23")
	t.Setenv("DRIVER_PROFILES", `{"21": {"name": "Bo", "car": "Prius"}}`)
	t.Setenv("SESSION_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := Load(writeConfig(t, sample))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "env-token" {
		t.Fatalf("token %q", cfg.Telegram.Token)
	}
	if cfg.Fare.PerMile != 3.25 {
		t.Fatalf("per mile %v", cfg.Fare.PerMile)
	}
	if len(cfg.Drivers.ChatIDs) != 3 || cfg.Drivers.ChatIDs[2] != 23 {
		t.Fatalf("chat ids %v", cfg.Drivers.ChatIDs)
	}
	if p := cfg.Drivers.Profiles[21]; p.Name != "Bo" || p.Car != "Prius" {
		t.Fatalf("profiles %+v", cfg.Drivers.Profiles)
	}
	if cfg.Session.Backend != BackendRedis || cfg.SessionTTL().Hours() != 24 {
		t.Fatalf("session %+v", cfg.Session)
	}
}

func TestNormalize(t *testing.T) {
	valid := func() Config {
		c := Default()
		c.Telegram.Token = "x"
		c.Maps.APIKey = "k"
		return c
	}
	cases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing maps key", mutate: func(c *Config) { c.Maps.APIKey = " " }, wantErr: "maps.api_key"},
		{name: "bad store backend", mutate: func(c *Config) { c.Store.Backend = "dynamo" }, wantErr: "store.backend"},
		{name: "bad table", mutate: func(c *Config) { c.Store.Table = "rides; drop" }, wantErr: "store.table"},
		{name: "redis without addr", mutate: func(c *Config) { c.Session.Backend = "redis" }, wantErr: "redis.addr"},
		{name: "bad timezone", mutate: func(c *Config) { c.Booking.Timezone = "Mars/Olympus" }, wantErr: "booking.timezone"},
		{name: "negative fare", mutate: func(c *Config) { c.Fare.PerMinute = -1 }, wantErr: "fare.per_minute"},
		{name: "zero days", mutate: func(c *Config) { c.Booking.PickerDaysAhead = 0 }, wantErr: "picker_days_ahead"},
		{name: "core errors surface", mutate: func(c *Config) { c.Telegram.Token = "" }, wantErr: "telegram token"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := valid()
			tc.mutate(&c)
			err := Normalize(&c)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("want error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestDriverProfilesDecode(t *testing.T) {
	var p DriverProfiles
	if err := p.Decode(`{"5": {"name": "Cy"}}`); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if p[5].Name != "Cy" {
		t.Fatalf("decoded %+v", p)
	}
	if err := p.Decode(`{"abc": {}}`); err == nil {
		t.Fatalf("expected error for non-numeric id")
	}
	if err := p.Decode(""); err != nil || p != nil {
		t.Fatalf("empty value: %v %+v", err, p)
	}
}
