// Package config loads the ride bot configuration: the shared core sections
// plus storage, maps, booking, fare and driver settings.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	coreconfig "github.com/m3rciful/ridebot/core/config"
	coredatabase "github.com/m3rciful/ridebot/core/database"
	"github.com/m3rciful/ridebot/internal/fare"
)

const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
	BackendKV       = "kv"
	BackendRedis    = "redis"

	DefaultTable = "ride_items"
)

var tableName = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// StoreConfig selects where trips, profiles and kv sessions live.
type StoreConfig struct {
	Backend string `yaml:"backend" envconfig:"STORE_BACKEND"`
	Table   string `yaml:"table" envconfig:"STORE_TABLE"`
}

// SessionConfig selects the session backend.
type SessionConfig struct {
	Backend    string `yaml:"backend" envconfig:"SESSION_BACKEND"`
	TTLMinutes int    `yaml:"ttl_minutes" envconfig:"SESSION_TTL_MINUTES"`
}

// RedisConfig holds the redis connection used by the redis session backend.
type RedisConfig struct {
	Addr     string `yaml:"addr" envconfig:"REDIS_ADDR"`
	Password string `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" envconfig:"REDIS_DB"`
}

// MapsConfig configures geocoding and routing requests.
type MapsConfig struct {
	APIKey         string `yaml:"api_key" envconfig:"MAPS_API_KEY"`
	RegionHint     string `yaml:"region_hint" envconfig:"GEOCODE_REGION_HINT"`
	Country        string `yaml:"country" envconfig:"GEOCODE_COUNTRY"`
	Language       string `yaml:"language" envconfig:"GEOCODE_LANGUAGE"`
	TimeoutSeconds int    `yaml:"timeout_seconds" envconfig:"MAPS_TIMEOUT_SECONDS"`
}

// BookingConfig holds display and listing settings.
type BookingConfig struct {
	Timezone        string `yaml:"timezone" envconfig:"TIMEZONE"`
	PickerDaysAhead int    `yaml:"picker_days_ahead" envconfig:"PICKER_DAYS_AHEAD"`
	TripsListLimit  int    `yaml:"trips_list_limit" envconfig:"TRIPS_LIST_LIMIT"`
	// CountryCode is prefixed to 10-digit phone numbers.
	CountryCode string `yaml:"country_code" envconfig:"PHONE_COUNTRY_CODE"`
}

// FareConfig holds the tariff in dollars.
type FareConfig struct {
	Base             float64 `yaml:"base" envconfig:"FARE_BASE"`
	PerMile          float64 `yaml:"per_mile" envconfig:"FARE_PER_MILE"`
	PerMinute        float64 `yaml:"per_minute" envconfig:"FARE_PER_MIN"`
	Fee              float64 `yaml:"fee" envconfig:"FARE_FEE"`
	Minimum          float64 `yaml:"minimum" envconfig:"FARE_MINIMUM"`
	ShortTripMiles   float64 `yaml:"short_trip_miles" envconfig:"SHORT_TRIP_MILES_THRESHOLD"`
	ShortTripMinimum float64 `yaml:"short_trip_minimum" envconfig:"SHORT_TRIP_MINIMUM"`
}

// DriverProfile is how a driver is introduced to passengers.
type DriverProfile struct {
	Name string `yaml:"name" json:"name"`
	Car  string `yaml:"car" json:"car"`
}

// DriverProfiles maps driver chat ids to profiles. From the environment it
// is read as a JSON object: {"123": {"name": "Ana", "car": "Camry"}}.
type DriverProfiles map[int64]DriverProfile

// Decode implements envconfig.Decoder.
func (p *DriverProfiles) Decode(value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		*p = nil
		return nil
	}
	var raw map[string]DriverProfile
	if err := json.Unmarshal([]byte(value), &raw); err != nil {
		return fmt.Errorf("driver profiles: %w", err)
	}
	out := make(DriverProfiles, len(raw))
	for k, v := range raw {
		id, err := strconv.ParseInt(strings.TrimSpace(k), 10, 64)
		if err != nil {
			return fmt.Errorf("driver profiles: bad id %q", k)
		}
		out[id] = v
	}
	*p = out
	return nil
}

// DriversConfig lists the drivers that receive ride requests.
type DriversConfig struct {
	ChatIDs          []int64        `yaml:"chat_ids" envconfig:"DRIVER_CHAT_IDS"`
	Profiles         DriverProfiles `yaml:"profiles" envconfig:"DRIVER_PROFILES"`
	BroadcastWorkers int            `yaml:"broadcast_workers" envconfig:"BROADCAST_WORKERS"`
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Store    StoreConfig         `yaml:"store"`
	Session  SessionConfig       `yaml:"session"`
	Redis    RedisConfig         `yaml:"redis"`
	Maps     MapsConfig          `yaml:"maps"`
	Booking  BookingConfig       `yaml:"booking"`
	Fare     FareConfig          `yaml:"fare"`
	Drivers  DriversConfig       `yaml:"drivers"`
}

// CoreConfig exposes the shared core sections.
func (c *Config) CoreConfig() *coreconfig.Config { return &c.Config }

// Default returns the configuration used for keys absent from both the file
// and the environment.
func Default() Config {
	rates := fare.DefaultRates()
	return Config{
		Store:   StoreConfig{Backend: BackendPostgres, Table: DefaultTable},
		Session: SessionConfig{Backend: BackendKV, TTLMinutes: 24 * 60},
		Maps: MapsConfig{
			RegionHint:     ", FL, USA",
			Country:        "US",
			Language:       "en",
			TimeoutSeconds: 10,
		},
		Booking: BookingConfig{
			Timezone:        "America/Chicago",
			PickerDaysAhead: 5,
			TripsListLimit:  5,
			CountryCode:     "1",
		},
		Fare: FareConfig{
			Base:             rates.Base,
			PerMile:          rates.PerMile,
			PerMinute:        rates.PerMinute,
			Fee:              rates.Fee,
			Minimum:          rates.Minimum,
			ShortTripMiles:   rates.ShortTripMiles,
			ShortTripMinimum: rates.ShortTripMinimum,
		},
		Drivers: DriversConfig{BroadcastWorkers: 4},
	}
}

// Load reads configuration from a YAML file and environment variables.
// Environment values win over the file, the file wins over Default.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates cfg and fills derived defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return err
	}

	cfg.Store.Backend = strings.ToLower(strings.TrimSpace(cfg.Store.Backend))
	switch cfg.Store.Backend {
	case "":
		cfg.Store.Backend = BackendPostgres
	case BackendPostgres, BackendMemory:
	default:
		return fmt.Errorf("invalid store.backend %q; allowed: postgres, memory", cfg.Store.Backend)
	}
	if cfg.Store.Table == "" {
		cfg.Store.Table = DefaultTable
	}
	if !tableName.MatchString(cfg.Store.Table) {
		return fmt.Errorf("invalid store.table %q", cfg.Store.Table)
	}

	cfg.Session.Backend = strings.ToLower(strings.TrimSpace(cfg.Session.Backend))
	switch cfg.Session.Backend {
	case "":
		cfg.Session.Backend = BackendKV
	case BackendKV:
	case BackendRedis:
		if strings.TrimSpace(cfg.Redis.Addr) == "" {
			return fmt.Errorf("redis.addr is required when session.backend is 'redis'")
		}
	default:
		return fmt.Errorf("invalid session.backend %q; allowed: kv, redis", cfg.Session.Backend)
	}
	if cfg.Session.TTLMinutes < 0 {
		return fmt.Errorf("session.ttl_minutes must be >= 0")
	}

	if strings.TrimSpace(cfg.Maps.APIKey) == "" {
		return fmt.Errorf("maps.api_key is required")
	}
	if cfg.Maps.TimeoutSeconds <= 0 {
		return fmt.Errorf("maps.timeout_seconds must be > 0")
	}

	if _, err := time.LoadLocation(cfg.Booking.Timezone); err != nil {
		return fmt.Errorf("invalid booking.timezone %q: %w", cfg.Booking.Timezone, err)
	}
	if cfg.Booking.PickerDaysAhead <= 0 {
		return fmt.Errorf("booking.picker_days_ahead must be > 0")
	}
	if cfg.Booking.TripsListLimit <= 0 {
		return fmt.Errorf("booking.trips_list_limit must be > 0")
	}

	f := cfg.Fare
	for name, v := range map[string]float64{
		"base": f.Base, "per_mile": f.PerMile, "per_minute": f.PerMinute, "fee": f.Fee,
		"minimum": f.Minimum, "short_trip_miles": f.ShortTripMiles, "short_trip_minimum": f.ShortTripMinimum,
	} {
		if v < 0 {
			return fmt.Errorf("fare.%s must be >= 0", name)
		}
	}

	if cfg.Drivers.BroadcastWorkers <= 0 {
		cfg.Drivers.BroadcastWorkers = 4
	}
	return nil
}

// Location returns the display timezone. Normalize has already validated it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Booking.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SessionTTL returns the idle expiry of redis sessions.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Session.TTLMinutes) * time.Minute
}

// Rates returns the configured tariff.
func (c *Config) Rates() fare.Rates {
	return fare.Rates{
		Base:             c.Fare.Base,
		PerMile:          c.Fare.PerMile,
		PerMinute:        c.Fare.PerMinute,
		Fee:              c.Fare.Fee,
		Minimum:          c.Fare.Minimum,
		ShortTripMiles:   c.Fare.ShortTripMiles,
		ShortTripMinimum: c.Fare.ShortTripMinimum,
	}
}
