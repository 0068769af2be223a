package geo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"googlemaps.github.io/maps"

	"github.com/m3rciful/ridebot/core/logger"
	"github.com/m3rciful/ridebot/core/telegram/netutil"
)

const component = "geo"

// DefaultTimeout bounds every provider call.
const DefaultTimeout = 10 * time.Second

// Options tunes the requests sent to the Maps API.
type Options struct {
	// RegionHint is appended to the address for the single fallback search.
	RegionHint string
	// Country restricts geocoding results (ISO 3166-1 code).
	Country  string
	Language string
	Timeout  time.Duration
}

type mapsAPI interface {
	Geocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
	Directions(ctx context.Context, r *maps.DirectionsRequest) ([]maps.Route, []maps.GeocodedWaypoint, error)
}

// GoogleClient implements Client with the Google Maps Geocoding and Directions APIs.
type GoogleClient struct {
	api  mapsAPI
	opts Options
}

// NewGoogleClient creates a client for apiKey.
func NewGoogleClient(apiKey string, opts Options) (*GoogleClient, error) {
	c, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return newGoogleClient(c, opts), nil
}

func newGoogleClient(api mapsAPI, opts Options) *GoogleClient {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Language == "" {
		opts.Language = "en"
	}
	return &GoogleClient{api: api, opts: opts}
}

// Geocode resolves text, retrying once with the region hint appended when
// the first search finds nothing.
func (g *GoogleClient) Geocode(ctx context.Context, text string) (Place, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Place{}, ErrNoMatch
	}
	p, err := g.search(ctx, text)
	if errors.Is(err, ErrNoMatch) && g.opts.RegionHint != "" {
		p, err = g.search(ctx, text+g.opts.RegionHint)
	}
	if err != nil {
		return Place{}, err
	}
	if p.Label == "" {
		p.Label = text
	}
	return p, nil
}

func (g *GoogleClient) search(ctx context.Context, query string) (Place, error) {
	ctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	req := &maps.GeocodingRequest{Address: query, Language: g.opts.Language}
	if g.opts.Country != "" {
		req.Components = map[maps.Component]string{maps.ComponentCountry: g.opts.Country}
		req.Region = strings.ToLower(g.opts.Country)
	}
	start := time.Now()
	results, err := g.api.Geocode(ctx, req)
	if err != nil && !strings.Contains(err.Error(), "ZERO_RESULTS") {
		logger.Warn(ctx, component, "geo.geocode",
			slog.String("status", "fail"),
			slog.String("err_code", netutil.Kind(err)),
			slog.Duration("duration", logger.Took(start)),
			slog.String("err", err.Error()),
		)
		return Place{}, fmt.Errorf("geocode: %w", err)
	}
	if len(results) == 0 {
		logger.Debug(ctx, component, "geo.geocode",
			slog.String("status", "skip"),
			slog.Duration("duration", logger.Took(start)),
		)
		return Place{}, ErrNoMatch
	}
	r := results[0]
	return Place{
		Label: r.FormattedAddress,
		Lat:   r.Geometry.Location.Lat,
		Lng:   r.Geometry.Location.Lng,
	}, nil
}

// Route returns the driving distance and duration of the first route found.
func (g *GoogleClient) Route(ctx context.Context, from, to Place) (Route, error) {
	ctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	req := &maps.DirectionsRequest{
		Origin:      latLng(from),
		Destination: latLng(to),
		Mode:        maps.TravelModeDriving,
		Language:    g.opts.Language,
	}
	start := time.Now()
	routes, _, err := g.api.Directions(ctx, req)
	if err != nil && !strings.Contains(err.Error(), "ZERO_RESULTS") {
		logger.Warn(ctx, component, "geo.route",
			slog.String("status", "fail"),
			slog.String("err_code", netutil.Kind(err)),
			slog.Duration("duration", logger.Took(start)),
			slog.String("err", err.Error()),
		)
		return Route{}, fmt.Errorf("maps api error: %w", err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return Route{}, ErrNoRoute
	}
	var out Route
	for _, leg := range routes[0].Legs {
		out.Meters += leg.Distance.Meters
		out.Seconds += int(leg.Duration / time.Second)
	}
	return out, nil
}

func latLng(p Place) string {
	return strconv.FormatFloat(p.Lat, 'f', 6, 64) + "," + strconv.FormatFloat(p.Lng, 'f', 6, 64)
}
