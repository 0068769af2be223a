package geo

import (
	"context"
	"errors"
	"testing"
	"time"

	"googlemaps.github.io/maps"
)

type fakeMaps struct {
	queries   []string
	geocode   map[string]maps.GeocodingResult
	routes    []maps.Route
	routeErr  error
	lastRoute *maps.DirectionsRequest
	block     bool
}

func (f *fakeMaps) Geocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error) {
	f.queries = append(f.queries, r.Address)
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if res, ok := f.geocode[r.Address]; ok {
		return []maps.GeocodingResult{res}, nil
	}
	return nil, nil
}

func (f *fakeMaps) Directions(_ context.Context, r *maps.DirectionsRequest) ([]maps.Route, []maps.GeocodedWaypoint, error) {
	f.lastRoute = r
	return f.routes, nil, f.routeErr
}

func result(label string, lat, lng float64) maps.GeocodingResult {
	var r maps.GeocodingResult
	r.FormattedAddress = label
	r.Geometry.Location = maps.LatLng{Lat: lat, Lng: lng}
	return r
}

func TestGeocodeRetriesWithRegionHint(t *testing.T) {
	f := &fakeMaps{geocode: map[string]maps.GeocodingResult{
		"100 Main St, FL, USA": result("100 Main St, Miami, FL 33130, USA", 25.77, -80.19),
	}}
	c := newGoogleClient(f, Options{RegionHint: ", FL, USA", Country: "US"})

	p, err := c.Geocode(context.Background(), "  100 Main St ")
	if err != nil {
		t.Fatalf("Geocode: %v", err)
	}
	if p.Label != "100 Main St, Miami, FL 33130, USA" || p.Lat != 25.77 {
		t.Fatalf("unexpected place %+v", p)
	}
	if len(f.queries) != 2 || f.queries[0] != "100 Main St" {
		t.Fatalf("unexpected queries %v", f.queries)
	}

	f.queries = nil
	if _, err := c.Geocode(context.Background(), "nowhere"); !errors.Is(err, ErrNoMatch) {
		t.Fatalf("expected ErrNoMatch, got %v", err)
	}
	if len(f.queries) != 2 {
		t.Fatalf("expected exactly one retry, got %v", f.queries)
	}
}

func TestGeocodeTimeoutIsTerminal(t *testing.T) {
	f := &fakeMaps{block: true}
	c := newGoogleClient(f, Options{RegionHint: ", FL, USA", Timeout: 10 * time.Millisecond})

	_, err := c.Geocode(context.Background(), "100 Main St")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if len(f.queries) != 1 {
		t.Fatalf("timeout must not trigger the hint retry: %v", f.queries)
	}
}

func TestRoute(t *testing.T) {
	leg := &maps.Leg{}
	leg.Distance.Meters = 3000
	leg.Duration = 600 * time.Second
	f := &fakeMaps{routes: []maps.Route{{Legs: []*maps.Leg{leg}}}}
	c := newGoogleClient(f, Options{})

	r, err := c.Route(context.Background(), Place{Lat: 25.7, Lng: -80.1}, Place{Lat: 25.8, Lng: -80.2})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if r.Meters != 3000 || r.Seconds != 600 {
		t.Fatalf("unexpected route %+v", r)
	}
	if f.lastRoute.Origin != "25.700000,-80.100000" || f.lastRoute.Mode != maps.TravelModeDriving {
		t.Fatalf("unexpected request %+v", f.lastRoute)
	}

	f.routes = nil
	if _, err := c.Route(context.Background(), Place{}, Place{}); !errors.Is(err, ErrNoRoute) {
		t.Fatalf("expected ErrNoRoute, got %v", err)
	}
}
