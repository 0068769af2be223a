// Package geo resolves addresses and driving routes.
package geo

import (
	"context"
	"errors"
)

var (
	// ErrNoMatch is returned when an address cannot be resolved.
	ErrNoMatch = errors.New("geo: no match")
	// ErrNoRoute is returned when no driving route exists between two places.
	ErrNoRoute = errors.New("geo: no route")
)

// Place is a resolved address.
type Place struct {
	Label string
	Lat   float64
	Lng   float64
}

// Route holds the metrics of a driving route.
type Route struct {
	Meters  int
	Seconds int
}

// Geocoder resolves free-text addresses.
type Geocoder interface {
	Geocode(ctx context.Context, text string) (Place, error)
}

// Router computes driving routes between resolved places.
type Router interface {
	Route(ctx context.Context, from, to Place) (Route, error)
}

// Client is both a Geocoder and a Router.
type Client interface {
	Geocoder
	Router
}
