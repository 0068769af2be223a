// Package fare turns route metrics into a quoted price.
package fare

import "math"

const (
	metersPerMile = 1609.34
)

// Rates holds the pricing constants. All amounts are in dollars.
type Rates struct {
	Base      float64
	PerMile   float64
	PerMinute float64
	Fee       float64
	Minimum   float64

	// Trips shorter than ShortTripMiles are never cheaper than ShortTripMinimum.
	ShortTripMiles   float64
	ShortTripMinimum float64
}

// DefaultRates returns the stock tariff.
func DefaultRates() Rates {
	return Rates{
		Base:             3.00,
		PerMile:          2.50,
		PerMinute:        0.40,
		Fee:              1.00,
		Minimum:          8.00,
		ShortTripMiles:   5.0,
		ShortTripMinimum: 10.00,
	}
}

// Quote computes the fare for the given distance and duration, rounded to cents.
func (r Rates) Quote(miles, minutes float64) float64 {
	price := r.Base + miles*r.PerMile + minutes*r.PerMinute + r.Fee
	price = math.Max(price, r.Minimum)
	if miles < r.ShortTripMiles {
		price = math.Max(price, r.ShortTripMinimum)
	}
	return math.Round(price*100) / 100
}

// MetersToMiles converts a route distance to statute miles.
func MetersToMiles(meters int) float64 {
	return float64(meters) / metersPerMile
}

// SecondsToMinutes converts a route duration to minutes.
func SecondsToMinutes(seconds int) float64 {
	return float64(seconds) / 60.0
}
