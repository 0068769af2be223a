package fare

import (
	"math"
	"testing"
)

func TestQuote(t *testing.T) {
	rates := DefaultRates()
	tests := []struct {
		name    string
		miles   float64
		minutes float64
		want    float64
	}{
		{name: "zero trip gets short trip minimum", miles: 0, minutes: 0, want: 10.00},
		{name: "three km ten minutes", miles: MetersToMiles(3000), minutes: SecondsToMinutes(600), want: 12.66},
		{name: "short trip floor", miles: 1, minutes: 2, want: 10.00},
		{name: "long trip metered", miles: 10, minutes: 20, want: 3 + 25 + 8 + 1},
		{name: "exactly at threshold is metered", miles: 5, minutes: 0, want: 16.50},
		{name: "rounded to cents", miles: 7.333, minutes: 11.111, want: 26.78},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rates.Quote(tt.miles, tt.minutes)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("Quote(%v, %v) = %v, want %v", tt.miles, tt.minutes, got, tt.want)
			}
		})
	}
}

func TestQuoteNeverBelowFloors(t *testing.T) {
	cheap := Rates{
		Base:             0,
		PerMile:          0.01,
		PerMinute:        0,
		Fee:              0,
		Minimum:          8.00,
		ShortTripMiles:   5.0,
		ShortTripMinimum: 10.00,
	}
	for miles := 0.0; miles < 40; miles += 0.75 {
		for minutes := 0.0; minutes < 90; minutes += 7.5 {
			got := cheap.Quote(miles, minutes)
			if got < cheap.Minimum {
				t.Fatalf("Quote(%v, %v) = %v below minimum", miles, minutes, got)
			}
			if miles < cheap.ShortTripMiles && got < cheap.ShortTripMinimum {
				t.Fatalf("Quote(%v, %v) = %v below short trip minimum", miles, minutes, got)
			}
		}
	}
}

func TestConversions(t *testing.T) {
	if got := MetersToMiles(3000); math.Abs(got-1.864) > 0.001 {
		t.Fatalf("MetersToMiles(3000) = %v", got)
	}
	if got := SecondsToMinutes(600); got != 10 {
		t.Fatalf("SecondsToMinutes(600) = %v", got)
	}
}
