package phone

import (
	"errors"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"850-555-1234", "+18505551234"},
		{"+1 850 555 1234", "+18505551234"},
		{"(850) 555.1234", "+18505551234"},
		{"1 850 555 1234", "+18505551234"},
		{"+44 20 7946 0958", "+442079460958"},
		{"  +380501234567 ", "+380501234567"},
	}
	for _, tt := range tests {
		got, err := Normalize(tt.in, "")
		if err != nil {
			t.Fatalf("Normalize(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeRejects(t *testing.T) {
	for _, in := range []string{"", "123", "abc", "+12", "2850 555 1234", "+1234567890123456"} {
		if got, err := Normalize(in, ""); !errors.Is(err, ErrInvalid) {
			t.Fatalf("Normalize(%q) = %q, %v; want ErrInvalid", in, got, err)
		}
	}
}
