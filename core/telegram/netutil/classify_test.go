package netutil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"testing"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"deadline", fmt.Errorf("geocode: %w", context.DeadlineExceeded), KindTimeout},
		{"url timeout", &url.Error{Op: "Post", URL: "https://api.telegram.org", Err: timeoutErr{}}, KindTimeout},
		{"cancelled", context.Canceled, KindCancelled},
		{"dial", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, KindNetwork},
		{"dns", &net.DNSError{Err: "no such host", Name: "maps.googleapis.com"}, KindNetwork},
		{"other", errors.New("ZERO_RESULTS"), KindOther},
	}
	for _, tt := range tests {
		if got := Kind(tt.err); got != tt.want {
			t.Fatalf("%s: Kind = %q, want %q", tt.name, got, tt.want)
		}
	}
	if !IsTimeout(timeoutErr{}) || IsTimeout(errors.New("x")) {
		t.Fatalf("IsTimeout misclassified")
	}
}
