package telegram

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type countingTransport struct {
	calls int
	err   error
}

func (c *countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return http.DefaultTransport.RoundTrip(req)
}

func TestObservedTransportDoesNotRetry(t *testing.T) {
	base := &countingTransport{err: errors.New("connection reset by peer")}
	client := &http.Client{Transport: &observedTransport{base: base}}

	_, err := client.Get("http://example.invalid/botTOKEN/sendMessage")
	if err == nil {
		t.Fatal("expected error")
	}
	if base.calls != 1 {
		t.Fatalf("expected a single attempt, got %d", base.calls)
	}
}

func TestBuildHTTPClientTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client := BuildHTTPClient(50 * time.Millisecond)
	if _, err := client.Get(srv.URL); err == nil {
		t.Fatal("expected timeout error")
	}
	if c := BuildHTTPClient(0); c.Timeout != 15*time.Second {
		t.Fatalf("default timeout %v", c.Timeout)
	}
}
