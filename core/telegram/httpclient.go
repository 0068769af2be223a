package telegram

import (
	"log/slog"
	"net"
	"net/http"
	"path"
	"time"

	"github.com/m3rciful/ridebot/core/logger"
	"github.com/m3rciful/ridebot/core/telegram/netutil"
)

const (
	defaultDialTimeout       = 5 * time.Second
	defaultTLSHandshake      = 5 * time.Second
	defaultIdleConnTimeout   = 30 * time.Second
	defaultKeepAliveInterval = 30 * time.Second
	// longPollSlack keeps getUpdates from hitting the client timeout.
	longPollSlack = 10 * time.Second
)

// BuildHTTPClient returns an HTTP client for Bot API calls. Each call is a
// single attempt bounded by timeout; failures are reported to the caller.
func BuildHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAliveInterval}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   defaultTLSHandshake,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: &observedTransport{base: transport},
	}
}

// observedTransport logs failed Bot API round trips without the token.
type observedTransport struct {
	base http.RoundTripper
}

func (t *observedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	start := time.Now()
	resp, err := base.RoundTrip(req)
	if err != nil {
		logger.Debug(req.Context(), "tg.http", "tg.http.call",
			slog.String("status", "fail"),
			slog.String("op", path.Base(req.URL.Path)),
			slog.String("err_code", netutil.Kind(err)),
			slog.Duration("duration", logger.Took(start)),
		)
	}
	return resp, err
}
