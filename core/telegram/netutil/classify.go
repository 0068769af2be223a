// Package netutil classifies outbound call failures. Calls are attempted once,
// so the classification only feeds logs, metrics and the user-facing reply.
package netutil

import (
	"context"
	"errors"
	"net"
	"net/url"
)

const (
	KindTimeout   = "timeout"
	KindCancelled = "cancelled"
	KindNetwork   = "network"
	KindOther     = "other"
)

// IsTimeout reports whether err comes from a deadline or a transport timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return true
	}
	return false
}

// Kind returns a low-cardinality label for err: timeout, cancelled, network or other.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case IsTimeout(err):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCancelled
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindNetwork
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindNetwork
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return KindNetwork
	}
	return KindOther
}
