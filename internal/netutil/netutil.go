// Package netutil provides the HTTP client construction and network error
// classification shared by the subscription fetch path.
package netutil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

const (
	// DialTimeout bounds the TCP connect to the subscription server.
	DialTimeout = 5 * time.Second
	// TLSHandshakeTimeout bounds the TLS handshake.
	TLSHandshakeTimeout = 10 * time.Second
)

// NewHTTPClient creates an HTTP client with sane timeouts for subscription
// fetches.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   DialTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   TLSHandshakeTimeout,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// Cause is the coarse classification of a failed network operation.
type Cause string

const (
	CauseTimeout    Cause = "timeout"
	CauseCancelled  Cause = "cancelled"
	CauseConnection Cause = "connection"
)

// Classify maps a transport-level error onto one of the three fetch-failure
// causes the import UI distinguishes.
func Classify(err error) Cause {
	if errors.Is(err, context.DeadlineExceeded) {
		return CauseTimeout
	}
	if errors.Is(err, context.Canceled) {
		return CauseCancelled
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CauseTimeout
	}
	return CauseConnection
}

// Message returns a human-readable description of a network error.
func Message(err error) string {
	if err == nil {
		return "unknown network error"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "network timeout: connection timed out"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return fmt.Sprintf("DNS error: cannot resolve hostname (%s)", dnsErr.Name)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Op == "dial" {
			return "network error: cannot connect to server"
		}
		return fmt.Sprintf("network error: %s", opErr.Error())
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return "request timeout: operation took too long"
	}
	if errors.Is(err, context.Canceled) {
		return "request cancelled"
	}

	return fmt.Sprintf("network error: %s", err.Error())
}
