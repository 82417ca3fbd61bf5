// SPDX-License-Identifier: GPL-3.0-or-later

package dnsqos

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// ProbeTransport times a single DNS exchange with a resolver.
//
// Probe sends the raw query to the resolver and returns the elapsed time,
// truncated to whole milliseconds, when a response arrives. Probe MUST NOT
// modify the query and MUST NOT retry: retries are the business of the
// [*Prober] through its [RetryPolicy].
//
// Errors wrap one of [ErrAddressParse], [ErrExchange], or [ErrTimeout].
type ProbeTransport interface {
	Probe(ctx context.Context, resolver string, query []byte) (time.Duration, error)
}

var (
	// ErrExchange indicates that sending or receiving failed.
	ErrExchange = errors.New("dnsqos: exchange failed")

	// ErrTimeout indicates that no response arrived before the timeout.
	ErrTimeout = errors.New("dnsqos: exchange timed out")
)

const (
	// DefaultTimeout is the default timeout of a single exchange.
	DefaultTimeout = 5000 * time.Millisecond

	// DefaultBufferSize is the default size of the UDP response buffer.
	DefaultBufferSize = 1024

	// DefaultPortDNS is the port for DNS over UDP and TCP.
	DefaultPortDNS uint16 = 53

	// DefaultPortDNSOverTLS is the port for DNS over TLS and QUIC.
	DefaultPortDNSOverTLS uint16 = 853
)

// NetDialer is typically [*net.Dialer].
type NetDialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// classifyError wraps err using [ErrTimeout] or [ErrExchange].
func classifyError(err error) error {
	var nerr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &nerr) && nerr.Timeout()) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrExchange, err)
}

// elapsedMillis returns the time since t0 truncated to whole milliseconds.
func elapsedMillis(t0 time.Time) time.Duration {
	return time.Since(t0).Truncate(time.Millisecond)
}

// closeOnDone closes conn as soon as ctx is done and returns a function
// that stops waiting. This unblocks I/O when the context is canceled.
func closeOnDone(ctx context.Context, conn interface{ Close() error }) context.CancelFunc {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	return cancel
}
