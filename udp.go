// SPDX-License-Identifier: GPL-3.0-or-later

package dnsqos

import (
	"context"
	"time"
)

// UDPTransport is a [ProbeTransport] using DNS over UDP.
//
// Construct using [NewUDPTransport].
//
// UDPTransport opens a new socket for each Probe call and considers
// the first datagram it receives a successful response, without
// looking at its content.
type UDPTransport struct {
	// Dialer is the [NetDialer] to create sockets.
	//
	// Set by [NewUDPTransport] to the user-provided value.
	Dialer NetDialer

	// Port is the resolver port.
	//
	// Set by [NewUDPTransport] to [DefaultPortDNS].
	Port uint16

	// Timeout bounds each exchange.
	//
	// Set by [NewUDPTransport] to [DefaultTimeout].
	Timeout time.Duration

	// BufferSize is the size of the response buffer.
	//
	// Set by [NewUDPTransport] to [DefaultBufferSize].
	BufferSize int
}

// NewUDPTransport creates a new [*UDPTransport].
func NewUDPTransport(dialer NetDialer) *UDPTransport {
	return &UDPTransport{
		Dialer:     dialer,
		Port:       DefaultPortDNS,
		Timeout:    DefaultTimeout,
		BufferSize: DefaultBufferSize,
	}
}

var _ ProbeTransport = &UDPTransport{}

// Probe implements [ProbeTransport].
func (txp *UDPTransport) Probe(ctx context.Context, resolver string, query []byte) (time.Duration, error) {
	return txp.exchange(ctx, resolver, query, func([]byte) bool { return true })
}

// exchange sends query and reads datagrams until accept returns true
// for one of them or the timeout expires.
func (txp *UDPTransport) exchange(
	ctx context.Context, resolver string, query []byte, accept func(resp []byte) bool) (time.Duration, error) {
	// 1. make sure the address is valid before touching the network
	endpoint, err := parseEndpoint(resolver, txp.Port)
	if err != nil {
		return 0, err
	}

	// 2. bound the whole exchange with the timeout
	ctx, cancel := context.WithTimeout(ctx, timeoutOrDefault(txp.Timeout))
	defer cancel()

	// 3. create the socket, which we own until we return
	conn, err := txp.Dialer.DialContext(ctx, "udp4", endpoint.String())
	if err != nil {
		return 0, classifyError(contextErrorOr(ctx, err))
	}
	defer conn.Close()

	// 4. unblock I/O on cancellation and honor the deadline
	stop := closeOnDone(ctx, conn)
	defer stop()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	// 5. send the query and wait for an acceptable datagram
	buffer := make([]byte, txp.bufferSize())
	t0 := time.Now()
	if _, err := conn.Write(query); err != nil {
		return 0, classifyError(contextErrorOr(ctx, err))
	}
	for {
		count, err := conn.Read(buffer)
		if err != nil {
			return 0, classifyError(contextErrorOr(ctx, err))
		}
		if accept(buffer[:count]) {
			return elapsedMillis(t0), nil
		}
	}
}

func (txp *UDPTransport) bufferSize() int {
	if txp.BufferSize > 0 {
		return txp.BufferSize
	}
	return DefaultBufferSize
}

// timeoutOrDefault returns timeout if positive or [DefaultTimeout].
func timeoutOrDefault(timeout time.Duration) time.Duration {
	if timeout > 0 {
		return timeout
	}
	return DefaultTimeout
}

// contextErrorOr returns the context error, if any, or err.
//
// When the context is done, I/O fails because we closed the
// socket, and the context error is the more accurate cause.
func contextErrorOr(ctx context.Context, err error) error {
	if cerr := ctx.Err(); cerr != nil {
		return cerr
	}
	return err
}
