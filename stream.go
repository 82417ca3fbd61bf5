//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/bassosimone/dnsoverstream
//
// See https://datatracker.ietf.org/doc/rfc7766/
//
// See https://datatracker.ietf.org/doc/rfc9250/
//

package dnsqos

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"net/netip"
	"time"

	"github.com/quic-go/quic-go"
)

// stream is a stream suitable for DNS over TCP, TLS, or QUIC.
type stream interface {
	// SetDeadline sets the I/O deadline.
	SetDeadline(t time.Time) error

	// We can obviously do I/O with the stream.
	io.ReadWriter

	// The semantics of closing a stream depends on the
	// protocol we are actually using.
	//
	// For [net.Conn] and [*tls.Conn], this is a no-op since the
	// stream is the connection.
	//
	// For [*quic.Stream], this sends FIN.
	io.Closer
}

// streamConn abstracts over [net.Conn], [*tls.Conn], or [*quic.Conn].
type streamConn interface {
	// CloseWithError closes the connection.
	//
	// For [net.Conn] and [*tls.Conn], this calls conn.Close.
	//
	// For [*quic.Conn], this calls conn.CloseWithError.
	CloseWithError(code quic.ApplicationErrorCode, desc string) error

	// OpenStream opens a new stream over the connection.
	//
	// For [net.Conn] and [*tls.Conn], this returns the connection itself.
	//
	// For [*quic.Conn] this opens a [*quic.Stream].
	OpenStream() (stream, error)
}

// streamDialer allows dialing a [net.Conn], [*tls.Conn], or [*quic.Conn].
type streamDialer interface {
	DialContext(ctx context.Context, address netip.AddrPort) (streamConn, error)
}

// StreamTransport is a [ProbeTransport] for DNS over TCP, TLS, and QUIC.
//
// Construct using [NewStreamTransportTCP], [NewStreamTransportTLS],
// or [NewStreamTransportQUIC].
//
// StreamTransport creates a new connection for each Probe call. The
// timer covers sending the framed query and receiving the framed
// response, not the connection setup, so results are comparable with
// the ones of [*UDPTransport]. Any complete frame counts as a response.
type StreamTransport struct {
	// Port is the resolver port.
	//
	// Set by the constructor depending on the protocol.
	Port uint16

	// Timeout bounds each probe including the connection setup.
	//
	// Set by the constructor to [DefaultTimeout].
	Timeout time.Duration

	// dialer is the [streamDialer] to build the stream for exchanging messages.
	//
	// Set by the constructor.
	dialer streamDialer
}

// newStreamTransport creates a new [*StreamTransport].
func newStreamTransport(dialer streamDialer, port uint16) *StreamTransport {
	return &StreamTransport{Port: port, Timeout: DefaultTimeout, dialer: dialer}
}

var _ ProbeTransport = &StreamTransport{}

// Probe implements [ProbeTransport].
func (txp *StreamTransport) Probe(ctx context.Context, resolver string, query []byte) (time.Duration, error) {
	// 1. make sure the address is valid before touching the network
	endpoint, err := parseEndpoint(resolver, txp.Port)
	if err != nil {
		return 0, err
	}

	// 2. wrap the query into a frame
	rawQueryFrame, err := newStreamMsgFrame(query)
	if err != nil {
		return 0, err
	}

	// 3. bound the whole probe with the timeout
	ctx, cancel := context.WithTimeout(ctx, timeoutOrDefault(txp.Timeout))
	defer cancel()

	// 4. create the connection
	conn, err := txp.dialer.DialContext(ctx, endpoint)
	if err != nil {
		return 0, classifyError(contextErrorOr(ctx, err))
	}

	// 5. Make sure we react to context being canceled early and that
	// we close the connection when done.
	//
	// Closing w/o specific error -- RFC 9250 Sect. 4.3
	//
	// Obviously no error is sent for TCP/TLS.
	const quicNoError = 0x00
	defer conn.CloseWithError(quicNoError, "")
	stop := closeOnDone(ctx, closerFunc(func() error {
		return conn.CloseWithError(quicNoError, "")
	}))
	defer stop()

	// 6. open the stream and use the context deadline
	strm, err := conn.OpenStream()
	if err != nil {
		return 0, classifyError(contextErrorOr(ctx, err))
	}
	defer strm.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = strm.SetDeadline(deadline)
	}

	// 7. send the query
	t0 := time.Now()
	if _, err := strm.Write(rawQueryFrame); err != nil {
		return 0, classifyError(contextErrorOr(ctx, err))
	}

	// 8. Ensure we close the stream when using DoQ to signal the
	// upstream server that it is okay to send a response.
	//
	// RFC 9250 is very clear in this respect:
	//
	//	4.2.  Stream Mapping and Usage
	//	client MUST send the DNS query over the selected stream and MUST
	//	indicate through the STREAM FIN mechanism that no further data will
	//	be sent on that stream.
	//
	// Obviously, this is a no-op for TCP/TLS
	strm.Close()

	// 9. read the response header and the whole message
	br := bufio.NewReader(strm)
	header := make([]byte, 2)
	if _, err := io.ReadFull(br, header); err != nil {
		return 0, classifyError(contextErrorOr(ctx, err))
	}
	length := int(header[0])<<8 | int(header[1])
	rawResp := make([]byte, length)
	if _, err := io.ReadFull(br, rawResp); err != nil {
		return 0, classifyError(contextErrorOr(ctx, err))
	}
	return elapsedMillis(t0), nil
}

// newStreamMsgFrame creates a new raw frame for sending a message over a stream.
func newStreamMsgFrame(rawMsg []byte) ([]byte, error) {
	if len(rawMsg) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: query too large: %d bytes", ErrExchange, len(rawMsg))
	}
	rawMsgFrame := []byte{byte(len(rawMsg) >> 8)}
	rawMsgFrame = append(rawMsgFrame, byte(len(rawMsg)))
	rawMsgFrame = append(rawMsgFrame, rawMsg...)
	return rawMsgFrame, nil
}

// closerFunc adapts a function to [io.Closer].
type closerFunc func() error

// Close implements [io.Closer].
func (fx closerFunc) Close() error {
	return fx()
}
