// SPDX-License-Identifier: GPL-3.0-or-later

package dnsqos

import (
	"context"
	"net"
	"net/netip"
	"time"

	"github.com/quic-go/quic-go"
)

// NewStreamTransportTCP returns a new [*StreamTransport] for DNS over TCP.
func NewStreamTransportTCP(dialer NetDialer) *StreamTransport {
	return newStreamTransport(&tcpStreamDialer{dialer}, DefaultPortDNS)
}

// tcpStreamDialer implements [streamDialer] for TCP.
type tcpStreamDialer struct {
	nd NetDialer
}

var _ streamDialer = &tcpStreamDialer{}

// DialContext implements [streamDialer].
func (d *tcpStreamDialer) DialContext(ctx context.Context, address netip.AddrPort) (streamConn, error) {
	conn, err := d.nd.DialContext(ctx, "tcp", address.String())
	if err != nil {
		return nil, err
	}
	return &tcpStreamConn{conn}, nil
}

// tcpStreamConn implements [streamConn] for TCP and TLS.
type tcpStreamConn struct {
	conn net.Conn
}

var _ streamConn = &tcpStreamConn{}

// CloseWithError implements [streamConn].
func (s *tcpStreamConn) CloseWithError(code quic.ApplicationErrorCode, desc string) error {
	return s.conn.Close()
}

// OpenStream implements [streamConn].
func (s *tcpStreamConn) OpenStream() (stream, error) {
	return &tcpStream{s.conn}, nil
}

// tcpStream implements [stream] for TCP and TLS.
type tcpStream struct {
	conn net.Conn
}

// Close implements [stream].
func (s *tcpStream) Close() error {
	// We do not close the stream midway for TCP.
	return nil
}

// Read implements [stream].
func (s *tcpStream) Read(buff []byte) (int, error) {
	return s.conn.Read(buff)
}

// SetDeadline implements [stream].
func (s *tcpStream) SetDeadline(t time.Time) error {
	return s.conn.SetDeadline(t)
}

// Write implements [stream].
func (s *tcpStream) Write(data []byte) (int, error) {
	return s.conn.Write(data)
}
