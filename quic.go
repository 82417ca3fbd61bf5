//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/bassosimone/dnsoverstream
//
// See https://datatracker.ietf.org/doc/rfc9250/
//

package dnsqos

import (
	"context"
	"crypto/tls"
	"net"
	"net/netip"
	"sync"

	"github.com/quic-go/quic-go"
)

// NewTLSConfigDNSOverQUIC returns the [*tls.Config] to use for DNS-over-QUIC.
func NewTLSConfigDNSOverQUIC(serverName string) *tls.Config {
	return &tls.Config{
		NextProtos: []string{"doq"},
		ServerName: serverName,
	}
}

// QUICDialer allows to dial a [*quic.Conn] with a given [netip.AddrPort]
// using a fresh UDP socket for each connection.
type QUICDialer struct {
	// ListenConfig is the MANDATORY [*net.ListenConfig] to create sockets.
	ListenConfig *net.ListenConfig

	// QUICConfig contains OPTIONAL [*quic.Config].
	QUICConfig *quic.Config

	// TLSConfig is the MANDATORY [*tls.Config].
	TLSConfig *tls.Config
}

// NewQUICDialer creates a new [*QUICDialer] using the given serverName
// for the [*tls.Config].
func NewQUICDialer(serverName string) *QUICDialer {
	return &QUICDialer{
		ListenConfig: &net.ListenConfig{},
		QUICConfig:   &quic.Config{},
		TLSConfig:    NewTLSConfigDNSOverQUIC(serverName),
	}
}

// Dial creates a [*quic.Conn] using the given argument and the structure fields.
//
// The returned function closes the [*quic.Transport] and the socket and
// MUST be called once the connection is closed.
func (qdd *QUICDialer) Dial(ctx context.Context, address netip.AddrPort) (*quic.Conn, func(), error) {
	pconn, err := qdd.ListenConfig.ListenPacket(ctx, "udp", ":0")
	if err != nil {
		return nil, nil, err
	}
	txp := &quic.Transport{Conn: pconn}
	release := func() {
		txp.Close()
		pconn.Close()
	}
	udpAddr := net.UDPAddrFromAddrPort(address)
	conn, err := txp.Dial(ctx, udpAddr, qdd.TLSConfig, qdd.QUICConfig)
	if err != nil {
		release()
		return nil, nil, err
	}
	return conn, release, nil
}

// NewStreamTransportQUIC returns a new [*StreamTransport] for DNS over QUIC.
func NewStreamTransportQUIC(dialer *QUICDialer) *StreamTransport {
	return newStreamTransport(&quicStreamDialer{dialer}, DefaultPortDNSOverTLS)
}

// quicStreamDialer implements [streamDialer] for QUIC.
type quicStreamDialer struct {
	qd *QUICDialer
}

var _ streamDialer = &quicStreamDialer{}

// DialContext implements [streamDialer].
func (d *quicStreamDialer) DialContext(ctx context.Context, address netip.AddrPort) (streamConn, error) {
	conn, release, err := d.qd.Dial(ctx, address)
	if err != nil {
		return nil, err
	}
	return &quicConnAdapter{qconn: conn, release: release}, nil
}

// quicConnAdapter adapts [*quic.Conn] to [streamConn].
type quicConnAdapter struct {
	qconn   *quic.Conn
	release func()
	once    sync.Once
}

// CloseWithError implements [streamConn].
func (q *quicConnAdapter) CloseWithError(code quic.ApplicationErrorCode, desc string) (err error) {
	q.once.Do(func() {
		err = q.qconn.CloseWithError(code, desc)
		q.release()
	})
	return
}

// OpenStream implements [streamConn].
func (q *quicConnAdapter) OpenStream() (stream, error) {
	return q.qconn.OpenStream()
}
