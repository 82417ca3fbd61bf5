// SPDX-License-Identifier: GPL-3.0-or-later

package dnsqos

import (
	"context"
	"crypto/tls"
	"net"
	"net/netip"
)

// NewTLSConfigDNSOverTLS returns the [*tls.Config] to use for DNS-over-TLS.
//
// With an empty serverName, the TLS stack verifies the certificate
// against the resolver IP address, which works for most public resolvers.
func NewTLSConfigDNSOverTLS(serverName string) *tls.Config {
	return &tls.Config{
		NextProtos: []string{"dot"},
		ServerName: serverName,
	}
}

// NewTLSDialerDNSOverTLS returns the [*tls.Dialer] to use for DNS-over-TLS.
func NewTLSDialerDNSOverTLS(serverName string) *tls.Dialer {
	return &tls.Dialer{
		NetDialer: &net.Dialer{},
		Config:    NewTLSConfigDNSOverTLS(serverName),
	}
}

// TLSDialer is typically [*tls.Dialer] or a compatible TLS dialer.
type TLSDialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// NewStreamTransportTLS returns a new [*StreamTransport] for DNS over TLS.
//
// The caller is responsible for ensuring the dialer actually performs TLS.
func NewStreamTransportTLS(dialer TLSDialer) *StreamTransport {
	return newStreamTransport(&tlsStreamDialer{dialer}, DefaultPortDNSOverTLS)
}

// tlsStreamDialer implements [streamDialer] for TLS.
type tlsStreamDialer struct {
	nd TLSDialer
}

var _ streamDialer = &tlsStreamDialer{}

// DialContext implements [streamDialer].
func (d *tlsStreamDialer) DialContext(ctx context.Context, address netip.AddrPort) (streamConn, error) {
	conn, err := d.nd.DialContext(ctx, "tcp", address.String())
	if err != nil {
		return nil, err
	}
	return &tcpStreamConn{conn}, nil
}
