// SPDX-License-Identifier: GPL-3.0-or-later

package dnsqos

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// ValidatingUDPTransport is a [ProbeTransport] using DNS over UDP that,
// unlike [*UDPTransport], only accepts datagrams answering the query.
//
// Construct using [NewValidatingUDPTransport].
//
// Before sending, it replaces the fixed transaction ID with a random one.
// It then ignores datagrams that are not responses, carry a different ID,
// or carry a different question, and keeps waiting until the timeout. The
// response code does not matter: NXDOMAIN is a valid answer.
type ValidatingUDPTransport struct {
	// UDPTransport is the underlying [*UDPTransport], whose settings
	// we use for sending and receiving.
	UDPTransport *UDPTransport
}

// NewValidatingUDPTransport creates a new [*ValidatingUDPTransport].
func NewValidatingUDPTransport(dialer NetDialer) *ValidatingUDPTransport {
	return &ValidatingUDPTransport{UDPTransport: NewUDPTransport(dialer)}
}

var _ ProbeTransport = &ValidatingUDPTransport{}

// Probe implements [ProbeTransport].
func (txp *ValidatingUDPTransport) Probe(ctx context.Context, resolver string, query []byte) (time.Duration, error) {
	// 1. make sure the address is valid before doing any work
	if _, err := ParseAddress(resolver); err != nil {
		return 0, err
	}

	// 2. parse the query and assign a random ID
	queryMsg := &dns.Msg{}
	if err := queryMsg.Unpack(query); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrExchange, err)
	}
	queryMsg.Id = dns.Id()
	rawQuery, err := queryMsg.Pack()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrExchange, err)
	}

	// 3. exchange accepting only matching responses
	return txp.UDPTransport.exchange(ctx, resolver, rawQuery, func(rawResp []byte) bool {
		return isResponseTo(queryMsg, rawResp)
	})
}

// isResponseTo returns whether rawResp is a response to queryMsg.
func isResponseTo(queryMsg *dns.Msg, rawResp []byte) bool {
	respMsg := &dns.Msg{}
	if err := respMsg.Unpack(rawResp); err != nil {
		return false
	}
	if !respMsg.Response || respMsg.Id != queryMsg.Id {
		return false
	}
	if len(respMsg.Question) != 1 || len(queryMsg.Question) != 1 {
		return false
	}
	got, want := respMsg.Question[0], queryMsg.Question[0]
	return strings.EqualFold(got.Name, want.Name) && got.Qtype == want.Qtype && got.Qclass == want.Qclass
}
