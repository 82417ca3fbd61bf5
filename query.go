// SPDX-License-Identifier: GPL-3.0-or-later

package dnsqos

import (
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/bassosimone/runtimex"
)

// ErrInvalidDomain indicates that a domain name cannot be encoded in a query.
var ErrInvalidDomain = errors.New("dnsqos: cannot encode domain name")

// DefaultTestDomains contains the domains we query by default.
//
// The names are random and are not expected to exist.
var DefaultTestDomains = []string{
	"qkieASX3S9.com",
	"x6e077uejM.com",
	"zr50V1DAXx.com",
	"3GNnaZUwE2.com",
	"K4255rzaKc.com",
}

const (
	queryFlagsRecursionDesired = 0x0100
	queryTypeA                 = 0x0001
	queryClassIN               = 0x0001
	maxLabelLength             = 63
)

// EncodeQuery returns a DNS query for the A records of domain.
//
// The message has transaction ID zero, the recursion desired flag set,
// and a single question with class IN. It has no EDNS0 record.
func EncodeQuery(domain string) ([]byte, error) {
	// 1. header: ID, flags, QDCOUNT, ANCOUNT, NSCOUNT, ARCOUNT
	msg := make([]byte, 0, 12+len(domain)+2+4)
	msg = binary.BigEndian.AppendUint16(msg, 0)
	msg = binary.BigEndian.AppendUint16(msg, queryFlagsRecursionDesired)
	msg = binary.BigEndian.AppendUint16(msg, 1)
	msg = binary.BigEndian.AppendUint16(msg, 0)
	msg = binary.BigEndian.AppendUint16(msg, 0)
	msg = binary.BigEndian.AppendUint16(msg, 0)

	// 2. question name as a sequence of labels
	for _, label := range strings.Split(domain, ".") {
		if len(label) <= 0 || len(label) > maxLabelLength {
			return nil, fmt.Errorf("%w: %q: invalid label %q", ErrInvalidDomain, domain, label)
		}
		msg = append(msg, byte(len(label)))
		msg = append(msg, label...)
	}
	msg = append(msg, 0)

	// 3. question type and class
	msg = binary.BigEndian.AppendUint16(msg, queryTypeA)
	msg = binary.BigEndian.AppendUint16(msg, queryClassIN)
	return msg, nil
}

// TestDomains is the immutable set of domains used as latency probes,
// each paired with its pre-encoded query.
//
// Construct using [NewTestDomains].
type TestDomains struct {
	names   []string
	queries [][]byte
}

// NewTestDomains encodes a query for each domain.
//
// Domains that cannot be encoded are logged and skipped, so the
// returned set may be smaller than the input (and even empty).
func NewTestDomains(logger Logger, domains ...string) *TestDomains {
	logger = ValidLoggerOrDefault(logger)
	td := &TestDomains{}
	for _, domain := range domains {
		query, err := EncodeQuery(domain)
		if err != nil {
			logger.Warnf("dnsqos: skipping test domain: %s", err.Error())
			continue
		}
		td.names = append(td.names, domain)
		td.queries = append(td.queries, query)
	}
	runtimex.Assert(len(td.names) == len(td.queries))
	return td
}

// Len returns the number of test domains.
func (td *TestDomains) Len() int {
	return len(td.names)
}

// Names returns a copy of the domain names in probing order.
func (td *TestDomains) Names() []string {
	return slices.Clone(td.names)
}

// Name returns the idx-th domain name.
func (td *TestDomains) Name(idx int) string {
	return td.names[idx]
}

// Query returns a copy of the idx-th encoded query.
func (td *TestDomains) Query(idx int) []byte {
	return slices.Clone(td.queries[idx])
}

// query returns the idx-th encoded query without copying.
//
// Callers MUST NOT modify the returned slice.
func (td *TestDomains) query(idx int) []byte {
	return td.queries[idx]
}
