// SPDX-License-Identifier: GPL-3.0-or-later

package dnsqos

import (
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"strings"
)

// ErrAddressParse indicates that a resolver address is not a dotted-quad IPv4 address.
var ErrAddressParse = errors.New("dnsqos: cannot parse resolver address")

// ParseAddress parses a dotted-quad IPv4 address such as "8.8.8.8".
//
// The first token becomes the most significant byte. On failure, the
// returned array is zero and the error wraps [ErrAddressParse].
func ParseAddress(text string) ([4]byte, error) {
	// "0.0.0.0" is the shortest form and "255.255.255.255" the longest
	if len(text) < 7 || len(text) > 15 {
		return [4]byte{}, fmt.Errorf("%w: %q: invalid length", ErrAddressParse, text)
	}
	tokens := strings.Split(text, ".")
	if len(tokens) != 4 {
		return [4]byte{}, fmt.Errorf("%w: %q: expected four tokens", ErrAddressParse, text)
	}
	var addr [4]byte
	for idx, token := range tokens {
		// Atoi accepts a leading sign, which is not part of an octet
		if strings.HasPrefix(token, "+") || strings.HasPrefix(token, "-") {
			return [4]byte{}, fmt.Errorf("%w: %q: invalid octet %q", ErrAddressParse, text, token)
		}
		value, err := strconv.Atoi(token)
		if err != nil || value < 0 || value > 255 {
			return [4]byte{}, fmt.Errorf("%w: %q: invalid octet %q", ErrAddressParse, text, token)
		}
		addr[idx] = byte(value)
	}
	return addr, nil
}

// FormatAddress returns the canonical dotted-quad form of addr.
func FormatAddress(addr [4]byte) string {
	return netip.AddrFrom4(addr).String()
}

// parseEndpoint combines [ParseAddress] with the given port.
func parseEndpoint(text string, port uint16) (netip.AddrPort, error) {
	addr, err := ParseAddress(text)
	if err != nil {
		return netip.AddrPort{}, err
	}
	return netip.AddrPortFrom(netip.AddrFrom4(addr), port), nil
}
