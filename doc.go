// SPDX-License-Identifier: GPL-3.0-or-later

// Package dnsqos measures network quality of service using DNS round trips.
//
// The API is intentionally small and designed for measurement use cases.
//
// A [*Prober] sends one query per test domain to a resolver, times each
// response, and folds the timings into a [*QosRecord]. A [*Scheduler] runs
// the [*Prober] over a built-in resolver list plus a caller-supplied one in
// a background goroutine and hands each record to a [Reporter].
//
// Queries are encoded once by [NewTestDomains] and never again. The default
// [ProbeTransport] is [*UDPTransport], which opens a new socket for each
// exchange and considers any datagram received a success: we measure whether
// something answered, not whether it answered correctly. Use
// [*ValidatingUDPTransport] to match responses to queries, or a
// [*StreamTransport] to probe using DNS over TCP, TLS, or QUIC.
package dnsqos
