// SPDX-License-Identifier: GPL-3.0-or-later

package dnsqos

import (
	"context"
	"errors"
	"time"
)

// Prober probes a resolver with every test domain.
//
// Construct using [NewProber].
type Prober struct {
	// Domains contains the test domains and their queries.
	//
	// Set by [NewProber] to the user-provided value.
	Domains *TestDomains

	// Transport is the [ProbeTransport] to use.
	//
	// Set by [NewProber] to the user-provided value.
	Transport ProbeTransport

	// Retry is the [RetryPolicy] to use.
	//
	// Set by [NewProber] to [NoRetry].
	Retry RetryPolicy

	// Mean selects how to compute the mean latency.
	//
	// Set by [NewProber] to [MeanOverAllDomains].
	Mean MeanPolicy

	// Logger is the [Logger] to use.
	//
	// Set by [NewProber] to [DiscardLogger].
	Logger Logger
}

// NewProber creates a new [*Prober].
func NewProber(domains *TestDomains, txp ProbeTransport) *Prober {
	return &Prober{
		Domains:   domains,
		Transport: txp,
		Retry:     NoRetry{},
		Mean:      MeanOverAllDomains,
		Logger:    DiscardLogger,
	}
}

// ProbeResolver probes resolver with every test domain, in order, and
// returns the resulting [*QosRecord].
//
// Failed domain probes are counted but never stop the run, so
// the returned record is always fully populated.
func (p *Prober) ProbeResolver(ctx context.Context, resolver string) *QosRecord {
	logger := ValidLoggerOrDefault(p.Logger)
	total := p.Domains.Len()
	record := &QosRecord{
		Resolver:      resolver,
		Domains:       p.Domains.Names(),
		LatencyMillis: make([]float64, total),
		Failed:        make([]bool, total),
	}

	for idx := range total {
		elapsed, err := p.probeDomain(ctx, resolver, p.Domains.query(idx))
		if err != nil {
			logger.Debugf("dnsqos: %s on %s: %s", resolver, record.Domains[idx], err.Error())
			record.Failed[idx] = true
			record.Failures++
			continue
		}
		record.LatencyMillis[idx] = float64(elapsed.Milliseconds())
		logger.Debugf("dnsqos: %s on %s: %v ms", resolver, record.Domains[idx], record.LatencyMillis[idx])
	}

	record.aggregate(p.Mean)
	return record
}

// probeDomain runs the transport according to the retry policy.
func (p *Prober) probeDomain(ctx context.Context, resolver string, query []byte) (time.Duration, error) {
	retry := p.Retry
	if retry == nil {
		retry = NoRetry{}
	}
	var err error
	for attempt := range retry.MaxAttempts() {
		if attempt > 0 {
			sleepContext(ctx, retry.Backoff(attempt))
		}
		var elapsed time.Duration
		elapsed, err = p.Transport.Probe(ctx, resolver, query)
		if err == nil {
			return elapsed, nil
		}
		// retrying would not fix the address
		if errors.Is(err, ErrAddressParse) {
			break
		}
	}
	return 0, err
}
