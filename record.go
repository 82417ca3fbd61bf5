// SPDX-License-Identifier: GPL-3.0-or-later

package dnsqos

import (
	"github.com/montanaflynn/stats"
)

// QosRecord contains the latency statistics of a resolver over a probe run.
//
// The [*Prober] creates and fully populates a record, then never
// modifies it again.
type QosRecord struct {
	// Resolver is the resolver address we probed.
	Resolver string `json:"resolver"`

	// Domains contains the test domains in probing order.
	Domains []string `json:"domains"`

	// LatencyMillis contains the latency of each domain probe in
	// milliseconds. It is zero for failed probes.
	LatencyMillis []float64 `json:"latency_ms"`

	// Failed tells whether each domain probe failed.
	Failed []bool `json:"failed"`

	// MeanMillis is the mean latency according to the [MeanPolicy].
	MeanMillis float64 `json:"mean_ms"`

	// VarianceMillis is the population variance of the latency
	// of the successful probes. It is zero with no successes.
	VarianceMillis float64 `json:"variance_ms2"`

	// Failures is the number of failed domain probes.
	Failures int `json:"failures"`
}

// MeanPolicy selects the divisor used to compute [QosRecord.MeanMillis].
type MeanPolicy int

const (
	// MeanOverAllDomains divides the sum of the successful latencies by
	// the total number of test domains, so failures bias the mean
	// toward zero. This is the default.
	MeanOverAllDomains = MeanPolicy(iota)

	// MeanOverSuccesses divides the sum of the successful latencies by
	// the number of successful probes.
	MeanOverSuccesses
)

// successes returns the latency of the successful probes.
func (r *QosRecord) successes() stats.Float64Data {
	var out stats.Float64Data
	for idx, value := range r.LatencyMillis {
		if !r.Failed[idx] {
			out = append(out, value)
		}
	}
	return out
}

// aggregate computes the mean and the variance.
func (r *QosRecord) aggregate(policy MeanPolicy) {
	samples := r.successes()
	if len(samples) <= 0 {
		// both stats functions fail with empty input
		r.MeanMillis, r.VarianceMillis = 0, 0
		return
	}

	sum, _ := stats.Sum(samples)
	switch policy {
	case MeanOverSuccesses:
		r.MeanMillis = sum / float64(len(samples))
	default:
		r.MeanMillis = sum / float64(len(r.LatencyMillis))
	}

	r.VarianceMillis, _ = stats.PopulationVariance(samples)
}
