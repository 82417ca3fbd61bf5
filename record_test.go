// SPDX-License-Identifier: GPL-3.0-or-later

package dnsqos

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQosRecordAggregate(t *testing.T) {
	t.Run("all successes", func(t *testing.T) {
		record := &QosRecord{
			LatencyMillis: []float64{10, 20, 30, 40},
			Failed:        []bool{false, false, false, false},
		}
		record.aggregate(MeanOverAllDomains)
		require.InDelta(t, 25.0, record.MeanMillis, 1e-9)
		// ((15^2 + 5^2 + 5^2 + 15^2) / 4) = 125
		require.InDelta(t, 125.0, record.VarianceMillis, 1e-9)
	})

	t.Run("failures divide by the total domain count", func(t *testing.T) {
		record := &QosRecord{
			LatencyMillis: []float64{10, 0, 30, 0},
			Failed:        []bool{false, true, false, true},
		}
		record.aggregate(MeanOverAllDomains)
		require.InDelta(t, 10.0, record.MeanMillis, 1e-9)
		// variance of {10, 30} around 20
		require.InDelta(t, 100.0, record.VarianceMillis, 1e-9)
	})

	t.Run("failures with the mean over successes", func(t *testing.T) {
		record := &QosRecord{
			LatencyMillis: []float64{10, 0, 30, 0},
			Failed:        []bool{false, true, false, true},
		}
		record.aggregate(MeanOverSuccesses)
		require.InDelta(t, 20.0, record.MeanMillis, 1e-9)
		require.InDelta(t, 100.0, record.VarianceMillis, 1e-9)
	})

	t.Run("all failures", func(t *testing.T) {
		record := &QosRecord{
			LatencyMillis: []float64{0, 0, 0},
			Failed:        []bool{true, true, true},
		}
		record.aggregate(MeanOverAllDomains)
		require.Zero(t, record.MeanMillis)
		require.Zero(t, record.VarianceMillis)
	})

	t.Run("no domains", func(t *testing.T) {
		record := &QosRecord{}
		record.aggregate(MeanOverAllDomains)
		require.Zero(t, record.MeanMillis)
		require.Zero(t, record.VarianceMillis)
	})

	t.Run("a zero latency success is not a failure", func(t *testing.T) {
		record := &QosRecord{
			LatencyMillis: []float64{0, 4},
			Failed:        []bool{false, false},
		}
		record.aggregate(MeanOverSuccesses)
		require.InDelta(t, 2.0, record.MeanMillis, 1e-9)
		require.InDelta(t, 4.0, record.VarianceMillis, 1e-9)
	})
}
