// SPDX-License-Identifier: GPL-3.0-or-later

package dnsqos

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

// probeTransportFunc adapts a function to [ProbeTransport].
type probeTransportFunc func(ctx context.Context, resolver string, query []byte) (time.Duration, error)

// Probe implements [ProbeTransport].
func (fx probeTransportFunc) Probe(ctx context.Context, resolver string, query []byte) (time.Duration, error) {
	return fx(ctx, resolver, query)
}

// scriptedTransport returns the given outcomes in order, one per call,
// and records the queries it receives.
type scriptedTransport struct {
	mu       sync.Mutex
	outcomes []error
	latency  []time.Duration
	queries  [][]byte
}

// Probe implements [ProbeTransport].
func (st *scriptedTransport) Probe(ctx context.Context, resolver string, query []byte) (time.Duration, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	idx := len(st.queries)
	st.queries = append(st.queries, query)
	if err := st.outcomes[idx]; err != nil {
		return 0, err
	}
	return st.latency[idx], nil
}

func TestNewProber(t *testing.T) {
	td := NewTestDomains(nil, DefaultTestDomains...)
	txp := NewUDPTransport(&net.Dialer{})
	prober := NewProber(td, txp)
	require.Same(t, td, prober.Domains)
	require.Same(t, txp, prober.Transport)
	require.Equal(t, NoRetry{}, prober.Retry)
	require.Equal(t, MeanOverAllDomains, prober.Mean)
	require.Equal(t, DiscardLogger, prober.Logger)
}

func TestProberProbeResolver(t *testing.T) {
	domains := []string{"a.com", "b.com", "c.com", "d.com"}
	mocked := fmt.Errorf("%w: mocked", ErrTimeout)

	t.Run("all successes", func(t *testing.T) {
		txp := &scriptedTransport{
			outcomes: []error{nil, nil, nil, nil},
			latency:  []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond, 40 * time.Millisecond},
		}
		td := NewTestDomains(nil, domains...)
		prober := NewProber(td, txp)

		record := prober.ProbeResolver(context.Background(), "8.8.8.8")

		expect := &QosRecord{
			Resolver:       "8.8.8.8",
			Domains:        domains,
			LatencyMillis:  []float64{10, 20, 30, 40},
			Failed:         []bool{false, false, false, false},
			MeanMillis:     25,
			VarianceMillis: 125,
			Failures:       0,
		}
		if diff := cmp.Diff(expect, record); diff != "" {
			t.Fatal(diff)
		}

		// queries are sent in order and are the pre-encoded ones
		require.Len(t, txp.queries, len(domains))
		for idx := range domains {
			require.Equal(t, td.Query(idx), txp.queries[idx])
		}
	})

	t.Run("all failures", func(t *testing.T) {
		txp := probeTransportFunc(func(ctx context.Context, resolver string, query []byte) (time.Duration, error) {
			return 0, mocked
		})
		prober := NewProber(NewTestDomains(nil, domains...), txp)

		record := prober.ProbeResolver(context.Background(), "9.9.9.9")

		require.Equal(t, len(domains), record.Failures)
		require.Zero(t, record.MeanMillis)
		require.Zero(t, record.VarianceMillis)
		require.Equal(t, []bool{true, true, true, true}, record.Failed)
		require.Equal(t, []float64{0, 0, 0, 0}, record.LatencyMillis)
	})

	t.Run("partial failures use the total domain count", func(t *testing.T) {
		txp := &scriptedTransport{
			outcomes: []error{nil, mocked, nil, mocked},
			latency:  []time.Duration{10 * time.Millisecond, 0, 30 * time.Millisecond, 0},
		}
		prober := NewProber(NewTestDomains(nil, domains...), txp)

		record := prober.ProbeResolver(context.Background(), "1.1.1.1")

		expect := &QosRecord{
			Resolver:       "1.1.1.1",
			Domains:        domains,
			LatencyMillis:  []float64{10, 0, 30, 0},
			Failed:         []bool{false, true, false, true},
			MeanMillis:     10,
			VarianceMillis: 100,
			Failures:       2,
		}
		if diff := cmp.Diff(expect, record); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("partial failures with the mean over successes", func(t *testing.T) {
		txp := &scriptedTransport{
			outcomes: []error{nil, mocked, nil, mocked},
			latency:  []time.Duration{10 * time.Millisecond, 0, 30 * time.Millisecond, 0},
		}
		prober := NewProber(NewTestDomains(nil, domains...), txp)
		prober.Mean = MeanOverSuccesses

		record := prober.ProbeResolver(context.Background(), "1.1.1.1")
		require.Equal(t, 20.0, record.MeanMillis)
		require.Equal(t, 2, record.Failures)
	})

	t.Run("truncates to whole milliseconds", func(t *testing.T) {
		txp := probeTransportFunc(func(ctx context.Context, resolver string, query []byte) (time.Duration, error) {
			return 12*time.Millisecond + 999*time.Microsecond, nil
		})
		prober := NewProber(NewTestDomains(nil, "a.com"), txp)
		record := prober.ProbeResolver(context.Background(), "1.1.1.1")
		require.Equal(t, []float64{12}, record.LatencyMillis)
	})

	t.Run("invalid resolver address fails every domain", func(t *testing.T) {
		prober := NewProber(NewTestDomains(nil, domains...), NewUDPTransport(&net.Dialer{}))
		prober.Retry = ConstantRetry{Attempts: 3}
		record := prober.ProbeResolver(context.Background(), "not-an-address")
		require.Equal(t, len(domains), record.Failures)
		require.Zero(t, record.MeanMillis)
	})

	t.Run("logs each domain probe", func(t *testing.T) {
		txp := &scriptedTransport{
			outcomes: []error{nil, mocked},
			latency:  []time.Duration{7 * time.Millisecond, 0},
		}
		logger := &recordingLogger{}
		prober := NewProber(NewTestDomains(nil, "a.com", "b.com"), txp)
		prober.Logger = logger
		prober.ProbeResolver(context.Background(), "1.1.1.1")
		expect := []string{
			"[debug] dnsqos: 1.1.1.1 on a.com: 7 ms",
			"[debug] dnsqos: 1.1.1.1 on b.com: dnsqos: exchange timed out: mocked",
		}
		require.Equal(t, expect, logger.all())
	})

	t.Run("no test domains", func(t *testing.T) {
		prober := NewProber(NewTestDomains(nil), probeTransportFunc(func(ctx context.Context, resolver string, query []byte) (time.Duration, error) {
			t.Fatal("should not be called")
			return 0, nil
		}))
		record := prober.ProbeResolver(context.Background(), "1.1.1.1")
		require.Zero(t, record.Failures)
		require.Zero(t, record.MeanMillis)
		require.Empty(t, record.LatencyMillis)
	})
}

func TestProberRetry(t *testing.T) {
	t.Run("retries until success", func(t *testing.T) {
		txp := &scriptedTransport{
			outcomes: []error{ErrTimeout, ErrExchange, nil},
			latency:  []time.Duration{0, 0, 5 * time.Millisecond},
		}
		prober := NewProber(NewTestDomains(nil, "a.com"), txp)
		prober.Retry = ConstantRetry{Attempts: 3, Delay: time.Millisecond}
		record := prober.ProbeResolver(context.Background(), "1.1.1.1")
		require.Len(t, txp.queries, 3)
		require.Zero(t, record.Failures)
		require.Equal(t, []float64{5}, record.LatencyMillis)
	})

	t.Run("gives up after the maximum number of attempts", func(t *testing.T) {
		txp := &scriptedTransport{
			outcomes: []error{ErrTimeout, ErrTimeout, nil},
			latency:  []time.Duration{0, 0, 5 * time.Millisecond},
		}
		prober := NewProber(NewTestDomains(nil, "a.com"), txp)
		prober.Retry = ConstantRetry{Attempts: 2}
		record := prober.ProbeResolver(context.Background(), "1.1.1.1")
		require.Len(t, txp.queries, 2)
		require.Equal(t, 1, record.Failures)
	})

	t.Run("does not retry address errors", func(t *testing.T) {
		var count int
		txp := probeTransportFunc(func(ctx context.Context, resolver string, query []byte) (time.Duration, error) {
			count++
			return 0, fmt.Errorf("%w: mocked", ErrAddressParse)
		})
		prober := NewProber(NewTestDomains(nil, "a.com"), txp)
		prober.Retry = ConstantRetry{Attempts: 5}
		prober.ProbeResolver(context.Background(), "1.1.1.1")
		require.Equal(t, 1, count)
	})

	t.Run("a nil policy means a single attempt", func(t *testing.T) {
		var count int
		txp := probeTransportFunc(func(ctx context.Context, resolver string, query []byte) (time.Duration, error) {
			count++
			return 0, errors.New("mocked")
		})
		prober := NewProber(NewTestDomains(nil, "a.com"), txp)
		prober.Retry = nil
		prober.ProbeResolver(context.Background(), "1.1.1.1")
		require.Equal(t, 1, count)
	})
}

func TestRetryPolicies(t *testing.T) {
	require.Equal(t, 1, NoRetry{}.MaxAttempts())
	require.Zero(t, NoRetry{}.Backoff(1))

	require.Equal(t, 1, ConstantRetry{}.MaxAttempts())
	require.Equal(t, 1, ConstantRetry{Attempts: -3}.MaxAttempts())
	require.Equal(t, 4, ConstantRetry{Attempts: 4}.MaxAttempts())
	require.Equal(t, time.Second, ConstantRetry{Delay: time.Second}.Backoff(2))
}

func TestSleepContext(t *testing.T) {
	t.Run("returns early when the context is done", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		t0 := time.Now()
		sleepContext(ctx, time.Hour)
		require.Less(t, time.Since(t0), time.Second)
	})

	t.Run("sleeps otherwise", func(t *testing.T) {
		t0 := time.Now()
		sleepContext(context.Background(), 10*time.Millisecond)
		require.GreaterOrEqual(t, time.Since(t0), 10*time.Millisecond)
	})
}
