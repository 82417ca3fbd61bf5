// SPDX-License-Identifier: GPL-3.0-or-later

package dnsqos

import (
	"context"
	"slices"
	"sync"
)

// DefaultResolvers contains the public resolvers we always probe
// before the ones provided by the caller.
var DefaultResolvers = []string{
	"8.8.8.8",
	"9.9.9.9",
	"1.1.1.1",
	"185.228.168.9",
	"76.76.19.19",
}

// Scheduler runs the [*Prober] in the background.
//
// Construct using [NewScheduler].
//
// Each call to RunProbes schedules a run that probes the built-in
// resolvers and then the caller-provided ones, sequentially. Runs
// never overlap: a run scheduled while another is in progress waits
// for it to complete.
type Scheduler struct {
	// Builtin contains the resolvers probed first in each run.
	//
	// Set by [NewScheduler] to a copy of [DefaultResolvers].
	Builtin []string

	// Logger is the [Logger] to use.
	//
	// Set by [NewScheduler] to [DiscardLogger].
	Logger Logger

	// Prober is the [*Prober] to use.
	//
	// Set by [NewScheduler] to the user-provided value.
	Prober *Prober

	// Reporter receives the records.
	//
	// Set by [NewScheduler] to the user-provided value.
	Reporter Reporter

	// mu serializes runs.
	mu sync.Mutex

	// wg tracks scheduled runs.
	wg sync.WaitGroup
}

// NewScheduler creates a new [*Scheduler].
func NewScheduler(prober *Prober, reporter Reporter) *Scheduler {
	return &Scheduler{
		Builtin:  slices.Clone(DefaultResolvers),
		Logger:   DiscardLogger,
		Prober:   prober,
		Reporter: reporter,
	}
}

// RunProbes schedules a run over the built-in resolvers followed by
// resolvers and returns immediately. Results are only available
// through the [Reporter].
//
// Canceling ctx does not abort the run: the remaining exchanges fail
// right away and we still report a record for each resolver.
func (s *Scheduler) RunProbes(ctx context.Context, resolvers ...string) {
	all := slices.Concat(s.Builtin, resolvers)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx, all)
	}()
}

// Wait blocks until all the scheduled runs have completed.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context, resolvers []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	logger := ValidLoggerOrDefault(s.Logger)
	logger.Infof("dnsqos: probing %d resolvers", len(resolvers))
	for _, resolver := range resolvers {
		s.Reporter.Report(s.Prober.ProbeResolver(ctx, resolver))
	}
	logger.Infof("dnsqos: probing %d resolvers... done", len(resolvers))
}
