// SPDX-License-Identifier: GPL-3.0-or-later

// Command dnsqos measures the DNS round-trip latency of resolvers.
//
// Usage:
//
//	dnsqos [--config file] [--protocol udp|udp-validating|tcp|tls|quic] [resolver...]
//
// The built-in public resolvers are always probed first.
package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"sync"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/bassosimone/dnsqos"
	"github.com/spf13/cobra"
)

func main() {
	log.SetHandler(cli.Default)
	if err := newRootCommand().Execute(); err != nil {
		log.WithError(err).Fatal("dnsqos failed")
	}
}

// options contains the command line options.
type options struct {
	configPath string
	protocol   string
	timeoutMs  int64
	retries    int
	emitJSON   bool
	verbose    bool
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:          "dnsqos [flags] [resolver...]",
		Short:        "Measure the DNS round-trip latency of resolvers",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, args)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "JSON config file (comments allowed)")
	flags.StringVarP(&opts.protocol, "protocol", "p", "", "protocol: udp, udp-validating, tcp, tls, quic")
	flags.Int64VarP(&opts.timeoutMs, "timeout", "t", 0, "exchange timeout in milliseconds")
	flags.IntVarP(&opts.retries, "retries", "r", 0, "extra attempts after a failure")
	flags.BoolVar(&opts.emitJSON, "json", false, "print records as JSON lines on stdout")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "emit debug messages")
	return cmd
}

// loadConfig merges the config file and the command line.
func loadConfig(opts *options, args []string) (*dnsqos.Config, error) {
	config := &dnsqos.Config{}
	if opts.configPath != "" {
		var err error
		if config, err = dnsqos.LoadConfig(opts.configPath); err != nil {
			return nil, err
		}
	}
	if opts.protocol != "" {
		config.Protocol = opts.protocol
	}
	if opts.timeoutMs > 0 {
		config.TimeoutMillis = opts.timeoutMs
	}
	if opts.retries > 0 {
		config.Retries = opts.retries
	}
	config.Resolvers = append(config.Resolvers, args...)
	return config, nil
}

func run(ctx context.Context, opts *options, args []string) error {
	if opts.verbose {
		log.SetLevel(log.DebugLevel)
	}
	config, err := loadConfig(opts, args)
	if err != nil {
		return err
	}

	var reporter dnsqos.Reporter = dnsqos.NewLoggerReporter(log.Log)
	if opts.emitJSON {
		reporter = newJSONReporter(os.Stdout)
	}

	sched, err := config.NewScheduler(log.Log, reporter)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	sched.RunProbes(ctx, config.Resolvers...)
	sched.Wait()
	return nil
}

// jsonReporter prints each record as a JSON line.
type jsonReporter struct {
	enc *json.Encoder
	mu  sync.Mutex
}

func newJSONReporter(w io.Writer) *jsonReporter {
	return &jsonReporter{enc: json.NewEncoder(w)}
}

// Report implements [dnsqos.Reporter].
func (r *jsonReporter) Report(record *dnsqos.QosRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enc.Encode(record); err != nil {
		log.WithError(err).Warn("cannot emit record")
	}
}
