// SPDX-License-Identifier: GPL-3.0-or-later

package dnsqos

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/tailscale/hujson"
)

// Supported values for [Config.Protocol].
const (
	ProtocolUDP           = "udp"
	ProtocolUDPValidating = "udp-validating"
	ProtocolTCP           = "tcp"
	ProtocolTLS           = "tls"
	ProtocolQUIC          = "quic"
)

// ErrInvalidConfig indicates that a [*Config] cannot be used.
var ErrInvalidConfig = errors.New("dnsqos: invalid config")

// Config contains the settings to assemble a [*Scheduler].
//
// The zero value is valid and reproduces the defaults: UDP on port 53,
// [DefaultTestDomains], a 5000 ms timeout, and no retries.
type Config struct {
	// Resolvers contains extra resolvers probed after [DefaultResolvers].
	Resolvers []string `json:"resolvers"`

	// Domains overrides [DefaultTestDomains].
	Domains []string `json:"domains"`

	// Protocol is one of the Protocol constants.
	Protocol string `json:"protocol"`

	// TimeoutMillis is the timeout of each exchange in milliseconds.
	TimeoutMillis int64 `json:"timeout_ms"`

	// Port overrides the default port of the protocol.
	Port uint16 `json:"port"`

	// Retries is the number of extra attempts after a failure.
	Retries int `json:"retries"`

	// RetryDelayMillis is the delay between attempts in milliseconds.
	RetryDelayMillis int64 `json:"retry_delay_ms"`

	// MeanOverSuccesses selects [MeanOverSuccesses] instead of [MeanOverAllDomains].
	MeanOverSuccesses bool `json:"mean_over_successes"`

	// ServerName is the TLS server name for the tls and quic protocols.
	ServerName string `json:"server_name"`
}

// LoadConfig reads a [*Config] from a JSON file, which may contain
// comments and trailing commas.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(data)
}

// ParseConfig parses a [*Config] from JSON, which may contain
// comments and trailing commas.
func ParseConfig(data []byte) (*Config, error) {
	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	config := &Config{}
	if err := json.Unmarshal(std, config); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) validate() error {
	switch c.protocol() {
	case ProtocolUDP, ProtocolUDPValidating, ProtocolTCP, ProtocolTLS, ProtocolQUIC:
	default:
		return fmt.Errorf("%w: unknown protocol %q", ErrInvalidConfig, c.Protocol)
	}
	if c.TimeoutMillis < 0 {
		return fmt.Errorf("%w: negative timeout", ErrInvalidConfig)
	}
	if c.Retries < 0 {
		return fmt.Errorf("%w: negative retries", ErrInvalidConfig)
	}
	if c.RetryDelayMillis < 0 {
		return fmt.Errorf("%w: negative retry delay", ErrInvalidConfig)
	}
	return nil
}

func (c *Config) protocol() string {
	if c.Protocol != "" {
		return c.Protocol
	}
	return ProtocolUDP
}

func (c *Config) domains() []string {
	if len(c.Domains) > 0 {
		return c.Domains
	}
	return DefaultTestDomains
}

func (c *Config) timeout() time.Duration {
	if c.TimeoutMillis > 0 {
		return time.Duration(c.TimeoutMillis) * time.Millisecond
	}
	return DefaultTimeout
}

func (c *Config) retry() RetryPolicy {
	if c.Retries <= 0 {
		return NoRetry{}
	}
	return ConstantRetry{
		Attempts: c.Retries + 1,
		Delay:    time.Duration(c.RetryDelayMillis) * time.Millisecond,
	}
}

func (c *Config) meanPolicy() MeanPolicy {
	if c.MeanOverSuccesses {
		return MeanOverSuccesses
	}
	return MeanOverAllDomains
}

// NewTransport creates the [ProbeTransport] for the configured protocol.
func (c *Config) NewTransport() (ProbeTransport, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	var (
		udp  *UDPTransport
		strm *StreamTransport
		out  ProbeTransport
	)
	switch c.protocol() {
	case ProtocolUDP:
		udp = NewUDPTransport(&net.Dialer{})
		out = udp
	case ProtocolUDPValidating:
		txp := NewValidatingUDPTransport(&net.Dialer{})
		udp, out = txp.UDPTransport, txp
	case ProtocolTCP:
		strm = NewStreamTransportTCP(&net.Dialer{})
		out = strm
	case ProtocolTLS:
		strm = NewStreamTransportTLS(NewTLSDialerDNSOverTLS(c.ServerName))
		out = strm
	case ProtocolQUIC:
		strm = NewStreamTransportQUIC(NewQUICDialer(c.ServerName))
		out = strm
	}
	if udp != nil {
		udp.Timeout = c.timeout()
		if c.Port > 0 {
			udp.Port = c.Port
		}
	}
	if strm != nil {
		strm.Timeout = c.timeout()
		if c.Port > 0 {
			strm.Port = c.Port
		}
	}
	return out, nil
}

// NewScheduler assembles a [*Scheduler] from the config.
//
// Resolvers are not part of the scheduler: pass them to RunProbes. A
// malformed resolver only causes a warning, since probing it yields a
// record where every domain failed.
func (c *Config) NewScheduler(logger Logger, reporter Reporter) (*Scheduler, error) {
	txp, err := c.NewTransport()
	if err != nil {
		return nil, err
	}
	logger = ValidLoggerOrDefault(logger)
	for _, resolver := range c.Resolvers {
		if _, err := ParseAddress(resolver); err != nil {
			logger.Warnf("%s (every probe will fail)", err.Error())
		}
	}
	prober := NewProber(NewTestDomains(logger, c.domains()...), txp)
	prober.Retry = c.retry()
	prober.Mean = c.meanPolicy()
	prober.Logger = logger
	sched := NewScheduler(prober, reporter)
	sched.Logger = logger
	return sched, nil
}
