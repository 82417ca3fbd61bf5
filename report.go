// SPDX-License-Identifier: GPL-3.0-or-later

package dnsqos

// Logger is the logger we use. It is out of the box compatible
// with `log.Log` in `github.com/apex/log`.
type Logger interface {
	// Debugf formats and emits a debug message.
	Debugf(format string, v ...any)

	// Infof formats and emits an informational message.
	Infof(format string, v ...any)

	// Warnf formats and emits a warning message.
	Warnf(format string, v ...any)
}

// DiscardLogger is a [Logger] that discards its input.
var DiscardLogger Logger = logDiscarder{}

type logDiscarder struct{}

// Debugf implements [Logger].
func (logDiscarder) Debugf(format string, v ...any) {}

// Infof implements [Logger].
func (logDiscarder) Infof(format string, v ...any) {}

// Warnf implements [Logger].
func (logDiscarder) Warnf(format string, v ...any) {}

// ValidLoggerOrDefault returns logger, if not nil, or [DiscardLogger].
func ValidLoggerOrDefault(logger Logger) Logger {
	if logger != nil {
		return logger
	}
	return DiscardLogger
}

// Reporter receives the [*QosRecord] of each probed resolver.
//
// The [*Scheduler] calls Report from its background goroutine, one
// record at a time, in probing order. The record MUST NOT be modified.
type Reporter interface {
	Report(record *QosRecord)
}

// ReporterFunc adapts a function to the [Reporter] interface.
type ReporterFunc func(record *QosRecord)

var _ Reporter = ReporterFunc(nil)

// Report implements [Reporter].
func (fx ReporterFunc) Report(record *QosRecord) {
	fx(record)
}

// LoggerReporter is a [Reporter] that logs each record.
//
// Construct using [NewLoggerReporter].
type LoggerReporter struct {
	logger Logger
}

// NewLoggerReporter creates a new [*LoggerReporter].
func NewLoggerReporter(logger Logger) *LoggerReporter {
	return &LoggerReporter{logger: ValidLoggerOrDefault(logger)}
}

var _ Reporter = &LoggerReporter{}

// Report implements [Reporter].
func (lr *LoggerReporter) Report(record *QosRecord) {
	lr.logger.Infof("dnsqos: %s: latency %v ms", record.Resolver, record.LatencyMillis)
	lr.logger.Infof("dnsqos: %s: mean %.3f ms", record.Resolver, record.MeanMillis)
	lr.logger.Infof("dnsqos: %s: variance %.3f ms^2", record.Resolver, record.VarianceMillis)
	lr.logger.Infof("dnsqos: %s: failures %d/%d", record.Resolver, record.Failures, len(record.Domains))
}
