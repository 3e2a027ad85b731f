// Package telemetry provides the structured logging and metrics surface
// shared by every Flow engine component. It follows the same
// handler-chaining shape as the teacher's ErrorHandler (errors.go) and
// MetricsHook (session/metrics.go): the core never formats a log line
// itself, it calls into this package so the embedding application can
// route output wherever it likes.
package telemetry

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
)

// Logger wraps a charmbracelet/log logger with Flow-specific fields
// (cycle index, procedure label, variable label) so every log line can be
// attributed to the exact point in the dataflow graph that emitted it.
type Logger struct {
	base *log.Logger
}

// NewLogger creates a Logger writing to stderr at the given level.
func NewLogger(level log.Level) *Logger {
	l := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Level:           level,
	})
	return &Logger{base: l}
}

// WithCycle returns a derived Logger tagging all lines with the cycle index.
func (l *Logger) WithCycle(cycle uint64) *Logger {
	return &Logger{base: l.base.With("cycle", cycle)}
}

// WithProcedure returns a derived Logger tagging all lines with a procedure label.
func (l *Logger) WithProcedure(label string) *Logger {
	return &Logger{base: l.base.With("proc", label)}
}

// WithVariable returns a derived Logger tagging all lines with a variable label.
func (l *Logger) WithVariable(label string) *Logger {
	return &Logger{base: l.base.With("var", label)}
}

func (l *Logger) Debugf(format string, args ...any) { l.base.Debug(sprintf(format, args...)) }
func (l *Logger) Infof(format string, args ...any)  { l.base.Info(sprintf(format, args...)) }
func (l *Logger) Warnf(format string, args ...any)  { l.base.Warn(sprintf(format, args...)) }
func (l *Logger) Errorf(format string, args ...any) { l.base.Error(sprintf(format, args...)) }

// Error logs err with a message, following the teacher's pattern of
// handing the raw error to the handler rather than stringifying early.
func (l *Logger) Error(msg string, err error) {
	l.base.Error(msg, "err", err)
}

func sprintf(format string, args ...any) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
