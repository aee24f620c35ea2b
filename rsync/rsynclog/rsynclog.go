// Package rsynclog provides a process-global, pluggable log sink. The
// default backend wraps the standard library's log.Logger, matching
// gokr-rsync's internal/log wrapper; callers may install any Sink, for
// example to route messages to a structured logger.
package rsynclog

import (
	"fmt"
	"log"
	"os"
	"sync"
)

// Level mirrors the acrosync-library log levels (rsync_log.h).
type Level int

const (
	Debug Level = iota
	Trace
	Info
	Warning
	Error
	Fatal
	Assert
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Trace:
		return "TRACE"
	case Info:
		return "INFO"
	case Warning:
		return "WARNING"
	case Error:
		return "ERROR"
	case Fatal:
		return "FATAL"
	case Assert:
		return "ASSERT"
	default:
		return "UNKNOWN"
	}
}

// Sink receives one log record. id is a short, stable identifier for
// the call site, e.g. "RSYNC_DELETE"; casing is inconsistent across
// call sites and should be treated as cosmetic.
type Sink interface {
	Log(id string, level Level, msg string)
}

// FuncSink adapts a plain function to the Sink interface.
type FuncSink func(id string, level Level, msg string)

func (f FuncSink) Log(id string, level Level, msg string) { f(id, level, msg) }

type stdSink struct {
	mu  sync.Mutex
	std *log.Logger
}

func (s *stdSink) Log(id string, level Level, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.std.Printf("[%s] %s: %s", level, id, msg)
}

// NewStdSink returns a Sink backed by the standard library logger,
// writing to os.Stderr with the default flags.
func NewStdSink() Sink {
	return &stdSink{std: log.New(os.Stderr, "", log.LstdFlags)}
}

var (
	mu   sync.Mutex
	sink Sink = NewStdSink()
)

// SetSink installs the process-global sink. nil restores the default.
func SetSink(s Sink) {
	mu.Lock()
	defer mu.Unlock()
	if s == nil {
		s = NewStdSink()
	}
	sink = s
}

func current() Sink {
	mu.Lock()
	defer mu.Unlock()
	return sink
}

// Log emits one record through the installed sink.
func Log(id string, level Level, msg string) {
	current().Log(id, level, msg)
}

// Logf formats and emits one record.
func Logf(id string, level Level, format string, args ...any) {
	Log(id, level, fmt.Sprintf(format, args...))
}
