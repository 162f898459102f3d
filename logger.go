package mqtt311

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"
	"sync/atomic"
)

// LogLevel orders log messages by severity. LogLevelNone silences a logger.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
	LogLevelNone
)

var logLevelNames = [...]string{
	LogLevelDebug: "DEBUG",
	LogLevelInfo:  "INFO",
	LogLevelWarn:  "WARN",
	LogLevelError: "ERROR",
	LogLevelNone:  "NONE",
}

func (l LogLevel) String() string {
	if l < 0 || int(l) >= len(logLevelNames) {
		return "UNKNOWN"
	}
	return logLevelNames[l]
}

// slogLevel maps l onto the slog severity scale.
func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogFields are structured key-value pairs attached to a message.
type LogFields map[string]any

// Field names used by the connection and session logs.
const (
	LogFieldClientID   = "client_id"
	LogFieldTopic      = "topic"
	LogFieldPacketType = "packet_type"
	LogFieldReturnCode = "return_code"
	LogFieldError      = "error"
	LogFieldRemoteAddr = "remote_addr"
	LogFieldState      = "state"
	LogFieldBytes      = "bytes"
)

// Logger is the structured logger used by connections and sessions.
// Implementations must be safe for concurrent use: the reader, writer and
// keep-alive goroutines share one logger.
type Logger interface {
	Debug(msg string, fields LogFields)
	Info(msg string, fields LogFields)
	Warn(msg string, fields LogFields)
	Error(msg string, fields LogFields)

	// WithFields returns a child logger that adds fields to every message.
	WithFields(fields LogFields) Logger

	Level() LogLevel
	SetLevel(level LogLevel)
}

// levelGate holds a logger's threshold. Children created by WithFields
// share the gate of their parent.
type levelGate struct {
	v atomic.Int32
}

func newLevelGate(level LogLevel) *levelGate {
	g := &levelGate{}
	g.v.Store(int32(level))
	return g
}

func (g *levelGate) Level() LogLevel         { return LogLevel(g.v.Load()) }
func (g *levelGate) SetLevel(level LogLevel) { g.v.Store(int32(level)) }

func (g *levelGate) enabled(level LogLevel) bool {
	return level != LogLevelNone && level >= g.Level()
}

// NoOpLogger discards every message.
type NoOpLogger struct {
	*levelGate
}

// NewNoOpLogger returns a logger at LogLevelNone that discards everything.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{levelGate: newLevelGate(LogLevelNone)}
}

func (n *NoOpLogger) Debug(string, LogFields)     {}
func (n *NoOpLogger) Info(string, LogFields)      {}
func (n *NoOpLogger) Warn(string, LogFields)      {}
func (n *NoOpLogger) Error(string, LogFields)     {}
func (n *NoOpLogger) WithFields(LogFields) Logger { return n }

// StdLogger writes one line per message through the standard log package:
//
//	2024/01/02 15:04:05 [INFO] connected client_id=sensor01 remote_addr=10.0.0.1:1883
//
// Fields are printed sorted by key.
type StdLogger struct {
	*levelGate
	logger *log.Logger
	fields LogFields
}

// NewStdLogger returns a StdLogger writing to w, or to stderr when w is nil.
func NewStdLogger(w io.Writer, level LogLevel) *StdLogger {
	if w == nil {
		w = os.Stderr
	}
	return &StdLogger{
		levelGate: newLevelGate(level),
		logger:    log.New(w, "", log.LstdFlags),
	}
}

func (s *StdLogger) Debug(msg string, fields LogFields) { s.write(LogLevelDebug, msg, fields) }
func (s *StdLogger) Info(msg string, fields LogFields)  { s.write(LogLevelInfo, msg, fields) }
func (s *StdLogger) Warn(msg string, fields LogFields)  { s.write(LogLevelWarn, msg, fields) }
func (s *StdLogger) Error(msg string, fields LogFields) { s.write(LogLevelError, msg, fields) }

func (s *StdLogger) WithFields(fields LogFields) Logger {
	merged := maps.Clone(s.fields)
	if merged == nil {
		merged = make(LogFields, len(fields))
	}
	maps.Copy(merged, fields)

	return &StdLogger{levelGate: s.levelGate, logger: s.logger, fields: merged}
}

func (s *StdLogger) write(level LogLevel, msg string, fields LogFields) {
	if !s.enabled(level) {
		return
	}

	var b strings.Builder
	b.WriteByte('[')
	b.WriteString(level.String())
	b.WriteString("] ")
	b.WriteString(msg)

	all := fields
	if len(s.fields) > 0 {
		all = maps.Clone(s.fields)
		maps.Copy(all, fields)
	}
	for _, k := range slices.Sorted(maps.Keys(all)) {
		fmt.Fprintf(&b, " %s=%v", k, all[k])
	}

	s.logger.Print(b.String())
}

// SlogLogger forwards messages to a *slog.Logger. Fields become attributes.
type SlogLogger struct {
	*levelGate
	logger *slog.Logger
}

// NewSlogLogger wraps logger, or slog.Default() when logger is nil.
// Messages below level are dropped before they reach the handler.
func NewSlogLogger(logger *slog.Logger, level LogLevel) *SlogLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogLogger{levelGate: newLevelGate(level), logger: logger}
}

func (s *SlogLogger) Debug(msg string, fields LogFields) { s.write(LogLevelDebug, msg, fields) }
func (s *SlogLogger) Info(msg string, fields LogFields)  { s.write(LogLevelInfo, msg, fields) }
func (s *SlogLogger) Warn(msg string, fields LogFields)  { s.write(LogLevelWarn, msg, fields) }
func (s *SlogLogger) Error(msg string, fields LogFields) { s.write(LogLevelError, msg, fields) }

func (s *SlogLogger) WithFields(fields LogFields) Logger {
	return &SlogLogger{levelGate: s.levelGate, logger: s.logger.With(slogArgs(fields)...)}
}

func (s *SlogLogger) write(level LogLevel, msg string, fields LogFields) {
	if !s.enabled(level) {
		return
	}
	s.logger.Log(context.Background(), level.slogLevel(), msg, slogArgs(fields)...)
}

func slogArgs(fields LogFields) []any {
	args := make([]any, 0, len(fields))
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		args = append(args, slog.Any(k, fields[k]))
	}
	return args
}
