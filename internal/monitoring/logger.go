// Package monitoring builds the agent's structured logger, adapted from
// the teacher's internal/single/monitoring/logger.go: same
// NewLogger/LogError/LogErrorWithStack/LogPanic shape, re-scoped from the
// websocket server's Loki-output logger to the agent (no "service":
// "ws-server" label, level/format taken as plain strings rather than the
// teacher's own internal/single/types package).
package monitoring

import (
	"io"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LoggerConfig holds logger configuration: Level is one of
// debug/info/warn/error/fatal (case-insensitive, default info); Format
// "pretty" selects a console writer, anything else (default) JSON.
type LoggerConfig struct {
	Level  string
	Format string
}

// NewLogger builds a zerolog.Logger for the agent process: JSON to stdout
// by default, a zerolog.ConsoleWriter in pretty mode for local
// development, with Timestamp/Caller enrichment.
func NewLogger(config LoggerConfig) zerolog.Logger {
	var output io.Writer = os.Stdout

	var level zerolog.Level
	switch strings.ToLower(config.Level) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	case "fatal":
		level = zerolog.FatalLevel
	default:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if strings.EqualFold(config.Format, "pretty") {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	return zerolog.New(output).With().Timestamp().Caller().Str("component", "qapi-agent").Logger()
}

// LogError logs an error with its message and arbitrary context fields.
func LogError(logger zerolog.Logger, err error, msg string, fields map[string]any) {
	event := logger.Error().Err(err)
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(msg)
}

// LogErrorWithStack logs an error plus the current goroutine's stack
// trace, for unexpected failures where the call path matters.
func LogErrorWithStack(logger zerolog.Logger, err error, msg string, fields map[string]any) {
	event := logger.Error().Err(err).Str("stack_trace", string(debug.Stack()))
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(msg)
}

// LogPanic logs a recovered panic value with a stack trace, at Fatal
// level but without exiting. Used in the defer/recover block of the
// protocol client's callback worker pool so a single goroutine's panic is
// diagnosable without crashing the whole process.
func LogPanic(logger zerolog.Logger, panicValue any, msg string, fields map[string]any) {
	event := logger.WithLevel(zerolog.FatalLevel).Interface("panic_value", panicValue).Str("stack_trace", string(debug.Stack()))
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(msg)
}
