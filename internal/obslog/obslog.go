// Package obslog wires up the daemon's global zerolog logger: JSON output
// for production, a console writer for interactive use, and a handful of
// With-field helpers for the identifiers the daemon threads through its
// operations (disk, plan, move).
package obslog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the process-wide logger, set by Init.
var Logger zerolog.Logger

// Level is one of the zerolog levels this daemon exposes on its CLI/config.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config controls Init's output format and verbosity.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init configures the global Logger. Called once at process start.
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
		return
	}
	Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        output,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Logger()
}

// WithComponent scopes a logger to one subsystem name (e.g. "scanner",
// "executor"); every package in this daemon takes a zerolog.Logger built
// this way rather than reaching for the global.
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithPlan scopes a logger to one balance plan.
func WithPlan(planID int64) zerolog.Logger {
	return Logger.With().Int64("plan_id", planID).Logger()
}

// WithDisk scopes a logger to one disk.
func WithDisk(diskID int64, name string) zerolog.Logger {
	return Logger.With().Int64("disk_id", diskID).Str("disk_name", name).Logger()
}

// WithMove scopes a logger to one planned move.
func WithMove(moveID int64) zerolog.Logger {
	return Logger.With().Int64("move_id", moveID).Logger()
}
