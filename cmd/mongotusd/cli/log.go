package cli

import (
	"log/slog"
	"os"

	"github.com/rs/zerolog"
)

// stdout and stderr are the process-wide loggers for operational messages.
// They are reconfigured by SetupStructuredLogger once the flags are parsed.
var stdout = zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()
var stderr = zerolog.New(zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) { w.Out = os.Stderr })).With().Timestamp().Logger()

// SetupStructuredLogger builds the CLI's zerolog loggers according to the
// -log-format and -verbose flags.
func SetupStructuredLogger() {
	level := zerolog.InfoLevel
	if !Flags.VerboseOutput {
		level = zerolog.WarnLevel
	}

	switch Flags.LogFormat {
	case "json":
		stdout = zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
		stderr = zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
	case "console":
		stdout = stdout.Level(level)
		stderr = stderr.Level(level)
	default:
		stderr.Fatal().Str("format", Flags.LogFormat).Msg("Invalid value for -log-format flag, must be console or json")
	}
}

// newHandlerLogger builds the slog.Logger handed to the tus handler, matching
// the CLI's output format and verbosity.
func newHandlerLogger() *slog.Logger {
	level := slog.LevelInfo
	if !Flags.VerboseOutput {
		level = slog.LevelWarn
	}
	opts := &slog.HandlerOptions{Level: level}

	if Flags.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
