package logging

import (
	"io"
	"log/slog"
	"os"
)

// New creates the JSON slog logger every component of the booking engine
// shares. Level strings follow slog ("debug", "info", "warn", "error");
// anything unparsable falls back to info so a config typo never silences
// the ledger audit trail.
func New(level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(level),
	}))
}

// Discard returns a logger that drops all output. Useful for tests.
func Discard() *slog.Logger {
	handler := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError})
	return slog.New(handler)
}

func parseLevel(level string) slog.Leveler {
	lvl := new(slog.LevelVar)
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl.Set(slog.LevelInfo)
	}
	return lvl
}
