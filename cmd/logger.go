package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// ParseLogLevel maps debug, info, warn or error to a slog level.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("invalid log level %q; expected debug, info, warn or error", s)
}

// NewLogger returns a text logger writing to w. Every entry carries a
// run_id unique to this process run.
func NewLogger(w io.Writer, level string) (*slog.Logger, string, error) {
	lvl, err := ParseLogLevel(level)
	if err != nil {
		return nil, "", err
	}
	runID := uuid.New().String()
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})
	return slog.New(h).With("run_id", runID), runID, nil
}
