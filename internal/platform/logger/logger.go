package logger

import (
	"log/slog"
	"os"
)

// New returns a structured JSON logger writing to stdout. The service name is
// attached to every record so multi-process deployments stay sortable.
func New(service string) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	return slog.New(handler).With("service", service)
}
