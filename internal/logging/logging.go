// Package logging configures the process-wide slog logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Formats accepted by Init.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Init sets the slog default to a handler writing at level in format.
// Output goes to os.Stderr unless w is given.
func Init(level slog.Level, format string, w ...io.Writer) error {
	var writer io.Writer = os.Stderr
	if len(w) > 0 && w[0] != nil {
		writer = w[0]
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch format {
	case FormatJSON:
		handler = slog.NewJSONHandler(writer, opts)
	case FormatText, "":
		handler = slog.NewTextHandler(writer, opts)
	default:
		return fmt.Errorf("unknown log format %q (want %s or %s)", format, FormatText, FormatJSON)
	}

	slog.SetDefault(slog.New(handler))
	return nil
}

// New returns the default logger tagged with a component attribute.
func New(component string) *slog.Logger {
	return slog.Default().With(slog.String("component", component))
}
