package logging

import (
	"io"
	"log/slog"
	"os"
)

// Output formats accepted by NewWith.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// New creates the application logger.
// It writes text to Stderr so stdout stays free for command output and MCP JSON-RPC.
func New(level slog.Level) *slog.Logger {
	return NewWith(os.Stderr, level, FormatText)
}

// NewWith creates a logger writing format to w. Unknown formats fall back to text.
// The "error" key is normalized to "err".
func NewWith(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == "error" {
				a.Key = "err"
			}
			return a
		},
	}
	if format == FormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// NewNop returns a no-op logger.
func NewNop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
