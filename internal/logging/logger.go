package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New cria um logger estruturado com saída texto em stderr.
// app: nome da aplicação (ex: "uploadsim")
// level: "debug", "info", "warn" ou "error" (padrão: "info")
func New(app string, level string) *slog.Logger {
	return NewWithWriter(os.Stderr, app, level)
}

func NewWithWriter(w io.Writer, app string, level string) *slog.Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})
	return slog.New(handler).With(
		slog.String("app", app),
		slog.Int("pid", os.Getpid()),
	)
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
