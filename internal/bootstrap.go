package internal

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/starford/quire/internal/export"
	"github.com/starford/quire/internal/kv"
	"github.com/starford/quire/internal/noteservice"
	"github.com/starford/quire/internal/store"
)

// NewLogger builds the process logger. JSON goes to long-running servers,
// text to one-shot commands.
func NewLogger(w io.Writer, level slog.Level, json bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// OpenManager opens the configured storage and loads the note collection.
// The returned provider must be closed by the caller once the manager is done.
func OpenManager(cfg *Config, logger *slog.Logger, opts ...noteservice.Option) (*noteservice.Manager, kv.Provider, error) {
	provider, err := kv.Open(cfg.Storage.Driver, cfg.Storage.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init storage: %w", err)
	}

	if cfg.Export.Dir != "" {
		if err := os.MkdirAll(cfg.Export.Dir, 0o755); err != nil {
			_ = provider.Close()
			return nil, nil, fmt.Errorf("create export dir: %w", err)
		}
	}

	base := []noteservice.Option{
		noteservice.WithLogger(logger),
		noteservice.WithExporter(export.New(cfg.Export.Dir, logger)),
	}
	m := noteservice.New(store.New(provider), append(base, opts...)...)
	return m, provider, nil
}
