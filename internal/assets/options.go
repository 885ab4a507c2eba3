package assets

import (
	"log/slog"

	"meshvault/internal/store"
)

type options struct {
	backend          string
	logger           *slog.Logger
	vertexThreshold  uint64
	textureThreshold uint64
}

// Option configures Open.
type Option func(*options)

func defaultOptions() options {
	return options{
		backend: store.BackendSQLite,
		logger:  slog.Default(),
	}
}

// WithBackend selects the index backend (sqlite or leveldb).
func WithBackend(backend string) Option {
	return func(o *options) {
		if backend != "" {
			o.backend = backend
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithThresholds overrides the class size caps. Zero keeps the default.
func WithThresholds(vertex, texture uint64) Option {
	return func(o *options) {
		o.vertexThreshold = vertex
		o.textureThreshold = texture
	}
}
