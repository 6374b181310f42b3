// Package svcctx provides service context for dependency injection via context.
// This package is separate from the CLI wiring to avoid import cycles between
// commands and the packages they drive.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/davidZakaria/cath-archives-sub000/internal/config"
	"github.com/davidZakaria/cath-archives-sub000/internal/engines"
	"github.com/davidZakaria/cath-archives-sub000/internal/home"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	Logger  *slog.Logger
	Config  *config.Manager
	Engines *engines.Registry
	Home    *home.Dir
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// LoggerFrom extracts the logger from context, falling back to
// slog.Default() so callers never need a nil check.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil && s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// ConfigFrom extracts the config manager from context.
func ConfigFrom(ctx context.Context) *config.Manager {
	if s := ServicesFrom(ctx); s != nil {
		return s.Config
	}
	return nil
}

// EnginesFrom extracts the OCR engine registry from context.
func EnginesFrom(ctx context.Context) *engines.Registry {
	if s := ServicesFrom(ctx); s != nil {
		return s.Engines
	}
	return nil
}

// HomeFrom extracts the home directory from context.
func HomeFrom(ctx context.Context) *home.Dir {
	if s := ServicesFrom(ctx); s != nil {
		return s.Home
	}
	return nil
}
