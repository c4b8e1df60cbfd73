// Package vpclog provides component-scoped structured loggers built on
// zerolog, in the style of warren's pkg/log: one global sink, many small
// component loggers layered on top of it.
package vpclog

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

var base = zerolog.New(os.Stderr).With().Timestamp().Logger()

// Init reconfigures the global sink. Safe to call once at process start;
// component loggers taken afterward observe the new configuration.
func Init(w io.Writer, level zerolog.Level) {
	if w == nil {
		w = os.Stderr
	}
	base = zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// For returns a logger tagged with the given component name.
func For(component string) zerolog.Logger {
	return base.With().Str("component", component).Logger()
}

// WithVPC returns a logger tagged with the given component and VPC name.
func WithVPC(component, vpc string) zerolog.Logger {
	return base.With().Str("component", component).Str("vpc", vpc).Logger()
}
