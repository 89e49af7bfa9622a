package httpserver

import (
	"context"
	"log/slog"
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger. A nil logger is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithStartHook runs h once the listener is about to accept connections.
func WithStartHook(h func(ctx context.Context)) Option {
	return func(s *Server) {
		if h != nil {
			s.onStart = append(s.onStart, h)
		}
	}
}

// WithStopHook runs h after graceful shutdown. Hooks release resources that
// in-flight requests may still touch, so they run after Shutdown returns.
func WithStopHook(h func(ctx context.Context)) Option {
	return func(s *Server) {
		if h != nil {
			s.onStop = append(s.onStop, h)
		}
	}
}
