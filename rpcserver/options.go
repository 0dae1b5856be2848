package rpcserver

import "log/slog"

// Option customizes a Server.
type Option func(*Server)

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithDeveloperChecks enables validation of every command's declaration on
// its first call. Failures are reported to the caller as developer errors.
func WithDeveloperChecks(on bool) Option {
	return func(s *Server) {
		s.developer.Store(on)
	}
}

// WithServerID overrides the generated server id used in logs.
func WithServerID(id string) Option {
	return func(s *Server) {
		if id != "" {
			s.id = id
		}
	}
}
