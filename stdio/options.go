package stdio

import (
	"io"
	"log/slog"
)

// Option configures a Handler at construction.
type Option func(*Handler)

// WithIO replaces os.Stdin and os.Stdout. A nil stream keeps its default.
func WithIO(r io.Reader, w io.Writer) Option {
	return func(h *Handler) {
		if r != nil {
			h.r = r
		}
		if w != nil {
			h.w = w
		}
	}
}

// WithLogger sets the transport's own logger. Wrap its handler with
// LogHandler to mirror records to the peer.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.l = l
		}
	}
}

// WithUserProvider names the peer in the connection's log attributes.
func WithUserProvider(up UserProvider) Option {
	return func(h *Handler) {
		if up != nil {
			h.userProvider = up
		}
	}
}

// WithMaxMessageSize bounds one input line in bytes. A longer line ends
// Serve with bufio.ErrTooLong. n <= 0 keeps DefaultMaxMessageSize.
func WithMaxMessageSize(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxLine = n
		}
	}
}
