package stdio

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ggoodman/rpcparam/internal/jsonrpc"
)

type peerKey struct{}

func peerFrom(ctx context.Context) *Handler {
	h, _ := ctx.Value(peerKey{}).(*Handler)
	return h
}

// Notify writes a JSON-RPC notification to the peer. It is safe to call
// concurrently with Serve.
func (h *Handler) Notify(method string, params any) error {
	raw, err := jsonrpc.Encode(params)
	if err != nil {
		return fmt.Errorf("encode %s params: %w", method, err)
	}
	b, err := jsonrpc.Encode(&jsonrpc.Request{
		JSONRPCVersion: jsonrpc.ProtocolVersion,
		Method:         method,
		Params:         raw,
	})
	if err != nil {
		return fmt.Errorf("encode %s notification: %w", method, err)
	}
	return h.writeLine(b)
}

// LogParams is the payload of a "log" notification.
type LogParams struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// LogHandler returns a slog.Handler that passes records to next and, when
// the context comes from a stdio connection's Serve, also sends records at
// or above level to that peer as "log" notifications. next may be nil.
//
// The notification message is the record message followed by its flat
// attributes as key=value pairs. Group attributes are omitted.
func LogHandler(next slog.Handler, level slog.Leveler) slog.Handler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &logHandler{next: next, level: level}
}

type logHandler struct {
	next   slog.Handler
	level  slog.Leveler
	prefix string
	attrs  []slog.Attr
}

func (l *logHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	if l.next != nil && l.next.Enabled(ctx, lvl) {
		return true
	}
	return lvl >= l.level.Level() && peerFrom(ctx) != nil
}

func (l *logHandler) Handle(ctx context.Context, r slog.Record) error {
	var err error
	if l.next != nil && l.next.Enabled(ctx, r.Level) {
		err = l.next.Handle(ctx, r.Clone())
	}
	if h := peerFrom(ctx); h != nil && r.Level >= l.level.Level() {
		nerr := h.Notify("log", LogParams{Level: peerLevel(r.Level), Message: l.message(r)})
		if err == nil {
			err = nerr
		}
	}
	return err
}

func (l *logHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := *l
	if l.next != nil {
		out.next = l.next.WithAttrs(attrs)
	}
	out.attrs = append([]slog.Attr(nil), l.attrs...)
	for _, a := range attrs {
		a.Key = l.prefix + a.Key
		out.attrs = append(out.attrs, a)
	}
	return &out
}

func (l *logHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return l
	}
	out := *l
	if l.next != nil {
		out.next = l.next.WithGroup(name)
	}
	out.prefix = l.prefix + name + "."
	return &out
}

func (l *logHandler) message(r slog.Record) string {
	var b strings.Builder
	b.WriteString(r.Message)
	write := func(key string, v slog.Value) {
		v = v.Resolve()
		if v.Kind() == slog.KindGroup {
			return
		}
		b.WriteByte(' ')
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(v.String())
	}
	for _, a := range l.attrs {
		write(a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		write(l.prefix+a.Key, a.Value)
		return true
	})
	return b.String()
}

// peerLevel maps slog levels onto the debug/info/warn/error names peers
// expect.
func peerLevel(lvl slog.Level) string {
	switch {
	case lvl < slog.LevelInfo:
		return "debug"
	case lvl < slog.LevelWarn:
		return "info"
	case lvl < slog.LevelError:
		return "warn"
	default:
		return "error"
	}
}
