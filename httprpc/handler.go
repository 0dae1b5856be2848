package httprpc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/elnormous/contenttype"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/ggoodman/rpcparam/internal/logctx"
)

var _ http.Handler = (*Handler)(nil)

var (
	jsonMediaType  = contenttype.NewMediaType("application/json")
	jsonMediaTypes = []contenttype.MediaType{jsonMediaType}
)

// DefaultMaxBodyBytes is the default limit on a request body.
const DefaultMaxBodyBytes = 4 << 20

// MessageHandler processes one raw JSON-RPC message and returns the encoded
// reply, or nil when there is nothing to send. *rpcserver.Server satisfies
// it.
type MessageHandler interface {
	HandleMessage(ctx context.Context, data []byte) []byte
}

// Handler is an http.Handler for JSON-RPC POST requests.
type Handler struct {
	srv     MessageHandler
	log     *slog.Logger
	maxBody int64
}

// Option configures the Handler.
type Option func(*Handler)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.log = l
		}
	}
}

// WithMaxBodyBytes bounds the accepted request body size.
func WithMaxBodyBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxBody = n
		}
	}
}

// New builds a Handler delegating messages to srv.
func New(srv MessageHandler, opts ...Option) *Handler {
	h := &Handler{srv: srv, log: slog.Default(), maxBody: DefaultMaxBodyBytes}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	h.log = logctx.Wrap(h.log)
	return h
}

// writeJSONError emits a minimal JSON body for HTTP-layer rejections that
// happen before a JSON-RPC exchange is possible. Shape:
// {"error":{"code":<httpStatus>,"message":"<reason>"}}
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", jsonMediaType.String())
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"code": status, "message": msg}})
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := logctx.WithConnData(r.Context(), &logctx.ConnData{
		ConnID:     uuid.NewString(),
		Transport:  "http",
		RemoteAddr: r.RemoteAddr,
	})

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		h.log.DebugContext(ctx, "http.method.unsupported", slog.String("method", r.Method))
		return
	}

	ctype, err := contenttype.GetMediaType(r)
	if err != nil || !ctype.Matches(jsonMediaType) {
		writeJSONError(w, http.StatusUnsupportedMediaType, "content-type must be application/json")
		h.log.WarnContext(ctx, "http.content_type.unsupported")
		return
	}

	if r.Header.Get("Accept") != "" {
		if _, _, err := contenttype.GetAcceptableMediaType(r, jsonMediaTypes); err != nil {
			writeJSONError(w, http.StatusNotAcceptable, "client must accept application/json")
			h.log.WarnContext(ctx, "http.accept.unsupported")
			return
		}
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
			h.log.WarnContext(ctx, "http.body.too_large", slog.Int64("limit", tooLarge.Limit))
			return
		}
		writeJSONError(w, http.StatusBadRequest, "failed to read request body")
		h.log.WarnContext(ctx, "http.body.read.fail", slog.String("err", err.Error()))
		return
	}

	reply := h.srv.HandleMessage(ctx, body)
	if reply == nil {
		w.WriteHeader(http.StatusNoContent)
		h.log.DebugContext(ctx, "http.post.notification", slog.Duration("dur", time.Since(start)))
		return
	}

	w.Header().Set("Content-Type", jsonMediaType.String())
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(reply); err != nil {
		h.log.WarnContext(ctx, "http.post.write.fail", slog.String("err", err.Error()))
		return
	}
	h.log.InfoContext(ctx, "http.post.ok", slog.Duration("dur", time.Since(start)))
}
