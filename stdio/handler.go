package stdio

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/ggoodman/rpcparam/internal/logctx"
)

// DefaultMaxMessageSize is the default upper bound on one input line.
const DefaultMaxMessageSize = 4 << 20

// MessageHandler processes one raw JSON-RPC message and returns the encoded
// reply, or nil when there is nothing to send. *rpcserver.Server satisfies
// it.
type MessageHandler interface {
	HandleMessage(ctx context.Context, data []byte) []byte
}

// Handler is a single-connection stdio transport that reads JSON-RPC
// messages from an io.Reader and writes replies to an io.Writer. By default
// it uses os.Stdin and os.Stdout.
type Handler struct {
	srv MessageHandler

	r            io.Reader
	w            io.Writer
	l            *slog.Logger
	userProvider UserProvider
	maxLine      int

	writeMu sync.Mutex
}

// NewHandler constructs a stdio Handler with defaults and applies options.
func NewHandler(srv MessageHandler, opts ...Option) *Handler {
	h := &Handler{
		srv:          srv,
		r:            os.Stdin,
		w:            os.Stdout,
		l:            slog.Default(),
		userProvider: OSUserProvider{},
		maxLine:      DefaultMaxMessageSize,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	h.l = logctx.Wrap(h.l)
	return h
}

// Serve runs the read loop until EOF on the reader or until ctx is
// canceled. Each non-blank line is one message or batch; replies are
// written one per line in request order. It returns nil on EOF.
func (h *Handler) Serve(ctx context.Context) error {
	peer, err := h.userProvider.CurrentUserID()
	if err != nil {
		h.l.WarnContext(ctx, "stdio.peer.fail", slog.String("err", err.Error()))
	}
	ctx = logctx.WithConnData(ctx, &logctx.ConnData{
		ConnID:     uuid.NewString(),
		Transport:  "stdio",
		RemoteAddr: peer,
	})
	ctx = context.WithValue(ctx, peerKey{}, h)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	h.l.InfoContext(ctx, "stdio.serve.start")

	lines := make(chan []byte)
	readErr := make(chan error, 1)
	go h.readLoop(ctx, lines, readErr)

	for {
		select {
		case <-ctx.Done():
			h.l.InfoContext(ctx, "stdio.serve.cancel")
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				err := <-readErr
				if err != nil {
					h.l.ErrorContext(ctx, "stdio.serve.read.fail", slog.String("err", err.Error()))
				} else {
					h.l.InfoContext(ctx, "stdio.serve.eof")
				}
				return err
			}
			reply := h.srv.HandleMessage(ctx, line)
			if reply == nil {
				continue
			}
			if err := h.writeLine(reply); err != nil {
				h.l.ErrorContext(ctx, "stdio.serve.write.fail", slog.String("err", err.Error()))
				return fmt.Errorf("write reply: %w", err)
			}
		}
	}
}

func (h *Handler) readLoop(ctx context.Context, lines chan<- []byte, readErr chan<- error) {
	defer close(lines)

	sc := bufio.NewScanner(h.r)
	sc.Buffer(make([]byte, 0, min(64<<10, h.maxLine)), h.maxLine)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		msg := append([]byte(nil), line...)
		select {
		case lines <- msg:
		case <-ctx.Done():
			readErr <- nil
			return
		}
	}
	readErr <- sc.Err()
}

func (h *Handler) writeLine(b []byte) error {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	if _, err := h.w.Write(append(b, '\n')); err != nil {
		return err
	}
	return nil
}
