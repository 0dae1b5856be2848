package rpcserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/invopop/jsonschema"

	"github.com/ggoodman/rpcparam/internal/jsonrpc"
	"github.com/ggoodman/rpcparam/internal/logctx"
	"github.com/ggoodman/rpcparam/param"
)

var (
	// ErrMethodNotFound is returned for calls to unregistered commands.
	ErrMethodNotFound = errors.New("unknown command")
	// ErrDuplicateCommand is returned by Register for a name already taken.
	ErrDuplicateCommand = errors.New("command already registered")
	// ErrUndeclared is reported when a handler returns in usage or check
	// mode without having called param.Parse.
	ErrUndeclared = errors.New("command did not declare its parameters")
)

// HandlerFunc executes a command. It must call param.Parse before doing
// any work and return its error unchanged when it is not nil.
type HandlerFunc func(ctx context.Context, call *Call) (any, error)

// Command is a named handler.
type Command struct {
	Name        string
	Category    string
	Description string
	Handler     HandlerFunc
}

// Server routes JSON-RPC requests to commands.
type Server struct {
	log *slog.Logger
	id  string

	mu       sync.RWMutex
	commands map[string]Command
	order    []string

	checker   *param.Checker
	developer atomic.Bool
}

// NewServer constructs a Server with the builtin help, check and schema
// commands registered.
func NewServer(opts ...Option) *Server {
	s := &Server{
		log:      slog.Default(),
		id:       uuid.NewString(),
		commands: make(map[string]Command),
		checker:  param.NewChecker(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.log = logctx.Wrap(s.log).With(slog.String("server_id", s.id))

	if err := s.Register(s.builtins()...); err != nil {
		panic(fmt.Sprintf("rpcserver: registering builtins: %v", err))
	}
	return s
}

// Register adds commands. A name may only be registered once.
func (s *Server) Register(cmds ...Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cmd := range cmds {
		if cmd.Name == "" || cmd.Handler == nil {
			return fmt.Errorf("register %q: name and handler are required", cmd.Name)
		}
		if _, ok := s.commands[cmd.Name]; ok {
			return fmt.Errorf("register %q: %w", cmd.Name, ErrDuplicateCommand)
		}
		s.commands[cmd.Name] = cmd
		s.order = append(s.order, cmd.Name)
		s.checker.Forget(cmd.Name)
	}
	return nil
}

// Commands returns the registered commands in registration order.
func (s *Server) Commands() []Command {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Command, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.commands[name])
	}
	return out
}

func (s *Server) lookup(name string) (Command, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cmd, ok := s.commands[name]
	return cmd, ok
}

// SetDeveloperChecks toggles per-call declaration validation.
func (s *Server) SetDeveloperChecks(on bool) { s.developer.Store(on) }

// DeveloperChecks reports whether declarations are validated on first use.
func (s *Server) DeveloperChecks() bool { return s.developer.Load() }

func (s *Server) callChecker() *param.Checker {
	if s.developer.Load() {
		return s.checker
	}
	return nil
}

// HandleMessage processes one raw JSON-RPC message, single or batch, and
// returns the encoded response. It returns nil when nothing must be sent
// back (notifications only).
func (s *Server) HandleMessage(ctx context.Context, data []byte) []byte {
	if !json.Valid(data) {
		return s.encode(ctx, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrorCodeParseError, "Parse error", nil))
	}

	if !jsonrpc.IsBatch(data) {
		resp := s.handleRaw(ctx, data)
		if resp == nil {
			return nil
		}
		return s.encode(ctx, resp)
	}

	batch, err := jsonrpc.DecodeBatch(data)
	if err != nil {
		return s.encode(ctx, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrorCodeInvalidRequest, err.Error(), nil))
	}
	responses := make([]*jsonrpc.Response, 0, len(batch))
	for _, raw := range batch {
		if resp := s.handleRaw(ctx, raw); resp != nil {
			responses = append(responses, resp)
		}
	}
	if len(responses) == 0 {
		return nil
	}
	return s.encode(ctx, responses)
}

func (s *Server) handleRaw(ctx context.Context, raw []byte) *jsonrpc.Response {
	req, err := jsonrpc.DecodeRequest(raw)
	if err != nil {
		return jsonrpc.NewErrorResponse(nil, jsonrpc.ErrorCodeInvalidRequest, "Invalid request", nil)
	}
	resp := s.Handle(ctx, req)
	if req.IsNotification() {
		return nil
	}
	return resp
}

func (s *Server) encode(ctx context.Context, v any) []byte {
	b, err := jsonrpc.Encode(v)
	if err != nil {
		s.log.ErrorContext(ctx, "rpcserver.encode.fail", slog.String("err", err.Error()))
		b, _ = jsonrpc.Encode(jsonrpc.NewErrorResponse(nil, jsonrpc.ErrorCodeInternalError, "failed to encode response", nil))
	}
	return b
}

// Handle executes a decoded request and builds its response. The response
// of a notification is computed but should not be sent.
func (s *Server) Handle(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
	if err := req.Validate(); err != nil {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidRequest, err.Error(), nil)
	}

	msgType := "request"
	if req.IsNotification() {
		msgType = "notification"
	}
	ctx = logctx.WithRPCMessage(ctx, &logctx.RPCMessage{Method: req.Method, ID: req.ID.String(), Type: msgType})

	cmd, ok := s.lookup(req.Method)
	if !ok {
		s.log.DebugContext(ctx, "rpcserver.handle.unknown")
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeMethodNotFound,
			fmt.Sprintf("Unknown command '%s'", req.Method), nil)
	}

	call, err := newCall(req.Method, req.ID, req.Params)
	if err != nil {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeParseError, err.Error(), nil)
	}
	call.checker = s.callChecker()

	result, err := cmd.Handler(ctx, call)
	if err != nil {
		return s.errorResponse(ctx, req.ID, err)
	}
	if result == nil {
		result = struct{}{}
	}
	resp, err := jsonrpc.NewResultResponse(req.ID, result)
	if err != nil {
		s.log.ErrorContext(ctx, "rpcserver.handle.marshal.fail", slog.String("err", err.Error()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, err.Error(), nil)
	}
	return resp
}

func (s *Server) errorResponse(ctx context.Context, id *jsonrpc.RequestID, err error) *jsonrpc.Response {
	if pe, ok := param.AsError(err); ok {
		if pe.Kind == param.KindDeveloper {
			s.log.ErrorContext(ctx, "rpcserver.handle.developer_error", slog.String("err", pe.Message))
		} else {
			s.log.DebugContext(ctx, "rpcserver.handle.invalid_params", slog.String("err", pe.Message))
		}
		return jsonrpc.NewErrorResponse(id, pe.Code(), pe.Message, nil)
	}

	var rpcErr *jsonrpc.Error
	if errors.As(err, &rpcErr) {
		return jsonrpc.NewErrorResponse(id, rpcErr.Code, rpcErr.Message, rpcErr.Data)
	}

	switch {
	case errors.Is(err, param.ErrUsageOnly), errors.Is(err, param.ErrCheckOnly):
		// Only builtins run commands in these modes; a plain call never
		// asks for them.
		return jsonrpc.NewErrorResponse(id, jsonrpc.ErrorCodeInternalError, err.Error(), nil)
	case errors.Is(err, ErrMethodNotFound):
		return jsonrpc.NewErrorResponse(id, jsonrpc.ErrorCodeMethodNotFound, err.Error(), nil)
	}

	s.log.WarnContext(ctx, "rpcserver.handle.fail", slog.String("err", err.Error()))
	return jsonrpc.NewErrorResponse(id, jsonrpc.ErrorCodeInternalError, err.Error(), nil)
}

// declaration runs cmd in usage-only mode and returns its declaration.
func (s *Server) declaration(ctx context.Context, cmd Command) (*param.Declaration, error) {
	call := &Call{method: cmd.Name, usageOnly: true}
	_, err := cmd.Handler(ctx, call)
	switch {
	case errors.Is(err, param.ErrUsageOnly) && call.decl != nil:
		return call.decl, nil
	case err == nil, errors.Is(err, param.ErrUsageOnly):
		return nil, &param.Error{
			Kind:    param.KindDeveloper,
			Message: fmt.Sprintf("developer error: %s: %v", cmd.Name, ErrUndeclared),
		}
	}
	return nil, err
}

// Usage returns the parameter signature of the named command.
func (s *Server) Usage(ctx context.Context, name string) (string, error) {
	cmd, ok := s.lookup(name)
	if !ok {
		return "", fmt.Errorf("%w '%s'", ErrMethodNotFound, name)
	}
	d, err := s.declaration(ctx, cmd)
	if err != nil {
		return "", err
	}
	return d.Usage(), nil
}

// Schema returns the JSON Schema of the named command's params.
func (s *Server) Schema(ctx context.Context, name string) (*jsonschema.Schema, error) {
	cmd, ok := s.lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w '%s'", ErrMethodNotFound, name)
	}
	d, err := s.declaration(ctx, cmd)
	if err != nil {
		return nil, err
	}
	schema := d.Schema()
	schema.Title = cmd.Name
	schema.Description = cmd.Description
	return schema, nil
}

// SelfCheck renders and validates the declaration of every registered
// command and returns all problems found. Run it once at startup.
func (s *Server) SelfCheck(ctx context.Context) error {
	var errs []error
	for _, cmd := range s.Commands() {
		d, err := s.declaration(ctx, cmd)
		if err == nil {
			err = param.Validate(d)
		}
		if err != nil {
			s.log.ErrorContext(ctx, "rpcserver.selfcheck.fail", slog.String("command", cmd.Name), slog.String("err", err.Error()))
			errs = append(errs, fmt.Errorf("%s: %w", cmd.Name, err))
		}
	}
	return errors.Join(errs...)
}
