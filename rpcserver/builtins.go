package rpcserver

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/ggoodman/rpcparam/jsontok"
	"github.com/ggoodman/rpcparam/param"
)

const checkParamName = "command_to_check"

// HelpEntry describes one command in the help listing.
type HelpEntry struct {
	Command     string `json:"command"`
	Category    string `json:"category,omitempty"`
	Description string `json:"description,omitempty"`
}

// HelpResult is the result of the help builtin.
type HelpResult struct {
	Help []HelpEntry `json:"help"`
}

// CheckResult is the result of a successful check builtin call.
type CheckResult struct {
	CommandToCheck string `json:"command_to_check"`
}

func (s *Server) builtins() []Command {
	return []Command{
		{
			Name:        "help",
			Category:    "utility",
			Description: "List available commands, or give verbose help on one {command}.",
			Handler:     s.handleHelp,
		},
		{
			Name:        "check",
			Category:    "utility",
			Description: "Don't run {command_to_check}, just verify parameters.",
			Handler:     s.handleCheck,
		},
		{
			Name:        "schema",
			Category:    "utility",
			Description: "Describe the parameters of {command} as JSON Schema.",
			Handler:     s.handleSchema,
		},
	}
}

func (s *Server) helpEntry(ctx context.Context, cmd Command) (HelpEntry, error) {
	d, err := s.declaration(ctx, cmd)
	if err != nil {
		return HelpEntry{}, err
	}
	line := cmd.Name
	if u := d.Usage(); u != "" {
		line += " " + u
	}
	return HelpEntry{Command: line, Category: cmd.Category, Description: cmd.Description}, nil
}

func (s *Server) handleHelp(ctx context.Context, call *Call) (any, error) {
	var name *string
	if err := param.Parse(call, param.Optional("command", param.String, &name)); err != nil {
		return nil, err
	}

	if name != nil {
		cmd, ok := s.lookup(*name)
		if !ok {
			return nil, fmt.Errorf("%w '%s'", ErrMethodNotFound, *name)
		}
		entry, err := s.helpEntry(ctx, cmd)
		if err != nil {
			return nil, err
		}
		return HelpResult{Help: []HelpEntry{entry}}, nil
	}

	cmds := s.Commands()
	res := HelpResult{Help: make([]HelpEntry, 0, len(cmds))}
	for _, cmd := range cmds {
		entry, err := s.helpEntry(ctx, cmd)
		if err != nil {
			return nil, err
		}
		res.Help = append(res.Help, entry)
	}
	return res, nil
}

func (s *Server) handleCheck(ctx context.Context, call *Call) (any, error) {
	var target string
	err := param.Parse(call,
		param.Required(checkParamName, param.String, &target),
		param.AllowExtra(),
	)
	if err != nil {
		return nil, err
	}

	cmd, ok := s.lookup(target)
	if !ok {
		return nil, fmt.Errorf("%w '%s'", ErrMethodNotFound, target)
	}

	fwd := &Call{method: cmd.Name, id: call.id, checkOnly: true, checker: s.checker}
	if raw := forwardParams(call.Params()); raw != nil {
		tree, err := jsontok.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("forward params: %w", err)
		}
		fwd.params = tree.Root()
	}

	_, err = cmd.Handler(ctx, fwd)
	switch {
	case errors.Is(err, param.ErrCheckOnly):
		return CheckResult{CommandToCheck: cmd.Name}, nil
	case err == nil:
		return nil, &param.Error{
			Kind:    param.KindDeveloper,
			Message: fmt.Sprintf("developer error: %s: %v", cmd.Name, ErrUndeclared),
		}
	}
	return nil, err
}

// forwardParams strips command_to_check from the check builtin's params.
// The remaining positional elements or named members are re-encoded as the
// target command's params.
func forwardParams(params jsontok.Node) []byte {
	var buf bytes.Buffer
	switch params.Kind() {
	case jsontok.KindArray:
		buf.WriteByte('[')
		for i, el := range params.Elements() {
			if i == 0 {
				continue
			}
			if i > 1 {
				buf.WriteByte(',')
			}
			buf.Write(el.Raw())
		}
		buf.WriteByte(']')
	case jsontok.KindObject:
		buf.WriteByte('{')
		first := true
		for _, m := range params.Members() {
			if m.Name() == checkParamName {
				continue
			}
			if !first {
				buf.WriteByte(',')
			}
			first = false
			buf.Write(m.Key.Raw())
			buf.WriteByte(':')
			buf.Write(m.Value.Raw())
		}
		buf.WriteByte('}')
	default:
		return nil
	}
	return buf.Bytes()
}

func (s *Server) handleSchema(ctx context.Context, call *Call) (any, error) {
	var name string
	if err := param.Parse(call, param.Required("command", param.String, &name)); err != nil {
		return nil, err
	}
	return s.Schema(ctx, name)
}
