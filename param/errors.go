package param

import (
	"errors"
	"fmt"

	"github.com/ggoodman/rpcparam/internal/jsonrpc"
	"github.com/ggoodman/rpcparam/jsontok"
)

// Kind classifies a binding failure.
type Kind int

const (
	// KindInvalidParams is the caller's fault: wrong shape, unknown,
	// duplicate, missing or undecodable parameters.
	KindInvalidParams Kind = iota + 1
	// KindDeveloper is a malformed declaration on the server side.
	KindDeveloper
)

func (k Kind) String() string {
	switch k {
	case KindInvalidParams:
		return "invalid_params"
	case KindDeveloper:
		return "developer"
	default:
		return "unknown"
	}
}

var (
	// ErrUsageOnly is returned by Parse when the call only asked for usage.
	// The usage has been recorded on the call; the command must not run.
	ErrUsageOnly = errors.New("param: usage only")
	// ErrCheckOnly is returned by Parse when every parameter bound but the
	// call is a dry run.
	ErrCheckOnly = errors.New("param: check only")
)

// Error is a parameter binding failure. Exactly one is produced per failed
// call.
type Error struct {
	Kind    Kind
	Param   string // offending parameter name, when there is one
	Message string
}

func (e *Error) Error() string { return e.Message }

// Code maps the failure onto a JSON-RPC error code.
func (e *Error) Code() jsonrpc.ErrorCode {
	if e.Kind == KindDeveloper {
		return jsonrpc.ErrorCodeParamDev
	}
	return jsonrpc.ErrorCodeInvalidParams
}

// Errorf builds a caller-facing invalid-params error for the named
// parameter. Decoders use it to report type and value errors.
func Errorf(name string, format string, args ...any) *Error {
	return &Error{Kind: KindInvalidParams, Param: name, Message: fmt.Sprintf(format, args...)}
}

// ShouldBe reports that the value of name is not what was expected, echoing
// the offending input:
//
//	'amount' should be a millisatoshi amount, not 'abc'
func ShouldBe(name string, n jsontok.Node, what string) *Error {
	return Errorf(name, "'%s' should be %s, not '%s'", name, what, n.Inner())
}

// AsError extracts a *Error from err.
func AsError(err error) (*Error, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

func developerError(name string, format string, args ...any) *Error {
	return &Error{
		Kind:    KindDeveloper,
		Param:   name,
		Message: "developer error: " + fmt.Sprintf(format, args...),
	}
}
