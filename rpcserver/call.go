package rpcserver

import (
	"fmt"

	"github.com/ggoodman/rpcparam/internal/jsonrpc"
	"github.com/ggoodman/rpcparam/jsontok"
	"github.com/ggoodman/rpcparam/param"
)

// Call is one invocation of a command. It implements param.Call.
type Call struct {
	method    string
	id        *jsonrpc.RequestID
	params    jsontok.Node
	usageOnly bool
	checkOnly bool
	checker   *param.Checker
	decl      *param.Declaration
}

var _ param.Call = (*Call)(nil)

func newCall(method string, id *jsonrpc.RequestID, rawParams []byte) (*Call, error) {
	c := &Call{method: method, id: id}
	if len(rawParams) == 0 {
		return c, nil
	}
	tree, err := jsontok.Parse(rawParams)
	if err != nil {
		return nil, fmt.Errorf("parse params: %w", err)
	}
	c.params = tree.Root()
	return c, nil
}

func (c *Call) Method() string                  { return c.method }
func (c *Call) ID() *jsonrpc.RequestID          { return c.id }
func (c *Call) Params() jsontok.Node            { return c.params }
func (c *Call) UsageOnly() bool                 { return c.usageOnly }
func (c *Call) CheckOnly() bool                 { return c.checkOnly }
func (c *Call) SetUsage(d *param.Declaration)   { c.decl = d }
func (c *Call) Checker() *param.Checker         { return c.checker }
func (c *Call) Declaration() *param.Declaration { return c.decl }
