package rpcserver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ggoodman/rpcparam/internal/jsonrpc"
	"github.com/ggoodman/rpcparam/param"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// payCommand declares "amount label [note]" and echoes what was bound.
func payCommand() Command {
	return Command{
		Name:        "pay",
		Category:    "payment",
		Description: "Pay {amount} to {label}.",
		Handler: func(ctx context.Context, call *Call) (any, error) {
			var amount param.Msat
			var label string
			var note *string
			err := param.Parse(call,
				param.Required("amount", param.Amount, &amount),
				param.Required("label", param.Label, &label),
				param.Optional("note", param.String, &note),
			)
			if err != nil {
				return nil, err
			}
			res := map[string]any{"amount_msat": uint64(amount), "label": label}
			if note != nil {
				res["note"] = *note
			}
			return res, nil
		},
	}
}

// brokenCommand declares a required parameter after an optional one.
func brokenCommand() Command {
	return Command{
		Name: "broken",
		Handler: func(ctx context.Context, call *Call) (any, error) {
			var a *string
			var b string
			err := param.Parse(call,
				param.Optional("a", param.String, &a),
				param.Required("b", param.String, &b),
			)
			if err != nil {
				return nil, err
			}
			return nil, nil
		},
	}
}

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	srv := NewServer(append([]Option{WithLogger(quietLogger())}, opts...)...)
	require.NoError(t, srv.Register(payCommand()))
	return srv
}

func call(t *testing.T, srv *Server, msg string) *jsonrpc.Response {
	t.Helper()
	out := srv.HandleMessage(context.Background(), []byte(msg))
	require.NotNil(t, out, "expected a response to %s", msg)
	var resp jsonrpc.Response
	require.NoError(t, json.Unmarshal(out, &resp))
	return &resp
}

func result(t *testing.T, resp *jsonrpc.Response) map[string]any {
	t.Helper()
	require.Nil(t, resp.Error, "unexpected error: %+v", resp.Error)
	var out map[string]any
	require.NoError(t, json.Unmarshal(resp.Result, &out))
	return out
}

func TestHandlePositionalAndNamed(t *testing.T) {
	srv := newTestServer(t)

	res := result(t, call(t, srv, `{"jsonrpc":"2.0","id":1,"method":"pay","params":[1000,"coffee"]}`))
	assert.EqualValues(t, 1000, res["amount_msat"])
	assert.Equal(t, "coffee", res["label"])
	assert.NotContains(t, res, "note")

	resp := call(t, srv, `{"jsonrpc":"2.0","id":"x","method":"pay","params":{"label":"tea","amount":"5msat","note":"hot"}}`)
	res = result(t, resp)
	assert.EqualValues(t, 5, res["amount_msat"])
	assert.Equal(t, "hot", res["note"])
	assert.Equal(t, "x", resp.ID.String())
}

func TestHandleInvalidParams(t *testing.T) {
	srv := newTestServer(t)

	for _, tc := range []struct {
		msg  string
		want string
	}{
		{`{"jsonrpc":"2.0","id":1,"method":"pay","params":[1000]}`, "missing required parameter: 'label'"},
		{`{"jsonrpc":"2.0","id":1,"method":"pay"}`, "missing required parameter: 'amount'"},
		{`{"jsonrpc":"2.0","id":1,"method":"pay","params":[1,"a","b","c"]}`, "too many parameters: got 4, expected 3"},
		{`{"jsonrpc":"2.0","id":1,"method":"pay","params":{"amount":1,"lbl":"a"}}`, "unknown parameter: 'lbl'"},
		{`{"jsonrpc":"2.0","id":1,"method":"pay","params":["abc","a"]}`, "'amount' should be a millisatoshi amount, not 'abc'"},
		{`{"jsonrpc":"2.0","id":1,"method":"pay","params":"oops"}`, "Expected array or object for params"},
	} {
		resp := call(t, srv, tc.msg)
		require.NotNil(t, resp.Error, tc.msg)
		assert.Equal(t, jsonrpc.ErrorCodeInvalidParams, resp.Error.Code, tc.msg)
		assert.Equal(t, tc.want, resp.Error.Message, tc.msg)
	}
}

func TestHandleProtocolErrors(t *testing.T) {
	srv := newTestServer(t)

	resp := call(t, srv, `{"jsonrpc":"2.0","id":1,"method":"nope"}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.ErrorCodeMethodNotFound, resp.Error.Code)
	assert.Equal(t, "Unknown command 'nope'", resp.Error.Message)

	resp = call(t, srv, `{"jsonrpc":"2.0","id":1,`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.ErrorCodeParseError, resp.Error.Code)
	assert.True(t, resp.ID.IsNil())

	resp = call(t, srv, `{"jsonrpc":"1.0","id":1,"method":"pay"}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.ErrorCodeInvalidRequest, resp.Error.Code)

	resp = call(t, srv, `[]`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.ErrorCodeInvalidRequest, resp.Error.Code)
}

func TestNotificationsGetNoResponse(t *testing.T) {
	srv := newTestServer(t)
	assert.Nil(t, srv.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","method":"pay","params":[1,"a"]}`)))
	assert.Nil(t, srv.HandleMessage(context.Background(), []byte(`[{"jsonrpc":"2.0","method":"pay","params":[1,"a"]}]`)))
}

func TestBatch(t *testing.T) {
	srv := newTestServer(t)
	out := srv.HandleMessage(context.Background(), []byte(`[
		{"jsonrpc":"2.0","id":1,"method":"pay","params":[1,"a"]},
		{"jsonrpc":"2.0","method":"pay","params":[2,"b"]},
		{"jsonrpc":"2.0","id":2,"method":"pay","params":[]}
	]`))
	require.NotNil(t, out)

	var resps []jsonrpc.Response
	require.NoError(t, json.Unmarshal(out, &resps))
	require.Len(t, resps, 2)
	assert.Nil(t, resps[0].Error)
	assert.Equal(t, "1", resps[0].ID.String())
	require.NotNil(t, resps[1].Error)
	assert.Equal(t, jsonrpc.ErrorCodeInvalidParams, resps[1].Error.Code)
}

func TestHelp(t *testing.T) {
	srv := newTestServer(t)

	var help HelpResult
	resp := call(t, srv, `{"jsonrpc":"2.0","id":1,"method":"help","params":["pay"]}`)
	require.Nil(t, resp.Error)
	require.NoError(t, json.Unmarshal(resp.Result, &help))
	require.Len(t, help.Help, 1)
	assert.Equal(t, "pay amount label [note]", help.Help[0].Command)
	assert.Equal(t, "payment", help.Help[0].Category)

	resp = call(t, srv, `{"jsonrpc":"2.0","id":1,"method":"help"}`)
	require.Nil(t, resp.Error)
	help = HelpResult{}
	require.NoError(t, json.Unmarshal(resp.Result, &help))
	var lines []string
	for _, h := range help.Help {
		lines = append(lines, h.Command)
	}
	assert.Equal(t, []string{"help [command]", "check command_to_check", "schema command", "pay amount label [note]"}, lines)

	resp = call(t, srv, `{"jsonrpc":"2.0","id":1,"method":"help","params":{"command":"nope"}}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.ErrorCodeMethodNotFound, resp.Error.Code)
}

func TestCheck(t *testing.T) {
	srv := newTestServer(t)
	executed := false
	require.NoError(t, srv.Register(Command{
		Name: "spend",
		Handler: func(ctx context.Context, call *Call) (any, error) {
			var amount param.Msat
			if err := param.Parse(call, param.Required("amount", param.Amount, &amount)); err != nil {
				return nil, err
			}
			executed = true
			return nil, nil
		},
	}))

	res := result(t, call(t, srv, `{"jsonrpc":"2.0","id":1,"method":"check","params":["spend",1000]}`))
	assert.Equal(t, "spend", res["command_to_check"])
	assert.False(t, executed)

	res = result(t, call(t, srv, `{"jsonrpc":"2.0","id":1,"method":"check","params":{"command_to_check":"pay","amount":1,"label":"x"}}`))
	assert.Equal(t, "pay", res["command_to_check"])

	resp := call(t, srv, `{"jsonrpc":"2.0","id":1,"method":"check","params":{"command_to_check":"pay","amount":1}}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.ErrorCodeInvalidParams, resp.Error.Code)
	assert.Equal(t, "missing required parameter: 'label'", resp.Error.Message)

	resp = call(t, srv, `{"jsonrpc":"2.0","id":1,"method":"check","params":["nope"]}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.ErrorCodeMethodNotFound, resp.Error.Code)

	assert.False(t, executed)
}

func TestCheckUndeclaredCommand(t *testing.T) {
	srv := newTestServer(t)
	require.NoError(t, srv.Register(Command{
		Name:    "lazy",
		Handler: func(ctx context.Context, call *Call) (any, error) { return "done", nil },
	}))

	resp := call(t, srv, `{"jsonrpc":"2.0","id":1,"method":"check","params":["lazy"]}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.ErrorCodeParamDev, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, ErrUndeclared.Error())

	_, err := srv.Usage(context.Background(), "lazy")
	assert.ErrorContains(t, err, ErrUndeclared.Error())
}

func TestSchemaBuiltin(t *testing.T) {
	srv := newTestServer(t)
	res := result(t, call(t, srv, `{"jsonrpc":"2.0","id":1,"method":"schema","params":["pay"]}`))
	assert.Equal(t, "pay", res["title"])
	assert.Equal(t, "object", res["type"])
	assert.ElementsMatch(t, []any{"amount", "label"}, res["required"])
	props, ok := res["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "note")
}

func TestDeveloperChecks(t *testing.T) {
	srv := newTestServer(t)
	require.NoError(t, srv.Register(brokenCommand()))

	// Without developer checks the malformed declaration still binds.
	resp := call(t, srv, `{"jsonrpc":"2.0","id":1,"method":"broken","params":[null,"b"]}`)
	assert.Nil(t, resp.Error)

	srv.SetDeveloperChecks(true)
	assert.True(t, srv.DeveloperChecks())
	resp = call(t, srv, `{"jsonrpc":"2.0","id":1,"method":"broken","params":[null,"b"]}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.ErrorCodeParamDev, resp.Error.Code)
	assert.Equal(t, "developer error: check_params: required parameter 'b' follows optional parameter 'a'", resp.Error.Message)

	checked, err := srv.checker.Checked("broken")
	assert.True(t, checked)
	assert.Error(t, err)
}

func TestSelfCheck(t *testing.T) {
	srv := newTestServer(t)
	require.NoError(t, srv.SelfCheck(context.Background()))

	require.NoError(t, srv.Register(brokenCommand()))
	err := srv.SelfCheck(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "broken: developer error: check_params")
	pe, ok := param.AsError(err)
	require.True(t, ok)
	assert.Equal(t, param.KindDeveloper, pe.Kind)
}

func TestRegister(t *testing.T) {
	srv := newTestServer(t)
	err := srv.Register(payCommand())
	assert.True(t, errors.Is(err, ErrDuplicateCommand))
	assert.Error(t, srv.Register(Command{Name: "nohandler"}))
	assert.Len(t, srv.Commands(), 4)
}

func TestHandlerErrors(t *testing.T) {
	srv := newTestServer(t)
	require.NoError(t, srv.Register(
		Command{Name: "fail", Handler: func(ctx context.Context, call *Call) (any, error) {
			if err := param.Parse(call); err != nil {
				return nil, err
			}
			return nil, errors.New("boom")
		}},
		Command{Name: "rpcfail", Handler: func(ctx context.Context, call *Call) (any, error) {
			if err := param.Parse(call); err != nil {
				return nil, err
			}
			return nil, &jsonrpc.Error{Code: 402, Message: "insufficient funds"}
		}},
	))

	resp := call(t, srv, `{"jsonrpc":"2.0","id":1,"method":"fail"}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.ErrorCodeInternalError, resp.Error.Code)
	assert.Equal(t, "boom", resp.Error.Message)

	resp = call(t, srv, `{"jsonrpc":"2.0","id":1,"method":"rpcfail"}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.ErrorCode(402), resp.Error.Code)

	resp = call(t, srv, `{"jsonrpc":"2.0","id":1,"method":"fail","params":[1]}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "too many parameters: got 1, expected 0", resp.Error.Message)
}
