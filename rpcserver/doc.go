// Package rpcserver dispatches JSON-RPC 2.0 requests to registered commands
// whose parameters are declared with package param.
//
// Every command handler must call param.Parse before doing any work. The
// server relies on that to render usage ("help"), to dry-run a call
// ("check") and to describe a command's params as JSON Schema ("schema")
// without executing it:
//
//	srv := rpcserver.NewServer(rpcserver.WithDeveloperChecks(true))
//	_ = srv.Register(rpcserver.Command{
//	    Name:        "echo",
//	    Description: "Return the message",
//	    Handler: func(ctx context.Context, call *rpcserver.Call) (any, error) {
//	        var msg string
//	        if err := param.Parse(call, param.Required("message", param.String, &msg)); err != nil {
//	            return nil, err
//	        }
//	        return map[string]string{"message": msg}, nil
//	    },
//	})
//	if err := srv.SelfCheck(ctx); err != nil { log.Fatal(err) }
//
// Transports (package stdio, package httprpc) hand raw messages to
// HandleMessage.
package rpcserver
