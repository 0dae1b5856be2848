// Package stdio implements a single-connection JSON-RPC transport over
// stdin/stdout. It is intended for running a command server as a
// subprocess, for local development, and for environments where piping
// JSON is simpler than running an HTTP server.
//
// Characteristics
//
//	Connection model : 1 process <-> 1 client
//	Peer identity    : OS user (logged only)
//	Framing          : one JSON-RPC message or batch per line
//
// Options allow supplying alternate io.Reader / io.Writer or a custom logger.
//
// Example:
//
//	srv := rpcserver.NewServer()
//	_ = srv.Register(invoices.Commands(store)...)
//	h := stdio.NewHandler(srv)
//	if err := h.Serve(context.Background()); err != nil { log.Fatal(err) }
//
// For multiple concurrent clients prefer package httprpc.
package stdio
