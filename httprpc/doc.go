// Package httprpc serves JSON-RPC over plain HTTP. It mounts as a standard
// net/http handler: each POST carries one message or batch and the reply is
// the response body.
//
// Responsibilities
//   - Method and media-type negotiation (405, 415, 406)
//   - Request body limits (413)
//   - Per-request connection data for structured logs
//
// Construction
//
//	srv := rpcserver.NewServer()
//	h := httprpc.New(srv, httprpc.WithMaxBodyBytes(1<<20))
//	http.Handle("/rpc", h)
//
// A message made only of notifications gets 204 No Content.
package httprpc
