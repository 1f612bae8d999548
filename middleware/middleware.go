// Package middleware implements the onion-model chain the teacher's
// middleware package used for its RPC business handler, adapted here to
// wrap rpc.Handler's two inbound operations instead of a single
// request/response HandlerFunc.
//
// Onion model execution order:
//
//	Chain(A, B, C)(handler)  →  A(B(C(handler)))
//
//	Request:   A.before → B.before → C.before → handler
//	Response:  handler → C.after → B.after → A.after
package middleware

import "nvimrpc/rpc"

// Middleware wraps a Handler to add a cross-cutting concern (logging,
// recovery, timeouts, rate limiting) without the wrapped Handler having to
// know about it.
type Middleware func(next rpc.Handler) rpc.Handler

// Chain composes middlewares so the first one listed is the outermost layer
// — executed first on the way in, last on the way out — exactly as the
// teacher's middleware.Chain composes HandlerFunc middlewares.
func Chain(mws ...Middleware) Middleware {
	return func(next rpc.Handler) rpc.Handler {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}
