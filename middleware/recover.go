package middleware

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"nvimrpc/rpc"
)

// Recover turns a handler panic into a proper application-error Response
// instead of relying on Endpoint's silent last-resort backstop (spec.md
// §4.8: "handler panic/abort: contained within its task"). Hosts that want
// the peer to see a real error reply for a panicking request should wrap
// their Handler in this middleware.
func Recover(logger *zap.Logger) Middleware {
	return func(next rpc.Handler) rpc.Handler {
		return &recoverHandler{next: next, logger: logger}
	}
}

type recoverHandler struct {
	next   rpc.Handler
	logger *zap.Logger
}

func (h *recoverHandler) HandleRequest(ctx context.Context, method string, params []any, req rpc.Requester) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("rpc: recovered handler panic", zap.String("method", method), zap.Any("panic", r))
			result, err = nil, fmt.Errorf("nvimrpc: handler panic: %v", r)
		}
	}()
	return h.next.HandleRequest(ctx, method, params, req)
}

func (h *recoverHandler) HandleNotify(ctx context.Context, method string, params []any, req rpc.Requester) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("rpc: recovered handler panic", zap.String("method", method), zap.Any("panic", r))
		}
	}()
	h.next.HandleNotify(ctx, method, params, req)
}
