package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"

	"nvimrpc/rpc"
)

// Logging records the method, duration, and any error for each inbound
// request and notification, the way the teacher's LoggingMiddleware records
// ServiceMethod and Duration around the business handler.
func Logging(logger *zap.Logger) Middleware {
	return func(next rpc.Handler) rpc.Handler {
		return &loggingHandler{next: next, logger: logger}
	}
}

type loggingHandler struct {
	next   rpc.Handler
	logger *zap.Logger
}

func (h *loggingHandler) HandleRequest(ctx context.Context, method string, params []any, req rpc.Requester) (any, error) {
	start := time.Now()
	result, err := h.next.HandleRequest(ctx, method, params, req)
	fields := []zap.Field{
		zap.String("method", method),
		zap.Duration("duration", time.Since(start)),
	}
	if err != nil {
		h.logger.Warn("rpc: request handled with error", append(fields, zap.Error(err))...)
	} else {
		h.logger.Debug("rpc: request handled", fields...)
	}
	return result, err
}

func (h *loggingHandler) HandleNotify(ctx context.Context, method string, params []any, req rpc.Requester) {
	start := time.Now()
	h.next.HandleNotify(ctx, method, params, req)
	h.logger.Debug("rpc: notification handled", zap.String("method", method), zap.Duration("duration", time.Since(start)))
}
