package middleware

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"nvimrpc/rpc"
)

// RateLimit rejects inbound requests (and drops inbound notifications) over
// a token-bucket rate, exactly the teacher's RateLimitMiddleware algorithm
// applied to the inbound direction instead of the outbound one. The limiter
// is created once, in the outer closure, and shared across every inbound
// frame — a fresh limiter per call would defeat the point.
//
// Requests over the limit get an application error reply, since a Response
// is always expected. Notifications over the limit have nowhere to carry an
// error, so they are dropped and logged instead of blocked — blocking here
// would stall the I/O loop's per-notification goroutine indefinitely under
// sustained overload, which spec.md's "never blocks on user work" posture
// for the loop rules out.
func RateLimit(r float64, burst int, logger *zap.Logger) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next rpc.Handler) rpc.Handler {
		return &rateLimitHandler{next: next, limiter: limiter, logger: logger}
	}
}

type rateLimitHandler struct {
	next    rpc.Handler
	limiter *rate.Limiter
	logger  *zap.Logger
}

func (h *rateLimitHandler) HandleRequest(ctx context.Context, method string, params []any, req rpc.Requester) (any, error) {
	if !h.limiter.Allow() {
		return nil, fmt.Errorf("nvimrpc: rate limit exceeded for %s", method)
	}
	return h.next.HandleRequest(ctx, method, params, req)
}

func (h *rateLimitHandler) HandleNotify(ctx context.Context, method string, params []any, req rpc.Requester) {
	if !h.limiter.Allow() {
		h.logger.Warn("rpc: dropping notification over rate limit", zap.String("method", method))
		return
	}
	h.next.HandleNotify(ctx, method, params, req)
}
