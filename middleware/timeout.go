package middleware

import (
	"context"
	"fmt"
	"time"

	"nvimrpc/rpc"
)

// Timeout bounds how long a handler may take, the way the teacher's
// TimeOutMiddleware races the business handler against a context timeout.
// As in the teacher, the handler goroutine is not cancelled on timeout —
// only the caller gives up waiting; a handler that wants true cancellation
// must check ctx.Done() itself.
func Timeout(d time.Duration) Middleware {
	return func(next rpc.Handler) rpc.Handler {
		return &timeoutHandler{next: next, d: d}
	}
}

type timeoutHandler struct {
	next rpc.Handler
	d    time.Duration
}

type requestOutcome struct {
	result any
	err    error
}

func (h *timeoutHandler) HandleRequest(ctx context.Context, method string, params []any, req rpc.Requester) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, h.d)
	defer cancel()

	done := make(chan requestOutcome, 1)
	go func() {
		result, err := h.next.HandleRequest(ctx, method, params, req)
		done <- requestOutcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case <-ctx.Done():
		return nil, fmt.Errorf("nvimrpc: %s timed out after %s", method, h.d)
	}
}

func (h *timeoutHandler) HandleNotify(ctx context.Context, method string, params []any, req rpc.Requester) {
	ctx, cancel := context.WithTimeout(ctx, h.d)
	defer cancel()

	done := make(chan struct{})
	go func() {
		h.next.HandleNotify(ctx, method, params, req)
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}
}
