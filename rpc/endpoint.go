package rpc

import (
	"context"
	"io"

	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

// Endpoint is the long-running I/O loop (spec.md §2 component 5, §4.5): it
// owns the read half exclusively, decodes frames one at a time, and routes
// each to the pending-call table (responses) or to the Handler (requests
// and notifications). It never blocks on user work — every dispatch to
// Handler runs on its own goroutine.
type Endpoint struct {
	dec     *msgpack.Decoder
	req     Requester
	handler Handler
	logger  *zap.Logger
}

// NewEndpoint builds the Requester/Endpoint pair for a duplex stream, per
// spec.md §4.6's connection factory contract. The caller must schedule
// Endpoint.Serve (e.g. `go ep.Serve()`) before any response can be
// delivered — issuing a Call before that is safe, just unresolved until the
// loop runs.
func NewEndpoint(rw io.ReadWriter, handler Handler, logger *zap.Logger) (Requester, *Endpoint) {
	if handler == nil {
		handler = DefaultHandler{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	req := newRequester(newFrameWriter(rw), logger)
	ep := &Endpoint{
		dec:     msgpack.NewDecoder(rw),
		req:     req,
		handler: handler,
		logger:  logger,
	}
	return req, ep
}

// Serve runs the decode-dispatch loop until a decode or read error occurs,
// then fans out a TransportError to every pending call and returns the
// error that ended the loop. It never returns nil — end-of-stream surfaces
// as io.EOF.
func (ep *Endpoint) Serve() error {
	for {
		frame, err := Decode(ep.dec)
		if err != nil {
			ep.terminate(err)
			return err
		}

		switch frame.Kind {
		case KindResponse:
			ep.dispatchResponse(frame)
		case KindRequest:
			go ep.dispatchRequest(frame)
		case KindNotification:
			go ep.dispatchNotification(frame)
		default:
			ep.logger.Warn("rpc: dropping frame of unknown kind", zap.Uint64("kind", uint64(frame.Kind)))
		}
	}
}

func (ep *Endpoint) terminate(cause error) {
	ep.req.term.markDone(&TransportError{Cause: cause})
	for _, ch := range ep.req.pending.drain() {
		ch := ch
		go func() {
			ch <- callResult{err: &TransportError{Cause: cause}}
		}()
	}
}

func (ep *Endpoint) dispatchResponse(frame *Frame) {
	ch, ok := ep.req.pending.take(frame.ID)
	if !ok {
		ep.logger.Warn("rpc: response for unknown id, dropping", zap.Uint64("id", frame.ID))
		return
	}
	// Spawned so a slow consumer (or one that already gave up) never stalls
	// the read path — ch is buffered, but spec.md §4.5 calls for a short
	// task regardless.
	go func() {
		if frame.IsErrorNil() {
			ch <- callResult{result: frame.Result}
		} else {
			ch <- callResult{err: &ApplicationError{Value: frame.Error}}
		}
	}()
}

func (ep *Endpoint) dispatchRequest(frame *Frame) {
	defer ep.recoverPanic("request", frame.Method)

	ctx := context.Background()
	result, err := ep.handler.HandleRequest(ctx, frame.Method, frame.Params, ep.req.Clone())

	var reply *Frame
	if err != nil {
		reply = NewErrorFrame(frame.ID, err.Error())
	} else {
		reply = NewSuccessFrame(frame.ID, result)
	}

	if err := ep.req.w.write(reply); err != nil {
		ep.logger.Error("rpc: failed to write response", zap.String("method", frame.Method), zap.Error(err))
	}
}

func (ep *Endpoint) dispatchNotification(frame *Frame) {
	defer ep.recoverPanic("notification", frame.Method)
	ep.handler.HandleNotify(context.Background(), frame.Method, frame.Params, ep.req.Clone())
}

// recoverPanic is the loop's last-resort safety net: a handler that panics
// is contained to its own task and never reaches the I/O loop, per
// spec.md §4.8. Hosts that want the panic turned into a proper application
// error response (rather than silently dropped) should wrap their Handler
// in middleware.Recover instead of relying on this backstop.
func (ep *Endpoint) recoverPanic(kind, method string) {
	if r := recover(); r != nil {
		ep.logger.Error("rpc: handler panic contained", zap.String("kind", kind), zap.String("method", method), zap.Any("panic", r))
	}
}
