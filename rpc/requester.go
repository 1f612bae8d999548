package rpc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

// frameWriter serializes Frame writes onto a shared io.Writer. One encode
// (header + body) plus the flush that follows it is the entire critical
// section held under mu — mirroring the teacher's per-connection write
// mutex, which is held only across a single frame emission.
type frameWriter struct {
	mu  sync.Mutex
	bw  *bufio.Writer
	enc *msgpack.Encoder
}

func newFrameWriter(w io.Writer) *frameWriter {
	bw := bufio.NewWriter(w)
	return &frameWriter{bw: bw, enc: msgpack.NewEncoder(bw)}
}

func (fw *frameWriter) write(f *Frame) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if err := Encode(fw.enc, f); err != nil {
		return err
	}
	return fw.bw.Flush()
}

// terminalState records whether the I/O loop has observed a fatal error.
// Once set it never clears — Terminated is absorbing (spec.md §4.7).
type terminalState struct {
	done atomic.Bool
	err  atomic.Pointer[error]
}

func (t *terminalState) markDone(err error) {
	if t.done.CompareAndSwap(false, true) {
		t.err.Store(&err)
	}
}

func (t *terminalState) check() (error, bool) {
	if !t.done.Load() {
		return nil, false
	}
	if p := t.err.Load(); p != nil {
		return *p, true
	}
	return nil, true
}

// Requester is the caller-facing handle for issuing outbound calls and
// notifications. It is cheap to duplicate: every field is a pointer or an
// atomic, so Clone shares the underlying write half, pending-call table, and
// identifier counter with the Requester it was cloned from — exactly the
// "cyclic ownership" resolution spec.md §9 describes.
type Requester struct {
	w       *frameWriter
	pending *pendingTable
	seq     *atomic.Uint64
	term    *terminalState
	logger  *zap.Logger
}

func newRequester(w *frameWriter, logger *zap.Logger) Requester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return Requester{
		w:       w,
		pending: newPendingTable(),
		seq:     new(atomic.Uint64),
		term:    &terminalState{},
		logger:  logger,
	}
}

// Clone returns a duplicate Requester sharing all state with r. Clones are
// safe to hand to independent goroutines, including handler tasks invoked
// reentrantly from within the I/O loop.
func (r Requester) Clone() Requester {
	return r
}

// Call assigns the next identifier, registers a pending entry, writes a
// Request frame, and blocks until a correlated Response arrives, ctx is
// done, or the connection terminates.
//
// On a success response it returns the decoded result. On an application
// error response it returns a non-nil *ApplicationError. If the connection
// has already terminated (or terminates while this call is outstanding), it
// returns a *TransportError.
func (r Requester) Call(ctx context.Context, method string, params ...any) (any, error) {
	if err, done := r.term.check(); done {
		return nil, terminalOrDefault(err)
	}

	id := r.seq.Add(1) - 1
	ch := make(chan callResult, 1)
	r.pending.insert(id, ch)

	if err := r.w.write(NewRequestFrame(id, method, params)); err != nil {
		r.pending.take(id)
		return nil, fmt.Errorf("nvimrpc: write request %s: %w", method, err)
	}

	select {
	case res := <-ch:
		return res.result, res.err
	case <-ctx.Done():
		// Best-effort pruning per spec.md §9's open question: if the
		// response arrives after this point it simply finds no entry and
		// is logged and dropped, never a panic.
		r.pending.prune(id)
		return nil, ctx.Err()
	}
}

// Notify writes a Notification frame and returns. It never touches the
// pending-call table and never blocks on a reply — there isn't one.
func (r Requester) Notify(ctx context.Context, method string, params ...any) error {
	if err, done := r.term.check(); done {
		return terminalOrDefault(err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := r.w.write(NewNotificationFrame(method, params)); err != nil {
		return fmt.Errorf("nvimrpc: write notification %s: %w", method, err)
	}
	return nil
}

func terminalOrDefault(err error) error {
	if err != nil {
		return err
	}
	return &TransportError{Cause: errors.New("connection closed")}
}
