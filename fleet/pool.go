package fleet

import (
	"fmt"
	"sync"

	"nvimrpc"
	"nvimrpc/rpc"
)

// ConnectionPool reuses already-dialed *nvimrpc.Connections for one fleet
// address, the way the teacher's transport.ConnPool reuses raw net.Conns —
// adapted here to pool whole Connections (each already internally
// multiplexed by its own rpc.Endpoint) rather than bare sockets, since a
// fleet host typically wants exclusive use of one Nvim instance per task
// (isolating a test run, say) rather than sharing one multiplexed stream
// across every task the way a single-instance caller would.
//
// Design unchanged from the teacher: a buffered channel as the pool itself
// (concurrency-safe, blocking-on-empty built in), connections created
// lazily up to maxConns.
type ConnectionPool struct {
	mu       sync.Mutex
	conns    chan *PooledConnection
	addr     string
	maxConns int
	curConns int
	dial     func() (rpc.Requester, *nvimrpc.Connection, error)
}

// PooledConnection wraps a Requester/Connection pair with pool bookkeeping.
type PooledConnection struct {
	Requester rpc.Requester
	Conn      *nvimrpc.Connection

	pool     *ConnectionPool
	unusable bool
}

// NewConnectionPool creates a pool of at most maxConns connections to addr,
// dialed on demand via dial (typically a closure over nvimrpc.Dial or
// nvimrpc.NewChildProcess bound to a specific fleet.Instance).
func NewConnectionPool(addr string, maxConns int, dial func() (rpc.Requester, *nvimrpc.Connection, error)) *ConnectionPool {
	return &ConnectionPool{
		conns:    make(chan *PooledConnection, maxConns),
		addr:     addr,
		maxConns: maxConns,
		dial:     dial,
	}
}

// Get retrieves a connection from the pool, dialing a new one if the pool
// is empty and under capacity, or blocking until one is returned if it's
// empty and at capacity.
func (p *ConnectionPool) Get() (*PooledConnection, error) {
	select {
	case pc := <-p.conns:
		if pc.unusable {
			return p.createNew()
		}
		return pc, nil
	default:
		p.mu.Lock()
		under := p.curConns < p.maxConns
		p.mu.Unlock()
		if under {
			return p.createNew()
		}
		pc := <-p.conns
		if pc.unusable {
			return p.createNew()
		}
		return pc, nil
	}
}

// Put returns pc to the pool, or discards it (and its Connection) if it was
// marked unusable.
func (p *ConnectionPool) Put(pc *PooledConnection) {
	if pc.unusable {
		pc.Conn.Close()
		p.mu.Lock()
		p.curConns--
		p.mu.Unlock()
		return
	}
	p.conns <- pc
}

// MarkUnusable flags pc so the next Put discards it instead of recycling
// it — call this after observing a transport failure on pc's Requester.
func (pc *PooledConnection) MarkUnusable() {
	pc.unusable = true
}

// Close shuts down the pool, closing every connection currently checked in.
// Connections on loan (not yet Put back) are not affected.
func (p *ConnectionPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	close(p.conns)
	for pc := range p.conns {
		pc.Conn.Close()
		p.curConns--
	}
	return nil
}

func (p *ConnectionPool) createNew() (*PooledConnection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.curConns >= p.maxConns {
		return nil, fmt.Errorf("fleet: connection pool for %s exhausted", p.addr)
	}

	req, conn, err := p.dial()
	if err != nil {
		return nil, fmt.Errorf("fleet: dial %s: %w", p.addr, err)
	}
	go conn.Serve()

	p.curConns++
	return &PooledConnection{Requester: req, Conn: conn, pool: p}, nil
}
