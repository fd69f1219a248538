package server

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/carterli0407-cell/line-sampler/pkg/ingest"
	"github.com/carterli0407-cell/line-sampler/pkg/pool"
	"github.com/carterli0407-cell/line-sampler/pkg/protocol"
)

// Backoff bounds between failed accepts.
const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// Options tune per-connection behaviour.
type Options struct {
	// MaxFrameBytes bounds a single request line. Zero means
	// protocol.DefaultMaxFrameBytes.
	MaxFrameBytes int
	// IdleTimeout closes a connection that sends nothing for this long.
	// Zero disables it.
	IdleTimeout time.Duration
	// ReadLines backs loads that name a file. Nil means ingest.ReadLines.
	ReadLines LineReader
}

// Server handles accepting connections and owns the shared pool.
// It's broken out for testing purposes.
type Server struct {
	listener net.Listener
	pool     *pool.LinePool
	dispatch *Dispatcher
	opts     Options

	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool

	conns  map[*clientConn]struct{}
	connsM sync.Mutex
	nextID atomic.Uint64
	wg     sync.WaitGroup

	// Exposed for mocking purposes.
	Clock clock.Clock
}

// New constructs and returns a Server serving lines from p.
func New(listener net.Listener, p *pool.LinePool, clock clock.Clock, opts Options) *Server {
	if opts.MaxFrameBytes <= 0 {
		opts.MaxFrameBytes = protocol.DefaultMaxFrameBytes
	}
	if opts.ReadLines == nil {
		opts.ReadLines = ingest.ReadLines
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		listener: listener,
		pool:     p,
		opts:     opts,

		ctx:    ctx,
		cancel: cancel,

		conns: map[*clientConn]struct{}{},

		Clock: clock,
	}
	s.dispatch = NewDispatcher(p, opts.ReadLines, s.Connections)

	return s
}

// Serve is the main acceptor loop. It returns nil once Close is called.
// Accept failures such as running out of file descriptors are retried
// with a growing delay.
func (s *Server) Serve() error {
	var delay time.Duration
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.closed.Load() {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return errors.Wrap(err, "accept")
			}

			delay *= 2
			if delay == 0 {
				delay = minAcceptDelay
			}
			if delay > maxAcceptDelay {
				delay = maxAcceptDelay
			}
			glog.Errorf("couldn't accept connection: %v; retrying in %v", err, delay)

			select {
			case <-s.ctx.Done():
				return nil
			case <-s.Clock.After(delay):
			}
			continue
		}
		delay = 0

		c := s.track(conn)
		if c == nil {
			conn.Close()
			continue
		}

		go s.handle(c)
	}
}

// Close stops accepting, drops every open connection and waits for their
// handlers to return. Pool operations already under way complete first.
func (s *Server) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.cancel()
	err := s.listener.Close()

	s.connsM.Lock()
	for c := range s.conns {
		c.Close()
	}
	s.connsM.Unlock()

	s.wg.Wait()
	return err
}

// Pool returns the pool shared by every connection.
func (s *Server) Pool() *pool.LinePool {
	return s.pool
}

// Connections returns the number of open client connections.
func (s *Server) Connections() int {
	s.connsM.Lock()
	defer s.connsM.Unlock()

	return len(s.conns)
}

// Stats returns pool counters plus the open connection count.
func (s *Server) Stats() protocol.Stats {
	return s.dispatch.stats()
}

// track registers a new connection, or returns nil if the server is
// shutting down.
func (s *Server) track(conn net.Conn) *clientConn {
	s.connsM.Lock()
	defer s.connsM.Unlock()

	if s.closed.Load() {
		return nil
	}

	c := &clientConn{
		Conn:      conn,
		id:        s.nextID.Add(1),
		connected: s.Clock.Now(),
	}
	s.conns[c] = struct{}{}
	s.wg.Add(1)

	return c
}

func (s *Server) untrack(c *clientConn) {
	s.connsM.Lock()
	defer s.connsM.Unlock()

	delete(s.conns, c)
}
