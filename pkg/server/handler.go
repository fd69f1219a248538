package server

import (
	"io"
	"net"
	"time"

	"github.com/golang/glog"

	"github.com/carterli0407-cell/line-sampler/pkg/protocol"
)

type clientConn struct {
	net.Conn

	id        uint64
	connected time.Time
}

// handle runs one connection: read a command, dispatch it, write the
// response, repeat. It returns when the client goes away, sends something
// undecodable, or a write fails. None of those touch the pool or any other
// connection.
func (s *Server) handle(conn *clientConn) {
	defer s.wg.Done()
	defer s.untrack(conn)
	defer conn.Close()

	glog.V(1).Infof("client %d connected", conn.id)

	dec := protocol.NewDecoder(conn, s.opts.MaxFrameBytes)
	enc := protocol.NewEncoder(conn)

	for {
		if s.opts.IdleTimeout > 0 {
			// deadlines are wall-clock, so this can't use s.Clock
			if err := conn.SetReadDeadline(time.Now().Add(s.opts.IdleTimeout)); err != nil {
				glog.V(1).Infof("client %d: couldn't set idle deadline: %v", conn.id, err)
				break
			}
		}

		var req protocol.Request
		err := dec.Decode(&req)
		if err == io.EOF {
			break
		}
		if err != nil {
			if protocol.CodeOf(err) == protocol.CodeProtocol {
				glog.Errorf("bad frame from client %d: %v", conn.id, err)
				enc.Encode(protocol.Fail(err))
			} else if !s.closed.Load() {
				glog.Errorf("reading from client %d: %v", conn.id, err)
			}
			break
		}

		resp := s.dispatch.Handle(s.ctx, req)
		if err := enc.Encode(resp); err != nil {
			glog.Errorf("writing to client %d: %v", conn.id, err)
			break
		}

		if !resp.OK && resp.Code == protocol.CodeProtocol {
			break
		}
	}

	glog.V(1).Infof("client %d disconnected after %v", conn.id, s.Clock.Since(conn.connected))
}
