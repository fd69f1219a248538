// Package client talks to a line-sampler server over its Unix socket.
package client

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/carterli0407-cell/line-sampler/pkg/protocol"
)

// DefaultMaxResponseBytes bounds a single response line. Samples can be far
// larger than any request, so this is looser than the server's frame limit.
const DefaultMaxResponseBytes = 256 * 1024 * 1024

// ErrClosed is returned by calls on a closed or broken Client.
var ErrClosed = errors.New("client closed")

// Client is one connection to the server. Calls are serialized; a Client is
// safe for concurrent use but concurrent callers wait on each other.
type Client struct {
	conn net.Conn
	dec  *protocol.Decoder
	enc  *protocol.Encoder

	m      sync.Mutex
	broken error
}

// Dial connects to the server listening on path.
func Dial(ctx context.Context, path string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, errors.Wrapf(err, "connecting to %s", path)
	}

	return New(conn), nil
}

// New wraps an established connection.
func New(conn net.Conn) *Client {
	return &Client{
		conn: conn,
		dec:  protocol.NewDecoder(conn, DefaultMaxResponseBytes),
		enc:  protocol.NewEncoder(conn),
	}
}

// Close closes the connection.
func (c *Client) Close() error {
	c.m.Lock()
	defer c.m.Unlock()

	if c.broken == nil {
		c.broken = ErrClosed
	}
	return c.conn.Close()
}

// Do sends req and waits for its response. A failed response is returned as
// an error carrying the server's code. Once the stream can no longer be
// trusted (I/O failure, protocol error, cancelled ctx) every later call
// fails.
func (c *Client) Do(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	c.m.Lock()
	defer c.m.Unlock()

	if c.broken != nil {
		return protocol.Response{}, c.broken
	}

	if err := c.conn.SetDeadline(time.Time{}); err != nil {
		c.broken = protocol.TransportError(err, "set deadline")
		return protocol.Response{}, c.broken
	}

	// unblock the round trip once ctx is done. ctx.Err is always set by
	// the time the callback runs, so a failure it causes reports ctx.
	fired := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		defer close(fired)
		c.conn.SetDeadline(time.Unix(1, 0))
	})
	defer func() {
		if !stop() {
			// the callback started; let it finish before the next call
			// resets the deadline
			<-fired
		}
	}()

	resp, err := c.roundTrip(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = errors.Wrap(ctxErr, req.Op)
		}
		c.broken = err
		c.conn.Close()
		return protocol.Response{}, err
	}

	if err := protocol.RemoteError(resp); err != nil {
		if protocol.ClosesConnection(err) {
			c.broken = err
			c.conn.Close()
		}
		return resp, err
	}
	return resp, nil
}

func (c *Client) roundTrip(req protocol.Request) (protocol.Response, error) {
	if err := c.enc.Encode(req); err != nil {
		return protocol.Response{}, err
	}

	var resp protocol.Response
	if err := c.dec.Decode(&resp); err != nil {
		return protocol.Response{}, err
	}
	return resp, nil
}

// Load appends lines to the pool and returns the new pool size.
func (c *Client) Load(ctx context.Context, lines []string) (int, error) {
	if lines == nil {
		lines = []string{}
	}

	resp, err := c.Do(ctx, protocol.Request{Op: protocol.OpLoad, Lines: lines})
	if err != nil {
		return 0, err
	}
	if resp.Total == nil {
		return 0, errors.New("load response missing total")
	}
	return *resp.Total, nil
}

// LoadFile asks the server to read path and append its lines. It returns
// the new pool size and the number of lines read. path is resolved on the
// server, so it should be absolute.
func (c *Client) LoadFile(ctx context.Context, path string) (total, loaded int, err error) {
	resp, err := c.Do(ctx, protocol.Request{Op: protocol.OpLoad, Path: path})
	if err != nil {
		return 0, 0, err
	}
	if resp.Total == nil || resp.Loaded == nil {
		return 0, 0, errors.New("load response missing counts")
	}
	return *resp.Total, *resp.Loaded, nil
}

// Sample removes up to k lines from the pool and returns them.
func (c *Client) Sample(ctx context.Context, k int) ([]string, error) {
	resp, err := c.Do(ctx, protocol.Request{Op: protocol.OpSample, K: &k})
	if err != nil {
		return nil, err
	}
	if resp.Lines == nil {
		return []string{}, nil
	}
	return resp.Lines, nil
}

// Stats returns the server's counters.
func (c *Client) Stats(ctx context.Context) (protocol.Stats, error) {
	resp, err := c.Do(ctx, protocol.Request{Op: protocol.OpStats})
	if err != nil {
		return protocol.Stats{}, err
	}
	if resp.Stats == nil {
		return protocol.Stats{}, errors.New("stats response missing stats")
	}
	return *resp.Stats, nil
}
