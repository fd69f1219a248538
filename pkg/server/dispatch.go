package server

import (
	"context"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/carterli0407-cell/line-sampler/pkg/pool"
	"github.com/carterli0407-cell/line-sampler/pkg/protocol"
)

// LineReader reads the lines of a file named by a load request.
type LineReader func(ctx context.Context, path string) ([]string, error)

type handlerFunc func(context.Context, protocol.Request) (protocol.Response, error)

// Dispatcher maps decoded requests onto the pool. It keeps no state of its
// own, so one Dispatcher serves every connection.
type Dispatcher struct {
	pool        *pool.LinePool
	readLines   LineReader
	connections func() int
}

// NewDispatcher returns a Dispatcher over p. connections may be nil.
func NewDispatcher(p *pool.LinePool, readLines LineReader, connections func() int) *Dispatcher {
	return &Dispatcher{
		pool:        p,
		readLines:   readLines,
		connections: connections,
	}
}

// Handle executes req and returns the response to send. Failures become
// error responses; Handle never panics.
func (d *Dispatcher) Handle(ctx context.Context, req protocol.Request) (resp protocol.Response) {
	var fn handlerFunc
	switch req.Op {
	case protocol.OpLoad:
		fn = d.handleLoad
	case protocol.OpSample:
		fn = d.handleSample
	case protocol.OpStats:
		fn = d.handleStats
	default:
		glog.Errorf("no op %q known", req.Op)
		return protocol.Fail(protocol.ProtocolErrorf("unrecognized op %q", req.Op))
	}

	defer func() {
		if r := recover(); r != nil {
			glog.Errorf("panic processing %s: %v", req.Op, r)
			resp = protocol.Fail(errors.Errorf("internal error processing %s", req.Op))
		}
	}()

	resp, err := fn(ctx, req)
	if err != nil {
		glog.Errorf("error processing %s: %v", req.Op, err)
		return protocol.Fail(err)
	}

	return resp
}

// LOAD op
// Expected fields:
//   - lines, or
//   - path
func (d *Dispatcher) handleLoad(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	switch {
	case req.Lines != nil && req.Path != "":
		return protocol.Response{}, protocol.InvalidArgumentf("load takes lines or path, not both")
	case req.Lines != nil:
		total := d.pool.Append(req.Lines)
		glog.V(1).Infof("loaded %d lines, pool now %d", len(req.Lines), total)
		return protocol.TotalResponse(total), nil
	case req.Path != "":
		lines, err := d.readLines(ctx, req.Path)
		if err != nil {
			return protocol.Response{}, protocol.InvalidArgumentf("couldn't read %s: %v", req.Path, err)
		}
		total := d.pool.Append(lines)
		glog.Infof("loaded %d lines from %s, pool now %d", len(lines), req.Path, total)
		return protocol.LoadedResponse(total, len(lines)), nil
	}

	return protocol.Response{}, protocol.InvalidArgumentf("load requires lines or path")
}

// SAMPLE op
// Expected fields:
//   - k (non-negative)
func (d *Dispatcher) handleSample(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	if req.K == nil {
		return protocol.Response{}, protocol.InvalidArgumentf("sample requires k")
	}
	if *req.K < 0 {
		return protocol.Response{}, protocol.InvalidArgumentf("k must be non-negative, got %d", *req.K)
	}

	lines := d.pool.RemoveRandom(*req.K)
	glog.V(1).Infof("sampled %d of %d requested lines", len(lines), *req.K)

	return protocol.LinesResponse(lines), nil
}

// STATS op
// Expected fields: none
func (d *Dispatcher) handleStats(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	return protocol.StatsResponse(d.stats()), nil
}

func (d *Dispatcher) stats() protocol.Stats {
	ps := d.pool.Stats()
	s := protocol.Stats{
		Available:    ps.Available,
		TotalLoaded:  ps.TotalLoaded,
		TotalSampled: ps.TotalSampled,
		LastLoad:     ps.LastLoad,
		LastSample:   ps.LastSample,
	}
	if d.connections != nil {
		s.Connections = d.connections()
	}
	return s
}
