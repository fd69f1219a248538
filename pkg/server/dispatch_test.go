package server

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterli0407-cell/line-sampler/pkg/pool"
	"github.com/carterli0407-cell/line-sampler/pkg/protocol"
)

func fakeReader(files map[string][]string) LineReader {
	return func(ctx context.Context, path string) ([]string, error) {
		lines, ok := files[path]
		if !ok {
			return nil, errors.Errorf("open %s: no such file", path)
		}
		return lines, nil
	}
}

func TestDispatchLoadPath(t *testing.T) {
	p := pool.New()
	p.Append([]string{"already"})
	d := NewDispatcher(p, fakeReader(map[string][]string{
		"/data/one": {"x", "y"},
	}), nil)

	resp := d.Handle(context.Background(), protocol.Request{Op: protocol.OpLoad, Path: "/data/one"})
	require.True(t, resp.OK)
	assert.Equal(t, 3, *resp.Total)
	assert.Equal(t, 2, *resp.Loaded)

	resp = d.Handle(context.Background(), protocol.Request{Op: protocol.OpLoad, Path: "/data/two"})
	assert.False(t, resp.OK)
	assert.Equal(t, protocol.CodeInvalidArgument, resp.Code)
	assert.Contains(t, resp.Error, "/data/two")
	assert.Equal(t, 3, p.Size())
}

func TestDispatchSampleDeterministic(t *testing.T) {
	p := pool.New(pool.WithRand(rand.New(rand.NewPCG(1, 2))))
	d := NewDispatcher(p, fakeReader(nil), nil)

	d.Handle(context.Background(), protocol.Request{Op: protocol.OpLoad, Lines: []string{"a", "b", "c", "d", "e"}})

	k := 3
	resp := d.Handle(context.Background(), protocol.Request{Op: protocol.OpSample, K: &k})
	require.True(t, resp.OK)
	assert.Len(t, resp.Lines, 3)
	assert.Equal(t, 2, p.Size())
}

func TestDispatchUnknownOp(t *testing.T) {
	d := NewDispatcher(pool.New(), fakeReader(nil), nil)

	resp := d.Handle(context.Background(), protocol.Request{Op: ""})
	assert.False(t, resp.OK)
	assert.Equal(t, protocol.CodeProtocol, resp.Code)
}

func TestDispatchRecoversPanic(t *testing.T) {
	d := NewDispatcher(pool.New(), func(ctx context.Context, path string) ([]string, error) {
		panic("disk on fire")
	}, nil)

	resp := d.Handle(context.Background(), protocol.Request{Op: protocol.OpLoad, Path: "/x"})
	assert.False(t, resp.OK)
	assert.Equal(t, protocol.CodeInternal, resp.Code)
	assert.NotContains(t, resp.Error, "disk on fire")
}

func TestDispatchStats(t *testing.T) {
	p := pool.New()
	d := NewDispatcher(p, fakeReader(nil), func() int { return 7 })

	p.Append([]string{"a", "b"})
	p.RemoveRandom(1)

	resp := d.Handle(context.Background(), protocol.Request{Op: protocol.OpStats})
	require.True(t, resp.OK)
	assert.Equal(t, 1, resp.Stats.Available)
	assert.EqualValues(t, 2, resp.Stats.TotalLoaded)
	assert.EqualValues(t, 1, resp.Stats.TotalSampled)
	assert.Equal(t, 7, resp.Stats.Connections)
}
