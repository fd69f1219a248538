// Package pool holds the shared set of lines that clients load into and
// sample out of.
package pool

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// shrinkFloor is the capacity below which the backing slice is never
// reallocated after a removal.
const shrinkFloor = 1024

// Stats is a point-in-time view of the pool. Values may be stale as soon as
// they are returned.
type Stats struct {
	Available    int       `json:"available"`
	TotalLoaded  int64     `json:"total_loaded"`
	TotalSampled int64     `json:"total_sampled"`
	LastLoad     time.Time `json:"last_load"`
	LastSample   time.Time `json:"last_sample"`
}

// LinePool is a multiset of lines guarded by a single mutex. Every mutation
// happens entirely inside one critical section, so concurrent Append and
// RemoveRandom calls are linearizable.
type LinePool struct {
	m     sync.Mutex
	lines []string

	totalLoaded  int64
	totalSampled int64
	lastLoad     time.Time
	lastSample   time.Time

	intN  func(int) int
	clock clock.Clock
}

// Option configures a LinePool.
type Option func(*LinePool)

// WithRand makes the pool draw positions from r instead of the global
// source. r is only used while the pool's lock is held.
func WithRand(r *rand.Rand) Option {
	return func(p *LinePool) {
		p.intN = r.IntN
	}
}

// WithClock sets the clock used to stamp loads and samples.
func WithClock(c clock.Clock) Option {
	return func(p *LinePool) {
		p.clock = c
	}
}

// New returns an empty pool.
func New(opts ...Option) *LinePool {
	p := &LinePool{
		intN:  rand.IntN,
		clock: clock.New(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Append adds lines to the pool and returns the pool's new size. Lines are
// not validated; empty strings and duplicates are kept.
func (p *LinePool) Append(lines []string) int {
	p.m.Lock()
	defer p.m.Unlock()

	p.lines = append(p.lines, lines...)
	p.totalLoaded += int64(len(lines))
	if len(lines) > 0 {
		p.lastLoad = p.clock.Now()
	}

	return len(p.lines)
}

// RemoveRandom withdraws k lines chosen uniformly at random without
// replacement. If the pool holds fewer than k lines, all of them are
// returned. The result is never nil.
func (p *LinePool) RemoveRandom(k int) []string {
	p.m.Lock()
	defer p.m.Unlock()

	n := len(p.lines)
	if k <= 0 || n == 0 {
		return []string{}
	}
	if k > n {
		k = n
	}

	moveSampleToTail(p.lines, k, p.intN)

	cut := n - k
	out := make([]string, k)
	copy(out, p.lines[cut:])

	// drop references so removed strings can be collected
	clear(p.lines[cut:])
	p.lines = p.lines[:cut]
	p.maybeShrink()

	p.totalSampled += int64(k)
	p.lastSample = p.clock.Now()

	return out
}

// Size returns the number of lines currently held. It is advisory only.
func (p *LinePool) Size() int {
	p.m.Lock()
	defer p.m.Unlock()

	return len(p.lines)
}

// Stats returns a snapshot of the pool's counters.
func (p *LinePool) Stats() Stats {
	p.m.Lock()
	defer p.m.Unlock()

	return Stats{
		Available:    len(p.lines),
		TotalLoaded:  p.totalLoaded,
		TotalSampled: p.totalSampled,
		LastLoad:     p.lastLoad,
		LastSample:   p.lastSample,
	}
}

// maybeShrink reallocates the backing array once it is mostly empty. The
// copy is proportional to the remaining lines and happens only after at
// least as many removals, so it stays amortized O(1) per removed line.
// Must be called with p.m held.
func (p *LinePool) maybeShrink() {
	c := cap(p.lines)
	if c <= shrinkFloor || len(p.lines) > c/4 {
		return
	}

	shrunk := make([]string, len(p.lines), 2*len(p.lines))
	copy(shrunk, p.lines)
	p.lines = shrunk
}
