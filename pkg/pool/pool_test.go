package pool

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded() Option {
	return WithRand(rand.New(rand.NewPCG(7, 11)))
}

func numbered(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return out
}

func TestAppendReturnsTotal(t *testing.T) {
	p := New()

	assert.Equal(t, 3, p.Append([]string{"line1", "line2", "line3"}))
	assert.Equal(t, 5, p.Append([]string{"", "line1"}))
	assert.Equal(t, 5, p.Append(nil))
	assert.Equal(t, 5, p.Size())
}

func TestRemoveRandomScenario(t *testing.T) {
	p := New(seeded())
	loaded := []string{"a", "b", "c", "d", "e"}
	p.Append(loaded)

	first := p.RemoveRandom(2)
	require.Len(t, first, 2)
	assert.NotEqual(t, first[0], first[1])
	assert.Subset(t, loaded, first)
	assert.Equal(t, 3, p.Size())

	rest := p.RemoveRandom(10)
	require.Len(t, rest, 3)
	assert.ElementsMatch(t, loaded, append(append([]string{}, first...), rest...))
	assert.Equal(t, 0, p.Size())

	empty := p.RemoveRandom(1)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestRemoveRandomZeroAndNegative(t *testing.T) {
	p := New()
	p.Append([]string{"a", "b"})

	assert.Empty(t, p.RemoveRandom(0))
	assert.Empty(t, p.RemoveRandom(-3))
	assert.Equal(t, 2, p.Size())
	assert.Zero(t, p.Stats().TotalSampled)
}

func TestRemoveRandomEmptyPool(t *testing.T) {
	p := New()
	got := p.RemoveRandom(3)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRemoveRandomKeepsDuplicates(t *testing.T) {
	p := New(seeded())
	p.Append([]string{"x", "x", "x"})

	assert.Equal(t, []string{"x", "x"}, p.RemoveRandom(2))
	assert.Equal(t, 1, p.Size())
}

func TestNoReplacementAcrossCalls(t *testing.T) {
	p := New(seeded())
	p.Append(numbered("line", 100))

	seen := map[string]bool{}
	for p.Size() > 0 {
		for _, l := range p.RemoveRandom(7) {
			require.False(t, seen[l], "line %s sampled twice", l)
			seen[l] = true
		}
	}
	assert.Len(t, seen, 100)
}

func TestConcurrentAppend(t *testing.T) {
	p := New()

	var wg sync.WaitGroup
	for w := 0; w < 16; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				p.Append(numbered(fmt.Sprintf("w%d-%d-", w, i), 3))
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, 16*50*3, p.Size())
	assert.EqualValues(t, 16*50*3, p.Stats().TotalLoaded)
}

func TestConcurrentLoadScenario(t *testing.T) {
	p := New()

	var wg sync.WaitGroup
	for _, batch := range [][]string{{"x", "y"}, {"z"}} {
		wg.Add(1)
		go func(batch []string) {
			defer wg.Done()
			p.Append(batch)
		}(batch)
	}
	wg.Wait()

	assert.ElementsMatch(t, []string{"x", "y", "z"}, p.RemoveRandom(3))
}

func TestConcurrentSamplesAreDisjoint(t *testing.T) {
	p := New()
	p.Append(numbered("line", 1000))

	const workers = 10
	results := make([][]string, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				results[w] = append(results[w], p.RemoveRandom(10)...)
			}
		}(w)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, r := range results {
		assert.Len(t, r, 100)
		for _, l := range r {
			require.False(t, seen[l], "line %s returned to two callers", l)
			seen[l] = true
		}
	}
	assert.Len(t, seen, 1000)
	assert.Equal(t, 0, p.Size())

	stats := p.Stats()
	assert.EqualValues(t, 1000, stats.TotalLoaded)
	assert.EqualValues(t, 1000, stats.TotalSampled)
}

func TestConcurrentAppendAndSample(t *testing.T) {
	p := New()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		sampled []string
	)
	for w := 0; w < 8; w++ {
		wg.Add(2)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				p.Append([]string{fmt.Sprintf("w%d-%d", w, i)})
			}
		}(w)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				got := p.RemoveRandom(1)
				mu.Lock()
				sampled = append(sampled, got...)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	sampled = append(sampled, p.RemoveRandom(p.Size())...)
	sort.Strings(sampled)
	require.Len(t, sampled, 800)
	for i := 1; i < len(sampled); i++ {
		require.NotEqual(t, sampled[i-1], sampled[i])
	}
}

func TestSampleOneIsUniform(t *testing.T) {
	const (
		n      = 10
		trials = 20000
	)
	r := rand.New(rand.NewPCG(42, 1024))
	items := numbered("item", n)

	counts := map[string]int{}
	for i := 0; i < trials; i++ {
		p := New(WithRand(r))
		p.Append(items)
		got := p.RemoveRandom(1)
		require.Len(t, got, 1)
		counts[got[0]]++
	}

	expected := float64(trials) / n
	for _, item := range items {
		assert.InDelta(t, expected, counts[item], expected*0.1, "item %s", item)
	}
}

func TestSamplePairsAreUniform(t *testing.T) {
	const trials = 12000
	r := rand.New(rand.NewPCG(3, 5))

	counts := map[string]int{}
	for i := 0; i < trials; i++ {
		p := New(WithRand(r))
		p.Append([]string{"a", "b", "c", "d"})
		got := p.RemoveRandom(2)
		sort.Strings(got)
		counts[strings.Join(got, "")]++
	}

	require.Len(t, counts, 6)
	for pair, c := range counts {
		assert.InDelta(t, trials/6, c, trials/6*0.1, "pair %s", pair)
	}
}

func TestShrinkKeepsContents(t *testing.T) {
	p := New(seeded())
	p.Append(numbered("line", 4*shrinkFloor))

	taken := p.RemoveRandom(4*shrinkFloor - 10)
	assert.Len(t, taken, 4*shrinkFloor-10)
	assert.Equal(t, 10, p.Size())
	assert.LessOrEqual(t, cap(p.lines), 2*shrinkFloor)

	rest := p.RemoveRandom(100)
	assert.ElementsMatch(t, numbered("line", 4*shrinkFloor), append(taken, rest...))
}

func TestStatsUseClock(t *testing.T) {
	mock := clock.NewMock()
	p := New(WithClock(mock))

	mock.Add(time.Minute)
	p.Append([]string{"a", "b", "c"})
	loadedAt := mock.Now()

	mock.Add(time.Second)
	p.RemoveRandom(2)

	stats := p.Stats()
	assert.Equal(t, Stats{
		Available:    1,
		TotalLoaded:  3,
		TotalSampled: 2,
		LastLoad:     loadedAt,
		LastSample:   mock.Now(),
	}, stats)
}
