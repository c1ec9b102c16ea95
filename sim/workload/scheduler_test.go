package workload

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constantSchedulerConfig(sources int, start, horizon int64, gap float64) SchedulerConfig {
	s := NewArrivalSampler(ArrivalSpec{Process: "constant"}, gap)
	return SchedulerConfig{
		Sources: sources,
		Start:   start,
		Horizon: horizon,
		Sampler: func(int) ArrivalSampler { return s },
	}
}

func poissonSchedulerConfig(sources int, start, horizon int64, mean float64) SchedulerConfig {
	s := NewArrivalSampler(ArrivalSpec{Process: "poisson"}, mean)
	return SchedulerConfig{
		Sources: sources,
		Start:   start,
		Horizon: horizon,
		Sampler: func(int) ArrivalSampler { return s },
	}
}

func drain(s *ArrivalScheduler) []Event {
	var out []Event
	for {
		ev, ok := s.Next()
		if !ok {
			return out
		}
		out = append(out, ev)
	}
}

func TestArrivalScheduler_GlobalOrderAndPerSourceMonotonic(t *testing.T) {
	// GIVEN 50 Poisson sources over a horizon of ~100 arrivals each
	s := NewArrivalScheduler(poissonSchedulerConfig(50, 1000, 100_000, 1000), rand.New(rand.NewSource(42)))

	// WHEN drained
	events := drain(s)
	require.NotEmpty(t, events)

	// THEN timestamps are non-decreasing globally and strictly increasing per source
	last := map[int]int64{}
	for i, ev := range events {
		if i > 0 {
			require.False(t, ev.before(events[i-1]), "event %d %+v precedes %+v", i, ev, events[i-1])
		}
		if prev, ok := last[ev.Source]; ok {
			require.Greater(t, ev.Time, prev, "source %d regressed", ev.Source)
		}
		last[ev.Source] = ev.Time
		require.Less(t, ev.Time, s.End())
		require.GreaterOrEqual(t, ev.Time, int64(1000))
	}
	assert.Equal(t, len(events), s.Emitted())
	assert.Equal(t, 50, s.Discarded())
	assert.Equal(t, 0, s.Len())
}

func TestArrivalScheduler_EmitsPendingMinimum(t *testing.T) {
	// GIVEN 3 sources with exponential gaps
	s := NewArrivalScheduler(poissonSchedulerConfig(3, 0, 50_000, 2000), rand.New(rand.NewSource(11)))

	steps := 0
	for {
		// Brute-force minimum over the pending set before the step
		pending := s.Pending()
		var want *Event
		for i := range pending {
			if pending[i].Time >= s.End() {
				continue
			}
			if want == nil || pending[i].before(*want) {
				want = &pending[i]
			}
		}

		ev, ok := s.Next()
		if want == nil {
			require.False(t, ok, "scheduler emitted %+v but no pending source is before the horizon", ev)
			break
		}
		require.True(t, ok)
		require.Equal(t, *want, ev, "step %d", steps)
		require.LessOrEqual(t, s.Len(), 3)
		steps++
	}
	assert.Greater(t, steps, 10)
}

func TestArrivalScheduler_MatchesBruteForceReplay(t *testing.T) {
	// GIVEN a scheduler and an array-based oracle fed the same random stream
	const sources = 3
	start, horizon, mean := int64(500), int64(40_000), 1500.0
	s := NewArrivalScheduler(poissonSchedulerConfig(sources, start, horizon, mean), rand.New(rand.NewSource(5)))

	oracleRNG := rand.New(rand.NewSource(5))
	sampler := NewArrivalSampler(ArrivalSpec{Process: "poisson"}, mean)
	next := make([]int64, sources)
	alive := make([]bool, sources)
	for i := range next {
		next[i] = start + sampler.SampleIAT(oracleRNG)
		alive[i] = true
	}
	var want []Event
	for {
		best := -1
		for i := 0; i < sources; i++ {
			if alive[i] && (best < 0 || next[i] < next[best]) {
				best = i
			}
		}
		if best < 0 {
			break
		}
		if next[best] >= start+horizon {
			alive[best] = false
			continue
		}
		want = append(want, Event{Time: next[best], Source: best})
		next[best] += sampler.SampleIAT(oracleRNG)
	}

	// THEN both produce the same event sequence
	assert.Equal(t, want, drain(s))
}

func TestArrivalScheduler_TiesBreakBySourceAscending(t *testing.T) {
	// GIVEN 3 sources with identical constant gaps, so every round is a 3-way tie
	s := NewArrivalScheduler(constantSchedulerConfig(3, 100, 35, 10), rand.New(rand.NewSource(1)))

	// WHEN drained
	events := drain(s)

	// THEN each round is emitted in source order and the horizon stops at t=130
	want := []Event{
		{110, 0}, {110, 1}, {110, 2},
		{120, 0}, {120, 1}, {120, 2},
		{130, 0}, {130, 1}, {130, 2},
	}
	assert.Equal(t, want, events)
}

func TestArrivalScheduler_DiscardedSourceNeverReappears(t *testing.T) {
	// GIVEN source 0 with a gap longer than the horizon and source 1 with a short gap
	long := NewArrivalSampler(ArrivalSpec{Process: "constant"}, 1000)
	short := NewArrivalSampler(ArrivalSpec{Process: "constant"}, 10)
	s := NewArrivalScheduler(SchedulerConfig{
		Sources: 2,
		Start:   0,
		Horizon: 100,
		Sampler: func(src int) ArrivalSampler {
			if src == 0 {
				return long
			}
			return short
		},
	}, rand.New(rand.NewSource(1)))

	events := drain(s)

	// THEN only source 1 emits, at 10..90
	require.Len(t, events, 9)
	for i, ev := range events {
		assert.Equal(t, 1, ev.Source)
		assert.Equal(t, int64(10*(i+1)), ev.Time)
	}
	_, ok := s.Next()
	assert.False(t, ok)
}

func TestArrivalScheduler_ZeroHorizonEmitsNothing(t *testing.T) {
	s := NewArrivalScheduler(poissonSchedulerConfig(4, 2_000_000_000, 0, 10), rand.New(rand.NewSource(1)))
	assert.Empty(t, drain(s))
	assert.Equal(t, 4, s.Discarded())
}

func TestArrivalScheduler_NoSources(t *testing.T) {
	s := NewArrivalScheduler(poissonSchedulerConfig(0, 0, 1000, 10), rand.New(rand.NewSource(1)))
	_, ok := s.Next()
	assert.False(t, ok)
	assert.Empty(t, s.Pending())
}

func TestArrivalScheduler_Deterministic(t *testing.T) {
	a := drain(NewArrivalScheduler(poissonSchedulerConfig(8, 0, 1_000_000, 5000), rand.New(rand.NewSource(77))))
	b := drain(NewArrivalScheduler(poissonSchedulerConfig(8, 0, 1_000_000, 5000), rand.New(rand.NewSource(77))))
	assert.Equal(t, a, b)
}
