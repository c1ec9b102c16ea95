package workload

import (
	"container/heap"
	"math/rand"
	"sort"
)

// Event is one arrival emitted by an ArrivalScheduler.
type Event struct {
	Time   int64 // ticks
	Source int   // source identifier in [0, Sources)
}

// before orders events by time, then by source identifier ascending.
// The explicit secondary key keeps simultaneous arrivals reproducible.
func (e Event) before(o Event) bool {
	if e.Time != o.Time {
		return e.Time < o.Time
	}
	return e.Source < o.Source
}

// eventHeap implements heap.Interface over pending per-source arrivals.
type eventHeap []Event

func (h eventHeap) Len() int           { return len(h) }
func (h eventHeap) Less(i, j int) bool { return h[i].before(h[j]) }
func (h eventHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x interface{}) {
	*h = append(*h, x.(Event))
}

func (h *eventHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// SchedulerConfig parameterizes an ArrivalScheduler.
type SchedulerConfig struct {
	Sources int   // number of independent renewal processes
	Start   int64 // T0 in ticks
	Horizon int64 // T in ticks; sources are discarded once their next arrival reaches Start+Horizon

	// Sampler returns the inter-arrival sampler of a source. Called once per
	// source at construction.
	Sampler func(source int) ArrivalSampler
}

// ArrivalScheduler merges independent per-source renewal processes into one
// globally time-ordered event stream.
//
// Every pending source holds exactly one heap entry. Next pops the global
// minimum; a source whose arrival reaches the horizon is discarded for good,
// otherwise the event is emitted and the source is re-armed with a fresh
// inter-arrival draw. Live heap size never exceeds the number of sources.
//
// Not safe for concurrent use; each traffic model owns its scheduler.
type ArrivalScheduler struct {
	pending  eventHeap
	samplers []ArrivalSampler
	end      int64
	rng      *rand.Rand

	emitted   int
	discarded int
}

// NewArrivalScheduler arms every source at Start + first inter-arrival draw.
// Draws happen in ascending source order.
func NewArrivalScheduler(cfg SchedulerConfig, rng *rand.Rand) *ArrivalScheduler {
	s := &ArrivalScheduler{
		pending:  make(eventHeap, 0, cfg.Sources),
		samplers: make([]ArrivalSampler, cfg.Sources),
		end:      cfg.Start + cfg.Horizon,
		rng:      rng,
	}
	for src := 0; src < cfg.Sources; src++ {
		s.samplers[src] = cfg.Sampler(src)
		s.pending = append(s.pending, Event{
			Time:   cfg.Start + s.samplers[src].SampleIAT(rng),
			Source: src,
		})
	}
	heap.Init(&s.pending)
	return s
}

// Next returns the next event in global time order, or false once every
// source has been discarded.
func (s *ArrivalScheduler) Next() (Event, bool) {
	for len(s.pending) > 0 {
		top := s.pending[0]
		if top.Time >= s.end {
			heap.Pop(&s.pending)
			s.discarded++
			continue
		}
		s.pending[0].Time = top.Time + s.samplers[top.Source].SampleIAT(s.rng)
		heap.Fix(&s.pending, 0)
		s.emitted++
		return top, true
	}
	return Event{}, false
}

// Pending returns the armed arrivals in scheduling order.
func (s *ArrivalScheduler) Pending() []Event {
	out := make([]Event, len(s.pending))
	copy(out, s.pending)
	sort.Slice(out, func(i, j int) bool { return out[i].before(out[j]) })
	return out
}

// Len returns the number of sources not yet discarded.
func (s *ArrivalScheduler) Len() int {
	return len(s.pending)
}

// End returns the horizon boundary Start+Horizon in ticks.
func (s *ArrivalScheduler) End() int64 {
	return s.end
}

// Emitted returns the number of events returned by Next so far.
func (s *ArrivalScheduler) Emitted() int {
	return s.emitted
}

// Discarded returns the number of sources retired at the horizon.
func (s *ArrivalScheduler) Discarded() int {
	return s.discarded
}
