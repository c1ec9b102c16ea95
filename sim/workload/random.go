package workload

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/lbsim/flowgen/sim"
)

// ModelRandom is the name of the diffuse host-to-host background model.
const ModelRandom = "random"

// RandomTrafficConfig parameterizes a RandomTrafficModel.
type RandomTrafficConfig struct {
	NumHosts int
	Start    int64       // ticks
	Horizon  int64       // ticks
	MeanIAT  float64     // per-host mean gap in ticks; +Inf disables the model
	Arrival  ArrivalSpec // per-host arrival process
}

// RandomTrafficModel emits one flow per host arrival to a uniformly chosen
// other host, with a size drawn from the empirical distribution.
type RandomTrafficModel struct {
	numHosts int
	dist     *EmpiricalDistribution
	rng      *rand.Rand
	sched    *ArrivalScheduler
}

// NewRandomTrafficModel builds the model and arms one source per host.
func NewRandomTrafficModel(cfg RandomTrafficConfig, dist *EmpiricalDistribution, rng *rand.Rand) (*RandomTrafficModel, error) {
	if cfg.NumHosts < 2 {
		return nil, fmt.Errorf("%w: random traffic needs at least 2 hosts, got %d", sim.ErrConfiguration, cfg.NumHosts)
	}
	sources := cfg.NumHosts
	if math.IsInf(cfg.MeanIAT, 1) || math.IsNaN(cfg.MeanIAT) {
		sources = 0
	}
	sampler := NewArrivalSampler(cfg.Arrival, cfg.MeanIAT)
	return &RandomTrafficModel{
		numHosts: cfg.NumHosts,
		dist:     dist,
		rng:      rng,
		sched: NewArrivalScheduler(SchedulerConfig{
			Sources: sources,
			Start:   cfg.Start,
			Horizon: cfg.Horizon,
			Sampler: func(int) ArrivalSampler { return sampler },
		}, rng),
	}, nil
}

func (m *RandomTrafficModel) Name() string { return ModelRandom }

func (m *RandomTrafficModel) NextEvent() (Event, bool) {
	return m.sched.Next()
}

// Expand emits Flow(src, dst, size, t) with dst drawn uniformly from every host except src.
func (m *RandomTrafficModel) Expand(ev Event) []sim.Flow {
	dst := otherIndex(m.rng.Intn, m.numHosts, ev.Source)
	return []sim.Flow{{
		Src:       sim.HostID(ev.Source),
		Dst:       sim.HostID(dst),
		Size:      m.dist.SampleSize(m.rng),
		Timestamp: ev.Time,
	}}
}
