package workload

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/lbsim/flowgen/sim"
)

// ModelBursty is the name of the pod-to-pod all-to-all burst model.
const ModelBursty = "bursty"

// BurstyPodConfig parameterizes a BurstyPodTrafficModel.
type BurstyPodConfig struct {
	NumHosts      int
	PodSize       int
	Start         int64   // ticks
	Horizon       int64   // ticks
	SectionIAT    float64 // per-pod mean gap between sections in ticks; +Inf disables the model
	FlowInterval  float64 // mean gap between flows of one section in ticks
	SectionMean   float64 // mean flows per section
	SectionStdDev float64
}

// Section is one burst between two pods. It lives only while being expanded.
type Section struct {
	SrcPod    int
	DstPod    int
	FlowCount int
	StartTime int64
}

// BurstyPodTrafficModel partitions hosts into pods of PodSize consecutive ids.
// Every pod-level arrival opens a section towards another pod: a tight burst
// of flows whose gaps follow FlowInterval instead of the pod arrival process.
type BurstyPodTrafficModel struct {
	cfg          BurstyPodConfig
	numPods      int
	dist         *EmpiricalDistribution
	rng          *rand.Rand
	sched        *ArrivalScheduler
	flowSampler  ArrivalSampler
	sectionSizes []int
}

// NewBurstyPodTrafficModel validates the pod layout and arms one source per pod.
func NewBurstyPodTrafficModel(cfg BurstyPodConfig, dist *EmpiricalDistribution, rng *rand.Rand) (*BurstyPodTrafficModel, error) {
	if cfg.PodSize <= 0 {
		return nil, fmt.Errorf("%w: podsize must be positive, got %d", sim.ErrConfiguration, cfg.PodSize)
	}
	if cfg.NumHosts%cfg.PodSize != 0 {
		return nil, fmt.Errorf("%w: nhost %d is not divisible by podsize %d", sim.ErrConfiguration, cfg.NumHosts, cfg.PodSize)
	}
	numPods := cfg.NumHosts / cfg.PodSize
	if numPods < 2 {
		return nil, fmt.Errorf("%w: bursty traffic needs at least 2 pods, got %d", sim.ErrConfiguration, numPods)
	}

	sources := numPods
	if math.IsInf(cfg.SectionIAT, 1) || math.IsNaN(cfg.SectionIAT) {
		sources = 0
	}
	podSampler := &PoissonSampler{mean: cfg.SectionIAT}
	return &BurstyPodTrafficModel{
		cfg:         cfg,
		numPods:     numPods,
		dist:        dist,
		rng:         rng,
		flowSampler: &PoissonSampler{mean: cfg.FlowInterval},
		sched: NewArrivalScheduler(SchedulerConfig{
			Sources: sources,
			Start:   cfg.Start,
			Horizon: cfg.Horizon,
			Sampler: func(int) ArrivalSampler { return podSampler },
		}, rng),
	}, nil
}

func (m *BurstyPodTrafficModel) Name() string { return ModelBursty }

func (m *BurstyPodTrafficModel) NextEvent() (Event, bool) {
	return m.sched.Next()
}

// NumPods returns the number of pods.
func (m *BurstyPodTrafficModel) NumPods() int { return m.numPods }

// SectionSizes returns the flow count of every section expanded so far.
func (m *BurstyPodTrafficModel) SectionSizes() []int {
	return m.sectionSizes
}

// Expand opens a section from the event's pod and turns it into flows.
func (m *BurstyPodTrafficModel) Expand(ev Event) []sim.Flow {
	sec := m.openSection(ev)
	m.sectionSizes = append(m.sectionSizes, sec.FlowCount)
	return m.expandSection(sec)
}

// openSection picks a destination pod and draws the section size from
// Normal(SectionMean, SectionStdDev), rounded and clamped at 0.
func (m *BurstyPodTrafficModel) openSection(ev Event) Section {
	dstPod := otherIndex(m.rng.Intn, m.numPods, ev.Source)
	n := int(math.Round(m.rng.NormFloat64()*m.cfg.SectionStdDev + m.cfg.SectionMean))
	if n < 0 {
		n = 0
	}
	return Section{SrcPod: ev.Source, DstPod: dstPod, FlowCount: n, StartTime: ev.Time}
}

// expandSection emits FlowCount flows at t, t+δ1, t+δ1+δ2, ... between random
// hosts of the two pods.
func (m *BurstyPodTrafficModel) expandSection(sec Section) []sim.Flow {
	flows := make([]sim.Flow, 0, sec.FlowCount)
	at := sec.StartTime
	for i := 0; i < sec.FlowCount; i++ {
		flows = append(flows, sim.Flow{
			Src:       m.hostInPod(sec.SrcPod),
			Dst:       m.hostInPod(sec.DstPod),
			Size:      m.dist.SampleSize(m.rng),
			Timestamp: at,
		})
		at += m.flowSampler.SampleIAT(m.rng)
	}
	return flows
}

func (m *BurstyPodTrafficModel) hostInPod(pod int) sim.HostID {
	return sim.HostID(pod*m.cfg.PodSize + m.rng.Intn(m.cfg.PodSize))
}
