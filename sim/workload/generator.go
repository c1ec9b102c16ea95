package workload

import (
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/lbsim/flowgen/sim"
)

// Result is a composed trace plus per-model accounting.
type Result struct {
	Flows        []sim.Flow       // sorted by Timestamp; ties keep model order, then emission order
	FlowsByModel map[string]int   // model name → flows emitted
	BytesByModel map[string]int64 // model name → bytes emitted
	SectionSizes []int            // flows per section, in expansion order
}

// GenerateFlows validates cfg, builds the active traffic models and composes
// their flows into one timestamp-ordered trace.
// Deterministic given the same config, seed and distribution.
func GenerateFlows(cfg *GeneratorConfig, dist *EmpiricalDistribution) (*Result, error) {
	models, err := BuildModels(cfg, dist)
	if err != nil {
		return nil, err
	}
	return Compose(models, cfg.MaxFlows)
}

// BuildModels resolves cfg into traffic models. The random model is always
// present; the bursty pod model is added when Mix > 0. All configuration
// errors surface here, before any event is scheduled.
func BuildModels(cfg *GeneratorConfig, dist *EmpiricalDistribution) ([]TrafficModel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	avg := dist.Mean()
	if !(avg > 0) || math.IsInf(avg, 0) {
		return nil, fmt.Errorf("%w: mean flow size must be positive, got %v", sim.ErrInvalidDistribution, avg)
	}
	rates, err := cfg.DeriveRates(avg)
	if err != nil {
		return nil, err
	}
	logrus.Debugf("derived rates: avg size %.1f B, background gap %.1f ns, section gap %.1f ns, flow gap %.1f ns",
		avg, rates.BackgroundIAT, rates.SectionIAT, rates.FlowInterval)

	start := sim.SecondsToTicks(cfg.Start)
	horizon := sim.SecondsToTicks(cfg.Duration)

	// Streams are fetched up front: PartitionedRNG itself is not goroutine-safe.
	rng := sim.NewPartitionedRNG(sim.NewSimulationKey(cfg.Seed))

	if math.IsInf(rates.BackgroundIAT, 1) {
		logrus.Warnf("random traffic has no offered load (load=%v, mix=%v); it will emit no flows", cfg.Load, cfg.Mix)
	}
	random, err := NewRandomTrafficModel(RandomTrafficConfig{
		NumHosts: cfg.NumHosts,
		Start:    start,
		Horizon:  horizon,
		MeanIAT:  rates.BackgroundIAT,
		Arrival:  cfg.Arrival,
	}, dist, rng.ForSubsystem(sim.SubsystemModel(ModelRandom)))
	if err != nil {
		return nil, err
	}
	models := []TrafficModel{random}

	if cfg.Mix > 0 {
		if cfg.Mix == 1 && cfg.Load > 0 {
			logrus.Warnf("mix=1 leaves no background share; section flow spacing uses the full-load background gap")
		}
		bursty, err := NewBurstyPodTrafficModel(BurstyPodConfig{
			NumHosts:      cfg.NumHosts,
			PodSize:       cfg.PodSize,
			Start:         start,
			Horizon:       horizon,
			SectionIAT:    rates.SectionIAT,
			FlowInterval:  rates.FlowInterval,
			SectionMean:   cfg.SectionMean,
			SectionStdDev: cfg.SectionStdDev,
		}, dist, rng.ForSubsystem(sim.SubsystemModel(ModelBursty)))
		if err != nil {
			return nil, err
		}
		models = append(models, bursty)
	}
	return models, nil
}

// Compose drives every model to exhaustion and merges their flows.
//
// Models share no state, so they run as independent computations; the merge
// below is the only synchronization point. Flows are concatenated in model
// order and stably sorted by timestamp, so ties preserve model order and then
// emission order.
func Compose(models []TrafficModel, maxFlows int) (*Result, error) {
	outputs := make([][]sim.Flow, len(models))
	var g errgroup.Group
	for i, m := range models {
		i, m := i, m
		g.Go(func() error {
			flows, err := Drive(m, maxFlows)
			if err != nil {
				return err
			}
			outputs[i] = flows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{
		FlowsByModel: make(map[string]int, len(models)),
		BytesByModel: make(map[string]int64, len(models)),
	}
	total := 0
	for _, out := range outputs {
		total += len(out)
	}
	res.Flows = make([]sim.Flow, 0, total)
	for i, m := range models {
		res.FlowsByModel[m.Name()] += len(outputs[i])
		for _, f := range outputs[i] {
			res.BytesByModel[m.Name()] += f.Size
		}
		res.Flows = append(res.Flows, outputs[i]...)
		if sr, ok := m.(SectionReporter); ok {
			res.SectionSizes = append(res.SectionSizes, sr.SectionSizes()...)
		}
		logrus.Infof("model %s: %d flows", m.Name(), len(outputs[i]))
	}
	if maxFlows > 0 && len(res.Flows) > maxFlows {
		return nil, fmt.Errorf("%w: %d flows across models, budget %d", sim.ErrFlowBudget, len(res.Flows), maxFlows)
	}

	sort.SliceStable(res.Flows, func(i, j int) bool {
		return res.Flows[i].Timestamp < res.Flows[j].Timestamp
	})
	return res, nil
}
