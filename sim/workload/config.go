package workload

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/lbsim/flowgen/sim"
)

// GeneratorConfig is the fully resolved parameter set consumed by GenerateFlows.
// The CLI layer owns defaults and file paths; the core never reads argv or env.
type GeneratorConfig struct {
	NumHosts  int     `yaml:"nhost"`
	Load      float64 `yaml:"load"`      // fraction of host link capacity, [0,1]
	Bandwidth string  `yaml:"bandwidth"` // host link rate in bits/s with optional G/M/K suffix
	Duration  float64 `yaml:"duration"`  // horizon T in seconds
	Start     float64 `yaml:"start"`     // T0 in seconds
	Mix       float64 `yaml:"mix"`       // share of load given to bursty pod traffic, [0,1]
	PodSize   int     `yaml:"podsize"`
	Seed      int64   `yaml:"seed"`

	SectionMean             float64     `yaml:"section_mean"`              // mean flows per section
	SectionStdDev           float64     `yaml:"section_std"`               // std of flows per section
	FlowIntervalCoefficient float64     `yaml:"flow_interval_coefficient"` // intra-section gap as a fraction of the background gap
	Arrival                 ArrivalSpec `yaml:"arrival"`                   // background arrival process
	MaxFlows                int         `yaml:"max_flows,omitempty"`       // 0 = unlimited
}

// DefaultGeneratorConfig returns the stock generator defaults.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		NumHosts:                256,
		Load:                    0.3,
		Bandwidth:               "100G",
		Duration:                0.03,
		Start:                   2.0,
		Mix:                     0,
		PodSize:                 16,
		Seed:                    42,
		SectionMean:             300,
		SectionStdDev:           10,
		FlowIntervalCoefficient: 0.05,
		Arrival:                 ArrivalSpec{Process: "poisson"},
	}
}

// ParseBandwidth converts a link rate such as "100G", "25M", "800K" or "1e9"
// to bits per second.
func ParseBandwidth(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty bandwidth", sim.ErrConfiguration)
	}
	mult := 1.0
	num := s
	switch s[len(s)-1] {
	case 'G':
		mult, num = 1e9, s[:len(s)-1]
	case 'M':
		mult, num = 1e6, s[:len(s)-1]
	case 'K':
		mult, num = 1e3, s[:len(s)-1]
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bandwidth %q: want a number with optional G/M/K suffix", sim.ErrConfiguration, s)
	}
	bps := v * mult
	if math.IsNaN(bps) || math.IsInf(bps, 0) || bps <= 0 {
		return 0, fmt.Errorf("%w: bandwidth %q must be positive and finite", sim.ErrConfiguration, s)
	}
	return bps, nil
}

// MaxTimelineSeconds bounds start+duration so every tick stays below the
// largest inter-arrival draw a sampler can return.
const MaxTimelineSeconds = float64(math.MaxInt64/4) / sim.TicksPerSecond

// Validate checks every field before any scheduling starts.
func (c *GeneratorConfig) Validate() error {
	if c.NumHosts < 2 {
		return fmt.Errorf("%w: nhost must be at least 2, got %d", sim.ErrConfiguration, c.NumHosts)
	}
	if err := validateFraction("load", c.Load); err != nil {
		return err
	}
	if err := validateFraction("mix", c.Mix); err != nil {
		return err
	}
	if _, err := ParseBandwidth(c.Bandwidth); err != nil {
		return err
	}
	if math.IsNaN(c.Duration) || math.IsInf(c.Duration, 0) || c.Duration < 0 {
		return fmt.Errorf("%w: duration must be a finite non-negative number of seconds, got %v", sim.ErrConfiguration, c.Duration)
	}
	if math.IsNaN(c.Start) || math.IsInf(c.Start, 0) || c.Start < 0 {
		return fmt.Errorf("%w: start must be a finite non-negative number of seconds, got %v", sim.ErrConfiguration, c.Start)
	}
	if c.Start+c.Duration > MaxTimelineSeconds {
		return fmt.Errorf("%w: start+duration must not exceed %.0f s, got %v", sim.ErrConfiguration, MaxTimelineSeconds, c.Start+c.Duration)
	}
	if c.PodSize < 0 {
		return fmt.Errorf("%w: podsize must be non-negative, got %d", sim.ErrConfiguration, c.PodSize)
	}
	if c.PodSize > 0 && c.NumHosts%c.PodSize != 0 {
		return fmt.Errorf("%w: nhost %d is not divisible by podsize %d", sim.ErrConfiguration, c.NumHosts, c.PodSize)
	}
	if c.Mix > 0 {
		if c.PodSize == 0 {
			return fmt.Errorf("%w: podsize is required when mix > 0", sim.ErrConfiguration)
		}
		if c.NumHosts/c.PodSize < 2 {
			return fmt.Errorf("%w: bursty traffic needs at least 2 pods, got %d", sim.ErrConfiguration, c.NumHosts/c.PodSize)
		}
		if math.IsNaN(c.SectionMean) || math.IsInf(c.SectionMean, 0) || c.SectionMean <= 0 {
			return fmt.Errorf("%w: section_mean must be positive, got %v", sim.ErrConfiguration, c.SectionMean)
		}
		if math.IsNaN(c.SectionStdDev) || math.IsInf(c.SectionStdDev, 0) || c.SectionStdDev < 0 {
			return fmt.Errorf("%w: section_std must be non-negative, got %v", sim.ErrConfiguration, c.SectionStdDev)
		}
		if math.IsNaN(c.FlowIntervalCoefficient) || math.IsInf(c.FlowIntervalCoefficient, 0) || c.FlowIntervalCoefficient <= 0 {
			return fmt.Errorf("%w: flow_interval_coefficient must be positive, got %v", sim.ErrConfiguration, c.FlowIntervalCoefficient)
		}
	}
	if c.MaxFlows < 0 {
		return fmt.Errorf("%w: max_flows must be non-negative, got %d", sim.ErrConfiguration, c.MaxFlows)
	}
	return c.Arrival.Validate()
}

func validateFraction(name string, v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return fmt.Errorf("%w: %s must be in [0,1], got %v", sim.ErrConfiguration, name, v)
	}
	return nil
}

// Rates holds the mean inter-arrival times (ticks) derived from a config and
// the mean flow size. +Inf marks a process with no offered load.
type Rates struct {
	BackgroundIAT float64 // per-host gap of the random model
	SectionIAT    float64 // per-pod gap between sections
	FlowInterval  float64 // gap between flows inside one section
}

// DeriveRates converts offered load into per-source mean inter-arrival times.
//
//	background = 1e9·8·avg / (B·L·(1−M))
//	section    = 1e9·8·avg / (B·L·M) · sectionMean / podsize
//	flow gap   = background · coefficient (background at full load L when M = 1)
func (c *GeneratorConfig) DeriveRates(avgSize float64) (Rates, error) {
	bps, err := ParseBandwidth(c.Bandwidth)
	if err != nil {
		return Rates{}, err
	}
	bytesPerTick := bps / 8 / sim.TicksPerSecond
	gap := func(share float64) float64 {
		if share <= 0 {
			return math.Inf(1)
		}
		return avgSize / (bytesPerTick * share)
	}

	r := Rates{
		BackgroundIAT: gap(c.Load * (1 - c.Mix)),
		SectionIAT:    math.Inf(1),
		FlowInterval:  math.Inf(1),
	}
	if c.Mix > 0 && c.PodSize > 0 {
		r.SectionIAT = gap(c.Load*c.Mix) * c.SectionMean / float64(c.PodSize)
		ref := r.BackgroundIAT
		if math.IsInf(ref, 1) {
			ref = gap(c.Load)
		}
		r.FlowInterval = ref * c.FlowIntervalCoefficient
	}
	return r, nil
}
