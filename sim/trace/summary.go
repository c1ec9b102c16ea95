package trace

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/lbsim/flowgen/sim"
)

// TraceSummary aggregates statistics from a flow trace.
type TraceSummary struct {
	TotalFlows     int     `yaml:"total_flows"`
	TotalBytes     int64   `yaml:"total_bytes"`
	MeanFlowSize   float64 `yaml:"mean_flow_size"`
	FirstFlow      float64 `yaml:"first_flow_seconds"`
	LastFlow       float64 `yaml:"last_flow_seconds"`
	Span           float64 `yaml:"span_seconds"`
	UniqueSources  int     `yaml:"unique_sources"`
	OfferedBitRate float64 `yaml:"offered_bits_per_second"` // 0 when Span is 0
	// MeanGini is the mean over sources of the Gini coefficient of their flow start times.
	MeanGini float64 `yaml:"mean_source_gini"`
	// MeanIntervalDispersion is the mean over sources of std/mean of the gaps
	// between consecutive flow starts. Sources with fewer than two flows or a
	// zero mean gap are skipped. Poisson arrivals sit near 1, bursts well above.
	MeanIntervalDispersion float64 `yaml:"mean_interval_dispersion"`
}

// Summarize computes aggregate statistics from a trace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(flows []sim.Flow) *TraceSummary {
	summary := &TraceSummary{}
	if len(flows) == 0 {
		return summary
	}

	bySource := make(map[sim.HostID][]float64)
	first, last := flows[0].Timestamp, flows[0].Timestamp
	for _, f := range flows {
		summary.TotalBytes += f.Size
		first = min(first, f.Timestamp)
		last = max(last, f.Timestamp)
		bySource[f.Src] = append(bySource[f.Src], f.Seconds())
	}
	summary.TotalFlows = len(flows)
	summary.MeanFlowSize = float64(summary.TotalBytes) / float64(len(flows))
	summary.FirstFlow = sim.TicksToSeconds(first)
	summary.LastFlow = sim.TicksToSeconds(last)
	summary.Span = sim.TicksToSeconds(last - first)
	summary.UniqueSources = len(bySource)
	if summary.Span > 0 {
		summary.OfferedBitRate = float64(summary.TotalBytes) * 8 / summary.Span
	}

	// Iterate sources in id order so float accumulation is reproducible.
	srcs := make([]sim.HostID, 0, len(bySource))
	for src := range bySource {
		srcs = append(srcs, src)
	}
	sort.Slice(srcs, func(i, j int) bool { return srcs[i] < srcs[j] })

	var ginis, dispersions []float64
	for _, src := range srcs {
		times := bySource[src]
		sort.Float64s(times)
		if g, ok := gini(times); ok {
			ginis = append(ginis, g)
		}
		if d, ok := intervalDispersion(times); ok {
			dispersions = append(dispersions, d)
		}
	}
	if len(ginis) > 0 {
		summary.MeanGini = stat.Mean(ginis, nil)
	}
	if len(dispersions) > 0 {
		summary.MeanIntervalDispersion = stat.Mean(dispersions, nil)
	}
	return summary
}

// gini computes the Gini coefficient of sorted non-negative values:
// (2/n)·Σ i·x_i / Σ x_i − (n+1)/n. Undefined when the values sum to zero.
func gini(sorted []float64) (float64, bool) {
	n := float64(len(sorted))
	total := floats.Sum(sorted)
	if len(sorted) == 0 || total <= 0 {
		return 0, false
	}
	weighted := 0.0
	for i, x := range sorted {
		weighted += float64(i+1) * x
	}
	return 2/n*weighted/total - (n+1)/n, true
}

// intervalDispersion returns population std / mean of the gaps between sorted times.
func intervalDispersion(sorted []float64) (float64, bool) {
	if len(sorted) < 2 {
		return 0, false
	}
	gaps := make([]float64, len(sorted)-1)
	floats.SubTo(gaps, sorted[1:], sorted[:len(sorted)-1])
	mean, std := stat.PopMeanStdDev(gaps, nil)
	if !(mean > 0) {
		return 0, false
	}
	return std / mean, true
}
