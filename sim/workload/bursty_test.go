package workload

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lbsim/flowgen/sim"
	"github.com/lbsim/flowgen/sim/internal/testutil"
)

func newTestBursty(t *testing.T, cfg BurstyPodConfig, seed int64) *BurstyPodTrafficModel {
	t.Helper()
	d := mustDist(t, testutil.UniformCDF)
	m, err := NewBurstyPodTrafficModel(cfg, d, rand.New(rand.NewSource(seed)))
	require.NoError(t, err)
	return m
}

func TestBurstyPodTrafficModel_SectionsStayBetweenTwoPods(t *testing.T) {
	// GIVEN 4 pods of 4 hosts
	m := newTestBursty(t, BurstyPodConfig{
		NumHosts: 16, PodSize: 4, Start: 0, Horizon: 100_000_000,
		SectionIAT: 5_000_000, FlowInterval: 1000, SectionMean: 20, SectionStdDev: 3,
	}, 42)
	require.Equal(t, 4, m.NumPods())

	// WHEN each pod event is expanded on its own
	sections := 0
	for {
		ev, ok := m.NextEvent()
		if !ok {
			break
		}
		flows := m.Expand(ev)
		sections++

		// THEN all flows of the section share one (srcPod, dstPod) pair with srcPod = event source
		require.Equal(t, len(flows), m.SectionSizes()[sections-1])
		if len(flows) == 0 {
			continue
		}
		dstPod := int(flows[0].Dst) / 4
		assert.NotEqual(t, ev.Source, dstPod)
		prev := ev.Time
		for i, f := range flows {
			assert.Equal(t, ev.Source, int(f.Src)/4, "flow src outside event pod")
			assert.Equal(t, dstPod, int(f.Dst)/4, "flow dst outside section pod")
			if i == 0 {
				assert.Equal(t, ev.Time, f.Timestamp, "section starts at the event time")
			} else {
				assert.Greater(t, f.Timestamp, prev)
			}
			prev = f.Timestamp
		}
	}
	assert.Greater(t, sections, 10)
}

func TestBurstyPodTrafficModel_SectionSizeFollowsNormal(t *testing.T) {
	m := newTestBursty(t, BurstyPodConfig{
		NumHosts: 32, PodSize: 8, Start: 0, Horizon: 300_000_000,
		SectionIAT: 1_000_000, FlowInterval: 10, SectionMean: 300, SectionStdDev: 10,
	}, 7)
	_, err := Drive(m, 0)
	require.NoError(t, err)

	sizes := m.SectionSizes()
	require.Greater(t, len(sizes), 1000)
	sum := 0
	for _, n := range sizes {
		sum += n
	}
	testutil.AssertFloat64Equal(t, "mean section size", 300, float64(sum)/float64(len(sizes)), 0.01)
}

func TestBurstyPodTrafficModel_NegativeDrawsClampToEmptySection(t *testing.T) {
	// GIVEN a section distribution centred well below zero
	m := newTestBursty(t, BurstyPodConfig{
		NumHosts: 8, PodSize: 4, Start: 0, Horizon: 10_000_000,
		SectionIAT: 100_000, FlowInterval: 10, SectionMean: -50, SectionStdDev: 1,
	}, 1)
	flows, err := Drive(m, 0)
	require.NoError(t, err)
	assert.Empty(t, flows)
	require.NotEmpty(t, m.SectionSizes())
	for _, n := range m.SectionSizes() {
		assert.Zero(t, n)
	}
}

func TestBurstyPodTrafficModel_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  BurstyPodConfig
	}{
		{"not divisible", BurstyPodConfig{NumHosts: 100, PodSize: 30}},
		{"zero podsize", BurstyPodConfig{NumHosts: 16, PodSize: 0}},
		{"single pod", BurstyPodConfig{NumHosts: 16, PodSize: 16}},
	}
	d := mustDist(t, testutil.UniformCDF)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBurstyPodTrafficModel(tt.cfg, d, rand.New(rand.NewSource(1)))
			require.Error(t, err)
			assert.True(t, errors.Is(err, sim.ErrConfiguration))
		})
	}
}
