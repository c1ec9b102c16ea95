// Package testutil provides shared test infrastructure for the flow generator.
// It consolidates CDF fixtures and assertion helpers used across sim/,
// sim/workload/, sim/trace/ and cmd/ test packages.
package testutil

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lbsim/flowgen/sim"
)

// UniformCDF is the two-row table [(10,0),(20,100)]: sizes uniform on [10,20], mean 15.
var UniformCDF = [][2]float64{{10, 0}, {20, 100}}

// WebSearchLikeCDF is a heavy-tailed table shaped like a datacenter web-search workload.
var WebSearchLikeCDF = [][2]float64{
	{6, 0}, {6000, 15}, {13000, 20}, {19000, 30}, {33000, 40},
	{53000, 53}, {133000, 60}, {667000, 70}, {1333000, 80},
	{3333000, 90}, {6667000, 97}, {20000000, 100},
}

// FormatCDF renders rows as "<value> <percentile>" lines.
func FormatCDF(rows [][2]float64) string {
	var b strings.Builder
	for _, r := range rows {
		fmt.Fprintf(&b, "%g %g\n", r[0], r[1])
	}
	return b.String()
}

// WriteCDF writes rows to a CDF file in a per-test temp dir and returns its path.
func WriteCDF(t *testing.T, rows [][2]float64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cdf.txt")
	if err := os.WriteFile(path, []byte(FormatCDF(rows)), 0o644); err != nil {
		t.Fatalf("writing CDF fixture: %v", err)
	}
	return path
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}

// AssertTraceInvariants checks ordering and endpoint invariants every trace must hold.
func AssertTraceInvariants(t *testing.T, flows []sim.Flow, numHosts int) {
	t.Helper()
	for i, f := range flows {
		if i > 0 && f.Timestamp < flows[i-1].Timestamp {
			t.Fatalf("flow %d: timestamp %d before previous %d", i, f.Timestamp, flows[i-1].Timestamp)
		}
		if f.Src == f.Dst {
			t.Fatalf("flow %d: src == dst == %d", i, f.Src)
		}
		if f.Src < 0 || int(f.Src) >= numHosts || f.Dst < 0 || int(f.Dst) >= numHosts {
			t.Fatalf("flow %d: endpoints %d→%d outside [0,%d)", i, f.Src, f.Dst, numHosts)
		}
		if f.Size < 1 {
			t.Fatalf("flow %d: size %d < 1", i, f.Size)
		}
	}
}
