package workload

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/integrate"

	"github.com/lbsim/flowgen/sim"
)

// CDFPoint is one row of an empirical CDF table: Percentile percent of flows
// have a size at or below Value.
type CDFPoint struct {
	Value      float64 `yaml:"value"`
	Percentile float64 `yaml:"percentile"` // 0–100
}

// EmpiricalDistribution samples flow sizes from an empirical CDF table using
// inverse-transform sampling with linear interpolation between rows.
type EmpiricalDistribution struct {
	values      []float64
	percentiles []float64
	mean        float64
}

// NewEmpiricalDistribution validates a CDF table and builds a sampler from it.
// Rows must be strictly increasing in both value and percentile, values must be
// non-negative, percentiles must lie in [0,100] and the last row must reach 100.
func NewEmpiricalDistribution(points []CDFPoint) (*EmpiricalDistribution, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: empty CDF table", sim.ErrInvalidDistribution)
	}
	values := make([]float64, len(points))
	percentiles := make([]float64, len(points))
	for i, p := range points {
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) || p.Value < 0 {
			return nil, fmt.Errorf("%w: row %d: value %v must be a finite non-negative number", sim.ErrInvalidDistribution, i, p.Value)
		}
		if math.IsNaN(p.Percentile) || p.Percentile < 0 || p.Percentile > 100 {
			return nil, fmt.Errorf("%w: row %d: percentile %v outside [0,100]", sim.ErrInvalidDistribution, i, p.Percentile)
		}
		if i > 0 {
			if p.Value <= values[i-1] {
				return nil, fmt.Errorf("%w: row %d: value %v not greater than previous %v", sim.ErrInvalidDistribution, i, p.Value, values[i-1])
			}
			if p.Percentile <= percentiles[i-1] {
				return nil, fmt.Errorf("%w: row %d: percentile %v not greater than previous %v", sim.ErrInvalidDistribution, i, p.Percentile, percentiles[i-1])
			}
		}
		values[i] = p.Value
		percentiles[i] = p.Percentile
	}
	if last := percentiles[len(percentiles)-1]; last != 100 {
		return nil, fmt.Errorf("%w: last percentile is %v, table must reach 100", sim.ErrInvalidDistribution, last)
	}

	d := &EmpiricalDistribution{values: values, percentiles: percentiles}
	d.mean = d.trapezoidalMean()
	return d, nil
}

// trapezoidalMean integrates value over the percentile axis segment by segment
// and normalizes by 100. A single-row table is a point mass at that value.
func (d *EmpiricalDistribution) trapezoidalMean() float64 {
	if len(d.values) == 1 {
		return d.values[0]
	}
	return integrate.Trapezoidal(d.percentiles, d.values) / 100
}

// Mean returns the expected value of the distribution. It is computed once at
// load time and drives the arrival-rate calculations of every traffic model.
func (d *EmpiricalDistribution) Mean() float64 {
	return d.mean
}

// Sample maps a uniform draw u in [0,1] to a value. u*100 is located on the
// percentile axis; a draw equal to a table percentile resolves to that row's
// value, otherwise the bracketing segment is linearly interpolated. Draws below
// the first or above the last percentile clamp to the table endpoints.
func (d *EmpiricalDistribution) Sample(u float64) float64 {
	y := u * 100
	n := len(d.percentiles)
	if !(y > d.percentiles[0]) { // also catches NaN
		return d.values[0]
	}
	if y >= d.percentiles[n-1] {
		return d.values[n-1]
	}
	i := sort.SearchFloat64s(d.percentiles, y)
	if d.percentiles[i] == y {
		return d.values[i]
	}
	x0, y0 := d.values[i-1], d.percentiles[i-1]
	x1, y1 := d.values[i], d.percentiles[i]
	return x0 + (x1-x0)/(y1-y0)*(y-y0)
}

// SampleSize draws a flow size in bytes. Sizes are rounded to the nearest byte
// and clamped to at least 1 so traces never carry empty flows.
func (d *EmpiricalDistribution) SampleSize(rng *rand.Rand) int64 {
	size := int64(math.Round(d.Sample(rng.Float64())))
	if size < 1 {
		return 1
	}
	return size
}

// Points returns a copy of the validated table.
func (d *EmpiricalDistribution) Points() []CDFPoint {
	pts := make([]CDFPoint, len(d.values))
	for i := range d.values {
		pts[i] = CDFPoint{Value: d.values[i], Percentile: d.percentiles[i]}
	}
	return pts
}

// ParseCDF reads whitespace-separated "<value> <percentile>" rows.
// Blank lines and lines starting with '#' are skipped.
func ParseCDF(r io.Reader) ([]CDFPoint, error) {
	var points []CDFPoint
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("%w: line %d: expected \"<value> <percentile>\", got %q", sim.ErrInvalidDistribution, lineNo, line)
		}
		value, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: value: %v", sim.ErrInvalidDistribution, lineNo, err)
		}
		pct, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: percentile: %v", sim.ErrInvalidDistribution, lineNo, err)
		}
		points = append(points, CDFPoint{Value: value, Percentile: pct})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading CDF: %w", err)
	}
	return points, nil
}

// LoadCDF reads and validates a CDF file.
func LoadCDF(path string) (*EmpiricalDistribution, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening CDF file: %w", err)
	}
	defer func() { _ = f.Close() }()

	points, err := ParseCDF(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	dist, err := NewEmpiricalDistribution(points)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return dist, nil
}
