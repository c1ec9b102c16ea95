package workload

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/lbsim/flowgen/sim"
)

// ArrivalSampler generates inter-arrival times for one source.
type ArrivalSampler interface {
	// SampleIAT returns the next inter-arrival time in ticks (ns).
	// Always returns a positive value (>= 1) so a source never stalls.
	SampleIAT(rng *rand.Rand) int64
}

// ArrivalSpec selects the inter-arrival process of the background traffic.
type ArrivalSpec struct {
	Process string   `yaml:"process"`
	CV      *float64 `yaml:"cv,omitempty"`
}

var validArrivalProcesses = map[string]bool{
	"": true, "poisson": true, "gamma": true, "weibull": true, "constant": true,
}

// Validate checks the process name and CV.
func (a ArrivalSpec) Validate() error {
	if !validArrivalProcesses[a.Process] {
		return fmt.Errorf("%w: unknown arrival process %q; valid: poisson, gamma, weibull, constant", sim.ErrConfiguration, a.Process)
	}
	if a.CV != nil {
		cv := *a.CV
		if math.IsNaN(cv) || math.IsInf(cv, 0) || cv <= 0 {
			return fmt.Errorf("%w: arrival cv must be a finite positive number, got %v", sim.ErrConfiguration, cv)
		}
		if a.Process == "weibull" && (cv < 0.01 || cv > 10.4) {
			return fmt.Errorf("%w: weibull CV must be in [0.01, 10.4], got %v", sim.ErrConfiguration, cv)
		}
	}
	return nil
}

// PoissonSampler generates exponentially-distributed inter-arrival times (CV=1).
type PoissonSampler struct {
	mean float64 // ticks
}

func (s *PoissonSampler) SampleIAT(rng *rand.Rand) int64 {
	return floorTick(rng.ExpFloat64() * s.mean)
}

// ConstantSampler spaces arrivals exactly mean ticks apart.
type ConstantSampler struct {
	mean float64
}

func (s *ConstantSampler) SampleIAT(_ *rand.Rand) int64 {
	return floorTick(math.Round(s.mean))
}

// GammaSampler generates Gamma-distributed inter-arrival times.
// CV > 1 produces burstier background arrivals than Poisson.
// Implemented using Marsaglia-Tsang's method for shape >= 1,
// with transformation for shape < 1.
type GammaSampler struct {
	shape float64 // 1/CV²
	scale float64 // mean·CV² in ticks
}

func (s *GammaSampler) SampleIAT(rng *rand.Rand) int64 {
	return floorTick(gammaRand(rng, s.shape, s.scale))
}

// gammaRand samples from Gamma(shape, scale) using Marsaglia-Tsang's method.
// For shape < 1: Gamma(shape) = Gamma(shape+1) * U^(1/shape).
func gammaRand(rng *rand.Rand, shape, scale float64) float64 {
	if shape < 1.0 {
		u := rng.Float64()
		return gammaRand(rng, shape+1.0, scale) * math.Pow(u, 1.0/shape)
	}

	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9.0*d)

	for {
		var x, v float64
		for {
			x = rng.NormFloat64()
			v = 1.0 + c*x
			if v > 0 {
				break
			}
		}
		v = v * v * v
		u := rng.Float64()

		// Squeeze test
		if u < 1.0-0.0331*(x*x)*(x*x) {
			return d * v * scale
		}
		if math.Log(u) < 0.5*x*x+d*(1.0-v+math.Log(v)) {
			return d * v * scale
		}
	}
}

// WeibullSampler generates Weibull-distributed inter-arrival times.
type WeibullSampler struct {
	shape float64 // k
	scale float64 // λ in ticks
}

func (s *WeibullSampler) SampleIAT(rng *rand.Rand) int64 {
	// Inverse CDF: scale * (-ln(U))^(1/shape)
	u := rng.Float64()
	if u == 0 {
		u = math.SmallestNonzeroFloat64 // prevent -ln(0) = +Inf
	}
	return floorTick(s.scale * math.Pow(-math.Log(u), 1.0/s.shape))
}

// floorTick truncates a sampled interval to whole ticks, never below 1.
func floorTick(v float64) int64 {
	if !(v < math.MaxInt64/4) { // +Inf, NaN or absurd means
		return math.MaxInt64 / 4
	}
	iat := int64(v)
	if iat < 1 {
		return 1
	}
	return iat
}

// NewArrivalSampler creates an ArrivalSampler with the given mean
// inter-arrival time in ticks.
func NewArrivalSampler(spec ArrivalSpec, meanTicks float64) ArrivalSampler {
	if meanTicks < 1 {
		meanTicks = 1
	}
	switch spec.Process {
	case "", "poisson":
		return &PoissonSampler{mean: meanTicks}

	case "constant":
		return &ConstantSampler{mean: meanTicks}

	case "gamma":
		cv := cvOrDefault(spec.CV)
		// shape = 1/CV², scale = mean * CV²
		shape := 1.0 / (cv * cv)
		if shape < 0.01 {
			logrus.Warnf("Gamma shape %.4f (CV=%.1f) is very small; falling back to Poisson", shape, cv)
			return &PoissonSampler{mean: meanTicks}
		}
		return &GammaSampler{shape: shape, scale: meanTicks * cv * cv}

	case "weibull":
		k := weibullShapeFromCV(cvOrDefault(spec.CV))
		// scale = mean / Γ(1 + 1/k)
		return &WeibullSampler{shape: k, scale: meanTicks / math.Gamma(1.0+1.0/k)}

	default:
		// Validated before reaching here
		return &PoissonSampler{mean: meanTicks}
	}
}

func cvOrDefault(cv *float64) float64 {
	if cv == nil || *cv <= 0 {
		return 1.0
	}
	return *cv
}

// weibullShapeFromCV finds Weibull shape parameter k such that
// CV² = Γ(1+2/k)/Γ(1+1/k)² - 1, using bisection over k ∈ [0.1, 100].
func weibullShapeFromCV(targetCV float64) float64 {
	lo, hi := 0.1, 100.0
	for i := 0; i < 100; i++ {
		mid := (lo + hi) / 2.0
		cv := weibullCV(mid)
		if math.Abs(cv-targetCV) < 0.001 {
			return mid
		}
		// CV is monotonically decreasing in k
		if cv > targetCV {
			lo = mid
		} else {
			hi = mid
		}
	}
	logrus.Warnf("weibullShapeFromCV: bisection did not converge for CV=%.3f after 100 iterations; using k=%.3f", targetCV, (lo+hi)/2.0)
	return (lo + hi) / 2.0
}

// weibullCV computes the coefficient of variation for Weibull(k).
func weibullCV(k float64) float64 {
	g1 := math.Gamma(1.0 + 1.0/k)
	g2 := math.Gamma(1.0 + 2.0/k)
	return math.Sqrt(g2/(g1*g1) - 1.0)
}
