package workload

import (
	"fmt"

	"github.com/lbsim/flowgen/sim"
)

// TrafficModel is a workload archetype driven by its own ArrivalScheduler.
// The compositor is agnostic to how many models are active; a new archetype is
// a new implementation of this interface.
type TrafficModel interface {
	// Name identifies the model in logs, metrics and manifests.
	Name() string
	// NextEvent returns the model's next arrival in time order, or false when
	// every source has passed the horizon.
	NextEvent() (Event, bool)
	// Expand turns one arrival into the flows it triggers.
	Expand(ev Event) []sim.Flow
}

// SectionReporter is implemented by models that emit flows in sections.
type SectionReporter interface {
	// SectionSizes returns the flow count of every section expanded so far.
	SectionSizes() []int
}

// Drive runs a model to exhaustion and returns its flows in emission order.
// maxFlows bounds the output (0 = unlimited); exceeding it aborts with ErrFlowBudget.
func Drive(m TrafficModel, maxFlows int) ([]sim.Flow, error) {
	var flows []sim.Flow
	for {
		ev, ok := m.NextEvent()
		if !ok {
			return flows, nil
		}
		flows = append(flows, m.Expand(ev)...)
		if maxFlows > 0 && len(flows) > maxFlows {
			return nil, fmt.Errorf("%w: model %q produced more than %d flows", sim.ErrFlowBudget, m.Name(), maxFlows)
		}
	}
}

// otherIndex draws uniformly from {0..n-1} \ {exclude} with a single draw.
// n must be at least 2.
func otherIndex(draw func(int) int, n, exclude int) int {
	idx := draw(n - 1)
	if idx >= exclude {
		idx++
	}
	return idx
}
