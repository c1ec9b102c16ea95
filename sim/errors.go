package sim

import "errors"

// Error taxonomy for trace generation. Call sites wrap these with context;
// callers match with errors.Is.
var (
	// ErrInvalidDistribution marks a malformed or non-monotonic CDF table.
	ErrInvalidDistribution = errors.New("invalid distribution")

	// ErrConfiguration marks a generator configuration that cannot be scheduled
	// (bad pod size, unparsable bandwidth, fractions outside [0,1], ...).
	ErrConfiguration = errors.New("configuration error")

	// ErrFlowBudget is returned when a model emits more flows than the configured budget.
	ErrFlowBudget = errors.New("flow budget exceeded")
)
