// Package sim holds the shared vocabulary of the flow trace generator.
//
// # Reading Guide
//
// Start with these files:
//   - flow.go: Flow records and the nanosecond clock used by every model
//   - rng.go: PartitionedRNG, the only source of randomness in the module
//   - errors.go: sentinel errors for the generation error taxonomy
//
// # Architecture
//
// The sim package defines types; behavior lives in sub-packages:
//   - sim/workload/: empirical size distribution, arrival scheduler, traffic models, compositor
//   - sim/trace/: trace file format, manifest sidecar, trace statistics
//   - sim/metrics/: Prometheus generation metrics
//
// Generation is a pure batch computation: a GeneratorConfig plus an empirical CDF
// are turned into a timestamp-ordered []Flow, then written once.
package sim
