package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/docker/go-units"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lbsim/flowgen/sim/metrics"
	"github.com/lbsim/flowgen/sim/trace"
	"github.com/lbsim/flowgen/sim/workload"
)

var (
	// CLI flags for inputs and outputs
	configFile   string // Optional YAML run config
	cdfFile      string // Flow size CDF table
	outputFile   string // Trace output path
	manifestFile string // Manifest output path
	metricsFile  string // Prometheus textfile output path
	logLevel     string // Log verbosity level

	// CLI flags for the generator
	numHosts       int     // Number of hosts
	load           float64 // Offered load as a fraction of link capacity
	bandwidth      string  // Host link rate (G/M/K)
	duration       float64 // Horizon in seconds
	startTime      float64 // Trace start offset in seconds
	mix            float64 // Share of the load given to bursty pod traffic
	podSize        int     // Hosts per pod
	seed           int64   // Seed for all random streams
	sectionMean    float64 // Mean flows per section
	sectionStd     float64 // Stddev of flows per section
	flowIntervalK  float64 // Intra-section gap as a fraction of the background gap
	arrivalProcess string  // Background arrival process
	arrivalCV      float64 // Coefficient of variation for gamma/weibull arrivals
	maxFlows       int     // Flow budget, 0 = unlimited
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "flowgen",
	Short: "Synthetic datacenter flow trace generator",
}

// generateCmd builds a trace from a CDF and the generator flags
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a flow trace",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()

		rc, err := resolveRunConfig(configFile, cmd.Flags().Changed)
		if err != nil {
			logrus.Fatalf("unable to resolve run config; %v", err)
		}
		if _, err := runGenerate(rc); err != nil {
			logrus.Fatalf("generation failed: %v", err)
		}
		logrus.Info("Generation complete.")
	},
}

// summarizeCmd prints summary statistics of an existing trace
var summarizeCmd = &cobra.Command{
	Use:   "summarize <trace>",
	Short: "Print summary statistics of a flow trace",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		if err := runSummarize(args[0], os.Stdout); err != nil {
			logrus.Fatalf("%v", err)
		}
	},
}

func setLogLevel() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// resolveRunConfig starts from the defaults, overlays the config file when one
// is given, then overlays every flag the user set explicitly. Flag defaults
// equal DefaultRunConfig, so without a config file the result is the flag values.
func resolveRunConfig(path string, changed func(name string) bool) (RunConfig, error) {
	rc := DefaultRunConfig()
	if path != "" {
		loaded, err := LoadRunConfig(path, rc)
		if err != nil {
			return RunConfig{}, err
		}
		rc = loaded
	}
	applyFlagOverrides(&rc, changed)
	return rc, nil
}

func applyFlagOverrides(rc *RunConfig, changed func(name string) bool) {
	if changed("cdf") {
		rc.CDFFile = cdfFile
	}
	if changed("output") {
		rc.Output = outputFile
	}
	if changed("manifest") {
		rc.Manifest = manifestFile
	}
	if changed("metrics-file") {
		rc.MetricsFile = metricsFile
	}
	if changed("nhost") {
		rc.NumHosts = numHosts
	}
	if changed("load") {
		rc.Load = load
	}
	if changed("bandwidth") {
		rc.Bandwidth = bandwidth
	}
	if changed("time") {
		rc.Duration = duration
	}
	if changed("start") {
		rc.Start = startTime
	}
	if changed("mix") {
		rc.Mix = mix
	}
	if changed("podsize") {
		rc.PodSize = podSize
	}
	if changed("seed") {
		rc.Seed = seed
	}
	if changed("section-mean") {
		rc.SectionMean = sectionMean
	}
	if changed("section-std") {
		rc.SectionStdDev = sectionStd
	}
	if changed("flow-interval-coef") {
		rc.FlowIntervalCoefficient = flowIntervalK
	}
	if changed("arrival") {
		rc.Arrival.Process = arrivalProcess
	}
	if changed("arrival-cv") {
		cv := arrivalCV
		rc.Arrival.CV = &cv
	}
	if changed("max-flows") {
		rc.MaxFlows = maxFlows
	}
}

// runGenerate loads the CDF, composes the trace and writes the trace,
// manifest and optional metrics textfile. Either every output is written or,
// on error, none is left behind.
func runGenerate(rc RunConfig) (res *workload.Result, err error) {
	dist, err := workload.LoadCDF(rc.CDFFile)
	if err != nil {
		return nil, err
	}
	logrus.Infof("Generating %v s of traffic for %d hosts at load %v (%s links), mix=%v, podsize=%d, seed=%d, mean flow size %.1f B",
		rc.Duration, rc.NumHosts, rc.Load, rc.Bandwidth, rc.Mix, rc.PodSize, rc.Seed, dist.Mean())

	began := time.Now()
	res, err = workload.GenerateFlows(&rc.GeneratorConfig, dist)
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(began)

	var written []string
	defer func() {
		if err != nil {
			for _, path := range written {
				if rmErr := os.Remove(path); rmErr != nil {
					logrus.Warnf("removing %s after failed run: %v", path, rmErr)
				}
			}
		}
	}()

	if err = trace.ExportTrace(rc.Output, res.Flows); err != nil {
		return nil, err
	}
	written = append(written, rc.Output)
	var offered int64
	for _, b := range res.BytesByModel {
		offered += b
	}
	logrus.Infof("Wrote %d flows (%s offered) to %s", len(res.Flows), units.HumanSize(float64(offered)), rc.Output)

	manifestPath := rc.Manifest
	if manifestPath == "" {
		manifestPath = trace.ManifestPath(rc.Output)
	}
	m := trace.NewManifest(rc.Output)
	m.CDFFile = rc.CDFFile
	for _, p := range dist.Points() {
		m.CDFTable = append(m.CDFTable, [2]float64{p.Value, p.Percentile})
	}
	m.MeanFlowSize = dist.Mean()
	m.Seed = rc.Seed
	m.Config = rc.GeneratorConfig
	m.TotalFlows = len(res.Flows)
	m.FlowsByModel = res.FlowsByModel
	m.Sections = len(res.SectionSizes)
	if err = trace.WriteManifest(manifestPath, m); err != nil {
		return nil, err
	}
	written = append(written, manifestPath)

	if rc.MetricsFile != "" {
		gm := metrics.NewGenerationMetrics()
		gm.Observe(res, elapsed)
		if err = gm.WriteTextfile(rc.MetricsFile); err != nil {
			return nil, err
		}
		logrus.Infof("Wrote metrics to %s", rc.MetricsFile)
	}
	return res, nil
}

// runSummarize writes the summary of the trace at path to w as YAML.
func runSummarize(path string, w io.Writer) error {
	flows, err := trace.LoadTrace(path)
	if err != nil {
		return err
	}
	out, err := yaml.Marshal(trace.Summarize(flows))
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	_, err = w.Write(out)
	return err
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	def := DefaultRunConfig()

	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")

	generateCmd.Flags().StringVar(&configFile, "config", "", "YAML run config; explicitly set flags override its values")
	generateCmd.Flags().StringVarP(&cdfFile, "cdf", "c", def.CDFFile, "Flow size CDF file (<value> <percentile> per line)")
	generateCmd.Flags().StringVarP(&outputFile, "output", "o", def.Output, "Trace output file")
	generateCmd.Flags().StringVar(&manifestFile, "manifest", "", "Manifest output file (default <output>.meta.yaml)")
	generateCmd.Flags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile")

	generateCmd.Flags().IntVarP(&numHosts, "nhost", "n", def.NumHosts, "Number of hosts")
	generateCmd.Flags().Float64VarP(&load, "load", "l", def.Load, "Offered load as a fraction of host link capacity")
	generateCmd.Flags().StringVarP(&bandwidth, "bandwidth", "b", def.Bandwidth, "Host link rate in bits/s (G/M/K suffix)")
	generateCmd.Flags().Float64VarP(&duration, "time", "t", def.Duration, "Trace duration in seconds")
	generateCmd.Flags().Float64Var(&startTime, "start", def.Start, "Start offset of the first flow window in seconds")
	generateCmd.Flags().Float64Var(&mix, "mix", def.Mix, "Share of the load given to bursty pod-to-pod traffic")
	generateCmd.Flags().IntVar(&podSize, "podsize", def.PodSize, "Hosts per pod")
	generateCmd.Flags().Int64Var(&seed, "seed", def.Seed, "Seed for random flow generation")
	generateCmd.Flags().Float64Var(&sectionMean, "section-mean", def.SectionMean, "Mean flows per bursty section")
	generateCmd.Flags().Float64Var(&sectionStd, "section-std", def.SectionStdDev, "Stddev of flows per bursty section")
	generateCmd.Flags().Float64Var(&flowIntervalK, "flow-interval-coef", def.FlowIntervalCoefficient, "Intra-section flow gap as a fraction of the background gap")
	generateCmd.Flags().StringVar(&arrivalProcess, "arrival", def.Arrival.Process, "Background arrival process (poisson, gamma, weibull, constant)")
	generateCmd.Flags().Float64Var(&arrivalCV, "arrival-cv", 0, "Coefficient of variation for gamma/weibull arrivals (unset = process default)")
	generateCmd.Flags().IntVar(&maxFlows, "max-flows", 0, "Abort when the trace would exceed this many flows (0 = unlimited)")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(summarizeCmd)
}
