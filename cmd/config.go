package cmd

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lbsim/flowgen/sim/workload"
)

// RunConfig is everything a generate run needs: file locations for the CLI
// layer plus the generator parameters handed to the core.
type RunConfig struct {
	CDFFile     string `yaml:"cdf"`
	Output      string `yaml:"output"`
	Manifest    string `yaml:"manifest,omitempty"`     // defaults to <output>.meta.yaml
	MetricsFile string `yaml:"metrics_file,omitempty"` // Prometheus textfile; empty disables

	workload.GeneratorConfig `yaml:",inline"`
}

// DefaultRunConfig returns the defaults shared by flags and config files.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		CDFFile:         "AliStorage2019.txt",
		Output:          "tmp_traffic.txt",
		GeneratorConfig: workload.DefaultGeneratorConfig(),
	}
}

// LoadRunConfig overlays the YAML file at path onto base. Unknown keys are
// rejected so a typo never silently falls back to a default.
func LoadRunConfig(path string, base RunConfig) (RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RunConfig{}, fmt.Errorf("reading run config: %w", err)
	}
	rc := base
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&rc); err != nil {
		return RunConfig{}, fmt.Errorf("parsing run config %s: %w", path, err)
	}
	return rc, nil
}
