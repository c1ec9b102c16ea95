package trace

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Manifest describes how a trace was produced. It is written next to the trace
// so the trace file itself stays byte-identical across runs with the same seed.
type Manifest struct {
	RunID        string         `yaml:"run_id"`
	CreatedAt    time.Time      `yaml:"created_at"`
	Trace        string         `yaml:"trace"`
	CDFFile      string         `yaml:"cdf_file"`
	CDFTable     [][2]float64   `yaml:"cdf_table,flow"` // (value, percentile) rows the sizes were drawn from
	MeanFlowSize float64        `yaml:"mean_flow_size"`
	Seed         int64          `yaml:"seed"`
	Config       any            `yaml:"config"` // resolved generator config
	TotalFlows   int            `yaml:"total_flows"`
	FlowsByModel map[string]int `yaml:"flows_by_model"`
	Sections     int            `yaml:"sections"`
}

// NewManifest stamps a manifest with a fresh run id and the current time.
func NewManifest(tracePath string) *Manifest {
	return &Manifest{
		RunID:        uuid.New().String(),
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
		Trace:        tracePath,
		FlowsByModel: make(map[string]int),
	}
}

// ManifestPath returns the default manifest location for a trace file.
func ManifestPath(tracePath string) string {
	return tracePath + ".meta.yaml"
}

// WriteManifest writes m to path as YAML.
func WriteManifest(path string, m *Manifest) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

// LoadManifest reads a manifest written by WriteManifest. Config comes back as
// a generic YAML mapping.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if _, err := uuid.Parse(m.RunID); err != nil {
		return nil, fmt.Errorf("manifest run_id %q: %w", m.RunID, err)
	}
	return &m, nil
}
