package trace

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lbsim/flowgen/sim"
)

var sampleFlows = []sim.Flow{
	{Src: 0, Dst: 1, Size: 100, Timestamp: 2_000_000_001},
	{Src: 5, Dst: 3, Size: 1460, Timestamp: 2_000_000_001},
	{Src: 1, Dst: 0, Size: 20000000, Timestamp: 12_345_678_900},
}

func TestWriteTrace_Format(t *testing.T) {
	// GIVEN three flows
	var buf bytes.Buffer

	// WHEN written
	require.NoError(t, WriteTrace(&buf, sampleFlows))

	// THEN the header is the count and each line is "src dst 3 size sec.ns"
	want := "3\n" +
		"0 1 3 100 2.000000001\n" +
		"5 3 3 1460 2.000000001\n" +
		"1 0 3 20000000 12.345678900\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteTrace_EmptyTraceIsHeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTrace(&buf, nil))
	assert.Equal(t, "0\n", buf.String())
}

func TestReadTrace_RecoversWrittenFlows(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTrace(&buf, sampleFlows))

	got, err := ReadTrace(&buf)
	require.NoError(t, err)
	assert.Equal(t, sampleFlows, got)
}

func TestReadTrace_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty input", "", "missing flow count"},
		{"bad header", "three\n", "invalid flow count"},
		{"count mismatch", "2\n0 1 3 100 2.000000000\n", "declares 2 flows, found 1"},
		{"too few fields", "1\n0 1 3 100\n", "line 2: expected 5 fields"},
		{"short fraction", "1\n0 1 3 100 2.5\n", "line 2: invalid timestamp"},
		{"float seconds", "1\n0 1 3 100 2\n", "line 2: invalid timestamp"},
		{"bad size", "1\n0 1 3 big 2.000000000\n", "invalid size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadTrace(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestExportTrace_WritesAtomically(t *testing.T) {
	// GIVEN an export into a fresh directory
	dir := t.TempDir()
	path := filepath.Join(dir, "flows.txt")

	// WHEN exported and loaded back
	require.NoError(t, ExportTrace(path, sampleFlows))
	got, err := LoadTrace(path)

	// THEN the flows survive and no temp file is left behind
	require.NoError(t, err)
	assert.Equal(t, sampleFlows, got)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestExportTrace_MissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "flows.txt")
	err := ExportTrace(path, sampleFlows)
	require.Error(t, err)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestLoadTrace_MissingFile(t *testing.T) {
	_, err := LoadTrace(filepath.Join(t.TempDir(), "nope.txt"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "opening trace")
}
