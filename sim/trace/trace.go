// Package trace reads and writes flow traces and their YAML manifests, and
// computes summary statistics over a trace.
// This package depends only on sim/ and stores pure data types; it knows nothing
// about the traffic models that produced a trace.
package trace

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/lbsim/flowgen/sim"
)

// PortTag is the constant third column of every flow line.
const PortTag = 3

// WriteTrace writes flows in trace format: a line holding the flow count,
// then one "<src> <dst> 3 <size> <sec>.<9-digit ns>" line per flow.
func WriteTrace(w io.Writer, flows []sim.Flow) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "%d\n", len(flows)); err != nil {
		return err
	}
	for _, f := range flows {
		if _, err := fmt.Fprintf(bw, "%d %d %d %d %s\n", f.Src, f.Dst, PortTag, f.Size, sim.FormatSeconds(f.Timestamp)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ExportTrace writes flows to path. The trace is written to a temporary file in
// the same directory and renamed into place, so a failed export leaves no
// partial trace behind.
func ExportTrace(path string, flows []sim.Flow) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating trace file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()
	if err = WriteTrace(tmp, flows); err != nil {
		return fmt.Errorf("writing trace: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("closing trace file: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming trace file: %w", err)
	}
	return nil
}

// ReadTrace parses a trace written by WriteTrace. The header count must match
// the number of flow lines.
func ReadTrace(r io.Reader) ([]sim.Flow, error) {
	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("empty trace: missing flow count")
	}
	count, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
	if err != nil || count < 0 {
		return nil, fmt.Errorf("line 1: invalid flow count %q", scanner.Text())
	}

	flows := make([]sim.Flow, 0, count)
	lineNum := 1
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		f, err := parseFlowLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		flows = append(flows, f)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(flows) != count {
		return nil, fmt.Errorf("header declares %d flows, found %d", count, len(flows))
	}
	return flows, nil
}

// LoadTrace reads a trace file from disk.
func LoadTrace(path string) ([]sim.Flow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening trace: %w", err)
	}
	defer f.Close()
	flows, err := ReadTrace(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return flows, nil
}

func parseFlowLine(line string) (sim.Flow, error) {
	fields := strings.Fields(line)
	if len(fields) != 5 {
		return sim.Flow{}, fmt.Errorf("expected 5 fields, got %d", len(fields))
	}
	src, err := strconv.Atoi(fields[0])
	if err != nil {
		return sim.Flow{}, fmt.Errorf("invalid src %q", fields[0])
	}
	dst, err := strconv.Atoi(fields[1])
	if err != nil {
		return sim.Flow{}, fmt.Errorf("invalid dst %q", fields[1])
	}
	size, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return sim.Flow{}, fmt.Errorf("invalid size %q", fields[3])
	}
	ts, err := parseTimestamp(fields[4])
	if err != nil {
		return sim.Flow{}, err
	}
	return sim.Flow{Src: sim.HostID(src), Dst: sim.HostID(dst), Size: size, Timestamp: ts}, nil
}

// parseTimestamp converts "<sec>.<ns>" back to ticks without going through float64.
func parseTimestamp(s string) (int64, error) {
	secPart, nsPart, ok := strings.Cut(s, ".")
	if !ok || len(nsPart) != 9 {
		return 0, fmt.Errorf("invalid timestamp %q: want <sec>.<9 digits>", s)
	}
	sec, err := strconv.ParseInt(secPart, 10, 64)
	if err != nil || sec < 0 {
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}
	ns, err := strconv.ParseInt(nsPart, 10, 64)
	if err != nil || ns < 0 {
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}
	return sec*sim.TicksPerSecond + ns, nil
}
