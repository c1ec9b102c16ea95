// Defines the Flow record emitted by the traffic models and the nanosecond
// clock helpers used to place flows on the trace timeline.

package sim

import (
	"fmt"
	"math"
)

// HostID identifies a host in [0, nhost).
type HostID int

// TicksPerSecond is the resolution of the generation clock (nanoseconds).
const TicksPerSecond = 1_000_000_000

// Flow is a single transfer between two hosts.
// Flows are immutable once emitted by a traffic model.
type Flow struct {
	Src       HostID // Sending host
	Dst       HostID // Receiving host, never equal to Src
	Size      int64  // Bytes, always >= 1
	Timestamp int64  // Start time in ticks (ns)
}

// Seconds returns the flow start time in seconds.
func (f Flow) Seconds() float64 {
	return TicksToSeconds(f.Timestamp)
}

// SecondsToTicks converts a duration in seconds to clock ticks, rounding to the nearest tick.
func SecondsToTicks(s float64) int64 {
	return int64(math.Round(s * TicksPerSecond))
}

// TicksToSeconds converts clock ticks to seconds.
func TicksToSeconds(ticks int64) float64 {
	return float64(ticks) / TicksPerSecond
}

// FormatSeconds renders ticks as seconds with exactly 9 decimals.
// Formatting from the integer keeps trace output bit-exact across platforms.
func FormatSeconds(ticks int64) string {
	sign := ""
	if ticks < 0 {
		sign = "-"
		ticks = -ticks
	}
	return fmt.Sprintf("%s%d.%09d", sign, ticks/TicksPerSecond, ticks%TicksPerSecond)
}
