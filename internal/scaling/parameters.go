package scaling

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jannes-thesis/scaling-adapter/internal/interval"
	"github.com/jannes-thesis/scaling-adapter/internal/metrics"
)

// FineSamplingIntervalMs is the minimum spacing between raw snapshots,
// regardless of CheckIntervalMs.
const FineSamplingIntervalMs = 200

// CalcMetricsFunc projects a validated interval.Data down to the two
// scalars the controller acts on.
type CalcMetricsFunc func(interval.Data) metrics.DerivedData

// Parameters configures a Controller.
type Parameters struct {
	// SyscallNrs are the syscall numbers the traceset watches; at most
	// traceset.MaxSyscalls.
	SyscallNrs []int
	// CalcMetrics derives scale/reset metrics from a valid interval.
	CalcMetrics CalcMetricsFunc
	// CheckIntervalMs is the minimum time between scaling evaluations.
	CheckIntervalMs int64
	// StabilityFactor is the comparison slack s ∈ (0,1).
	StabilityFactor float64
	// AveragingDurationMs is carried through String,
	// ParseParameterString and the config file. The Controller does not
	// read it: each averaged history entry folds every raw interval
	// since the previous entry ended, so CheckIntervalMs sets the
	// window width.
	AveragingDurationMs int64
}

// DefaultParameters returns a throughput-based scale metric and a
// blkio/syscall-time based reset metric, traced over a handful of
// I/O-relevant syscalls.
func DefaultParameters() Parameters {
	return Parameters{
		SyscallNrs:          []int{0, 1, 74, 257, 87}, // read, write, fsync, openat, unlink
		CalcMetrics:         defaultCalcMetrics,
		CheckIntervalMs:     1000,
		StabilityFactor:     0.9,
		AveragingDurationMs: 3000,
	}
}

func defaultCalcMetrics(data interval.Data) metrics.DerivedData {
	rwBytes := data.ReadBytes + data.WriteBytes
	intervalMs := data.DurationMillis()
	throughput := float64(rwBytes) / float64(intervalMs)

	var aggSyscallTime uint64
	for _, sd := range data.SyscallsData {
		aggSyscallTime += sd.TotalTime
	}
	denom := intervalMs * int64(data.AmountTargets)
	var secondary float64
	if denom != 0 {
		secondary = float64(aggSyscallTime*data.BlkioDelay) / float64(denom)
	}

	return metrics.DerivedData{
		ScaleMetric: throughput,
		ResetMetric: secondary,
	}
}

// String formats the tunable subset of Parameters as
// "<check_interval_ms>,<stability_factor>,<averaging_duration_ms>".
func (p Parameters) String() string {
	return fmt.Sprintf("%d,%s,%d", p.CheckIntervalMs, strconv.FormatFloat(p.StabilityFactor, 'g', -1, 64), p.AveragingDurationMs)
}

// ParseParameterString parses "<check_interval_ms>,<stability_factor>,
// <averaging_duration_ms>" and applies the three fields to base,
// leaving SyscallNrs/CalcMetrics untouched. On any malformed field it
// returns the zero Parameters value alongside the error, not base.
func ParseParameterString(base Parameters, s string) (Parameters, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return Parameters{}, fmt.Errorf("%w: expected 3 comma-separated fields, got %d", ErrMalformedParameters, len(parts))
	}

	checkIntervalMs, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil {
		return Parameters{}, fmt.Errorf("%w: check_interval_ms: %v", ErrMalformedParameters, err)
	}
	stabilityFactor, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Parameters{}, fmt.Errorf("%w: stability_factor: %v", ErrMalformedParameters, err)
	}
	averagingDurationMs, err := strconv.ParseInt(strings.TrimSpace(parts[2]), 10, 64)
	if err != nil {
		return Parameters{}, fmt.Errorf("%w: averaging_duration_ms: %v", ErrMalformedParameters, err)
	}

	out := base
	out.CheckIntervalMs = checkIntervalMs
	out.StabilityFactor = stabilityFactor
	out.AveragingDurationMs = averagingDurationMs
	return out, nil
}
