// Package metrics holds the scalar projections of an interval
// (component C): the derived-data type, the fixed-capacity ring
// buffers that store them, and the duration-weighted averaging that
// turns a window of raw points into one Averaged entry.
package metrics

import (
	"math"
	"time"
)

// DerivedData is the scalar projection of an interval.Data, produced by
// a user-supplied CalcMetrics function. ScaleMetric drives scaling
// decisions; ResetMetric is a secondary statistic (e.g. for
// stddev-aware exploration).
type DerivedData struct {
	ScaleMetric float64
	ResetMetric float64
}

// Point is one entry in the raw metrics history: a derived-data value
// plus the population size and time span it was computed over.
type Point struct {
	Derived       DerivedData
	AmountTargets int
	IntervalStart time.Time
	IntervalEnd   time.Time
}

// Averaged is the duration-weighted mean and population standard
// deviation of DerivedData across a contiguous sequence of Points, plus
// the span they cover.
type Averaged struct {
	MeanScaleMetric   float64
	StddevScaleMetric float64
	MeanResetMetric   float64
	StddevResetMetric float64
	SpanStart         time.Time
	SpanEnd           time.Time
	Count             int // number of raw Points folded into this average
}

// Average computes a duration-weighted Averaged from points, which must
// be in chronological order (oldest first). Each interval contributes
// one sample per millisecond of its duration — this keeps a five-minute
// interval from being outweighed by ten one-second intervals when
// computing the window's mean/stddev.
//
// Average panics if points is empty; callers must check len(points) > 0
// first (the controller treats zero raw intervals in a window as an
// invalid averaged interval and never calls Average).
func Average(points []Point) Averaged {
	var scaleSamples, resetSamples []float64
	for _, p := range points {
		weight := p.IntervalEnd.Sub(p.IntervalStart).Milliseconds()
		if weight < 1 {
			weight = 1
		}
		for i := int64(0); i < weight; i++ {
			scaleSamples = append(scaleSamples, p.Derived.ScaleMetric)
			resetSamples = append(resetSamples, p.Derived.ResetMetric)
		}
	}

	meanScale, stddevScale := meanStddev(scaleSamples)
	meanReset, stddevReset := meanStddev(resetSamples)

	return Averaged{
		MeanScaleMetric:   meanScale,
		StddevScaleMetric: stddevScale,
		MeanResetMetric:   meanReset,
		StddevResetMetric: stddevReset,
		SpanStart:         points[0].IntervalStart,
		SpanEnd:           points[len(points)-1].IntervalEnd,
		Count:             len(points),
	}
}

func meanStddev(values []float64) (mean, stddev float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(len(values))

	var variance float64
	for _, v := range values {
		diff := mean - v
		variance += diff * diff
	}
	variance /= float64(len(values))
	stddev = math.Sqrt(variance)
	return mean, stddev
}
