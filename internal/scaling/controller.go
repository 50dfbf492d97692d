// Package scaling implements component D: a state machine that
// periodically samples a traceset, maintains raw and averaged metrics
// history, and emits signed "scale by N" advice.
package scaling

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jannes-thesis/scaling-adapter/internal/interval"
	"github.com/jannes-thesis/scaling-adapter/internal/metrics"
	"github.com/jannes-thesis/scaling-adapter/internal/traceset"
)

// settledCooldown bounds how long the controller waits after an
// exploration probe is reverted before it will probe again.
const settledCooldown = 2000 * time.Millisecond

// stddevGrowthFactor is 1/0.8: a stddev increase past this factor is
// treated the same as a flatly worse metric.
const stddevGrowthFactor = 1.0 / 0.8

// Controller is the embeddable scaling state machine: it samples a
// traceset, folds raw intervals into averaged windows, and emits signed
// worker-count advice. It is safe for concurrent use: the history and
// advice methods acquire the controller's mutex, and tracee
// registration goes through the traceset's own lock.
type Controller struct {
	mu sync.Mutex

	params   Parameters
	traceset *traceset.Traceset
	log      *slog.Logger

	rawHistory *metrics.History[metrics.Point]
	avgHistory *metrics.History[metrics.Averaged]

	latestSnapshot     traceset.TracesetSnapshot
	latestSnapshotTime time.Time
	latestAvgWindowEnd time.Time

	recentInvalidCount int
	state              state
}

// New constructs a Controller backed by sampler. It takes an initial
// snapshot immediately, matching ScalingAdapter::new in the original
// implementation.
func New(sampler traceset.Sampler, params Parameters, log *slog.Logger) (*Controller, error) {
	ts, err := traceset.New(sampler, nil, params.SyscallNrs)
	if err != nil {
		return nil, err
	}
	if params.CalcMetrics == nil {
		params.CalcMetrics = defaultCalcMetrics
	}
	if log == nil {
		log = slog.Default()
	}

	c := &Controller{
		params:     params,
		traceset:   ts,
		log:        log,
		rawHistory: metrics.NewHistory[metrics.Point](metrics.RawHistoryCapacity),
		avgHistory: metrics.NewHistory[metrics.Averaged](metrics.AveragedHistoryCapacity),
		state:      startupState(),
	}
	c.latestSnapshot = ts.GetSnapshot()
	c.latestSnapshotTime = c.latestSnapshot.Timestamp
	return c, nil
}

// AddTracee registers tid as a tracee to sample.
func (c *Controller) AddTracee(tid int32) bool {
	return c.traceset.RegisterTarget(tid)
}

// RemoveTracee deregisters tid.
func (c *Controller) RemoveTracee(tid int32) bool {
	return c.traceset.DeregisterTarget(tid)
}

// Targets returns the currently registered tracee IDs, sorted.
func (c *Controller) Targets() []int32 {
	return c.traceset.Targets()
}

// GetLatestAverage returns the most recent averaged-window entry, if
// any have been computed yet.
func (c *Controller) GetLatestAverage() (metrics.Averaged, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.avgHistory.Get(0)
}

// GetLatestMetrics returns the most recent raw history point, if any.
func (c *Controller) GetLatestMetrics() (metrics.Point, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rawHistory.Get(0)
}

// UpdateHistory takes a fresh snapshot, differences it against the
// previous one, and appends a metrics.Point to the raw history if the
// interval is valid. It returns whether the interval was valid.
func (c *Controller) UpdateHistory() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updateRawHistoryLocked()
}

func (c *Controller) updateRawHistoryLocked() bool {
	newSnapshot := c.traceset.GetSnapshot()
	defer func() {
		c.latestSnapshot = newSnapshot
		c.latestSnapshotTime = newSnapshot.Timestamp
	}()

	data, ok := interval.New(c.latestSnapshot, newSnapshot, c.log)
	if !ok {
		c.recentInvalidCount++
		return false
	}

	derived := c.params.CalcMetrics(data)
	c.rawHistory.Add(metrics.Point{
		Derived:       derived,
		AmountTargets: data.AmountTargets,
		IntervalStart: data.Start,
		IntervalEnd:   data.End,
	})
	return true
}

// GetScalingAdvice runs the sample/average/dispatch pipeline and
// returns a signed worker-count delta. queueSize is observability-only:
// it's logged but never used in a decision. The method never panics or
// propagates an error — any internal anomaly degrades to advice 0.
func (c *Controller) GetScalingAdvice(queueSize int) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()

	// Step 1-2: fine-grained raw sampling, throttled to FineSamplingIntervalMs.
	if c.latestSnapshotTime.IsZero() || now.Sub(c.latestSnapshotTime) >= time.Duration(FineSamplingIntervalMs)*time.Millisecond {
		c.updateRawHistoryLocked()
	} else {
		return 0
	}

	// Step 3: throttle averaged-window evaluation to CheckIntervalMs.
	if !c.latestAvgWindowEnd.IsZero() && now.Sub(c.latestAvgWindowEnd) < time.Duration(c.params.CheckIntervalMs)*time.Millisecond {
		return 0
	}

	// Step 4: fold raw intervals newer than the last averaged window
	// into a new averaged entry.
	var since *time.Time
	if !c.latestAvgWindowEnd.IsZero() {
		t := c.latestAvgWindowEnd
		since = &t
	}
	fresh := c.rawHistory.Last(since)
	if len(fresh) == 0 {
		c.logAdvice(queueSize, 0)
		return 0
	}
	// fresh is newest-first; Average wants chronological order.
	reverseInPlace(fresh)
	avg := metrics.Average(fresh)
	c.avgHistory.Add(avg)
	c.latestAvgWindowEnd = avg.SpanEnd

	// Step 5: dispatch on state.
	advice := c.dispatch(now)
	c.logAdvice(queueSize, advice)
	return advice
}

func reverseInPlace[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

func (c *Controller) dispatch(now time.Time) int {
	latest, hasLatest := c.avgHistory.Get(0)
	previous, hasPrevious := c.avgHistory.Get(1)

	if !hasLatest || !hasPrevious {
		// Every transition needs at least two averaged entries to
		// compare against; Startup fires on the first call where that
		// becomes true.
		return 0
	}

	switch c.state.Kind {
	case kindStartup:
		c.state = scalingState(1)
		return 1

	case kindSettled:
		return c.dispatchSettled(now, latest, previous)

	case kindExploring:
		return c.dispatchExploring(latest, previous)

	case kindScaling:
		return c.dispatchScaling(latest, previous)

	default:
		return 0
	}
}

func (c *Controller) dispatchSettled(now time.Time, latest, previous metrics.Averaged) int {
	s := c.state
	if now.Before(s.Timeout) {
		return 0
	}

	var dir direction
	switch {
	case c.better(latest, previous):
		dir = dirUp
	case c.worse(latest, previous) || latest.StddevScaleMetric > previous.StddevScaleMetric*stddevGrowthFactor:
		dir = dirDown
	default:
		dir = s.LastDir.opposite()
	}

	c.state = exploringState(dir)
	return dir.signed(1)
}

func (c *Controller) dispatchExploring(latest, previous metrics.Averaged) int {
	dir := c.state.Dir

	if c.better(latest, previous) {
		c.state = scalingState(dir.signed(1))
		return dir.signed(1)
	}

	if (c.worse(latest, previous) && dir == dirDown) || dir == dirUp {
		revert := -dir.signed(1)
		c.state = settledState(time.Now().Add(settledCooldown), dir)
		return revert
	}

	// Same/better-but-not-meaningfully-so while exploring Down: keep
	// probing in the same direction without changing state.
	return dir.signed(1)
}

func (c *Controller) dispatchScaling(latest, previous metrics.Averaged) int {
	step := c.state.Step
	grown := growMagnitude(step, 1)

	if c.better(latest, previous) {
		c.state = scalingState(grown)
		return grown
	}

	c.state = settledState(time.Now(), directionOf(step))
	return 0
}

// better reports whether a is meaningfully better than b given the
// configured stability factor.
func (c *Controller) better(a, b metrics.Averaged) bool {
	return a.MeanScaleMetric*c.params.StabilityFactor > b.MeanScaleMetric
}

// worse reports whether a is meaningfully worse than b.
func (c *Controller) worse(a, b metrics.Averaged) bool {
	return b.MeanScaleMetric*c.params.StabilityFactor > a.MeanScaleMetric
}

func (c *Controller) logAdvice(queueSize, advice int) {
	latest, _ := c.avgHistory.Get(0)
	previous, _ := c.avgHistory.Get(1)
	c.log.Debug("scaling advice",
		"_I_QSIZE", queueSize,
		"_I_PSIZE", c.rawHistory.Size(),
		"_I_M1_VAL", latest.MeanScaleMetric,
		"_I_M2_VAL", previous.MeanScaleMetric,
		"_I_M1_STDDEV", latest.StddevScaleMetric,
		"_I_M2_STDDEV", previous.StddevScaleMetric,
		"ADVICE", advice,
	)
}

// Close releases the underlying traceset's resources.
func (c *Controller) Close() error {
	return c.traceset.Close()
}
