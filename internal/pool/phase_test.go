package pool

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jannes-thesis/scaling-adapter/internal/scaling"
	"github.com/jannes-thesis/scaling-adapter/internal/traceset"
)

// phaseSampler reports a caller-controlled read-byte delta on every
// Sample call, letting a test drive an AdaptivePool through a bursty
// phase (rising throughput) followed by a steady phase (flat
// throughput), the same shape cmd/ioscale's job generator drives
// against a real /proc sampler.
type phaseSampler struct {
	delta atomic.Int64
	total atomic.Int64
}

func (s *phaseSampler) setDelta(n int64) { s.delta.Store(n) }

func (s *phaseSampler) Sample(targets []int32, syscalls []int) (uint64, uint64, uint64, map[int]traceset.SyscallData, bool) {
	total := s.total.Add(s.delta.Load())
	return uint64(total), 0, 0, map[int]traceset.SyscallData{}, true
}

func (s *phaseSampler) Close() error { return nil }

// TestPhaseSchedule_GrowsDuringBurstThenSettles drives an AdaptivePool
// through a rising-throughput burst phase followed by a flat steady
// phase and checks the pool grows during the burst and doesn't keep
// climbing once throughput plateaus.
func TestPhaseSchedule_GrowsDuringBurstThenSettles(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping real-time phase simulation in -short mode")
	}

	params := scaling.DefaultParameters()
	params.CheckIntervalMs = 1 // only the fine-sampling throttle should gate evaluation
	params.AveragingDurationMs = 50

	sampler := &phaseSampler{}
	controller, err := scaling.New(sampler, params, discardLogger())
	require.NoError(t, err)

	p := NewAdaptivePool(controller, discardLogger())
	defer p.Destroy()

	var completed atomic.Int64
	submitN := func(n int) {
		for i := 0; i < n; i++ {
			p.Submit(Job{Run: func() { completed.Add(1) }})
		}
	}

	// Burst phase: each window reports a larger delta than the last,
	// so every averaged window looks better than the previous one and
	// the controller should keep growing the pool.
	for i := int64(1); i <= 8; i++ {
		sampler.setDelta(1000 * i)
		submitN(5)
		controller.GetScalingAdvice(0)
		time.Sleep(210 * time.Millisecond) // clear the fine-sampling throttle
	}
	require.Eventually(t, func() bool { return p.Size() > 1 }, time.Second, 5*time.Millisecond)
	grownSize := p.Size()

	// Steady phase: throughput drops back to a flat baseline, so
	// growth should stop and the pool should hold or shrink rather
	// than keep climbing.
	sampler.setDelta(1000)
	for i := 0; i < 8; i++ {
		submitN(1)
		controller.GetScalingAdvice(0)
		time.Sleep(210 * time.Millisecond)
	}

	p.WaitCompletion()
	assert.GreaterOrEqual(t, p.Size(), 1)
	assert.LessOrEqual(t, p.Size(), grownSize+4)
}
