package pool

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatermarkPool_StartsAtMinSize(t *testing.T) {
	p := NewWatermarkPool(2, 8, time.Second, nil)
	defer p.Destroy()

	require.Eventually(t, func() bool { return p.Size() == 2 }, time.Second, 5*time.Millisecond)
}

func TestWatermarkPool_GrowsUnderBacklog(t *testing.T) {
	p := NewWatermarkPool(1, 6, 2*time.Second, nil)
	defer p.Destroy()

	// Growth is a Clone item queued behind the backlog, so the jobs
	// must finish for a worker to reach it.
	var started atomic.Int64
	for i := 0; i < 10; i++ {
		p.Submit(Job{Run: func() {
			started.Add(1)
			time.Sleep(20 * time.Millisecond)
		}})
	}

	require.Eventually(t, func() bool { return p.Size() > 1 }, 2*time.Second, 10*time.Millisecond,
		"backlog beyond the clone threshold should grow the pool above minSize")

	p.WaitCompletion()
}

func TestWatermarkPool_NeverExceedsMaxSize(t *testing.T) {
	p := NewWatermarkPool(1, 3, 2*time.Second, nil)
	defer p.Destroy()

	block := make(chan struct{})
	for i := 0; i < 30; i++ {
		p.Submit(Job{Run: func() { <-block }})
	}

	time.Sleep(200 * time.Millisecond)
	assert.LessOrEqual(t, p.Size(), 3)
	close(block)
	p.WaitCompletion()
}

func TestWatermarkPool_ShrinksToMinSizeAfterIdle(t *testing.T) {
	p := NewWatermarkPool(1, 5, 50*time.Millisecond, nil)
	defer p.Destroy()

	// As above, the queued Clone items are only reached once jobs finish.
	for i := 0; i < 10; i++ {
		p.Submit(Job{Run: func() { time.Sleep(20 * time.Millisecond) }})
	}
	require.Eventually(t, func() bool { return p.Size() > 1 }, time.Second, 10*time.Millisecond)
	p.WaitCompletion()

	require.Eventually(t, func() bool { return p.Size() == 1 }, 2*time.Second, 10*time.Millisecond,
		"idle workers above minSize should exit after idleThreshold")
}

func TestWatermarkPool_DestroyDrainsWorkers(t *testing.T) {
	p := NewWatermarkPool(3, 5, time.Second, nil)
	require.Eventually(t, func() bool { return p.Size() == 3 }, time.Second, 5*time.Millisecond)

	p.Destroy()
	assert.Equal(t, 0, p.Size())
}
