package pool

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// watermarkItem is either a job to run or an instruction for the
// dequeuing worker to clone itself before continuing.
type watermarkItem struct {
	job     Job
	isJob   bool
	isClone bool
}

// backlogCloneThreshold mirrors watermark.rs: once more than this many
// items are already queued behind a submission, the pool tries to grow
// by one worker.
const backlogCloneThreshold = 5

// WatermarkPool is component F: workers scale between MinSize and
// MaxSize based on queue backlog, and idle workers above MinSize exit
// after IdleThreshold with nothing to do.
type WatermarkPool struct {
	queueMu   sync.Mutex
	queueCond *sync.Cond
	queue     []watermarkItem
	stopping  bool

	busyMu    sync.Mutex
	idleCond  *sync.Cond
	busyCount int

	workersMu    sync.Mutex
	exitCond     *sync.Cond
	workers      map[int]struct{}
	nextWorkerID int

	minSize       int
	maxSize       int
	idleThreshold time.Duration
	currentSize   atomic.Int64

	log *slog.Logger
}

// NewWatermarkPool starts minSize workers. maxSize bounds how far the
// pool may grow in response to backlog; idleThreshold is how long an
// above-minimum worker waits on an empty queue before exiting.
func NewWatermarkPool(minSize, maxSize int, idleThreshold time.Duration, log *slog.Logger) *WatermarkPool {
	if log == nil {
		log = slog.Default()
	}
	p := &WatermarkPool{
		workers:       make(map[int]struct{}, maxSize),
		minSize:       minSize,
		maxSize:       maxSize,
		idleThreshold: idleThreshold,
		log:           log,
	}
	p.queueCond = sync.NewCond(&p.queueMu)
	p.idleCond = sync.NewCond(&p.busyMu)
	p.exitCond = sync.NewCond(&p.workersMu)
	p.currentSize.Store(int64(minSize))

	for i := 0; i < minSize; i++ {
		p.spawnWorker()
	}
	return p
}

func (p *WatermarkPool) spawnWorker() {
	p.workersMu.Lock()
	id := p.nextWorkerID
	p.nextWorkerID++
	p.workers[id] = struct{}{}
	p.workersMu.Unlock()

	go p.workerLoop(id)
}

// Submit implements Pool. Backlog beyond backlogCloneThreshold requests
// one extra worker, capped at MaxSize; an empty queue wakes exactly one
// blocked worker.
func (p *WatermarkPool) Submit(job Job) {
	p.queueMu.Lock()
	backlog := len(p.queue)
	p.queue = append(p.queue, watermarkItem{job: job, isJob: true})
	if backlog == 0 {
		p.queueCond.Signal()
	} else if backlog > backlogCloneThreshold {
		grown := p.currentSize.Add(1)
		if grown > int64(p.maxSize) {
			p.currentSize.Add(-1)
		} else {
			p.queue = append(p.queue, watermarkItem{isClone: true})
		}
	}
	p.queueMu.Unlock()
}

func (p *WatermarkPool) workerLoop(id int) {
	p.log.Debug("watermark worker startup", "worker_id", id)
	for {
		p.queueMu.Lock()
		item, ok, timedOut := p.popOrWait()
		if timedOut {
			p.queueMu.Unlock()
			if p.tryTerminateOnIdle() {
				break
			}
			continue
		}
		if !ok { // stopping, nothing left
			p.currentSize.Add(-1)
			p.queueCond.Signal() // wake any other blocked worker so it can exit too
			p.queueMu.Unlock()
			break
		}
		p.queueMu.Unlock()

		p.busyMu.Lock()
		p.busyCount++
		p.busyMu.Unlock()

		if item.isClone {
			p.spawnWorker()
		} else {
			item.job.Run()
		}

		p.busyMu.Lock()
		p.busyCount--
		empty := p.busyCount == 0
		p.busyMu.Unlock()

		p.queueMu.Lock()
		queueEmpty := len(p.queue) == 0
		p.queueMu.Unlock()

		if empty && queueEmpty {
			p.busyMu.Lock()
			p.idleCond.Signal()
			p.busyMu.Unlock()
		}
	}

	p.workersMu.Lock()
	delete(p.workers, id)
	p.log.Debug("watermark worker terminating", "worker_id", id, "remaining", len(p.workers))
	if len(p.workers) == 0 {
		p.exitCond.Signal()
	}
	p.workersMu.Unlock()
}

// popOrWait must be called with queueMu held. It returns the next item
// (ok=true), or ok=false if the pool is stopping with nothing left, or
// timedOut=true if idleThreshold elapsed with the queue still empty.
// Always returns with queueMu held.
func (p *WatermarkPool) popOrWait() (watermarkItem, bool, bool) {
	deadline := time.Now().Add(p.idleThreshold)
	for len(p.queue) == 0 && !p.stopping {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return watermarkItem{}, false, true
		}
		waitTimeout(p.queueCond, remaining)
	}
	if len(p.queue) == 0 {
		return watermarkItem{}, false, false // stopping, queue drained
	}
	item := p.queue[0]
	p.queue = p.queue[1:]
	return item, true, false
}

// tryTerminateOnIdle decrements currentSize and reports whether this
// worker should actually exit. If the pool is already at minSize the
// decrement is reverted and the worker keeps polling instead.
func (p *WatermarkPool) tryTerminateOnIdle() bool {
	before := p.currentSize.Add(-1) + 1
	if before <= int64(p.minSize) {
		p.currentSize.Add(1)
		return false
	}
	return true
}

// waitTimeout blocks on cond until signaled or timeout elapses. cond.L
// must be held by the caller; it is released for the duration of the
// wait and re-acquired before returning, matching sync.Cond.Wait.
func waitTimeout(cond *sync.Cond, timeout time.Duration) {
	timer := time.AfterFunc(timeout, func() {
		cond.L.Lock()
		cond.Broadcast()
		cond.L.Unlock()
	})
	cond.Wait()
	timer.Stop()
}

// WaitCompletion implements Pool.
func (p *WatermarkPool) WaitCompletion() {
	p.busyMu.Lock()
	for {
		p.queueMu.Lock()
		queueEmpty := len(p.queue) == 0
		p.queueMu.Unlock()
		if p.busyCount == 0 && queueEmpty {
			break
		}
		p.idleCond.Wait()
	}
	p.busyMu.Unlock()
}

// Destroy implements Pool.
func (p *WatermarkPool) Destroy() {
	p.queueMu.Lock()
	p.stopping = true
	p.queueCond.Broadcast()
	p.queueMu.Unlock()

	p.workersMu.Lock()
	for len(p.workers) > 0 {
		p.exitCond.Wait()
	}
	p.workersMu.Unlock()
}

// Size implements Pool.
func (p *WatermarkPool) Size() int {
	p.workersMu.Lock()
	defer p.workersMu.Unlock()
	return len(p.workers)
}
