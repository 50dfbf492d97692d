package pool

import (
	"log/slog"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/jannes-thesis/scaling-adapter/internal/scaling"
)

// adaptiveWorkItem is an entry in an AdaptivePool's queue. Execute
// items (regular jobs) are pushed to the back; Clone and Terminate are
// control items the scaling controller injects via adaptSize, and are
// pushed to the front so the pool reacts to scaling advice before it
// drains whatever jobs are already queued.
type adaptiveWorkItem struct {
	job  Job
	kind adaptiveItemKind
}

type adaptiveItemKind int

const (
	itemExecute adaptiveItemKind = iota
	itemClone
	itemTerminate
)

// idlePollInterval is how long a worker with nothing to do sleeps
// before re-checking the queue and re-running adaptSize, mirroring
// adaptive.rs's poll loop (there is no blocking queue here: the
// controller must keep getting a chance to emit advice even when the
// pool is fully idle).
const idlePollInterval = 1000 * time.Millisecond

// AdaptivePool is component E: worker count is driven entirely by a
// scaling.Controller sampling each worker's own kernel I/O counters.
type AdaptivePool struct {
	queueMu  sync.Mutex
	queue    []adaptiveWorkItem
	stopping bool

	busyMu    sync.Mutex
	idleCond  *sync.Cond
	busyCount int

	workersMu sync.Mutex
	exitCond  *sync.Cond
	workers   map[int32]struct{}

	stopCh     chan struct{}
	controller *scaling.Controller
	log        *slog.Logger
}

// NewAdaptivePool starts a single worker and hands size control over to
// controller: every idle tick and every dequeue, the worker asks it for
// advice and enqueues Clone/Terminate items accordingly.
func NewAdaptivePool(controller *scaling.Controller, log *slog.Logger) *AdaptivePool {
	if log == nil {
		log = slog.Default()
	}
	p := &AdaptivePool{
		workers:    make(map[int32]struct{}),
		stopCh:     make(chan struct{}),
		controller: controller,
		log:        log,
	}
	p.idleCond = sync.NewCond(&p.busyMu)
	p.exitCond = sync.NewCond(&p.workersMu)

	p.spawnWorker()
	return p
}

func (p *AdaptivePool) spawnWorker() {
	go p.workerLoop()
}

func (p *AdaptivePool) workerLoop() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	tid := int32(unix.Gettid())

	p.log.Debug("adaptive worker startup", "tid", tid)
	p.workersMu.Lock()
	p.workers[tid] = struct{}{}
	p.workersMu.Unlock()

	if !p.controller.AddTracee(tid) {
		p.log.Error("worker could not register itself as a tracee", "tid", tid)
	}

	for {
		item, ok := p.popItem()
		p.adaptSize()

		if !ok && !p.isStopping() {
			select {
			case <-time.After(idlePollInterval):
			case <-p.stopCh:
			}
			p.adaptSize()
			continue
		}
		if p.isStopping() {
			break
		}
		if !ok {
			continue
		}

		switch item.kind {
		case itemExecute:
			p.busyMu.Lock()
			p.busyCount++
			p.busyMu.Unlock()

			item.job.Run()

			p.busyMu.Lock()
			p.busyCount--
			p.busyMu.Unlock()

		case itemClone:
			p.log.Debug("clone command: spawning new worker")
			p.spawnWorker()

		case itemTerminate:
			p.workersMu.Lock()
			last := len(p.workers) <= 1
			p.workersMu.Unlock()
			if last {
				p.log.Debug("terminate command ignored: last worker", "tid", tid)
				continue
			}
			p.log.Debug("terminate command", "tid", tid)
			goto exit
		}

		p.signalIfIdle()
	}
exit:
	p.controller.RemoveTracee(tid)
	p.workersMu.Lock()
	delete(p.workers, tid)
	p.log.Debug("adaptive worker terminating", "tid", tid, "remaining", len(p.workers))
	if len(p.workers) == 0 {
		p.exitCond.Broadcast()
	}
	p.workersMu.Unlock()
}

func (p *AdaptivePool) popItem() (adaptiveWorkItem, bool) {
	p.queueMu.Lock()
	defer p.queueMu.Unlock()
	if len(p.queue) == 0 {
		return adaptiveWorkItem{}, false
	}
	item := p.queue[0]
	p.queue = p.queue[1:]
	return item, true
}

func (p *AdaptivePool) isStopping() bool {
	p.queueMu.Lock()
	defer p.queueMu.Unlock()
	return p.stopping
}

// signalIfIdle wakes a blocked WaitCompletion once both the queue is
// drained and no worker is mid-job.
func (p *AdaptivePool) signalIfIdle() {
	p.queueMu.Lock()
	queueEmpty := len(p.queue) == 0
	p.queueMu.Unlock()

	p.busyMu.Lock()
	empty := p.busyCount == 0
	p.busyMu.Unlock()

	if empty && queueEmpty {
		p.busyMu.Lock()
		p.idleCond.Signal()
		p.busyMu.Unlock()
	}
}

// adaptSize asks the controller for advice and pushes enough Clone or
// Terminate control items to the front of the queue to act on it, so
// they're dequeued before whatever jobs are already waiting. A
// negative advice is clamped so it can never ask for more Terminate
// items than would leave at least one worker running - the controller
// has no notion of pool size, so this clamp can only live here.
func (p *AdaptivePool) adaptSize() {
	queueSize := p.queueLen()
	advice := p.controller.GetScalingAdvice(queueSize)
	if advice == 0 {
		return
	}

	if advice > 0 {
		items := make([]adaptiveWorkItem, advice)
		for i := range items {
			items[i] = adaptiveWorkItem{kind: itemClone}
		}
		p.prependItems(items)
		return
	}

	p.workersMu.Lock()
	maxTerminate := len(p.workers) - 1
	p.workersMu.Unlock()
	if maxTerminate < 0 {
		maxTerminate = 0
	}

	terminateCount := -advice
	if terminateCount > maxTerminate {
		terminateCount = maxTerminate
	}
	if terminateCount == 0 {
		return
	}

	items := make([]adaptiveWorkItem, terminateCount)
	for i := range items {
		items[i] = adaptiveWorkItem{kind: itemTerminate}
	}
	p.prependItems(items)
}

// prependItems inserts items at the front of the queue, preserving
// their relative order.
func (p *AdaptivePool) prependItems(items []adaptiveWorkItem) {
	p.queueMu.Lock()
	p.queue = append(items, p.queue...)
	p.queueMu.Unlock()
}

func (p *AdaptivePool) queueLen() int {
	p.queueMu.Lock()
	defer p.queueMu.Unlock()
	return len(p.queue)
}

// Submit implements Pool.
func (p *AdaptivePool) Submit(job Job) {
	p.queueMu.Lock()
	p.queue = append(p.queue, adaptiveWorkItem{job: job, kind: itemExecute})
	p.queueMu.Unlock()
}

// WaitCompletion implements Pool.
func (p *AdaptivePool) WaitCompletion() {
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
func (p *AdaptivePool) Destroy() {
	p.queueMu.Lock()
	p.stopping = true
	p.queueMu.Unlock()
	close(p.stopCh)

	p.workersMu.Lock()
	for len(p.workers) > 0 {
		p.exitCond.Wait()
	}
	p.workersMu.Unlock()
}

// Size implements Pool.
func (p *AdaptivePool) Size() int {
	p.workersMu.Lock()
	defer p.workersMu.Unlock()
	return len(p.workers)
}
