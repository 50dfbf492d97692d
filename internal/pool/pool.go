// Package pool implements the three worker-pool variants of components
// E, F and G: a job queue backed by a fixed, watermark-bounded, or
// scaling-advice-driven set of goroutine workers.
package pool

// Job is a unit of work submitted to a Pool. Run is executed on
// whichever worker goroutine dequeues it; it must not panic — workers
// do not recover panics, so a panicking job ends the whole process.
type Job struct {
	Run func()
}

// Pool is the shared contract for every variant in this package.
//
// Never call WaitCompletion and Destroy concurrently from different
// goroutines: both block on disjoint conditions over the same
// internal state and neither guarantees the other makes progress.
type Pool interface {
	// Submit enqueues job and returns immediately. The job runs on some
	// worker at an unspecified future time.
	Submit(job Job)

	// WaitCompletion blocks until the queue is empty and no worker is
	// mid-job. Callers must not submit concurrently with this call.
	WaitCompletion()

	// Destroy signals every worker to finish its current job and then
	// exit, and blocks until all of them have. A destroyed pool cannot
	// be reused.
	Destroy()

	// Size reports the current number of live workers.
	Size() int
}
