// Package traceset implements the façade described in component A: a
// registry of tracee thread identifiers whose per-target I/O and syscall
// counters can be read atomically as a TracesetSnapshot.
package traceset

import (
	"sort"
	"sync"
	"time"
)

// SyscallData holds the aggregate count and total time spent in one
// syscall number across all registered tracees.
type SyscallData struct {
	Count     uint64
	TotalTime uint64 // nanoseconds
}

// TracesetSnapshot is an immutable point-in-time read of a Traceset's
// counters. Two snapshots of the same Traceset are later differenced by
// package interval into an interval.Data.
type TracesetSnapshot struct {
	ReadBytes    uint64
	WriteBytes   uint64
	BlkioDelay   uint64
	SyscallsData map[int]SyscallData
	Targets      []int32 // sorted, owned copy
	Timestamp    time.Time
}

// MaxSyscalls is the maximum number of syscall numbers a Traceset can
// track at once, matching the underlying tracing facility's limit.
const MaxSyscalls = 8

// Sampler is the pluggable source of kernel-visible counters for a set
// of tracee identifiers. It is the seam between this package and
// whatever facility actually watches thread I/O (a ptrace-based tracer,
// a BPF program, /proc polling, or a test double). See ProcSampler for
// the shipped /proc-backed implementation.
type Sampler interface {
	// Sample returns the current aggregate counters for targets, plus
	// per-syscall data for the requested syscall numbers. ok is false
	// if the underlying facility is unavailable (construction should
	// already have failed in that case, but Sample may still degrade).
	Sample(targets []int32, syscalls []int) (readBytes, writeBytes, blkioDelay uint64, syscallsData map[int]SyscallData, ok bool)
	// Close releases any resources held for this set of targets.
	Close() error
}

// Traceset owns a set of tracee identifiers and the syscall numbers of
// interest, and produces TracesetSnapshot values on demand.
//
// Registration of targets is the only mutable state; everything else is
// read through the Sampler without holding an exclusive lock, matching
// the kernel-facility contract: counters are updated out of band and
// callers tolerate very small per-field skew.
type Traceset struct {
	mu       sync.RWMutex
	targets  map[int32]struct{}
	syscalls []int
	sampler  Sampler
}

// New allocates a Traceset backed by sampler, tracking at most
// MaxSyscalls syscall numbers. It returns ErrTooManySyscalls for more
// than MaxSyscalls syscalls and ErrNoSampler for a nil sampler; it does
// not probe the facility itself.
func New(sampler Sampler, targets []int32, syscalls []int) (*Traceset, error) {
	if len(syscalls) > MaxSyscalls {
		return nil, ErrTooManySyscalls
	}
	if sampler == nil {
		return nil, ErrNoSampler
	}
	ts := &Traceset{
		targets:  make(map[int32]struct{}, len(targets)),
		syscalls: append([]int(nil), syscalls...),
		sampler:  sampler,
	}
	for _, t := range targets {
		ts.targets[t] = struct{}{}
	}
	return ts, nil
}

// RegisterTarget adds tid to the traceset. Idempotent: registering an
// already-present tid is a no-op and reports success.
func (t *Traceset) RegisterTarget(tid int32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.targets[tid] = struct{}{}
	return true
}

// DeregisterTarget removes tid from the traceset. Idempotent.
func (t *Traceset) DeregisterTarget(tid int32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.targets, tid)
	return true
}

// RegisterTargets registers each tid and returns how many changed the
// local set (were not already present).
func (t *Traceset) RegisterTargets(tids []int32) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, tid := range tids {
		if _, exists := t.targets[tid]; !exists {
			n++
		}
		t.targets[tid] = struct{}{}
	}
	return n
}

// DeregisterTargets deregisters each tid and returns how many were
// actually removed.
func (t *Traceset) DeregisterTargets(tids []int32) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, tid := range tids {
		if _, exists := t.targets[tid]; exists {
			n++
		}
		delete(t.targets, tid)
	}
	return n
}

// Targets returns a sorted snapshot of the currently registered tracee
// identifiers.
func (t *Traceset) Targets() []int32 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.sortedTargetsLocked()
}

func (t *Traceset) sortedTargetsLocked() []int32 {
	out := make([]int32, 0, len(t.targets))
	for tid := range t.targets {
		out = append(out, tid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// GetSnapshot samples the underlying counters without holding an
// exclusive lock on the targets set, then pairs the sample with the set
// of targets that were in effect at read time.
func (t *Traceset) GetSnapshot() TracesetSnapshot {
	t.mu.RLock()
	targets := t.sortedTargetsLocked()
	syscalls := t.syscalls
	t.mu.RUnlock()

	readBytes, writeBytes, blkioDelay, syscallsData, _ := t.sampler.Sample(targets, syscalls)
	if syscallsData == nil {
		syscallsData = make(map[int]SyscallData)
	}
	return TracesetSnapshot{
		ReadBytes:    readBytes,
		WriteBytes:   writeBytes,
		BlkioDelay:   blkioDelay,
		SyscallsData: syscallsData,
		Targets:      targets,
		Timestamp:    time.Now(),
	}
}

// Close releases the kernel resources backing this traceset. It must be
// called even on abnormal shutdown; callers typically defer it.
func (t *Traceset) Close() error {
	return t.sampler.Close()
}
