package traceset

import "errors"

var (
	// ErrTooManySyscalls is returned by New when more than MaxSyscalls
	// syscall numbers are requested.
	ErrTooManySyscalls = errors.New("traceset: at most 8 syscalls may be traced")

	// ErrNoSampler is returned by New when no Sampler is supplied.
	ErrNoSampler = errors.New("traceset: sampler is required")

	// ErrFacilityUnavailable is returned by sampler constructors when
	// the host does not support the requested tracing facility.
	ErrFacilityUnavailable = errors.New("traceset: tracing facility unavailable")

	// ErrNoPIDs is returned by the /proc/<tid>/stat reader when a stat
	// line has no ") " after its comm field. ProcSampler.Sample skips
	// such a target rather than returning the error.
	ErrNoPIDs = errors.New("traceset: no targets to sample")
)
