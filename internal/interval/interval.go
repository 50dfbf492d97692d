// Package interval differences two traceset snapshots into a validated
// interval, per component B of the design.
package interval

import (
	"log/slog"
	"time"

	"github.com/jannes-thesis/scaling-adapter/internal/traceset"
)

// Data is the delta between two TracesetSnapshot values. It is only
// constructed when the two snapshots share an identical target set;
// otherwise the counter deltas would conflate different populations.
type Data struct {
	Start, End    time.Time
	ReadBytes     uint64
	WriteBytes    uint64
	BlkioDelay    uint64
	SyscallsData  map[int]traceset.SyscallData
	AmountTargets int
}

// DurationMillis returns the interval's wall-clock span in whole
// milliseconds, at least 1 to avoid division by zero downstream.
func (d Data) DurationMillis() int64 {
	ms := d.End.Sub(d.Start).Milliseconds()
	if ms < 1 {
		return 1
	}
	return ms
}

// New differences earlier and later into a Data value. It returns
// (Data{}, false) when the two snapshots' target sets differ — an
// invalid interval, surfaced as a sentinel rather than an error.
//
// Field deltas saturate at zero instead of going negative: a later
// counter smaller than an earlier one indicates the kernel counter
// wrapped, or (with the traceset package's /proc-backed sampler) that a tracee
// was removed between reads. log, if non-nil, receives one Warn per
// anomalous field so operators can see it without the controller
// treating it as fatal.
func New(earlier, later traceset.TracesetSnapshot, log *slog.Logger) (Data, bool) {
	if !sameTargets(earlier.Targets, later.Targets) {
		return Data{}, false
	}
	if log == nil {
		log = slog.Default()
	}

	readBytes := saturatingSub(later.ReadBytes, earlier.ReadBytes, "read_bytes", log)
	writeBytes := saturatingSub(later.WriteBytes, earlier.WriteBytes, "write_bytes", log)
	blkioDelay := saturatingSub(later.BlkioDelay, earlier.BlkioDelay, "blkio_delay", log)

	syscallsData := make(map[int]traceset.SyscallData, len(earlier.SyscallsData))
	for sc, earlierData := range earlier.SyscallsData {
		laterData, ok := later.SyscallsData[sc]
		if !ok {
			continue
		}
		syscallsData[sc] = traceset.SyscallData{
			Count:     saturatingSub(laterData.Count, earlierData.Count, "syscall_count", log),
			TotalTime: saturatingSub(laterData.TotalTime, earlierData.TotalTime, "syscall_total_time", log),
		}
	}

	return Data{
		Start:         earlier.Timestamp,
		End:           later.Timestamp,
		ReadBytes:     readBytes,
		WriteBytes:    writeBytes,
		BlkioDelay:    blkioDelay,
		SyscallsData:  syscallsData,
		AmountTargets: len(earlier.Targets),
	}, true
}

func sameTargets(a, b []int32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// saturatingSub returns later-earlier, clamped to zero on wrap, logging
// one warning each time a wrap is observed.
func saturatingSub(later, earlier uint64, field string, log *slog.Logger) uint64 {
	if later >= earlier {
		return later - earlier
	}
	log.Warn("counter anomaly: later value smaller than earlier, treating delta as zero",
		"field", field, "earlier", earlier, "later", later)
	return 0
}
