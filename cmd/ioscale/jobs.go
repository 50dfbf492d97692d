package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jannes-thesis/scaling-adapter/internal/pool"
)

// diskJob performs a small amount of real disk I/O — enough to move the
// needle on read_bytes/write_bytes/delayacct_blkio_ticks when a worker
// executes it, so the adaptive controller has something to react to.
func diskJob(dir string, sizeBytes int) pool.Job {
	return pool.Job{Run: func() {
		f, err := os.CreateTemp(dir, "ioscale-job-*")
		if err != nil {
			return
		}
		defer os.Remove(f.Name())
		defer f.Close()

		buf := make([]byte, sizeBytes)
		_, _ = f.Write(buf)
		_ = f.Sync()
		_, _ = f.Seek(0, io.SeekStart)
		_, _ = io.Copy(io.Discard, f)
	}}
}

// phaseSchedule describes a bursty-then-steady synthetic workload:
// multi_phase.rs in the original project alternates dense arrival
// bursts with a steady trickle to watch the controller re-settle.
type phaseSchedule struct {
	burstJobs     int
	burstSpacing  time.Duration
	steadyJobs    int
	steadySpacing time.Duration
	phaseDuration time.Duration
}

func defaultPhaseSchedule() phaseSchedule {
	return phaseSchedule{
		burstJobs:     40,
		burstSpacing:  5 * time.Millisecond,
		steadyJobs:    40,
		steadySpacing: 200 * time.Millisecond,
		phaseDuration: 10 * time.Second,
	}
}

// run feeds p with disk jobs according to the schedule until stop is
// closed, alternating bursty and steady phases every phaseDuration.
func (s phaseSchedule) run(p pool.Pool, workDir string, stop <-chan struct{}) {
	bursty := true
	for {
		deadline := time.After(s.phaseDuration)
		spacing := s.steadySpacing
		if bursty {
			spacing = s.burstSpacing
		}
		ticker := time.NewTicker(spacing)

	phase:
		for {
			select {
			case <-stop:
				ticker.Stop()
				return
			case <-deadline:
				ticker.Stop()
				break phase
			case <-ticker.C:
				p.Submit(diskJob(workDir, 64*1024))
			}
		}
		bursty = !bursty
	}
}

// steadyOnly feeds a constant trickle of jobs, used when --phase is not
// requested.
func steadyOnly(p pool.Pool, workDir string, spacing time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(spacing)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.Submit(diskJob(workDir, 64*1024))
		}
	}
}

func ensureWorkDir(path string) (string, error) {
	if path == "" {
		path = filepath.Join(os.TempDir(), "ioscale-workdir")
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", fmt.Errorf("create work dir: %w", err)
	}
	return path, nil
}
