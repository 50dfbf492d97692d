package interval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jannes-thesis/scaling-adapter/internal/traceset"
)

func snap(targets []int32, readBytes, writeBytes, blkio uint64, t time.Time, syscalls map[int]traceset.SyscallData) traceset.TracesetSnapshot {
	return traceset.TracesetSnapshot{
		ReadBytes:    readBytes,
		WriteBytes:   writeBytes,
		BlkioDelay:   blkio,
		SyscallsData: syscalls,
		Targets:      targets,
		Timestamp:    t,
	}
}

func TestNew_RejectsMismatchedTargetSets(t *testing.T) {
	now := time.Now()
	a := snap([]int32{1, 2}, 0, 0, 0, now, nil)
	b := snap([]int32{1, 2, 3}, 0, 0, 0, now.Add(time.Second), nil)

	_, ok := New(a, b, nil)
	assert.False(t, ok)
}

func TestNew_ValidInterval_ComputesDeltas(t *testing.T) {
	start := time.Now()
	end := start.Add(500 * time.Millisecond)
	targets := []int32{1, 2}

	earlier := snap(targets, 100, 50, 10, start, map[int]traceset.SyscallData{
		0: {Count: 5, TotalTime: 1000},
	})
	later := snap(targets, 300, 80, 25, end, map[int]traceset.SyscallData{
		0: {Count: 9, TotalTime: 1800},
	})

	data, ok := New(earlier, later, nil)
	require.True(t, ok)
	assert.Equal(t, uint64(200), data.ReadBytes)
	assert.Equal(t, uint64(30), data.WriteBytes)
	assert.Equal(t, uint64(15), data.BlkioDelay)
	assert.Equal(t, 2, data.AmountTargets)
	assert.Equal(t, uint64(4), data.SyscallsData[0].Count)
	assert.Equal(t, uint64(800), data.SyscallsData[0].TotalTime)
}

func TestNew_SaturatesOnCounterWrap(t *testing.T) {
	start := time.Now()
	end := start.Add(time.Second)
	targets := []int32{1}

	earlier := snap(targets, 500, 0, 0, start, nil)
	later := snap(targets, 100, 0, 0, end, nil) // wrapped/reset below earlier

	data, ok := New(earlier, later, nil)
	require.True(t, ok)
	assert.Equal(t, uint64(0), data.ReadBytes)
}

func TestAdditivity_DeltaOfDirectEqualsSumOfChained(t *testing.T) {
	t1 := time.Now()
	t2 := t1.Add(time.Second)
	t3 := t2.Add(time.Second)
	targets := []int32{7}

	s1 := snap(targets, 10, 20, 1, t1, nil)
	s2 := snap(targets, 40, 55, 3, t2, nil)
	s3 := snap(targets, 90, 100, 9, t3, nil)

	direct, ok := New(s1, s3, nil)
	require.True(t, ok)

	first, ok := New(s1, s2, nil)
	require.True(t, ok)
	second, ok := New(s2, s3, nil)
	require.True(t, ok)

	assert.Equal(t, direct.ReadBytes, first.ReadBytes+second.ReadBytes)
	assert.Equal(t, direct.WriteBytes, first.WriteBytes+second.WriteBytes)
	assert.Equal(t, direct.BlkioDelay, first.BlkioDelay+second.BlkioDelay)
}

func TestDurationMillis_FloorsAtOne(t *testing.T) {
	now := time.Now()
	d := Data{Start: now, End: now}
	assert.Equal(t, int64(1), d.DurationMillis())
}
