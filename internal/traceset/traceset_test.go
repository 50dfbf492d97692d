package traceset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSampler lets tests control counters deterministically instead of
// depending on live /proc state.
type fakeSampler struct {
	readBytes, writeBytes, blkioDelay uint64
	closed                            bool
}

func (f *fakeSampler) Sample(targets []int32, syscalls []int) (uint64, uint64, uint64, map[int]SyscallData, bool) {
	data := make(map[int]SyscallData, len(syscalls))
	for _, sc := range syscalls {
		data[sc] = SyscallData{Count: uint64(len(targets)), TotalTime: f.blkioDelay}
	}
	return f.readBytes, f.writeBytes, f.blkioDelay, data, true
}

func (f *fakeSampler) Close() error {
	f.closed = true
	return nil
}

func TestNew_RejectsTooManySyscalls(t *testing.T) {
	syscalls := make([]int, MaxSyscalls+1)
	_, err := New(&fakeSampler{}, nil, syscalls)
	require.ErrorIs(t, err, ErrTooManySyscalls)
}

func TestNew_RejectsNilSampler(t *testing.T) {
	_, err := New(nil, nil, nil)
	require.ErrorIs(t, err, ErrNoSampler)
}

func TestRegisterDeregisterTarget_Idempotent(t *testing.T) {
	ts, err := New(&fakeSampler{}, nil, []int{0, 1})
	require.NoError(t, err)

	assert.True(t, ts.RegisterTarget(5))
	assert.True(t, ts.RegisterTarget(5)) // no-op, still reports success
	assert.Equal(t, []int32{5}, ts.Targets())

	assert.True(t, ts.DeregisterTarget(5))
	assert.True(t, ts.DeregisterTarget(5)) // idempotent
	assert.Empty(t, ts.Targets())
}

func TestRegisterTargets_Bulk_ReturnsChangedCount(t *testing.T) {
	ts, err := New(&fakeSampler{}, []int32{1}, nil)
	require.NoError(t, err)

	n := ts.RegisterTargets([]int32{1, 2, 3})
	assert.Equal(t, 2, n) // 1 already present, 2 and 3 are new

	n = ts.DeregisterTargets([]int32{2, 99})
	assert.Equal(t, 1, n) // only 2 was present
}

func TestGetSnapshot_TargetsMatchRegistrationAtReadTime(t *testing.T) {
	ts, err := New(&fakeSampler{readBytes: 100, writeBytes: 50}, []int32{1, 2}, []int{0})
	require.NoError(t, err)

	snap := ts.GetSnapshot()
	assert.Equal(t, []int32{1, 2}, snap.Targets)
	assert.Equal(t, uint64(100), snap.ReadBytes)
	assert.Equal(t, uint64(50), snap.WriteBytes)
	assert.False(t, snap.Timestamp.IsZero())
}

func TestClose_DelegatesToSampler(t *testing.T) {
	fs := &fakeSampler{}
	ts, err := New(fs, nil, nil)
	require.NoError(t, err)
	require.NoError(t, ts.Close())
	assert.True(t, fs.closed)
}

func TestNullSyscallSampler_AlwaysZero(t *testing.T) {
	data := NullSyscallSampler{}.SampleSyscalls([]int32{1}, []int{0, 1})
	assert.Equal(t, SyscallData{}, data[0])
	assert.Equal(t, SyscallData{}, data[1])
}
