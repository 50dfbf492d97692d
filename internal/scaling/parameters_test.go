package scaling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParameters_StringParseRoundTrip(t *testing.T) {
	base := DefaultParameters()
	base.CheckIntervalMs = 500
	base.StabilityFactor = 0.85
	base.AveragingDurationMs = 2500

	parsed, err := ParseParameterString(base, base.String())
	require.NoError(t, err)
	assert.Equal(t, base.CheckIntervalMs, parsed.CheckIntervalMs)
	assert.InDelta(t, base.StabilityFactor, parsed.StabilityFactor, 1e-9)
	assert.Equal(t, base.AveragingDurationMs, parsed.AveragingDurationMs)
	assert.Equal(t, base.SyscallNrs, parsed.SyscallNrs, "non-tunable fields survive untouched")
}

func TestParseParameterString_WrongFieldCount(t *testing.T) {
	_, err := ParseParameterString(DefaultParameters(), "1000,0.9")
	require.ErrorIs(t, err, ErrMalformedParameters)
}

func TestParseParameterString_NonNumericField(t *testing.T) {
	_, err := ParseParameterString(DefaultParameters(), "abc,0.9,3000")
	require.ErrorIs(t, err, ErrMalformedParameters)
}

func TestParseParameterString_NoPartialStateOnError(t *testing.T) {
	base := DefaultParameters()
	out, err := ParseParameterString(base, "1000,not-a-float,3000")
	require.Error(t, err)
	assert.Equal(t, Parameters{}, out, "error must return the zero value, not a partially-applied base")
}

func TestDefaultParameters_RespectsMaxSyscalls(t *testing.T) {
	params := DefaultParameters()
	assert.LessOrEqual(t, len(params.SyscallNrs), 8)
}
