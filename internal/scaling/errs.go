package scaling

import "errors"

// ErrMalformedParameters is returned by ParseParameterString when the
// input does not match "<check_ms>,<stability>,<avg_duration_ms>".
var ErrMalformedParameters = errors.New("scaling: malformed parameter string")
