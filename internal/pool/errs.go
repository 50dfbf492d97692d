package pool

import "errors"

// ErrPoolDestroyed names the state of a pool that has completed
// Destroy. No Pool method returns it: Submit has no error result, and
// use of a pool after Destroy is not checked.
var ErrPoolDestroyed = errors.New("pool: already destroyed")
