package pool

import "errors"

// ErrTierLocked reports an accept attempt on an offer above the
// player's current reputation tier.
var ErrTierLocked = errors.New("offer locked behind a higher reputation tier")
