package idempotency

import "errors"

// ErrDuplicateKey indicates a live record already exists for the key.
var ErrDuplicateKey = errors.New("idempotency key already bound")
