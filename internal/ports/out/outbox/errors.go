package outbox

import "errors"

var (
	ErrNotFound      = errors.New("outbox record not found")
	ErrAlreadyExists = errors.New("outbox record already exists")
)
