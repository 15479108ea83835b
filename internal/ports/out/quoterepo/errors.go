package quoterepo

import "errors"

var (
	ErrNotFound      = errors.New("quote not found")
	ErrAlreadyExists = errors.New("quote already exists")
)
