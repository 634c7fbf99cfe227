package domain

import "errors"

var (
	ErrNotFound          = errors.New("invitation not found")
	ErrAlreadyExists     = errors.New("invitation code already exists")
	ErrAlreadyUsed       = errors.New("invitation cannot be used")
	ErrExpired           = errors.New("invitation expired")
	ErrLimitReached      = errors.New("invitation usage limit reached")
	ErrInvalidCode       = errors.New("invalid invitation code")
	ErrInvalidUsageLimit = errors.New("invalid usage limit")
)
