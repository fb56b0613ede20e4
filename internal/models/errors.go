package models

import (
	"errors"
)

var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("models: no matching record found")
	ErrInvalidPhone = errors.New("invalid phone number")
	ErrQueueFull    = errors.New("reminder queue is full")
)
