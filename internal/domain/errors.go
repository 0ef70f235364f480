package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrInvalidInput    = errors.New("invalid input")
	ErrClaimHeld       = errors.New("scene generation already in progress")
	ErrEmptyScript     = errors.New("script contains empty scenes")
	ErrProviderFailure = errors.New("provider failure")
	ErrNoCredential    = errors.New("service credential missing or malformed")
)
