package service

import "errors"

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidDuration   = errors.New("expiresInSeconds must be between 1 and 86400")
	ErrNotFoundOrExpired = errors.New("not_found_or_expired")
	ErrConflict          = errors.New("conflict")
	ErrRoomNotFound      = errors.New("room not found")
	ErrInternalServer    = errors.New("internal server error")
)
