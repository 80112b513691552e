package domain

import "errors"

var (
	ErrAppNotFound      = errors.New("app not found")
	ErrNamespaceStopped = errors.New("namespace stopped")
	ErrInvalidFrame     = errors.New("invalid protocol frame")
	ErrInvalidPublish   = errors.New("invalid publish request")
	ErrConnectionClosed = errors.New("connection closed")
)
