package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrInvalidInput    = errors.New("invalid input")
	ErrMalformedUpload = errors.New("malformed upload")
	ErrTenantExists    = errors.New("tenant already exists")
)
