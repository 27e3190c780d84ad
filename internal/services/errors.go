package services

import "errors"

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrDocumentNotFound = errors.New("document not found")
	ErrForbidden        = errors.New("forbidden")
	ErrValidation       = errors.New("invalid input")
)
