package app

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrFileNotFound = errors.New("file not found")
)
