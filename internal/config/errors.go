package config

import "fmt"

// MissingFieldError represents a missing required field.
type MissingFieldError struct {
	Field string
}

func (err MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field: %s", err.Field)
}

// NotFoundError is returned when the watched directory does not exist.
type NotFoundError struct {
	Path string
}

func (err NotFoundError) Error() string {
	return fmt.Sprintf("%q does not exist or is not a directory", err.Path)
}
