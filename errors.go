package simplefs

import "fmt"

// Error is a sentinel error. Sentinels carry no context of their own; use
// WithMessage or Wrap to attach detail while keeping [errors.Is] working
// against the sentinel.
type Error string

const ErrAlreadyInProgress = Error("Operation already in progress")
const ErrArgumentOutOfRange = Error("Numerical argument out of domain")
const ErrBusy = Error("Device or resource busy")
const ErrFileSystemCorrupted = Error("Structure needs cleaning")
const ErrFileTooLarge = Error("File too large")
const ErrInvalidArgument = Error("Invalid argument")
const ErrInvalidFileSystem = Error("Wrong medium type")
const ErrIOFailed = Error("Input/output error")
const ErrNoSpaceOnDevice = Error("No space left on device")
const ErrNotFound = Error("No such file or directory")
const ErrNotMounted = Error("File system not mounted")

func (e Error) Error() string {
	return string(e)
}

// WithMessage returns a new error whose text is the sentinel's message
// followed by `message`. The result matches the sentinel under [errors.Is].
func (e Error) WithMessage(message string) error {
	return wrappedError{
		message:  fmt.Sprintf("%s: %s", string(e), message),
		sentinel: e,
	}
}

// Wrap returns a new error combining the sentinel with an underlying cause.
// The result matches both the sentinel and `err` under [errors.Is].
func (e Error) Wrap(err error) error {
	return wrappedError{
		message:  fmt.Sprintf("%s: %s", string(e), err.Error()),
		sentinel: e,
		cause:    err,
	}
}

type wrappedError struct {
	message  string
	sentinel Error
	cause    error
}

func (e wrappedError) Error() string {
	return e.message
}

func (e wrappedError) Is(target error) bool {
	return target == e.sentinel
}

func (e wrappedError) Unwrap() error {
	return e.cause
}
