package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport indicates the node API could not be reached or answered with a non-200 status
	ErrTransport = errors.New("transport error")

	// ErrDecompression indicates the response body is not a valid zstd stream
	ErrDecompression = errors.New("decompression error")

	// ErrMalformedPayload indicates the decompressed body is not a valid node list
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrNotification indicates the webhook rejected a report
	ErrNotification = errors.New("notification error")

	// ErrInvalidConfig indicates the configuration could not be used
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("resource not found")
)

// Wrap wraps an error with a message
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted message
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Mark attaches a sentinel to cause so that both match errors.Is.
func Mark(sentinel, cause error) error {
	if cause == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", sentinel, cause)
}

// Is checks if an error matches a target error
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New creates a new error with the given message
func New(message string) error {
	return errors.New(message)
}

// Newf creates a new error with a formatted message
func Newf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

// Join joins multiple errors into one
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// IsTransport checks if an error is a transport error
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}

// IsDecode checks if an error came from decoding a snapshot
func IsDecode(err error) bool {
	return errors.Is(err, ErrDecompression) || errors.Is(err, ErrMalformedPayload)
}

// Kind returns a short label for err, used for metrics and status output.
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrTransport):
		return "transport"
	case errors.Is(err, ErrDecompression):
		return "decompression"
	case errors.Is(err, ErrMalformedPayload):
		return "malformed_payload"
	case errors.Is(err, ErrNotification):
		return "notification"
	case errors.Is(err, ErrInvalidConfig):
		return "config"
	default:
		return "other"
	}
}
