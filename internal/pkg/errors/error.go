package xerrors

import (
	"errors"
	"fmt"
)

// Application error taxonomy
var (
	// ErrPermissionDenied covers impersonation attempted by a non-super-admin
	// and mutating actions attempted while observing.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrInvalidState covers lifecycle violations such as ending an
	// impersonation that was never started.
	ErrInvalidState = errors.New("invalid state")
	// ErrUpstreamUnavailable means the event store or a change-notification
	// channel is unreachable.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrPartialDataLoss marks a snapshot in which at least one aggregation
	// category failed and was zeroed.
	ErrPartialDataLoss = errors.New("partial data loss")

	ErrNotFound       = errors.New("resource not found")
	ErrUnauthorized   = errors.New("unauthorized access")
	ErrInvalidInput   = errors.New("invalid input")
	ErrSessionExpired = errors.New("session expired or invalid")
)

// Wrap adds context to an error (similar to fmt.Errorf("%w")).
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is allows checking whether an error is a specific sentinel error.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// MessageOrDefault returns err.Error() or a fallback message if err is nil.
func MessageOrDefault(err error, fallback string) string {
	if err != nil {
		return err.Error()
	}
	return fallback
}
