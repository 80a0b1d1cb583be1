package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

// Sentinel errors for session-level conditions.
var (
	// ErrBusy indicates a session was requested while another is in flight.
	// The request is rejected immediately; no process is allocated.
	ErrBusy = errors.New("session already in flight")

	// ErrUnavailable indicates the external CLI tool is not installed,
	// not executable, or failed its availability probe.
	ErrUnavailable = errors.New("cli tool unavailable")

	// ErrTimeout indicates the session deadline elapsed before the
	// process exited. The process has been signalled for termination.
	ErrTimeout = errors.New("session timed out")

	// ErrCanceled indicates the session was cancelled by the caller.
	// Teardown is identical to the timeout path.
	ErrCanceled = errors.New("session cancelled")

	// ErrValidation indicates invalid request input.
	ErrValidation = errors.New("validation error")

	ErrNotFound = errors.New("not found")
)

// StatusClientClosedRequest is the nginx-style status for cancelled requests.
const StatusClientClosedRequest = 499

// SpawnError indicates the OS failed to create the external process.
type SpawnError struct {
	Err error
}

func (e *SpawnError) Error() string {
	return "spawning cli process: " + e.Err.Error()
}

func (e *SpawnError) Unwrap() error { return e.Err }

// ExitError indicates the process completed with a non-zero status.
// Stderr carries any diagnostic output the process wrote before exiting.
// Wraps the underlying *exec.ExitError so errors.As reaches OS-level detail.
type ExitError struct {
	Code   int
	Stderr string
	Err    error
}

func (e *ExitError) Error() string {
	msg := "cli exited with code " + strconv.Itoa(e.Code)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode extracts the exit code from an error chain containing *ExitError.
// Returns (0, false) when no ExitError is present.
func ExitCode(err error) (int, bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, true
	}
	return 0, false
}

// Validation creates a validation error with a formatted message.
func Validation(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// HTTPStatus maps a session error to an HTTP status code, defaulting to 500.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrBusy):
		return http.StatusConflict
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrCanceled):
		return StatusClientClosedRequest
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return http.StatusBadGateway
	}
	var spawnErr *SpawnError
	if errors.As(err, &spawnErr) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
