package data

import (
	"errors"
	"fmt"
)

// Error variables for consistent error handling
var (
	ErrInvalidState     = errors.New("no pending verification for this role")
	ErrBusy             = errors.New("action already in progress")
	ErrCancelled        = errors.New("action cancelled")
	ErrNotAuthenticated = errors.New("not signed in")
	ErrAlreadyRunning   = errors.New("already running")
)

// ValidationError is client-side input rejected before any network call
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ServerRejection is a well-formed response with success set to false
type ServerRejection struct {
	Status  int
	Message string
}

func (e *ServerRejection) Error() string {
	return e.Message
}

// ConnectivityError covers transport failures and malformed responses
type ConnectivityError struct {
	Op  string
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ConnectivityError) Unwrap() error {
	return e.Err
}

// UserMessage renders err as the text shown in a notification.
// Server messages pass through verbatim.
func UserMessage(err error) string {
	var (
		validation *ValidationError
		rejection  *ServerRejection
		conn       *ConnectivityError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &validation):
		return validation.Message
	case errors.As(err, &rejection):
		return rejection.Message
	case errors.As(err, &conn):
		return "Error: " + conn.Err.Error()
	case errors.Is(err, ErrInvalidState):
		return "No verification in progress. Please sign in again."
	default:
		return err.Error()
	}
}

// IsConnectivity reports whether err is a transport-level failure
func IsConnectivity(err error) bool {
	var conn *ConnectivityError
	return errors.As(err, &conn)
}
