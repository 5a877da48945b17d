// Package errors provides domain-specific error types for bankd.
//
// Every failure a session can hit falls into one of a handful of kinds
// (protocol, state, capacity, contention, resource, network).  The kind
// decides whether the error is turned into a reply line and the session
// continues, or whether it escalates and stops the server.
package errors

import (
	"errors"
	"fmt"
	"net"
	"syscall"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	// Account store.
	ErrAlreadyExists  = errors.New("account already exists")
	ErrNotFound       = errors.New("account not found")
	ErrStoreFull      = errors.New("account store is full")
	ErrStoreClosed    = errors.New("account store is closed")
	ErrNameTooLong    = errors.New("account name is too long")
	ErrEmptyName      = errors.New("account name is empty")
	ErrBadIndex       = errors.New("account index out of range")
	ErrOverdraft      = errors.New("overdraft is not allowed")
	ErrAmountTooLarge = errors.New("amount too large")
	ErrInvalidAmount  = errors.New("invalid amount")

	// Lock protocol.
	ErrLocked  = errors.New("account is locked by another session")
	ErrNotHeld = errors.New("account lock is not held")

	// Worker slots and transport.
	ErrSlotsFull   = errors.New("no free worker slot")
	ErrLineTooLong = errors.New("input line too long")
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// ── Kinds ────────────────────────────────────────────────────────────

// Kind classifies an error for propagation decisions.
type Kind int

const (
	KindUnknown Kind = iota
	KindProtocol
	KindState
	KindCapacity
	KindContention
	KindResource
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindProtocol:
		return "protocol"
	case KindState:
		return "state"
	case KindCapacity:
		return "capacity"
	case KindContention:
		return "contention"
	case KindResource:
		return "resource"
	case KindNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// Fatal reports whether errors of this kind must stop the server.
func (k Kind) Fatal() bool {
	return k == KindResource
}

// ── Structured error types ───────────────────────────────────────────

// ProtocolError is a malformed or unknown command.
type ProtocolError struct {
	Command string
	Err     error
}

func (e *ProtocolError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("protocol: unknown command %q", e.Command)
	}
	return fmt.Sprintf("protocol: %s: %v", e.Command, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// StateError is a command that is not valid in the session's current state.
type StateError struct {
	Command string
	State   string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("state: %s not allowed while %s", e.Command, e.State)
}

// CapacityError reports an exhausted fixed-size resource.
type CapacityError struct {
	Resource string // "accounts", "sessions"
	Limit    int
	Err      error
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("capacity: %s limit %d reached", e.Resource, e.Limit)
}

func (e *CapacityError) Unwrap() error { return e.Err }

// ContentionError reports an account held by another session.
type ContentionError struct {
	Account string
}

func (e *ContentionError) Error() string {
	return fmt.Sprintf("contention: account %q is in session elsewhere", e.Account)
}

func (e *ContentionError) Unwrap() error { return ErrLocked }

// ResourceError is a startup allocation failure.  It is always fatal.
type ResourceError struct {
	Resource string
	Err      error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("resource %s: %v", e.Resource, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// NetworkError represents a failure in a network operation.
type NetworkError struct {
	Op        string // "listen", "accept", "read", "write", "dial"
	Addr      string
	Err       error
	Retryable bool
}

func (e *NetworkError) Error() string {
	s := fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
	if e.Retryable {
		s += " (retryable)"
	}
	return s
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	Field   string      // config field name
	Value   interface{} // the invalid value (nil if missing)
	Message string      // human-readable explanation
	Hint    string      // suggestion for the user (optional)
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: --%s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// ── Constructors ─────────────────────────────────────────────────────

// Wrap creates a NetworkError, detecting retryability from err.
func Wrap(op, addr string, err error) *NetworkError {
	return &NetworkError{
		Op:        op,
		Addr:      addr,
		Err:       err,
		Retryable: classifyRetryable(err),
	}
}

// Resource creates a ResourceError.
func Resource(resource string, err error) *ResourceError {
	return &ResourceError{Resource: resource, Err: err}
}

// ── Classification helpers ───────────────────────────────────────────

// KindOf returns the kind of err, looking through wrapping.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var (
		pe *ProtocolError
		se *StateError
		ce *CapacityError
		ct *ContentionError
		re *ResourceError
		ne *NetworkError
	)
	switch {
	case errors.As(err, &re):
		return KindResource
	case errors.As(err, &pe), errors.Is(err, ErrLineTooLong), errors.Is(err, ErrInvalidAmount):
		return KindProtocol
	case errors.As(err, &se), errors.Is(err, ErrNotHeld):
		return KindState
	case errors.As(err, &ce), errors.Is(err, ErrStoreFull), errors.Is(err, ErrSlotsFull):
		return KindCapacity
	case errors.As(err, &ct), errors.Is(err, ErrLocked):
		return KindContention
	case errors.As(err, &ne):
		return KindNetwork
	}
	return KindUnknown
}

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne.Retryable
	}
	return classifyRetryable(err)
}

// classifyRetryable inspects standard library error types.
func classifyRetryable(err error) bool {
	if err == nil {
		return false
	}
	// A port still held by a previous instance, or a server that is not
	// up yet, usually clears on its own.
	if errors.Is(err, syscall.EADDRINUSE) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Temporary() //nolint:staticcheck // Temporary is deprecated but still useful
	}
	return false
}

// ── Re-exports for convenience ───────────────────────────────────────

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }

// New is [errors.New].
func New(text string) error { return errors.New(text) }

// Join is [errors.Join].
func Join(errs ...error) error { return errors.Join(errs...) }
