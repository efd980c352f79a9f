// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrNoOpportunity      = errors.New("no opportunity found")
	ErrAlreadyReserved    = errors.New("opportunity already reserved")
	ErrNotHolder          = errors.New("caller is not the reservation holder")
	ErrZoneBlocked        = errors.New("zone is blocked")
	ErrInvalidZone        = errors.New("invalid zone identifier")
	ErrPilotNotFound      = errors.New("pilot not found")
	ErrPilotGated         = errors.New("pilot is gated pending certification")
	ErrNotGated           = errors.New("pilot is not gated")
	ErrAgentNotFound      = errors.New("agent not found")
	ErrAgentDeregistered  = errors.New("agent deregistered")
	ErrBudgetExhausted    = errors.New("evaluation budget exhausted")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrWareNotFound       = errors.New("ware not found")
	ErrSectorNotFound     = errors.New("sector not found")
	ErrUnreachable        = errors.New("destination unreachable")
	ErrConfigInvalid      = errors.New("invalid configuration")
	ErrDatabaseError      = errors.New("database error")
	ErrStaleReference     = errors.New("stale reference")
	ErrEngineStopped      = errors.New("engine is stopped")
)

// ReservationError carries context for a failed reservation operation.
type ReservationError struct {
	OpportunityKey string
	HolderID       string
	Op             string
	Err            error
}

func (e *ReservationError) Error() string {
	return fmt.Sprintf("reservation error [%s] %s by %s: %v", e.OpportunityKey, e.Op, e.HolderID, e.Err)
}

func (e *ReservationError) Unwrap() error {
	return e.Err
}

// NewReservationError creates a new ReservationError.
func NewReservationError(key, holderID, op string, err error) *ReservationError {
	return &ReservationError{
		OpportunityKey: key,
		HolderID:       holderID,
		Op:             op,
		Err:            err,
	}
}

// EvaluationError carries context for an evaluator failure.
type EvaluationError struct {
	AgentID string
	Stage   string
	Err     error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluation error [%s] %s: %v", e.AgentID, e.Stage, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}

// NewEvaluationError creates a new EvaluationError.
func NewEvaluationError(agentID, stage string, err error) *EvaluationError {
	return &EvaluationError{
		AgentID: agentID,
		Stage:   stage,
		Err:     err,
	}
}

// ProgressionError carries context for a pilot state-machine misuse. The
// engine treats these as no-ops; the type exists for logging and tests.
type ProgressionError struct {
	PilotID string
	Op      string
	Err     error
}

func (e *ProgressionError) Error() string {
	return fmt.Sprintf("progression error [%s] %s: %v", e.PilotID, e.Op, e.Err)
}

func (e *ProgressionError) Unwrap() error {
	return e.Err
}

// NewProgressionError creates a new ProgressionError.
func NewProgressionError(pilotID, op string, err error) *ProgressionError {
	return &ProgressionError{
		PilotID: pilotID,
		Op:      op,
		Err:     err,
	}
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
