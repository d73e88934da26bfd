package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors of the assessment subsystem. Callers match them with errors.Is.
var (
	ErrModelUnavailable     = errors.New("prediction unavailable: classifier not loaded")
	ErrModelContract        = errors.New("classifier violates the expected contract")
	ErrPersistence          = errors.New("record store failure")
	ErrRecordNotFound       = errors.New("no record found")
	ErrVerificationMismatch = errors.New("invalid verification code")
	ErrNoActiveChallenge    = errors.New("no active verification challenge")
	ErrNoPendingAssessment  = errors.New("no assessment waiting to be saved")
	ErrSessionNotFound      = errors.New("session not found")
)

// Error codes used on the wire
const (
	ErrCodeValidation           = "VALIDATION_ERROR"
	ErrCodeModelUnavailable     = "MODEL_UNAVAILABLE"
	ErrCodeModelContract        = "MODEL_CONTRACT_ERROR"
	ErrCodePersistence          = "PERSISTENCE_ERROR"
	ErrCodeRecordNotFound       = "RECORD_NOT_FOUND"
	ErrCodeVerificationMismatch = "VERIFICATION_MISMATCH"
	ErrCodeNoActiveChallenge    = "NO_ACTIVE_CHALLENGE"
	ErrCodeNoPendingAssessment  = "NO_PENDING_ASSESSMENT"
	ErrCodeSessionNotFound      = "SESSION_NOT_FOUND"
	ErrCodeInternal             = "INTERNAL_SERVER_ERROR"
)

// APIError represents a standardized error response
type APIError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewAPIError creates a new APIError with timestamp
func NewAPIError(code, message, details, requestID string) *APIError {
	return &APIError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// PersistenceError wraps a failure of the backing record medium.
// It matches ErrPersistence and unwraps to the underlying cause.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("record store %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// NewPersistenceError wraps err for operation op. A nil err stays nil.
func NewPersistenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

// ModelContractError describes how a classifier broke its contract.
type ModelContractError struct {
	Reason string
}

func (e *ModelContractError) Error() string {
	return fmt.Sprintf("%s: %s", ErrModelContract.Error(), e.Reason)
}

func (e *ModelContractError) Is(target error) bool { return target == ErrModelContract }

// NewModelContractError formats a contract violation.
func NewModelContractError(format string, args ...interface{}) *ModelContractError {
	return &ModelContractError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether err contains a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ErrorCode maps err onto one of the wire error codes.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case IsValidationError(err):
		return ErrCodeValidation
	case errors.Is(err, ErrModelUnavailable):
		return ErrCodeModelUnavailable
	case errors.Is(err, ErrModelContract):
		return ErrCodeModelContract
	case errors.Is(err, ErrPersistence):
		return ErrCodePersistence
	case errors.Is(err, ErrRecordNotFound):
		return ErrCodeRecordNotFound
	case errors.Is(err, ErrVerificationMismatch):
		return ErrCodeVerificationMismatch
	case errors.Is(err, ErrNoActiveChallenge):
		return ErrCodeNoActiveChallenge
	case errors.Is(err, ErrNoPendingAssessment):
		return ErrCodeNoPendingAssessment
	case errors.Is(err, ErrSessionNotFound):
		return ErrCodeSessionNotFound
	default:
		return ErrCodeInternal
	}
}
