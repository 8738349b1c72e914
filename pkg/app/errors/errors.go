package errors

import "fmt"

// AppError represents an application-level error with a code and optional cause
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// CodeOf returns the error code for err, or ErrCodeUnexpected when err is not
// an AppError.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return ErrCodeUnexpected
}

// Turn-level error codes
const (
	ErrCodeConfiguration      = "CONFIGURATION_ERROR"
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeActionExecution    = "ACTION_EXECUTION_FAILED"
	ErrCodeActionCancelled    = "ACTION_CANCELLED"
	ErrCodePrerequisiteNotMet = "PREREQUISITE_NOT_MET"
	ErrCodeLLMCallFailed      = "LLM_CALL_FAILED"
	ErrCodeMaxTurnsExceeded   = "MAX_TURNS_EXCEEDED"
	ErrCodeUnexpected         = "UNEXPECTED_ERROR"
)

// Infrastructure error codes
const (
	ErrCodeSessionCreate    = "SESSION_CREATE_FAILED"
	ErrCodeSessionGet       = "SESSION_GET_FAILED"
	ErrCodeSessionBusy      = "SESSION_BUSY"
	ErrCodeStaleTurn        = "STALE_TURN"
	ErrCodeStorage          = "STORAGE_FAILED"
	ErrCodeDispatch         = "DISPATCH_FAILED"
	ErrCodeApprovalNotFound = "APPROVAL_NOT_FOUND"
	ErrCodeApprovalRejected = "APPROVAL_REJECTED"
	ErrCodeInvalidInput     = "INVALID_INPUT"
	ErrCodeAuthFailed       = "AUTH_FAILED"
)

// Action executor error codes, machine readable across the executor boundary
const (
	ErrCodeActionValidation   = "VALIDATION"
	ErrCodeActionSecurity     = "SECURITY"
	ErrCodeActionStorage      = "STORAGE"
	ErrCodeActionQuery        = "QUERY"
	ErrCodeActionExternalCall = "EXTERNAL_CALL"
	ErrCodeActionSystemLimit  = "SYSTEM_LIMIT"
	ErrCodeActionUnexpected   = "UNEXPECTED"
)
