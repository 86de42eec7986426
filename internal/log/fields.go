package log

import (
	"errors"

	"finledger/internal/core"
)

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldError      = "error"
	FieldErrorType  = "error_type"
	FieldOperation  = "operation"
	FieldUserID     = "user_id"
	FieldGoalID     = "goal_id"
	FieldBudgetID   = "budget_id"
	FieldAlertID    = "alert_id"
	FieldAlertType  = "alert_type"
	FieldCount      = "count"
	FieldMessageID  = "message_id"
	FieldStatus     = "status"
	FieldPrevStatus = "previous_status"
)

// Components defines standard component names
const (
	ComponentApp      = "app"
	ComponentCLI      = "cli"
	ComponentWorker   = "worker"
	ComponentDelivery = "delivery"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpEvaluate = "evaluate"
	OpPublish  = "publish"
	OpDeliver  = "deliver"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation = "validation_error"
	ErrorTypeNotFound   = "not_found_error"
	ErrorTypeConflict   = "conflict_error"
	ErrorTypeInternal   = "internal_error"
)

// ErrorType classifies err for the error_type field.
func ErrorType(err error) string {
	switch {
	case core.IsValidation(err):
		return ErrorTypeValidation
	case errors.Is(err, core.ErrNotFound):
		return ErrorTypeNotFound
	case errors.Is(err, core.ErrConflict):
		return ErrorTypeConflict
	default:
		return ErrorTypeInternal
	}
}

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithError adds the error and its category
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
		f[FieldErrorType] = ErrorType(err)
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithGoal adds goal fields
func (f LogFields) WithGoal(g core.Goal) LogFields {
	f[FieldGoalID] = g.ID
	f[FieldUserID] = g.UserID
	f[FieldStatus] = string(g.Status)
	return f
}

// WithAlert adds alert fields
func (f LogFields) WithAlert(a core.Alert) LogFields {
	f[FieldAlertID] = a.ID
	f[FieldUserID] = a.UserID
	f[FieldAlertType] = string(a.Type)
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
