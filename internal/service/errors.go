package service

import (
	"errors"
	"fmt"

	"go-dispatch-ws/internal/model"
)

// Kind classifies an engine failure. Callers branch on it; handlers map it to a status code.
type Kind string

const (
	KindValidation       Kind = "validation"
	KindInvalidState     Kind = "invalid_state"
	KindConflict         Kind = "conflict"
	KindDuplicateScan    Kind = "duplicate_scan"
	KindCapacityExceeded Kind = "capacity_exceeded"
	KindReconciliation   Kind = "reconciliation"
	KindNotFound         Kind = "not_found"
)

// Error is the typed result every engine operation fails with. Details names the
// offending item, batch or field so an operator can correct and resubmit.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]interface{}
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) with(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func ValidationError(format string, args ...interface{}) *Error {
	return newError(KindValidation, format, args...)
}

func NotFoundError(entity string, id interface{}) *Error {
	return newError(KindNotFound, "%s %v not found", entity, id).with("entity", entity).with("id", fmt.Sprint(id))
}

// InvalidStateError reports an action attempted from a status that does not allow it.
func InvalidStateError(current model.DispatchStatus, action Action) *Error {
	e := newError(KindInvalidState, "cannot %s a dispatch in status %s", action.verb(), current).
		with("current_status", string(current)).
		with("action", string(action))
	if target, ok := transitions[action]; ok {
		e.with("attempted_status", string(target.to))
	}
	return e
}

func ConflictError(format string, args ...interface{}) *Error {
	return newError(KindConflict, format, args...)
}

func DuplicateScanError(barcode string) *Error {
	return newError(KindDuplicateScan, "barcode %s already scanned for this item", barcode).with("barcode", barcode)
}

func CapacityExceededError(required int) *Error {
	return newError(KindCapacityExceeded, "all %d units of this item are already scanned", required).
		with("required_quantity", required)
}

func ReconciliationError(format string, args ...interface{}) *Error {
	return newError(KindReconciliation, format, args...)
}

// IsKind reports whether err is an engine Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// KindOf returns the kind of err, or "" for errors from outside the engine.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
