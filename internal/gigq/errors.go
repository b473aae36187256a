package gigq

import "fmt"

// ErrorKind distinguishes the error conditions the core must tell apart,
// so callers can branch on kind rather than string-matching messages.
type ErrorKind string

const (
	KindInvalidJob         ErrorKind = "invalid_job"
	KindNotFound           ErrorKind = "not_found"
	KindConflict           ErrorKind = "conflict"
	KindSerializationError ErrorKind = "serialization_error"
	KindResolveFailure     ErrorKind = "resolve_failure"
	KindJobExecutionFailed ErrorKind = "job_execution_failure"
	KindStoreError         ErrorKind = "store_error"
	KindCycleDetected      ErrorKind = "cycle_detected"
	KindUnknownDependency  ErrorKind = "unknown_dependency"
)

// Error is the error type returned by the Queue and the workflow Builder for any
// condition §7 of the spec calls out by kind.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error // wrapped cause, if any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, &Error{Kind: KindNotFound}) match any *Error with
// the same Kind, regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

func invalidJobf(format string, args ...interface{}) *Error {
	return newError(KindInvalidJob, fmt.Sprintf(format, args...), nil)
}

func notFoundf(format string, args ...interface{}) *Error {
	return newError(KindNotFound, fmt.Sprintf(format, args...), nil)
}

func storeErrorf(cause error, format string, args ...interface{}) *Error {
	return newError(KindStoreError, fmt.Sprintf(format, args...), cause)
}

func serializationErrorf(cause error, format string, args ...interface{}) *Error {
	return newError(KindSerializationError, fmt.Sprintf(format, args...), cause)
}
