package common

import (
	"errors"
	"fmt"
)

// Kind classifies pipeline failures.
type Kind string

const (
	KindValidation       Kind = "validation"
	KindExtractionFormat Kind = "extraction_format"
	KindSchemaViolation  Kind = "schema_violation"
	KindQueryParse       Kind = "query_parse"
	KindQueryGeneration  Kind = "query_generation"
	KindQueryExecution   Kind = "query_execution"
	KindSynthesis        Kind = "synthesis"
	KindTransientService Kind = "transient_service"
)

// Sentinels for errors.Is. Every *Error matches the sentinel of its kind.
var (
	ErrValidation       = &Error{Kind: KindValidation}
	ErrExtractionFormat = &Error{Kind: KindExtractionFormat}
	ErrSchemaViolation  = &Error{Kind: KindSchemaViolation}
	ErrQueryParse       = &Error{Kind: KindQueryParse}
	ErrQueryGeneration  = &Error{Kind: KindQueryGeneration}
	ErrQueryExecution   = &Error{Kind: KindQueryExecution}
	ErrSynthesis        = &Error{Kind: KindSynthesis}
	ErrTransientService = &Error{Kind: KindTransientService}
)

// Error is a classified failure. Op names the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so that the package sentinels can be
// used with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
}

// Errorf builds a classified error with a formatted message.
func Errorf(kind Kind, op string, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies err. A nil err yields nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsTransient reports whether err is a transient collaborator failure.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientService)
}

// Describe returns the kind name for reports, "internal" when unclassified.
func Describe(err error) string {
	if k, ok := KindOf(err); ok {
		return string(k)
	}
	return "internal"
}
