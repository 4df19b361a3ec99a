package store

import "errors"

var (
	// ErrEndpointMissing is returned by MergeRelation when a referenced node
	// does not exist.
	ErrEndpointMissing = errors.New("relation endpoint not found")
	// ErrNotFound is returned by explorer lookups with no result.
	ErrNotFound = errors.New("not found")
	// ErrNotReadOnly is returned by Explain for statements that would write.
	ErrNotReadOnly = errors.New("statement is not read-only")
	// ErrSyntax is returned by Explain for statements the engine rejects.
	ErrSyntax = errors.New("statement syntax error")
)

// TransientError marks store failures worth retrying once (leader switch,
// deadlock, connection reset).
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return "transient store error: " + e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a TransientError.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}
