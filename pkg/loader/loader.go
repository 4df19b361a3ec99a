// Package loader resolves ingestion sources into plain text.
package loader

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

type SourceKind string

const (
	SourceText SourceKind = "text"
	SourceURL  SourceKind = "url"
	SourceS3   SourceKind = "s3"
)

// ErrUnsupportedSource is returned for source kinds without a loader.
var ErrUnsupportedSource = errors.New("unsupported source")

// TransientError marks a load failure that may succeed later, such as a
// timeout or a 5xx answer.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return "transient load error: " + e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a TransientError.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// TransientStatus reports whether an HTTP status is worth retrying.
func TransientStatus(code int) bool {
	return code == 408 || code == 429 || code >= 500
}

// Source names one piece of input text. Ref holds the text itself for
// SourceText, the address for SourceURL and the object key for SourceS3.
type Source struct {
	Kind SourceKind `json:"kind"`
	Ref  string     `json:"ref"`
}

// TextLoader loads the text behind a source.
// Implementations may cache results per source.
type TextLoader interface {
	GetText(ctx context.Context, src Source) (string, error)
}

// Resolver dispatches sources to the loader registered for their kind.
type Resolver struct {
	loaders map[SourceKind]TextLoader
}

type ResolverOption func(*Resolver)

func WithLoader(kind SourceKind, l TextLoader) ResolverOption {
	return func(r *Resolver) {
		if l != nil {
			r.loaders[kind] = l
		}
	}
}

func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{loaders: map[SourceKind]TextLoader{}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the text of src. Inline text is returned as is.
func (r *Resolver) Resolve(ctx context.Context, src Source) (string, error) {
	if src.Kind == SourceText {
		return src.Ref, nil
	}
	l, ok := r.loaders[src.Kind]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedSource, src.Kind)
	}
	text, err := l.GetText(ctx, src)
	if err != nil {
		return "", fmt.Errorf("failed to load %s %q: %w", src.Kind, src.Ref, err)
	}
	return text, nil
}

// Describe returns a short label for logs and reports. Inline text is
// abbreviated.
func (s Source) Describe() string {
	if s.Kind != SourceText {
		return string(s.Kind) + ":" + s.Ref
	}
	const maxRunes = 40
	ref := strings.Join(strings.Fields(s.Ref), " ")
	if utf8.RuneCountInString(ref) <= maxRunes {
		return "text:" + ref
	}
	return "text:" + string([]rune(ref)[:maxRunes]) + "..."
}

// CacheKey generates a cache key for a source.
func CacheKey(src Source) string {
	return string(src.Kind) + ":" + src.Ref
}

// ToValidUTF8 drops invalid byte sequences from loaded content.
func ToValidUTF8(b []byte) string {
	return strings.ToValidUTF8(string(b), "")
}
