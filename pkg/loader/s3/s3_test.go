package s3

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/thirai-kg/backend/pkg/loader"
)

type fakeBucket struct {
	objects map[string]string
	// failures maps keys to an HTTP status, 0 for a connection failure
	failures map[string]int
	gets     int
}

func responseError(status int, msg string) error {
	return &awshttp.ResponseError{ResponseError: &smithyhttp.ResponseError{
		Response: &smithyhttp.Response{Response: &http.Response{StatusCode: status}},
		Err:      errors.New(msg),
	}}
}

func (f *fakeBucket) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.gets++
	key := aws.ToString(in.Key)
	if status, ok := f.failures[key]; ok {
		if status == 0 {
			return nil, errors.New("connection reset by peer")
		}
		return nil, responseError(status, "request failed")
	}
	body, ok := f.objects[key]
	if !ok {
		return nil, responseError(http.StatusNotFound, "NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestS3TextLoader_GetText(t *testing.T) {
	bucket := &fakeBucket{objects: map[string]string{
		"wiki/jailer.txt": "Jailer was produced by Sun Pictures.\xff",
	}}
	l := NewS3TextLoaderWithClient("texts", bucket)
	src := loader.Source{Kind: loader.SourceS3, Ref: "wiki/jailer.txt"}

	for range 2 {
		text, err := l.GetText(context.Background(), src)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if text != "Jailer was produced by Sun Pictures." {
			t.Fatalf("unexpected text %q", text)
		}
	}
	if bucket.gets != 1 {
		t.Fatalf("expected one GetObject call, got %d", bucket.gets)
	}

	if _, err := l.GetText(context.Background(), loader.Source{Kind: loader.SourceS3, Ref: "missing"}); err == nil {
		t.Fatalf("expected an error for a missing key")
	}
}

func TestS3TextLoader_ClassifiesFailures(t *testing.T) {
	bucket := &fakeBucket{failures: map[string]int{
		"slow":      http.StatusServiceUnavailable,
		"throttled": http.StatusTooManyRequests,
		"reset":     0,
		"denied":    http.StatusForbidden,
	}}
	l := NewS3TextLoaderWithClient("texts", bucket)

	tests := []struct {
		key       string
		transient bool
	}{
		{"slow", true},
		{"throttled", true},
		{"reset", true},
		{"denied", false},
		{"missing", false},
	}
	for _, tt := range tests {
		_, err := l.GetText(context.Background(), loader.Source{Kind: loader.SourceS3, Ref: tt.key})
		if err == nil {
			t.Fatalf("%s: expected an error", tt.key)
		}
		if loader.IsTransient(err) != tt.transient {
			t.Fatalf("%s: transient = %v, want %v (%v)", tt.key, loader.IsTransient(err), tt.transient, err)
		}
	}
}
