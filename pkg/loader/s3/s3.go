package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/sync/singleflight"

	"github.com/thirai-kg/backend/pkg/loader"
)

// objectGetter is the part of *s3.Client the loader uses.
type objectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3TextLoader loads UTF-8 text objects from an S3 bucket. Source refs are
// object keys.
type S3TextLoader struct {
	bucket string
	client objectGetter

	cache   map[string]string
	cacheMu sync.RWMutex
	group   singleflight.Group
}

// NewS3TextLoaderWithClient creates a loader using an existing client, for
// example one configured for an S3-compatible store such as MinIO.
//
//	client, err := storage.NewS3Client(ctx)
//	l := s3.NewS3TextLoaderWithClient(storage.Bucket(), client)
func NewS3TextLoaderWithClient(bucket string, client objectGetter) *S3TextLoader {
	return &S3TextLoader{
		bucket: bucket,
		client: client,
		cache:  make(map[string]string),
	}
}

// GetText retrieves the object src.Ref. Invalid UTF-8 sequences are dropped.
func (l *S3TextLoader) GetText(ctx context.Context, src loader.Source) (string, error) {
	cacheKey := loader.CacheKey(src)

	l.cacheMu.RLock()
	if cached, ok := l.cache[cacheKey]; ok {
		l.cacheMu.RUnlock()
		return cached, nil
	}
	l.cacheMu.RUnlock()

	result, err, _ := l.group.Do(cacheKey, func() (any, error) {
		l.cacheMu.RLock()
		if cached, ok := l.cache[cacheKey]; ok {
			l.cacheMu.RUnlock()
			return cached, nil
		}
		l.cacheMu.RUnlock()

		out, err := l.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(l.bucket),
			Key:    aws.String(src.Ref),
		})
		if err != nil {
			return "", classify(ctx, fmt.Errorf("failed to get object from S3: %w", err))
		}
		defer out.Body.Close()

		buf := new(bytes.Buffer)
		if _, err := io.Copy(buf, out.Body); err != nil {
			return "", classify(ctx, fmt.Errorf("failed to read object: %w", err))
		}
		text := loader.ToValidUTF8(buf.Bytes())

		l.cacheMu.Lock()
		l.cache[cacheKey] = text
		l.cacheMu.Unlock()

		return text, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// classify marks throttling, server side and connection failures as
// transient. Answers such as 403 or 404 are final.
func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return err
	}
	var re *awshttp.ResponseError
	if errors.As(err, &re) && !loader.TransientStatus(re.HTTPStatusCode()) {
		return err
	}
	return &loader.TransientError{Err: err}
}
