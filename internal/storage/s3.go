package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Backend implements Backend over an S3 bucket for deployments that
// want remote movie storage instead of the local filesystem. Grounded on
// the teacher's pkg/storage/s3.go (same client wiring, same
// APIError/NotFound unwrapping for Exists), generalized from single-URI
// Get/Put to the full Backend surface (a fixed bucket + key prefix
// derived from the relative path).
type S3Backend struct {
	client *s3.Client
	bucket string
}

// NewS3Backend creates an S3 backend using the AWS SDK's default
// credentials chain (env vars, config files, IAM roles).
func NewS3Backend(ctx context.Context, bucket string) (*S3Backend, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &S3Backend{client: s3.NewFromConfig(cfg), bucket: bucket}, nil
}

// NewS3BackendWithClient wraps an existing S3 client, useful for testing
// against a local S3-compatible endpoint.
func NewS3BackendWithClient(client *s3.Client, bucket string) *S3Backend {
	return &S3Backend{client: client, bucket: bucket}
}

func (s *S3Backend) key(p string) string {
	return strings.TrimPrefix(p, "/")
}

// Read downloads an object and returns its full contents.
func (s *S3Backend) Read(ctx context.Context, p string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, &StorageError{Op: "read", Path: p, Err: ErrNotExist}
		}
		return nil, &StorageError{Op: "read", Path: p, Err: err}
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, &StorageError{Op: "read", Path: p, Err: err}
	}
	return data, nil
}

// Write uploads data, replacing any existing object at the key.
func (s *S3Backend) Write(ctx context.Context, p string, data []byte, mimeType string) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
		Body:   bytes.NewReader(data),
	}
	if mimeType != "" {
		input.ContentType = aws.String(mimeType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return &StorageError{Op: "write", Path: p, Err: err}
	}
	return nil
}

// WriteAtomic is equivalent to Write: S3's PutObject already replaces an
// object's content in a single request, so concurrent GetObject callers
// never observe a partial body.
func (s *S3Backend) WriteAtomic(ctx context.Context, p string, data []byte, mimeType string) error {
	return s.Write(ctx, p, data, mimeType)
}

// Append reads the current object (if any), concatenates data, and
// writes it back. S3 has no native append; callers must still serialize
// concurrent appends to the same key through Context.
func (s *S3Backend) Append(ctx context.Context, p string, data []byte, mimeType string) error {
	existing, err := s.Read(ctx, p)
	if err != nil && !errors.Is(err, ErrNotExist) {
		var se *StorageError
		if !errors.As(err, &se) || !errors.Is(se.Err, ErrNotExist) {
			return err
		}
	}
	combined := make([]byte, len(existing)+len(data))
	copy(combined, existing)
	copy(combined[len(existing):], data)
	return s.Write(ctx, p, combined, mimeType)
}

// Exists checks whether an object is present at the key.
func (s *S3Backend) Exists(ctx context.Context, p string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, &StorageError{Op: "exists", Path: p, Err: err}
	}
	return true, nil
}

// IsDir treats any key with at least one object under the "prefix/"
// namespace as a directory, since S3 has no native directories.
func (s *S3Backend) IsDir(ctx context.Context, p string) (bool, error) {
	prefix := s.key(p)
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, &StorageError{Op: "is-dir", Path: p, Err: err}
	}
	return len(out.Contents) > 0, nil
}

// Mkdir is a no-op: S3 keys imply their own prefixes.
func (s *S3Backend) Mkdir(ctx context.Context, p string) error {
	return nil
}

// Move copies src to dst then deletes src (S3 has no atomic rename).
func (s *S3Backend) Move(ctx context.Context, src, dst string) error {
	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		CopySource: aws.String(s.bucket + "/" + s.key(src)),
		Key:        aws.String(s.key(dst)),
	})
	if err != nil {
		return &StorageError{Op: "move", Path: src, Err: err}
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(src)),
	})
	if err != nil {
		return &StorageError{Op: "move", Path: src, Err: err}
	}
	return nil
}

// List returns the immediate child keys under the prefix.
func (s *S3Backend) List(ctx context.Context, p string) ([]string, error) {
	prefix := s.key(p)
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	if err != nil {
		return nil, &StorageError{Op: "list", Path: p, Err: err}
	}

	names := make([]string, 0, len(out.Contents)+len(out.CommonPrefixes))
	for _, obj := range out.Contents {
		names = append(names, strings.TrimPrefix(aws.ToString(obj.Key), prefix))
	}
	for _, cp := range out.CommonPrefixes {
		names = append(names, strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), prefix), "/"))
	}
	return names, nil
}

// isNotFound recognizes S3's assorted "object does not exist" error
// shapes, following the teacher's pkg/storage/s3.go Exists logic.
func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if apiErr.ErrorCode() == "NotFound" || apiErr.ErrorCode() == "NoSuchKey" {
			return true
		}
		if httpResp, ok := apiErr.(interface{ HTTPStatusCode() int }); ok {
			if httpResp.HTTPStatusCode() == http.StatusNotFound {
				return true
			}
		}
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	return false
}
