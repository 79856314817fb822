//go:build s3example
// +build s3example

// This file provides an example S3Store implementation.
// It is excluded from regular builds because it requires the AWS SDK.
//
// To use this in your project, build with -tags s3example and add the SDK:
//   go get github.com/aws/aws-sdk-go-v2
//   go get github.com/aws/aws-sdk-go-v2/config
//   go get github.com/aws/aws-sdk-go-v2/service/s3

package snapshot

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// expiresMetaKey holds the snapshot expiry on each object, RFC 3339.
// S3 has no per-object TTL, so expiry is enforced on Load and by Sweep.
const expiresMetaKey = "portico-expires-at"

// S3Store persists snapshots as S3 objects, one per session.
//
// Example usage:
//
//	cfg, _ := config.LoadDefaultConfig(context.Background())
//	s3Client := s3.NewFromConfig(cfg)
//	store := snapshot.NewS3Store(s3Client, "my-bucket", "snapshots/")
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Store creates a new S3-backed snapshot store.
//
// Parameters:
//   - client: AWS S3 client from aws-sdk-go-v2
//   - bucket: S3 bucket name
//   - prefix: key prefix for snapshot objects (e.g., "snapshots/")
func NewS3Store(client *s3.Client, bucket, prefix string) *S3Store {
	return &S3Store{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}
}

var _ Store = (*S3Store)(nil)

func (s *S3Store) key(sessionID string) string {
	return s.prefix + sessionID
}

// Save uploads a snapshot, stamping the expiry into object metadata.
func (s *S3Store) Save(ctx context.Context, sessionID string, data []byte, expiresAt time.Time) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(sessionID)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			expiresMetaKey: expiresAt.UTC().Format(time.RFC3339),
		},
	})
	return err
}

// Load retrieves a snapshot if it exists and hasn't expired.
// Expired objects are deleted on read.
func (s *S3Store) Load(ctx context.Context, sessionID string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(sessionID)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, nil
		}
		return nil, err
	}
	defer out.Body.Close()

	if raw, ok := out.Metadata[expiresMetaKey]; ok {
		if expiresAt, perr := time.Parse(time.RFC3339, raw); perr == nil && time.Now().After(expiresAt) {
			_ = s.Delete(ctx, sessionID)
			return nil, nil
		}
	}

	return io.ReadAll(out.Body)
}

// Delete removes a snapshot object. S3 deletes are idempotent.
func (s *S3Store) Delete(ctx context.Context, sessionID string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(sessionID)),
	})
	return err
}

// Touch rewrites the expiry metadata via a same-key copy.
func (s *S3Store) Touch(ctx context.Context, sessionID string, expiresAt time.Time) error {
	key := s.key(sessionID)
	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:            aws.String(s.bucket),
		CopySource:        aws.String(s.bucket + "/" + key),
		Key:               aws.String(key),
		MetadataDirective: types.MetadataDirectiveReplace,
		Metadata: map[string]string{
			expiresMetaKey: expiresAt.UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil
		}
		return err
	}
	return nil
}

// SaveAll uploads every record sequentially.
func (s *S3Store) SaveAll(ctx context.Context, records map[string]Record) error {
	for id, rec := range records {
		if err := s.Save(ctx, id, rec.Data, rec.ExpiresAt); err != nil {
			return err
		}
	}
	return nil
}

// Close is a no-op; the S3 client is managed by the caller.
func (s *S3Store) Close() error {
	return nil
}

// Sweep removes snapshot objects whose last modification is older than
// maxAge. Run it from a cron or a background goroutine.
func (s *S3Store) Sweep(ctx context.Context, maxAge time.Duration) error {
	cutoff := time.Now().Add(-maxAge)

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})

	var toDelete []string

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return err
		}

		for _, obj := range page.Contents {
			if obj.LastModified != nil && obj.LastModified.Before(cutoff) {
				if obj.Key != nil {
					toDelete = append(toDelete, *obj.Key)
				}
			}
		}
	}

	for _, key := range toDelete {
		s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
	}

	return nil
}
