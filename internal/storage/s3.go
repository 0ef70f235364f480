package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// S3Options configures the object storage backend.
type S3Options struct {
	Bucket        string
	Region        string
	Endpoint      string
	PublicBaseURL string
}

// S3Store persists assets into an S3 bucket.
type S3Store struct {
	svc           *s3.S3
	bucket        string
	publicBaseURL string
}

// NewS3Store builds an S3-backed store. Credentials are resolved through the
// SDK's default chain (environment, shared config, instance role).
func NewS3Store(opts S3Options) (*S3Store, error) {
	bucket := strings.TrimSpace(opts.Bucket)
	if bucket == "" {
		return nil, errors.New("storage: s3 bucket is required")
	}
	awsCfg := aws.Config{}
	if region := strings.TrimSpace(opts.Region); region != "" {
		awsCfg.Region = aws.String(region)
	}
	if endpoint := strings.TrimSpace(opts.Endpoint); endpoint != "" {
		awsCfg.Endpoint = aws.String(endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}
	sess, err := session.NewSessionWithOptions(session.Options{
		Config:            awsCfg,
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: create aws session: %w", err)
	}
	return &S3Store{
		svc:           s3.New(sess),
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(strings.TrimSpace(opts.PublicBaseURL), "/"),
	}, nil
}

// Write uploads the provided bytes and returns the canonicalized storage key.
func (s *S3Store) Write(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if s == nil {
		return "", errors.New("storage: no store configured")
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	putInput := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(cleanKey),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if ct := strings.TrimSpace(contentType); ct != "" {
		putInput.ContentType = aws.String(ct)
	}
	if _, err := s.svc.PutObjectWithContext(ctx, putInput); err != nil {
		return "", fmt.Errorf("storage: upload to s3: %w", err)
	}
	return cleanKey, nil
}

// Read downloads the object's bytes.
func (s *S3Store) Read(ctx context.Context, key string) ([]byte, error) {
	if s == nil {
		return nil, errors.New("storage: no store configured")
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return nil, err
	}
	out, err := s.svc.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(cleanKey),
	})
	if err != nil {
		return nil, fmt.Errorf("storage: download from s3: %w", err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("storage: read s3 object: %w", err)
	}
	return data, nil
}

// URL resolves a storage key to its public address.
func (s *S3Store) URL(key string) string {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return ""
	}
	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + cleanKey
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.bucket, cleanKey)
}

// Remove deletes the object at key.
func (s *S3Store) Remove(ctx context.Context, key string) error {
	if s == nil {
		return errors.New("storage: no store configured")
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return err
	}
	_, err = s.svc.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(cleanKey),
	})
	if err != nil {
		return fmt.Errorf("storage: delete from s3: %w", err)
	}
	return nil
}

var _ Store = (*S3Store)(nil)
