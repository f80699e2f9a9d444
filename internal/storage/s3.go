// Package storage archives uploaded documents to object storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectAPI is the part of the S3 client the archiver uses.
type ObjectAPI interface {
	manager.UploadAPIClient
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Archiver copies saved documents to a bucket under a key prefix.
type S3Archiver struct {
	client   ObjectAPI
	uploader *manager.Uploader
	bucket   string
	prefix   string
	logger   *slog.Logger
}

// NewS3Archiver loads the default AWS credential chain for region.
func NewS3Archiver(ctx context.Context, region, bucket, prefix string, logger *slog.Logger) (*S3Archiver, error) {
	if bucket == "" {
		return nil, errors.New("S3_BUCKET not set")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewS3ArchiverWithClient(s3.NewFromConfig(awsCfg), bucket, prefix, logger), nil
}

// NewS3ArchiverWithClient wraps an existing client.
func NewS3ArchiverWithClient(client ObjectAPI, bucket, prefix string, logger *slog.Logger) *S3Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &S3Archiver{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		prefix:   prefix,
		logger:   logger,
	}
}

// Key returns the object key for a local path.
func (a *S3Archiver) Key(localPath string) string {
	return path.Join(a.prefix, filepath.Base(localPath))
}

// Archive uploads the file at localPath.
func (a *S3Archiver) Archive(ctx context.Context, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	contentType := mime.TypeByExtension(filepath.Ext(localPath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	ctxUpload, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	key := a.Key(localPath)
	if _, err := a.uploader.Upload(ctxUpload, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType),
	}); err != nil {
		return fmt.Errorf("s3 upload failed: %w", err)
	}
	a.logger.Debug("document archived", "bucket", a.bucket, "key", key)
	return nil
}

// Remove deletes the archived copy of localPath.
func (a *S3Archiver) Remove(ctx context.Context, localPath string) error {
	ctxDel, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := a.client.DeleteObject(ctxDel, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.Key(localPath)),
	}); err != nil {
		return fmt.Errorf("s3 delete failed: %w", err)
	}
	return nil
}
