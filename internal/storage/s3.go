package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"alcyxob/rehabflow/internal/config"
	"alcyxob/rehabflow/internal/logger"
	"alcyxob/rehabflow/internal/repository"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsCfg "github.com/aws/aws-sdk-go-v2/config" // Alias config to avoid clash
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Storage keeps snapshot slots as objects in an S3-compatible bucket.
// It implements repository.SnapshotRepository and repository.Presigner.
type S3Storage struct {
	client        *s3.Client        // Regular client for Get/Put
	presignClient *s3.PresignClient // Special client for generating presigned URLs
	bucketName    string
	prefix        string
	log           *logger.Logger
}

var (
	_ repository.SnapshotRepository = (*S3Storage)(nil)
	_ repository.Presigner          = (*S3Storage)(nil)
)

// NewS3Storage creates a new S3 storage service instance.
func NewS3Storage(ctx context.Context, cfg config.S3Config, log *logger.Logger) (*S3Storage, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("s3 bucket name is required")
	}

	awsSDKConfig, err := awsCfg.LoadDefaultConfig(ctx,
		awsCfg.WithRegion(cfg.Region),
		awsCfg.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsSDKConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		// Path-style addressing is required by MinIO and most S3-compatible services.
		o.UsePathStyle = true
	})

	log.Info("s3 snapshot storage initialized", "endpoint", cfg.Endpoint, "bucket", cfg.BucketName, "prefix", cfg.Prefix)

	return &S3Storage{
		client:        s3Client,
		presignClient: s3.NewPresignClient(s3Client),
		bucketName:    cfg.BucketName,
		prefix:        cfg.Prefix,
		log:           log,
	}, nil
}

// Load downloads the slot object.
func (s *S3Storage) Load(ctx context.Context, slot string) ([]byte, error) {
	key := ObjectKey(s.prefix, slot)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, repository.ErrNotFound
		}
		s.log.Error("failed to get snapshot object", "key", key, "error", err)
		return nil, err
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read snapshot object %s: %w", key, err)
	}
	return data, nil
}

// Save uploads data as the slot object, replacing any previous version.
func (s *S3Storage) Save(ctx context.Context, slot string, data []byte) error {
	key := ObjectKey(s.prefix, slot)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucketName),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(ContentTypeJSON),
	})
	if err != nil {
		s.log.Error("failed to put snapshot object", "key", key, "error", err)
		return fmt.Errorf("%w: %v", repository.ErrWriteFailed, err)
	}
	return nil
}

// PresignDownload creates a temporary URL for downloading (GET) the slot object.
func (s *S3Storage) PresignDownload(ctx context.Context, slot string, expires time.Duration) (string, error) {
	if expires <= 0 {
		expires = DefaultPresignedURLExpiry
	}

	req, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(ObjectKey(s.prefix, slot)),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}
