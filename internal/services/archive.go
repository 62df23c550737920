package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ArchiveService keeps a copy of every imported file and exported backup in
// S3, so a bad import can always be replayed or inspected later.
type ArchiveService struct {
	s3Client *s3.Client
	bucket   string
	log      *zap.Logger
}

// NewArchiveService builds the S3 client. A non-empty endpoint switches to
// path-style addressing with static credentials, which is what LocalStack
// expects.
func NewArchiveService(ctx context.Context, bucket, region, endpoint string, log *zap.Logger) (*ArchiveService, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket cannot be empty")
	}
	if region == "" {
		return nil, fmt.Errorf("region cannot be empty")
	}

	if endpoint != "" {
		cfg, err := config.LoadDefaultConfig(ctx,
			config.WithRegion(region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				"test", "test", "",
			)),
		)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		client := s3.NewFromConfig(cfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
		return &ArchiveService{s3Client: client, bucket: bucket, log: log}, nil
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &ArchiveService{s3Client: s3.NewFromConfig(cfg), bucket: bucket, log: log}, nil
}

// ArchiveKey builds a collision-free S3 key for a user's archived file.
// Format: archives/{userID}/{timestamp}-{uniqueID}-{sanitized filename}.
func ArchiveKey(userID uuid.UUID, filename string) (string, error) {
	if filename == "" {
		return "", fmt.Errorf("filename cannot be empty")
	}
	ext := filepath.Ext(filename)
	baseName := strings.TrimSuffix(filename, ext)
	baseName = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, baseName)

	timestamp := time.Now().UTC().Unix()
	uniqueID := uuid.New().String()[:8]
	return fmt.Sprintf("archives/%s/%d-%s-%s%s", userID, timestamp, uniqueID, baseName, ext), nil
}

// Store uploads a file's bytes under a fresh archive key and returns it.
func (s *ArchiveService) Store(ctx context.Context, userID uuid.UUID, filename string, data []byte) (string, error) {
	key, err := ArchiveKey(userID, filename)
	if err != nil {
		return "", err
	}
	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", fmt.Errorf("archive file: %w", err)
	}
	s.log.Info("file archived",
		zap.String("key", key),
		zap.Int("bytes", len(data)))
	return key, nil
}

// PresignDownload produces a time-limited GET URL for an archived file.
func (s *ArchiveService) PresignDownload(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if key == "" {
		return "", fmt.Errorf("key cannot be empty")
	}
	presignClient := s3.NewPresignClient(s.s3Client)
	req, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("presign download: %w", err)
	}
	return req.URL, nil
}

// Fetch streams an archived file back.
func (s *ArchiveService) Fetch(ctx context.Context, key string) (io.ReadCloser, error) {
	if key == "" {
		return nil, fmt.Errorf("key cannot be empty")
	}
	out, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("fetch archived file: %w", err)
	}
	return out.Body, nil
}

// Remove deletes an archived file.
func (s *ArchiveService) Remove(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}
	_, err := s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete archived file: %w", err)
	}
	return nil
}
