package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/personal/ad-lifecycle/internal/domain/media"
	"github.com/personal/ad-lifecycle/pkg/logger"
)

// DefaultPresignTTL is used when no TTL is configured
const DefaultPresignTTL = 15 * time.Minute

// S3Config holds the creative bucket settings
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// S3MediaStore resolves media references against an S3 bucket. A reference
// is either an object key or an s3://bucket/key URI for the configured bucket.
type S3MediaStore struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	logger  *logger.Logger
}

// NewS3MediaStore builds the client from static keys when given, otherwise
// from the default credential chain
func NewS3MediaStore(ctx context.Context, cfg S3Config, log *logger.Logger) (*S3MediaStore, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	} else if log != nil {
		log.Warn("S3 media store using default credential chain")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &S3MediaStore{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
		logger:  log,
	}, nil
}

// Exists reports whether the referenced object is present
func (s *S3MediaStore) Exists(ctx context.Context, ref string) (bool, error) {
	key, err := s.objectKey(ref)
	if err != nil {
		return false, err
	}

	_, err = s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to head object %s: %w", key, err)
}

// PresignURL returns a time-limited GET URL for the referenced object
func (s *S3MediaStore) PresignURL(ctx context.Context, ref string, ttl time.Duration) (string, error) {
	key, err := s.objectKey(ref)
	if err != nil {
		return "", err
	}
	if ttl <= 0 {
		ttl = DefaultPresignTTL
	}

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = ttl
	})
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", key, err)
	}
	return req.URL, nil
}

func (s *S3MediaStore) objectKey(ref string) (string, error) {
	return ObjectKey(s.bucket, ref)
}

// ObjectKey extracts the object key from ref. URIs naming another bucket are
// reported as ErrMediaNotFound.
func ObjectKey(bucket, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if rest, ok := strings.CutPrefix(ref, "s3://"); ok {
		b, key, found := strings.Cut(rest, "/")
		if !found || b != bucket || key == "" {
			return "", fmt.Errorf("%w: %s", media.ErrMediaNotFound, ref)
		}
		return key, nil
	}
	ref = strings.TrimPrefix(ref, "/")
	if ref == "" {
		return "", fmt.Errorf("%w: empty reference", media.ErrMediaNotFound)
	}
	return ref, nil
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
