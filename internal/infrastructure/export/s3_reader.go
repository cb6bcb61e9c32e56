package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	infraconfig "github.com/contentstack/cli-sub008/internal/infrastructure/config"
)

// S3API is the subset of the S3 client used by S3Reader
type S3API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Reader reads artifacts from an S3-compatible bucket (AWS S3, MinIO,
// RustFS) under a key prefix.
type S3Reader struct {
	client S3API
	bucket string
	prefix string
	logger *zap.Logger
}

var _ Reader = (*S3Reader)(nil)

// S3ReaderOption is a functional option for configuring S3Reader
type S3ReaderOption func(*S3Reader)

// WithLogger sets a custom logger for S3Reader
func WithLogger(logger *zap.Logger) S3ReaderOption {
	return func(r *S3Reader) {
		r.logger = logger
	}
}

// WithClient replaces the S3 client
func WithClient(client S3API) S3ReaderOption {
	return func(r *S3Reader) {
		r.client = client
	}
}

// NewS3Reader creates a reader for the configured bucket. prefix is the key
// prefix of the export, usually the source data dir.
func NewS3Reader(ctx context.Context, cfg *infraconfig.StorageConfig, opts ...S3ReaderOption) (*S3Reader, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}

	r := &S3Reader{
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.client != nil {
		return r, nil
	}

	if cfg.AccessKey == "" {
		return nil, errors.New("storage access key is required")
	}
	if cfg.SecretKey == "" {
		return nil, errors.New("storage secret key is required")
	}

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(regionOrDefault(cfg.Region)),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	endpoint, err := normalizeEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}
	r.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return r, nil
}

// Key returns the object key of an artifact path
func (r *S3Reader) Key(path string) string {
	path = strings.TrimPrefix(path, "/")
	if r.prefix == "" {
		return path
	}
	return r.prefix + "/" + path
}

// Exists implements Reader
func (r *S3Reader) Exists(ctx context.Context, path string) bool {
	if _, err := cleanPath(path); err != nil {
		return false
	}
	_, err := r.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.Key(path)),
	})
	if err != nil && !isNotFound(err) {
		r.logger.Warn("Failed to check export artifact",
			zap.String("bucket", r.bucket),
			zap.String("key", r.Key(path)),
			zap.Error(err),
		)
	}
	return err == nil
}

// ReadJSON implements Reader
func (r *S3Reader) ReadJSON(ctx context.Context, path string) ([]byte, bool, error) {
	if _, err := cleanPath(path); err != nil {
		return nil, false, err
	}
	key := r.Key(path)
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, true, fmt.Errorf("%w: s3://%s/%s: %v", ErrUnreadable, r.bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, true, fmt.Errorf("%w: s3://%s/%s: %v", ErrUnreadable, r.bucket, key, err)
	}
	r.logger.Debug("Read export artifact",
		zap.String("key", key),
		zap.Int("bytes", len(data)),
	)
	return data, true, nil
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}

func regionOrDefault(region string) string {
	if region == "" {
		return "us-east-1"
	}
	return region
}

func normalizeEndpoint(endpoint string, useSSL bool) (string, error) {
	if endpoint == "" {
		return "", nil
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		if useSSL {
			endpoint = "https://" + endpoint
		} else {
			endpoint = "http://" + endpoint
		}
	}
	if _, err := url.Parse(endpoint); err != nil {
		return "", fmt.Errorf("invalid storage endpoint: %w", err)
	}
	return endpoint, nil
}
