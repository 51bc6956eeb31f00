package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/spec-kit/notification-service/internal/config"
)

// objectAPI is the subset of the S3 client the store uses.
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Store keeps attachments in an S3 (or S3-compatible) bucket. References
// still use the public prefix; the HTTP layer streams them through Open.
type S3Store struct {
	client   objectAPI
	bucket   string
	prefix   string
	maxBytes int64
	logger   *zap.Logger
	now      func() time.Time
}

// NewS3Store builds the S3 client from static credentials when given, or
// the default credential chain otherwise.
func NewS3Store(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*S3Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.S3Region)}
	if cfg.S3AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Store(client, cfg.S3Bucket, cfg.PublicPrefix, cfg.MaxUploadBytes, logger), nil
}

func newS3Store(client objectAPI, bucket, prefix string, maxBytes int64, logger *zap.Logger) *S3Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &S3Store{
		client:   client,
		bucket:   bucket,
		prefix:   prefix,
		maxBytes: maxBytes,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *S3Store) Save(ctx context.Context, upload Upload) (string, error) {
	if err := Validate(upload.Filename, upload.ContentType, upload.Size, s.maxBytes); err != nil {
		return "", err
	}
	data, err := readLimited(upload.Content, s.maxBytes)
	if err != nil {
		return "", err
	}

	name := storedName(upload.Filename, s.now())
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(name),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(upload.ContentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}

	ref := path.Join(s.prefix, name)
	s.logger.Info("attachment stored", zap.String("ref", ref), zap.String("bucket", s.bucket))
	return ref, nil
}

func (s *S3Store) Open(ctx context.Context, ref string) (*Blob, error) {
	name, ok := refName(s.prefix, ref)
	if !ok {
		return nil, ErrNotFound
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		var missing *types.NoSuchKey
		if errors.As(err, &missing) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get object: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, err
	}
	return &Blob{
		Filename:    name,
		ContentType: aws.ToString(out.ContentType),
		Content:     data,
	}, nil
}

func (s *S3Store) Release(ctx context.Context, ref string) error {
	if ref == "" {
		return nil
	}
	name, ok := refName(s.prefix, ref)
	if !ok {
		s.logger.Warn("ignoring release of foreign attachment reference", zap.String("ref", ref))
		return nil
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	}); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	s.logger.Info("attachment released", zap.String("ref", ref))
	return nil
}

// New selects the configured backend.
func New(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (AttachmentStore, error) {
	if cfg.Backend == "s3" {
		return NewS3Store(ctx, cfg, logger)
	}
	return NewLocalStore(cfg.UploadDir, cfg.PublicPrefix, cfg.MaxUploadBytes, logger)
}
