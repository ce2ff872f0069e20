package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"WeatherCast/internal/domain/models"
	domrepo "WeatherCast/internal/domain/repository"
	applogger "WeatherCast/pkg/logger"
)

// S3StoreConfig configures the S3 model store.
type S3StoreConfig struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string // S3-compatible services (MinIO, etc.)
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// S3API is the subset of *s3.Client the store needs.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3ModelStore keeps model blobs as objects. A PUT replaces an object
// atomically, so readers see either the previous or the new blob.
type S3ModelStore struct {
	client S3API
	cfg    S3StoreConfig
	l      *applogger.Logger
}

// NewS3ModelStore builds an AWS client from cfg.
func NewS3ModelStore(ctx context.Context, cfg S3StoreConfig) (*S3ModelStore, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 model store: bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = cfg.UsePathStyle
		})
	}
	return NewS3ModelStoreWithClient(s3.NewFromConfig(awsCfg, s3Opts...), cfg), nil
}

func NewS3ModelStoreWithClient(client S3API, cfg S3StoreConfig) *S3ModelStore {
	return &S3ModelStore{client: client, cfg: cfg}
}

// SetLogger injects a structured logger.
func (s *S3ModelStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *S3ModelStore) key(name string) (string, error) {
	file, err := modelFileName(name)
	if err != nil {
		return "", err
	}
	return s.cfg.Prefix + file, nil
}

func (s *S3ModelStore) Save(ctx context.Context, name string, m *models.TrainedModel) error {
	start := time.Now()
	key, err := s.key(name)
	if err != nil {
		return err
	}
	blob, err := EncodeModel(m)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(blob),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		s.l.Error("s3 put model failed", applogger.String("key", key), applogger.Error(err))
		return fmt.Errorf("put model %s: %w", key, err)
	}
	s.l.Info("model saved",
		applogger.String("bucket", s.cfg.Bucket),
		applogger.String("key", key),
		applogger.Int("bytes", len(blob)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

func (s *S3ModelStore) Load(ctx context.Context, name string) (*models.TrainedModel, error) {
	key, err := s.key(name)
	if err != nil {
		return nil, models.NewModelLoadError(name, "bad name", err)
	}
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, models.NewModelLoadError(name, key, models.ErrModelNotFound)
		}
		return nil, models.NewModelLoadError(name, "get object", err)
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, models.NewModelLoadError(name, "read object", err)
	}
	return DecodeModel(name, data)
}

func (s *S3ModelStore) Exists(ctx context.Context, name string) (bool, error) {
	key, err := s.key(name)
	if err != nil {
		return false, err
	}
	_, err = s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("head model %s: %w", key, err)
	}
	return true, nil
}

func isS3NotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *s3types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	return strings.Contains(err.Error(), "NotFound") || strings.Contains(err.Error(), "404")
}

var _ domrepo.ModelStore = (*S3ModelStore)(nil)
