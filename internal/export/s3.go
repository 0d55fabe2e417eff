// internal/export/s3.go
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/ntulenev/KafkaSnapshot-sub000/common/backoff"
)

// S3Config is the export.s3 block.
type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	Prefix          string `mapstructure:"prefix"`
	ForcePathStyle  bool   `mapstructure:"force_path_style"`
	CreateBucket    bool   `mapstructure:"create_bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" json:"-"`
	SessionToken    string `mapstructure:"session_token" json:"-"`
}

// Validate checks the required fields.
func (c S3Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("s3 sink: bucket required")
	}
	if c.Region == "" {
		return errors.New("s3 sink: region required")
	}
	return nil
}

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// S3Sink uploads one object per document at <prefix>/<run_id>/<export_name>.
type S3Sink struct {
	api    s3API
	bucket string
	region string
	prefix string
}

// OpenS3 builds an AWS client from cfg; static credentials are used when set.
func OpenS3(ctx context.Context, cfg S3Config) (*S3Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3 sink: load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	sink := NewS3Sink(client, cfg)
	if cfg.CreateBucket {
		if err := sink.EnsureBucket(ctx); err != nil {
			return nil, err
		}
	}
	return sink, nil
}

// NewS3Sink wraps an existing API client.
func NewS3Sink(api s3API, cfg S3Config) *S3Sink {
	return &S3Sink{
		api:    api,
		bucket: cfg.Bucket,
		region: cfg.Region,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}
}

func (s *S3Sink) Name() string { return "s3" }

// ObjectKey is the object key a document is stored under.
func (s *S3Sink) ObjectKey(doc *Document) string {
	return path.Join(s.prefix, doc.RunID, doc.ExportName)
}

// EnsureBucket creates the bucket when it does not exist.
func (s *S3Sink) EnsureBucket(ctx context.Context) error {
	_, err := s.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}
	if code := apiErrorCode(err); code != "NotFound" && code != "NoSuchBucket" {
		return fmt.Errorf("s3 sink: head bucket %s: %w", s.bucket, err)
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(s.bucket)}
	if s.region != "" && s.region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(s.region),
		}
	}
	if _, err := s.api.CreateBucket(ctx, input); err != nil {
		switch apiErrorCode(err) {
		case "BucketAlreadyOwnedByYou", "BucketAlreadyExists":
			return nil
		}
		return fmt.Errorf("s3 sink: create bucket %s: %w", s.bucket, err)
	}
	return nil
}

func (s *S3Sink) Write(ctx context.Context, doc *Document) error {
	body, err := doc.MarshalRecords()
	if err != nil {
		return backoff.Permanent(fmt.Errorf("s3 sink: marshal: %w", err))
	}
	key := s.ObjectKey(doc)
	_, err = s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String("application/json"),
		Metadata: map[string]string{
			"topic":  doc.Topic,
			"run-id": doc.RunID,
		},
	})
	if err != nil {
		err = fmt.Errorf("s3 sink: put %s/%s: %w", s.bucket, key, err)
		switch apiErrorCode(err) {
		case "AccessDenied", "NoSuchBucket", "InvalidBucketName":
			return backoff.Permanent(err)
		}
		return err
	}
	return nil
}

func (s *S3Sink) Close() error { return nil }

func apiErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}
