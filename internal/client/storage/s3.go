// Package storage uploads attachment bodies to an object store and returns a
// durable URL for them. Store errors are translated into the common taxonomy.
package storage

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
	"github.com/aws/smithy-go"
	"github.com/dmitrijs2005/gophchat/internal/common"
)

var (
	loadDefaultAWSConfig  = config.LoadDefaultConfig
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Config struct {
	Region    string
	Bucket    string
	Endpoint  string
	AccessKey string
	SecretKey string
	// PublicBaseURL is the prefix objects are served from. Defaults to the
	// path-style endpoint URL of the bucket.
	PublicBaseURL string
}

type S3Store struct {
	api    putObjectAPI
	bucket string
	base   *url.URL
}

func NewS3Store(ctx context.Context, c S3Config) (*S3Store, error) {
	if c.Bucket == "" {
		return nil, fmt.Errorf("%w: s3 bucket is required", common.ErrValidation)
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(c.Region)}
	if c.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			c.AccessKey,
			c.SecretKey,
			"",
		)))
	}
	cfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
			o.UsePathStyle = true
		}
	})

	base, err := publicBase(c)
	if err != nil {
		return nil, err
	}
	return &S3Store{api: client, bucket: c.Bucket, base: base}, nil
}

func publicBase(c S3Config) (*url.URL, error) {
	raw := c.PublicBaseURL
	switch {
	case raw != "":
	case c.Endpoint != "":
		raw = strings.TrimRight(c.Endpoint, "/") + "/" + c.Bucket
	default:
		raw = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", c.Bucket, c.Region)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: bad public base url %q: %v", common.ErrValidation, raw, err)
	}
	return u, nil
}

// Put stores body under key with the given content type and returns its URL.
func (s *S3Store) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, classifyS3(err))
	}
	return s.base.JoinPath(key).String(), nil
}

func classifyS3(err error) error {
	var ae smithy.APIError
	if errors.As(err, &ae) {
		switch ae.ErrorCode() {
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken", "InvalidToken":
			return fmt.Errorf("%w: %w", common.ErrUnauthorized, err)
		case "QuotaExceeded", "ServiceQuotaExceeded", "EntityTooLarge", "StorageQuotaExceeded":
			return fmt.Errorf("%w: %w", common.ErrQuotaExceeded, err)
		case "SlowDown", "Throttling", "ThrottlingException", "TooManyRequests", "RequestLimitExceeded":
			return fmt.Errorf("%w: %w", common.ErrTooManyRequests, err)
		case "RequestTimeout":
			return fmt.Errorf("%w: %w", common.ErrNetwork, err)
		}
		return err
	}
	if common.KindOf(err) == common.KindNetwork {
		return fmt.Errorf("%w: %w", common.ErrNetwork, err)
	}
	return err
}
