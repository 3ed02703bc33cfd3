package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	internalConfig "github.com/sefazor/storycredits/internal/config"
	"github.com/sefazor/storycredits/pkg/timeout"
)

// CloudflareStorage writes to an R2 bucket through its S3 compatible API.
type CloudflareStorage struct {
	client  s3API
	bucket  string
	timeout time.Duration
}

func NewCloudflareStorage(ctx context.Context, cfg internalConfig.R2Config, callTimeout time.Duration) (*CloudflareStorage, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		config.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID))
	})

	return newCloudflareStorage(client, cfg.Bucket, callTimeout), nil
}

func newCloudflareStorage(client s3API, bucket string, callTimeout time.Duration) *CloudflareStorage {
	if callTimeout <= 0 {
		callTimeout = timeout.Medium
	}
	return &CloudflareStorage{client: client, bucket: bucket, timeout: callTimeout}
}

// Put dosyayı R2'ye yükler
func (s *CloudflareStorage) Put(ctx context.Context, key string, body []byte, contentType string) error {
	return timeout.Run(ctx, "r2 put "+key, s.timeout, func(ctx context.Context) error {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(s.bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(body),
			ContentLength: aws.Int64(int64(len(body))),
			ContentType:   aws.String(contentType),
		})
		if err != nil {
			return fmt.Errorf("failed to upload to R2: %w", err)
		}
		return nil
	})
}

func (s *CloudflareStorage) Get(ctx context.Context, key string) ([]byte, error) {
	return timeout.Do(ctx, "r2 get "+key, s.timeout, func(ctx context.Context) ([]byte, error) {
		out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to download from R2: %w", err)
		}
		defer out.Body.Close()
		return io.ReadAll(out.Body)
	})
}
