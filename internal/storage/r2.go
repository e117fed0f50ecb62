package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"recollect-worker/internal/config"
)

// ObjectStore stores public objects
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	PublicURL(key string) string
}

// R2 is an ObjectStore backed by a Cloudflare R2 bucket through its S3 API
type R2 struct {
	client     *s3.Client
	bucket     string
	publicBase string
}

// NewR2 creates an R2 store
func NewR2(ctx context.Context, cfg config.StorageConfig) (*R2, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		if cfg.AccountID == "" {
			return nil, fmt.Errorf("r2 account id or endpoint is required")
		}
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load r2 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	return &R2{client: client, bucket: cfg.Bucket, publicBase: strings.TrimRight(cfg.PublicBaseURL, "/")}, nil
}

func (r *R2) Put(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &r.bucket,
		Key:         &key,
		Body:        bytes.NewReader(body),
		ContentType: &contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to put %s: %w", key, err)
	}
	return nil
}

func (r *R2) PublicURL(key string) string {
	return r.publicBase + "/" + key
}

// Memory is an in-process ObjectStore
type Memory struct {
	mu      sync.Mutex
	Base    string
	Objects map[string][]byte
	Types   map[string]string
	PutErr  error
}

// NewMemory creates an empty in-memory store serving from base
func NewMemory(base string) *Memory {
	return &Memory{Base: base, Objects: map[string][]byte{}, Types: map[string]string{}}
}

func (m *Memory) Put(ctx context.Context, key string, body []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PutErr != nil {
		return m.PutErr
	}
	m.Objects[key] = append([]byte(nil), body...)
	m.Types[key] = contentType
	return nil
}

func (m *Memory) PublicURL(key string) string {
	return strings.TrimRight(m.Base, "/") + "/" + key
}

// Len returns the number of stored objects
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Objects)
}
