package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/cleanward/internal/config"
)

// ObjectAPI is the subset of the S3 client used for proof images
type ObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// BlobStore uploads proof images to S3-compatible object storage
type BlobStore struct {
	client        ObjectAPI
	bucket        string
	publicBaseURL string
}

// NewS3Client builds an S3 client from the storage configuration. Static
// credentials are used when both keys are set, otherwise the default chain.
func NewS3Client(ctx context.Context, cfg *config.StorageConfig) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load object storage config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// NewBlobStore creates a blob store writing to bucket
func NewBlobStore(client ObjectAPI, bucket, publicBaseURL string) *BlobStore {
	return &BlobStore{
		client:        client,
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
}

// ProofKey builds the object key of a proof image:
// proofs/{userID}/{userTaskID}/{random}{ext}
func ProofKey(userID, userTaskID, contentType, filename string) string {
	ext, ok := imageExtensions[contentType]
	if !ok {
		ext = strings.ToLower(path.Ext(filename))
	}
	return fmt.Sprintf("proofs/%s/%s/%s%s", userID, userTaskID, uuid.New().String(), ext)
}

// PublicURL returns the public address of an object key
func (b *BlobStore) PublicURL(key string) string {
	return b.publicBaseURL + "/" + key
}

// Upload stores data under key and returns its public URL
func (b *BlobStore) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return b.PublicURL(key), nil
}

// Delete removes an object
func (b *BlobStore) Delete(ctx context.Context, key string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}
