package storage

import (
	"context"
	"fmt"
	"os"

	"github.com/aliyun/alibabacloud-oss-go-sdk-v2/oss"
	"github.com/aliyun/alibabacloud-oss-go-sdk-v2/oss/credentials"

	"bansub/internal/logging"
)

// OSS stages audio files in an Alibaba Cloud bucket so the recognizer,
// which runs inside Alibaba's network, can fetch them over a public URL.
type OSS struct {
	client *oss.Client
	bucket string
	region string
	logger *logging.Logger
}

// Options carries the bucket credentials and location.
type Options struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	AccessKeySecret string
}

func NewOSS(opts Options, logger *logging.Logger) (*OSS, error) {
	if opts.Region == "" || opts.Bucket == "" {
		return nil, fmt.Errorf("OSS region and bucket are required")
	}
	if opts.AccessKeyID == "" || opts.AccessKeySecret == "" {
		return nil, fmt.Errorf("OSS credentials are required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	cfg := oss.LoadDefaultConfig().
		WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.AccessKeyID, opts.AccessKeySecret)).
		WithRegion(opts.Region)

	return &OSS{
		client: oss.NewClient(cfg),
		bucket: opts.Bucket,
		region: opts.Region,
		logger: logger,
	}, nil
}

// PublicURL returns the unauthenticated URL for an object.
func (s *OSS) PublicURL(key string) string {
	return fmt.Sprintf("https://%s.oss-%s.aliyuncs.com/%s", s.bucket, s.region, key)
}

// EnsureUpload uploads a local file under key unless the object already
// exists, and makes it publicly readable.
func (s *OSS) EnsureUpload(ctx context.Context, key, filePath string) error {
	exists, err := s.client.IsObjectExist(ctx, s.bucket, key)
	if err != nil {
		return fmt.Errorf("failed to check object %s: %w", key, err)
	}
	if exists {
		s.logger.Infow("Object already uploaded", "key", key)
		return nil
	}

	if _, err := os.Stat(filePath); err != nil {
		return fmt.Errorf("file not found: %s", filePath)
	}

	s.logger.Infow("Uploading file", "path", filePath, "key", key)
	_, err = s.client.PutObjectFromFile(ctx, &oss.PutObjectRequest{
		Bucket: oss.Ptr(s.bucket),
		Key:    oss.Ptr(key),
	}, filePath)
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}

	_, err = s.client.PutObjectAcl(ctx, &oss.PutObjectAclRequest{
		Bucket: oss.Ptr(s.bucket),
		Key:    oss.Ptr(key),
		Acl:    oss.ObjectACLPublicRead,
	})
	if err != nil {
		return fmt.Errorf("failed to set public ACL on %s: %w", key, err)
	}

	return nil
}

// Delete removes an object from the bucket.
func (s *OSS) Delete(ctx context.Context, key string) error {
	s.logger.Infow("Deleting object", "key", key)
	_, err := s.client.DeleteObject(ctx, &oss.DeleteObjectRequest{
		Bucket: oss.Ptr(s.bucket),
		Key:    oss.Ptr(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}
