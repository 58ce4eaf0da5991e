package storage

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"google.golang.org/api/option"
	gcs "google.golang.org/api/storage/v1"
)

// DefaultBucket is the bucket FUR evidence is published to.
const DefaultBucket = "contraprestaciones-pro-ser"

// GCSStore writes objects to a Google Cloud Storage bucket.
type GCSStore struct {
	svc    *gcs.Service
	bucket string
}

// NewGCSStore creates a store for bucket. Without a credentials file the
// application default credentials are used.
func NewGCSStore(ctx context.Context, bucket, credentialsFile string) (*GCSStore, error) {
	if bucket == "" {
		bucket = DefaultBucket
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	svc, err := gcs.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage service: %w", err)
	}
	return &GCSStore{svc: svc, bucket: bucket}, nil
}

// Put uploads localPath as key.
func (s *GCSStore) Put(ctx context.Context, localPath, key string) (string, string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", "", &UploadError{Path: localPath, Key: key, Cause: err}
	}
	defer f.Close()

	obj := &gcs.Object{Name: key, ContentType: contentType(localPath)}
	if _, err := s.svc.Objects.Insert(s.bucket, obj).Media(f).Context(ctx).Do(); err != nil {
		return "", "", &UploadError{Path: localPath, Key: key, Cause: err}
	}
	return gcsPublicURL(s.bucket, key), fmt.Sprintf("gs://%s/%s", s.bucket, key), nil
}

func gcsPublicURL(bucket, key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, strings.Join(parts, "/"))
}
