package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSStore keeps objects in one Cloud Storage bucket.
type GCSStore struct {
	client    *gcs.Client
	bucket    string
	projectID string
}

// NewGCSStore uses the credentials file when given, else application
// default credentials.
func NewGCSStore(ctx context.Context, bucket, projectID, credentialsPath string) (*GCSStore, error) {
	if bucket == "" {
		return nil, errors.New("gcs bucket name is empty")
	}
	var opts []option.ClientOption
	if credentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcs client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket, projectID: projectID}, nil
}

func (g *GCSStore) object(key string) *gcs.ObjectHandle {
	return g.client.Bucket(g.bucket).Object(key)
}

func (g *GCSStore) Put(ctx context.Context, key, contentType string, r io.Reader) (*Object, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	w := g.object(key).NewWriter(ctx)
	w.ContentType = contentType
	size, err := io.Copy(w, r)
	if err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to upload %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize %s: %w", key, err)
	}
	return &Object{
		Key:  key,
		URL:  fmt.Sprintf("gs://%s/%s", g.bucket, key),
		Size: size,
	}, nil
}

func (g *GCSStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	rc, err := g.object(key).NewReader(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, fmt.Errorf("%s: %w", key, ErrObjectNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return rc, nil
}

func (g *GCSStore) Delete(ctx context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	err := g.object(key).Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (g *GCSStore) Close() error { return g.client.Close() }

var _ DocumentStore = (*GCSStore)(nil)
