package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ObjectStore persists uploaded binary objects and hands out public URLs.
type ObjectStore interface {
	Upload(ctx context.Context, bucket, name string, r io.Reader) (string, error)
	PublicURL(bucket, name string) string
}

// DiskStore is a filesystem-backed ObjectStore. Buckets are directories
// under the root; objects are served by the HTTP layer from the same root.
type DiskStore struct {
	root    string
	baseURL string
}

// NewDiskStore creates the store root if needed.
func NewDiskStore(root, baseURL string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &DiskStore{root: root, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// Root returns the filesystem root, for static file serving.
func (s *DiskStore) Root() string {
	return s.root
}

// Upload writes the object and returns its public URL.
func (s *DiskStore) Upload(ctx context.Context, bucket, name string, r io.Reader) (string, error) {
	name = sanitize(name)
	dir := filepath.Join(s.root, bucket)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create bucket dir: %w", err)
	}

	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", fmt.Errorf("create object: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return "", fmt.Errorf("write object: %w", err)
	}
	return s.PublicURL(bucket, name), nil
}

// PublicURL builds the URL an object is served from.
func (s *DiskStore) PublicURL(bucket, name string) string {
	return s.baseURL + "/" + bucket + "/" + sanitize(name)
}

// sanitize strips path separators so object names cannot escape the bucket.
func sanitize(name string) string {
	name = filepath.Base(name)
	return strings.ReplaceAll(name, string(os.PathSeparator), "_")
}
