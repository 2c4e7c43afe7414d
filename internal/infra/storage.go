package infra

import (
	"bytes"
	"fmt"
	"time"

	storage_go "github.com/supabase-community/storage-go"
)

// ObjectStorage is the narrow surface the audio pipeline needs from the
// storage backend.
type ObjectStorage interface {
	Upload(path string, data []byte, contentType string) error
	PublicURL(path string) string
	SignedURL(path string, expiresIn time.Duration) (string, error)
}

// SupabaseStorage stores audio buffers in a single bucket. Uploads use
// upsert so regenerations cannot fail on an existing object.
type SupabaseStorage struct {
	client *storage_go.Client
	bucket string
}

func NewSupabaseStorage(storageURL, serviceKey, bucket string) *SupabaseStorage {
	return &SupabaseStorage{
		client: storage_go.NewClient(storageURL, serviceKey, nil),
		bucket: bucket,
	}
}

func (s *SupabaseStorage) Upload(path string, data []byte, contentType string) error {
	upsert := true
	_, err := s.client.UploadFile(s.bucket, path, bytes.NewReader(data), storage_go.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", path, err)
	}
	return nil
}

func (s *SupabaseStorage) PublicURL(path string) string {
	return s.client.GetPublicUrl(s.bucket, path).SignedURL
}

func (s *SupabaseStorage) SignedURL(path string, expiresIn time.Duration) (string, error) {
	resp, err := s.client.CreateSignedUrl(s.bucket, path, int(expiresIn.Seconds()))
	if err != nil {
		return "", fmt.Errorf("sign %s: %w", path, err)
	}
	return resp.SignedURL, nil
}
