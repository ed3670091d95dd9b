package utils

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/gosimple/slug"
	storage "github.com/supabase-community/storage-go"
)

// SupabaseStorage talks to the Storage API of the hosted platform.
type SupabaseStorage struct {
	client *storage.Client
}

func NewSupabaseStorage(supabaseURL, serviceKey string) *SupabaseStorage {
	base := strings.TrimRight(supabaseURL, "/") + "/storage/v1"
	return &SupabaseStorage{client: storage.NewClient(base, serviceKey, nil)}
}

func (s *SupabaseStorage) Upload(bucket, path string, body io.Reader, contentType string) error {
	cacheControl := "3600"
	upsert := false
	options := storage.FileOptions{
		CacheControl: &cacheControl,
		Upsert:       &upsert,
	}
	if contentType != "" {
		options.ContentType = &contentType
	}

	if _, err := s.client.UploadFile(bucket, path, body, options); err != nil {
		return fmt.Errorf("upload %s/%s: %w", bucket, path, err)
	}
	return nil
}

func (s *SupabaseStorage) Remove(bucket string, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	if _, err := s.client.RemoveFile(bucket, paths); err != nil {
		return fmt.Errorf("remove from %s: %w", bucket, err)
	}
	return nil
}

func (s *SupabaseStorage) SignedURL(bucket, path string, expiresIn time.Duration) (string, error) {
	resp, err := s.client.CreateSignedUrl(bucket, path, int(expiresIn.Seconds()))
	if err != nil {
		return "", fmt.Errorf("sign %s/%s: %w", bucket, path, err)
	}
	return resp.SignedURL, nil
}

func (s *SupabaseStorage) PublicURL(bucket, path string) string {
	return s.client.GetPublicUrl(bucket, path).SignedURL
}

func (s *SupabaseStorage) Download(bucket, path string) ([]byte, error) {
	data, err := s.client.DownloadFile(bucket, path)
	if err != nil {
		return nil, fmt.Errorf("download %s/%s: %w", bucket, path, err)
	}
	return data, nil
}

// ObjectKey builds "<owner>/<unix ms>-<slug>.<ext>" so uploads never collide
// and keys stay URL safe.
func ObjectKey(owner, filename string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(filename))
	base := slug.Make(strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename)))
	if base == "" {
		base = "file"
	}
	return fmt.Sprintf("%s/%d-%s%s", owner, now.UnixMilli(), base, ext)
}
