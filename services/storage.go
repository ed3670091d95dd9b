package services

import (
	"io"
	"time"
)

// ObjectStore is the bucket storage used for user files and card images.
type ObjectStore interface {
	Upload(bucket, path string, body io.Reader, contentType string) error
	Remove(bucket string, paths []string) error
	SignedURL(bucket, path string, expiresIn time.Duration) (string, error)
	PublicURL(bucket, path string) string
	Download(bucket, path string) ([]byte, error)
}
