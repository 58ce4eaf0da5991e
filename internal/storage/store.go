// Package storage publishes the local evidence tree to object storage.
package storage

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
)

// BlobStore uploads one local file under a key, overwriting any existing
// object. It returns the public URL and the storage key of the object.
type BlobStore interface {
	Put(ctx context.Context, localPath, key string) (publicURL, storageKey string, err error)
}

// UploadError reports a single file that could not be stored.
type UploadError struct {
	Path  string
	Key   string
	Cause error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload of %s to %s failed: %v", e.Path, e.Key, e.Cause)
}

func (e *UploadError) Unwrap() error {
	return e.Cause
}

var imageExtensions = map[string]bool{".png": true, ".jpg": true, ".jpeg": true}

// IsImage reports whether a path or key names image evidence.
func IsImage(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}

// IsDocument reports whether a path or key names a PDF artifact.
func IsDocument(name string) bool {
	return strings.ToLower(filepath.Ext(name)) == ".pdf"
}

func contentType(name string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// Split holds uploaded objects partitioned by evidence kind.
type Split struct {
	ImageURLs    []string
	ImageKeys    []string
	DocumentURLs []string
	DocumentKeys []string
}

// SplitByKind partitions matching url/key lists into images and documents.
// Objects of any other kind are dropped.
func SplitByKind(urls, keys []string) Split {
	var s Split
	for i := range keys {
		if i >= len(urls) {
			break
		}
		switch {
		case IsImage(keys[i]):
			s.ImageURLs = append(s.ImageURLs, urls[i])
			s.ImageKeys = append(s.ImageKeys, keys[i])
		case IsDocument(keys[i]):
			s.DocumentURLs = append(s.DocumentURLs, urls[i])
			s.DocumentKeys = append(s.DocumentKeys, keys[i])
		}
	}
	return s
}
