package storage

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// BlobStore stores binary objects and hands out retrieval URLs.
type BlobStore interface {
	// Put stores data under key and returns a durable URL for it.
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
	// SignedURL returns a time-limited download URL for key.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

const (
	UploadsPrefix    = "uploads/"
	GroupCoverPrefix = "group-cover/"
)

// NewObjectKey builds "<prefix><unix-millis>-<random>.<ext>" for a freshly uploaded file.
func NewObjectKey(prefix, ext string, now time.Time) string {
	buf := make([]byte, 6)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("%s%d-%s.%s", prefix, now.UnixMilli(), hex.EncodeToString(buf), ext)
}

// UploadKey resolves a client supplied filename inside uploads/. Names that could escape
// the prefix are rejected.
func UploadKey(filename string) (string, bool) {
	if filename == "" || strings.Contains(filename, "/") || strings.Contains(filename, `\`) || strings.Contains(filename, "..") {
		return "", false
	}
	return UploadsPrefix + filename, true
}

// DetectImage sniffs data and returns its content type and file extension. Only images
// are accepted.
func DetectImage(data []byte) (string, string, bool) {
	contentType := http.DetectContentType(data)
	switch contentType {
	case "image/jpeg":
		return contentType, "jpg", true
	case "image/png":
		return contentType, "png", true
	case "image/gif":
		return contentType, "gif", true
	case "image/webp":
		return contentType, "webp", true
	default:
		return contentType, "", false
	}
}
