package services

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"relay-chat/internal/storage"
	relay_errors "relay-chat/pkg/errors"
)

const maxImageBytes = 10 << 20

type UploadService struct {
	blobs     storage.BlobStore
	signedTTL time.Duration
	now       func() time.Time
}

func NewUploadService(blobs storage.BlobStore, signedTTL time.Duration) *UploadService {
	if signedTTL <= 0 {
		signedTTL = time.Hour
	}
	return &UploadService{
		blobs:     blobs,
		signedTTL: signedTTL,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// DecodeFile accepts plain base64 or a data URL.
func DecodeFile(encoded string) ([]byte, error) {
	if i := strings.Index(encoded, ";base64,"); i >= 0 && strings.HasPrefix(encoded, "data:") {
		encoded = encoded[i+len(";base64,"):]
	}
	if encoded == "" {
		return nil, relay_errors.ErrMissingFile
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, relay_errors.Validation("file is not valid base64")
	}
	return data, nil
}

// StoreImage checks that data is an image and stores it under prefix. It returns the
// durable URL of the object.
func (s *UploadService) StoreImage(ctx context.Context, prefix string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", relay_errors.ErrMissingFile
	}
	if len(data) > maxImageBytes {
		return "", relay_errors.Validation("file exceeds %d bytes", maxImageBytes)
	}
	contentType, ext, ok := storage.DetectImage(data)
	if !ok {
		return "", relay_errors.Validation("unsupported file type %s", contentType)
	}

	url, err := s.blobs.Put(ctx, storage.NewObjectKey(prefix, ext, s.now()), contentType, data)
	if err != nil {
		return "", relay_errors.Dependency(err)
	}
	return url, nil
}

// SignedDownloadURL signs uploads/<filename> for SIGNED_URL_TTL.
func (s *UploadService) SignedDownloadURL(ctx context.Context, filename string) (string, error) {
	key, ok := storage.UploadKey(filename)
	if !ok {
		return "", relay_errors.Validation("invalid filename")
	}
	url, err := s.blobs.SignedURL(ctx, key, s.signedTTL)
	if err != nil {
		return "", relay_errors.Dependency(err)
	}
	return url, nil
}
