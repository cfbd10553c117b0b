package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

// ErrBlobNotFound is returned when no blob exists under a key
var ErrBlobNotFound = errors.New("blob not found")

// BlobStore keeps attachment content under opaque keys.
// Keys look like "{record_uuid}/{attachment_uuid}".
type BlobStore interface {
	// Write stores data under key, replacing any previous content
	Write(ctx context.Context, key string, data []byte) error

	// Open streams the content under key. Returns ErrBlobNotFound when absent.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether key holds content
	Exists(ctx context.Context, key string) (bool, error)
}

// AttachmentKey builds the blob key of an attachment
func AttachmentKey(recordUUID, attachmentUUID string) string {
	return recordUUID + "/" + attachmentUUID
}

// AttachmentURL derives the public URL of an attachment under prefix
func AttachmentURL(prefix, recordUUID, attachmentUUID string) string {
	return strings.TrimRight(prefix, "/") + "/" + AttachmentKey(recordUUID, attachmentUUID)
}

// ReadAll loads the full content under key
func ReadAll(ctx context.Context, store BlobStore, key string) ([]byte, error) {
	rc, err := store.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func cleanKey(key string) (string, error) {
	cleaned := path.Clean("/" + key)
	if cleaned == "/" || strings.Contains(key, "..") {
		return "", errors.New("invalid blob key")
	}
	return strings.TrimPrefix(cleaned, "/"), nil
}
