// Package gcs provides a cache-document backend backed by Google Cloud
// Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
)

// Config captures the parameters required to connect to GCS.
type Config struct {
	Bucket string
	Prefix string
}

// Backend reads and writes one cache document in a GCS bucket.
type Backend struct {
	client *storage.Client
	bucket string
	object string
}

// New creates a GCS-backed document backend for the named document.
func New(client *storage.Client, cfg Config, name string) (*Backend, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("document name is required")
	}
	object := name + ".json"
	if prefix := strings.Trim(cfg.Prefix, "/"); prefix != "" {
		object = prefix + "/" + object
	}
	return &Backend{
		client: client,
		bucket: cfg.Bucket,
		object: object,
	}, nil
}

// Load downloads the document, or returns nil when the object is absent.
func (b *Backend) Load(ctx context.Context) ([]byte, error) {
	reader, err := b.client.Bucket(b.bucket).Object(b.object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open cache object: %w", err)
	}
	defer func() { _ = reader.Close() }()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read cache object: %w", err)
	}
	return data, nil
}

// Store rewrites the document object in full.
func (b *Backend) Store(ctx context.Context, data []byte) error {
	writer := b.client.Bucket(b.bucket).Object(b.object).NewWriter(ctx)
	writer.ContentType = "application/json"
	if _, err := writer.Write(data); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return fmt.Errorf("write cache object: %w (close writer: %v)", err, closeErr)
		}
		return fmt.Errorf("write cache object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close cache object writer: %w", err)
	}
	return nil
}
