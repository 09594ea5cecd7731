// Package local implements a local filesystem cache-document backend.
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Config captures the parameters for the local filesystem backend.
type Config struct {
	// BaseDir is the directory where cache documents are stored.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// Backend reads and writes one cache document on the local filesystem.
type Backend struct {
	path string
}

// New creates a filesystem-backed document backend for the named document.
func New(cfg Config, name string) (*Backend, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("document name is required")
	}
	if err := os.MkdirAll(cfg.BaseDir, 0o750); err != nil {
		return nil, fmt.Errorf("create base directory: %w", err)
	}
	return &Backend{
		path: filepath.Join(cfg.BaseDir, name+".json"),
	}, nil
}

// Load returns the document contents, or nil when the file does not exist.
func (b *Backend) Load(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cache document: %w", err)
	}
	return data, nil
}

// Store rewrites the document in full.
func (b *Backend) Store(_ context.Context, data []byte) error {
	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write cache document: %w", err)
	}
	if err := os.Rename(tmp, b.path); err != nil {
		return fmt.Errorf("replace cache document: %w", err)
	}
	return nil
}
