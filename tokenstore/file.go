package tokenstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
)

// FileBackend keeps all namespaces in one TOML document, one table per service:
//
//	["de.farbflash.authSession.authData"]
//	access_token = "..."
//	token_type = "Bearer"
//	expires_at = "1767268800"
//
// Writes go to a temporary file that is synced and renamed over the document,
// so a crash never leaves a half-written file behind. The file is created with
// mode 0600.
type FileBackend struct {
	path string
	mu   sync.Mutex
}

// NewFileBackend returns a backend for the document at path. The file and its
// directory are created on first Save.
func NewFileBackend(path string) (*FileBackend, error) {
	if path == "" {
		return nil, errors.New("tokenstore: file path is required")
	}
	return &FileBackend{path: path}, nil
}

// Path returns the location of the document.
func (b *FileBackend) Path() string {
	return b.path
}

// Load implements Backend.
func (b *FileBackend) Load(_ context.Context, service string) (map[string]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	doc, err := b.read()
	if err != nil {
		return nil, err
	}
	return doc[service], nil
}

// Save implements Backend.
func (b *FileBackend) Save(_ context.Context, service string, entries map[string]string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	doc, err := b.read()
	if err != nil {
		return err
	}
	doc[service] = entries
	return b.write(doc)
}

// Delete implements Backend.
func (b *FileBackend) Delete(_ context.Context, service string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	doc, err := b.read()
	if err != nil {
		return err
	}
	if _, ok := doc[service]; !ok {
		return nil
	}
	delete(doc, service)
	return b.write(doc)
}

func (b *FileBackend) read() (map[string]map[string]string, error) {
	doc := make(map[string]map[string]string)

	data, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", b.path, err)
	}

	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", b.path, err)
	}
	return doc, nil
}

func (b *FileBackend) write(doc map[string]map[string]string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(b.path), 0o700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tempPath := b.path + ".tmp"
	f, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tempPath, b.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
