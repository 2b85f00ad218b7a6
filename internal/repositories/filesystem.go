package repositories

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/systmms/keyops/internal/logging"
	"github.com/systmms/keyops/internal/metrics"
	"github.com/systmms/keyops/pkg/keyring"
)

// FilesystemRepository persists key documents as key-<name>.xml files in
// a directory. It exists for local development and for migrating rings
// out of the default on-disk layout.
type FilesystemRepository struct {
	dir    string
	logger *logging.Logger

	mu     sync.Mutex
	closed bool
}

// FilesystemOption configures a FilesystemRepository.
type FilesystemOption func(*FilesystemRepository)

// WithFilesystemLogger sets the logger used for skip and failure
// diagnostics.
func WithFilesystemLogger(logger *logging.Logger) FilesystemOption {
	return func(r *FilesystemRepository) {
		r.logger = logger
	}
}

// NewFilesystemRepository creates a repository over the given directory,
// creating it if needed.
func NewFilesystemRepository(dir string, opts ...FilesystemOption) (*FilesystemRepository, error) {
	if dir == "" {
		return nil, keyring.ValidationError{Store: "filesystem", Message: "directory must not be empty"}
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, keyring.StoreError{Store: "filesystem", Op: "init", Err: err}
	}

	r := &FilesystemRepository{
		dir:    dir,
		logger: logging.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// NewFilesystemRepositoryFromConfig builds a repository from an inline
// store config.
func NewFilesystemRepositoryFromConfig(configMap map[string]interface{}, opts ...FilesystemOption) (*FilesystemRepository, error) {
	dir, _ := configMap["directory"].(string)
	if strings.HasPrefix(dir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, dir[2:])
	}
	return NewFilesystemRepository(dir, opts...)
}

// GetAllElements reads every key-*.xml file in the directory and parses
// it as a key document.
func (r *FilesystemRepository) GetAllElements(ctx context.Context) ([]*keyring.KeyDocument, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	metrics.RecordList("filesystem")

	paths, err := filepath.Glob(filepath.Join(r.dir, "key-*.xml"))
	if err != nil {
		metrics.RecordTransportError("filesystem", "list")
		return nil, keyring.StoreError{Store: "filesystem", Op: "list", Err: err}
	}

	var documents []*keyring.KeyDocument
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			metrics.RecordTransportError("filesystem", "get")
			r.logger.Error("Failed to read %s: %v", path, err)
			return nil, keyring.StoreError{Store: "filesystem", Op: "get", Err: err}
		}

		doc, err := keyring.ParseKeyDocument(string(data))
		if err != nil {
			metrics.RecordSkipped("filesystem")
			r.logger.Error("Skipping file %s: %v", filepath.Base(path), err)
			continue
		}
		documents = append(documents, doc)
	}

	return documents, nil
}

// StoreElement writes a key document to a new key-<name>.xml file. The
// file is created exclusively so an existing document is never replaced.
func (r *FilesystemRepository) StoreElement(ctx context.Context, element *keyring.KeyDocument, friendlyName string) error {
	if err := r.checkOpen(); err != nil {
		return err
	}
	if err := checkElement("filesystem", element); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	metrics.RecordStore("filesystem")

	name := filesystemFileName(keyring.RecordName("key-", element, friendlyName))
	path := filepath.Join(r.dir, name+".xml")

	text, err := element.Serialize()
	if err != nil {
		return keyring.StoreError{Store: "filesystem", Op: "store", Err: err}
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		metrics.RecordTransportError("filesystem", "store")
		r.logger.Error("Failed to create %s: %v", path, err)
		return keyring.StoreError{Store: "filesystem", Op: "store", Err: err}
	}
	if _, err := f.WriteString(text); err != nil {
		f.Close()
		metrics.RecordTransportError("filesystem", "store")
		return keyring.StoreError{Store: "filesystem", Op: "store", Err: err}
	}
	if err := f.Close(); err != nil {
		metrics.RecordTransportError("filesystem", "store")
		return keyring.StoreError{Store: "filesystem", Op: "store", Err: err}
	}

	r.logger.Debug("Stored key document as %s", path)
	return nil
}

// filesystemFileName maps a record name onto a single path component.
// Path separators and other unsafe runes become dashes, so a friendly
// name can never place a file outside the repository directory.
func filesystemFileName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == '_', r == '.':
			return r
		default:
			return '-'
		}
	}, name)
}

// Validate checks that the directory is readable.
func (r *FilesystemRepository) Validate(ctx context.Context) error {
	if err := r.checkOpen(); err != nil {
		return err
	}
	if _, err := os.Stat(r.dir); err != nil {
		return keyring.StoreError{Store: "filesystem", Op: "validate", Err: err}
	}
	return nil
}

// Close marks the repository closed. Close is idempotent.
func (r *FilesystemRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *FilesystemRepository) checkOpen() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return keyring.ErrRepositoryClosed
	}
	return nil
}

var _ keyring.Repository = (*FilesystemRepository)(nil)
