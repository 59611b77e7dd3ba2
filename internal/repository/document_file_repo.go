package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"approval-ledger/internal/ledger"
	"approval-ledger/internal/model"
)

const (
	documentFileVersion  = 1
	documentFileMode     = 0644
	documentFileDirMode  = 0755
	documentFileTempGlob = "documents-*.tmp"
)

type documentFile struct {
	Version   int              `json:"version"`
	Documents []model.Document `json:"documents"`
}

// DocumentFileStore keeps the whole collection in one JSON file.
type DocumentFileStore struct {
	path string
	mu   sync.Mutex
}

// NewDocumentFileStore creates a store backed by path. The file is created on first save.
func NewDocumentFileStore(path string) *DocumentFileStore {
	return &DocumentFileStore{path: path}
}

// Path returns the backing file.
func (s *DocumentFileStore) Path() string {
	return s.path
}

// Load reads the collection. A missing file is an empty collection; undecodable
// content reports ledger.ErrCorruptStore.
func (s *DocumentFileStore) Load(ctx context.Context) ([]model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Save replaces the file with docs.
func (s *DocumentFileStore) Save(ctx context.Context, docs []model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(docs)
}

// SaveChanges re-reads the file and replays changes onto it, so records
// written by another process since the ledger loaded are kept. Records the
// changes touch must still be at their loaded version.
func (s *DocumentFileStore) SaveChanges(ctx context.Context, changes []ledger.Change) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.load()
	if err != nil {
		return err
	}
	next, err := ledger.ApplyChanges(current, changes)
	if err != nil {
		return err
	}
	return s.write(next)
}

func (s *DocumentFileStore) load() ([]model.Document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []model.Document{}, nil
		}
		return nil, fmt.Errorf("read document store: %w", err)
	}
	if len(data) == 0 {
		return []model.Document{}, nil
	}

	var parsed documentFile
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse document store %s: %v: %w", s.path, err, ledger.ErrCorruptStore)
	}
	if parsed.Documents == nil {
		parsed.Documents = []model.Document{}
	}
	return parsed.Documents, nil
}

// write replaces the file atomically through a temp file and rename.
func (s *DocumentFileStore) write(docs []model.Document) error {
	if docs == nil {
		docs = []model.Document{}
	}
	encoded, err := json.MarshalIndent(documentFile{Version: documentFileVersion, Documents: docs}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document store: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, documentFileDirMode); err != nil {
		return fmt.Errorf("create document store dir: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, documentFileTempGlob)
	if err != nil {
		return fmt.Errorf("create temp document store: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	if _, err := tmpFile.Write(encoded); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("write temp document store: %w", err)
	}
	if err := tmpFile.Chmod(documentFileMode); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("chmod temp document store: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp document store: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		if removeErr := os.Remove(s.path); removeErr != nil && !os.IsNotExist(removeErr) {
			return fmt.Errorf("replace document store: rename failed (%v), remove failed (%v)", err, removeErr)
		}
		if retryErr := os.Rename(tmpPath, s.path); retryErr != nil {
			return fmt.Errorf("replace document store after remove: %w", retryErr)
		}
	}
	return nil
}
