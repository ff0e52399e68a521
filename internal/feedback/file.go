package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/seanankenbruck/insidebi-ai/internal/errors"
)

// FileStore keeps feedback as a JSON array in a single file
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a store backed by path; the file is created on first append
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file
func (s *FileStore) Path() string { return s.path }

// Append reads the file, adds entry and writes it back.
// An unreadable or corrupt file is treated as empty.
func (s *FileStore) Append(ctx context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.read()
	entries = append(entries, entry)

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return errors.NewFeedbackWriteError(fmt.Errorf("failed to marshal feedback: %w", err))
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.NewFeedbackWriteError(err)
		}
	}

	// write to a sibling temp file, then rename into place
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.NewFeedbackWriteError(err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.NewFeedbackWriteError(err)
	}
	return nil
}

// List returns all entries in the file
func (s *FileStore) List(ctx context.Context) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(), nil
}

func (s *FileStore) read() []Entry {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return []Entry{}
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil || entries == nil {
		return []Entry{}
	}
	return entries
}
