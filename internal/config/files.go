package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileProvider reads one secret per file from a directory. GROQ_API_KEY is
// looked up as <dir>/groq-api-key.
type FileProvider struct {
	dir string
}

// NewFileProvider creates a provider over dir
func NewFileProvider(dir string) *FileProvider {
	return &FileProvider{dir: dir}
}

// secretFile maps a key to its file name
func secretFile(key string) string {
	return strings.ToLower(strings.ReplaceAll(key, "_", "-"))
}

func (f *FileProvider) GetSecret(ctx context.Context, key string) (string, error) {
	if f.dir == "" {
		return "", fmt.Errorf("secrets directory not configured")
	}

	path := filepath.Join(f.dir, secretFile(key))
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return "", nil
	case err != nil:
		return "", fmt.Errorf("failed to read secret file %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (f *FileProvider) Name() string { return "file" }

// IsAvailable reports whether the directory exists
func (f *FileProvider) IsAvailable(ctx context.Context) bool {
	if f.dir == "" {
		return false
	}
	info, err := os.Stat(f.dir)
	return err == nil && info.IsDir()
}
