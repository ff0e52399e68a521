package config

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/joho/godotenv"
)

// EnvProvider reads the process environment
type EnvProvider struct{}

func NewEnvProvider() *EnvProvider {
	return &EnvProvider{}
}

func (e *EnvProvider) GetSecret(ctx context.Context, key string) (string, error) {
	return os.Getenv(key), nil
}

func (e *EnvProvider) Name() string { return "env" }

func (e *EnvProvider) IsAvailable(ctx context.Context) bool { return true }

// DotenvProvider reads KEY=value pairs from a .env file. The file is parsed
// once, on first use, and never exported into the process environment.
type DotenvProvider struct {
	path string

	once   sync.Once
	values map[string]string
	err    error
}

// NewDotenvProvider creates a provider for the .env file at path
func NewDotenvProvider(path string) *DotenvProvider {
	return &DotenvProvider{path: path}
}

func (d *DotenvProvider) GetSecret(ctx context.Context, key string) (string, error) {
	d.once.Do(func() {
		d.values, d.err = godotenv.Read(d.path)
	})
	if d.err != nil {
		return "", fmt.Errorf("failed to read %s: %w", d.path, d.err)
	}
	return d.values[key], nil
}

func (d *DotenvProvider) Name() string { return "dotenv" }

// IsAvailable reports whether the file exists
func (d *DotenvProvider) IsAvailable(ctx context.Context) bool {
	if d.path == "" {
		return false
	}
	info, err := os.Stat(d.path)
	return err == nil && !info.IsDir()
}
