// Package configloader reads the assistant's YAML configuration.
package configloader

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Loader reads YAML files relative to a base directory.
type Loader struct {
	baseDir string
	cache   sync.Map
}

// NewLoader creates a new configuration loader.
func NewLoader(baseDir string) *Loader {
	return &Loader{baseDir: baseDir}
}

// Load reads subPath and unmarshals it into target.
func (l *Loader) Load(subPath string, target any) error {
	data, err := l.readFile(subPath)
	if err != nil {
		return fmt.Errorf("read file %s: %w", subPath, err)
	}
	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("unmarshal YAML %s: %w", subPath, err)
	}
	return nil
}

// LoadCached returns the cached value for subPath, loading it into the
// value produced by factory on first use.
func (l *Loader) LoadCached(subPath string, factory func() any) (any, error) {
	if cached, ok := l.cache.Load(subPath); ok {
		return cached, nil
	}
	target := factory()
	if err := l.Load(subPath, target); err != nil {
		return nil, err
	}
	actual, _ := l.cache.LoadOrStore(subPath, target)
	return actual, nil
}

// ClearCache drops every cached value.
func (l *Loader) ClearCache() {
	l.cache.Range(func(k, _ any) bool {
		l.cache.Delete(k)
		return true
	})
}

// readFile tries baseDir first, then the executable's directory for
// installed builds.
func (l *Loader) readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(l.baseDir, path))
	if err == nil {
		return data, nil
	}
	execPath, execErr := os.Executable()
	if execErr != nil {
		return nil, err
	}
	return os.ReadFile(filepath.Join(filepath.Dir(execPath), l.baseDir, path))
}
