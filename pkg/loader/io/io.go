package io

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"raven/pkg/loader"

	"golang.org/x/sync/singleflight"
)

// IOCorpusLoader loads corpus documents from the local filesystem with
// caching of file contents.
type IOCorpusLoader struct {
	cache   map[string][]byte
	cacheMu sync.RWMutex
	group   singleflight.Group
}

// NewIOCorpusLoader creates a new filesystem-based corpus loader.
func NewIOCorpusLoader() *IOCorpusLoader {
	return &IOCorpusLoader{
		cache: make(map[string][]byte),
	}
}

// List resolves path to candidate documents: for a directory, every
// immediate entry named *.json in directory listing order; for a file, the
// file itself when named *.json; anything else yields no candidates.
func (l *IOCorpusLoader) List(ctx context.Context, path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		if loader.IsJSONCandidate(path) {
			return []string{path}, nil
		}
		return []string{}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	sources := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !loader.IsJSONCandidate(entry.Name()) {
			continue
		}
		sources = append(sources, filepath.Join(path, entry.Name()))
	}
	return sources, nil
}

// Read returns the file content from the filesystem. Results are cached;
// concurrent reads of the same file are collapsed into one.
func (l *IOCorpusLoader) Read(ctx context.Context, source string) ([]byte, error) {
	l.cacheMu.RLock()
	cached, ok := l.cache[source]
	l.cacheMu.RUnlock()
	if ok {
		return cached, nil
	}

	data, err, _ := l.group.Do(source, func() (any, error) {
		raw, err := os.ReadFile(source)
		if err != nil {
			return nil, err
		}
		l.cacheMu.Lock()
		l.cache[source] = raw
		l.cacheMu.Unlock()
		return raw, nil
	})
	if err != nil {
		return nil, err
	}
	return data.([]byte), nil
}
