package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// CountsFile keeps the serial counters in a JSON object of counter key to
// the last count handed out, so numbering survives a restart.
type CountsFile struct {
	mu   sync.Mutex
	path string
}

func NewCountsFile(path string) *CountsFile {
	return &CountsFile{path: path}
}

func (f *CountsFile) Path() string {
	return f.path
}

// Load returns the saved counters. A missing file holds none.
func (f *CountsFile) Load(ctx context.Context) (map[string]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]int{}, nil
		}
		return nil, fmt.Errorf("read counts: %w", err)
	}
	counts := map[string]int{}
	if len(data) == 0 {
		return counts, nil
	}
	if err := json.Unmarshal(data, &counts); err != nil {
		return nil, fmt.Errorf("decode counts %s: %w", f.path, err)
	}
	return counts, nil
}

func (f *CountsFile) Save(ctx context.Context, counts map[string]int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("create counts dir: %w", err)
	}
	return writeJSONFile(f.path, counts)
}
