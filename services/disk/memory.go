package disksvc

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-lms/core/attachment"
)

var ErrFileNotFound = errors.New("file not found")

// MemoryDisk keeps files in memory. Used for tests and throwaway local runs.
type MemoryDisk struct {
	mu      sync.RWMutex
	files   map[string][]byte
	baseURL string

	// FailPuts and FailDeletes make the next writes/deletes fail (tests)
	FailPuts    bool
	FailDeletes bool
}

var _ attachment.Disk = (*MemoryDisk)(nil)

func NewMemoryDisk(baseURL string) *MemoryDisk {
	return &MemoryDisk{files: make(map[string][]byte), baseURL: strings.TrimRight(baseURL, "/")}
}

func (d *MemoryDisk) Put(ctx context.Context, path string, r io.Reader, size int64, mimeType string) error {
	if d.FailPuts {
		return errors.New("memory disk: write refused")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrap(err, "reading file")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.files[path] = data
	return nil
}

func (d *MemoryDisk) Delete(ctx context.Context, path string) error {
	if d.FailDeletes {
		return errors.New("memory disk: delete refused")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.files[path]; !ok {
		return ErrFileNotFound
	}
	delete(d.files, path)
	return nil
}

func (d *MemoryDisk) URL(path string) string {
	return d.baseURL + "/" + path
}

// Get returns the content stored at path.
func (d *MemoryDisk) Get(path string) ([]byte, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	data, ok := d.files[path]
	return data, ok
}

// Paths returns every stored path.
func (d *MemoryDisk) Paths() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	paths := make([]string, 0, len(d.files))
	for p := range d.files {
		paths = append(paths, p)
	}
	return paths
}
