package disksvc

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-lms/core/attachment"
)

// LocalDisk stores files under a root directory of the local filesystem.
// Files are served by the API under baseURL.
type LocalDisk struct {
	root    string
	baseURL string
}

var _ attachment.Disk = (*LocalDisk)(nil)

func NewLocalDisk(root, baseURL string) (*LocalDisk, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrap(err, "resolving disk root")
	}
	if err = os.MkdirAll(abs, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating disk root")
	}
	return &LocalDisk{root: abs, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (d *LocalDisk) Root() string { return d.root }

// fullPath resolves path inside the root; paths escaping the root are rejected.
func (d *LocalDisk) fullPath(path string) (string, error) {
	full := filepath.Join(d.root, filepath.FromSlash(path))
	if full != d.root && !strings.HasPrefix(full, d.root+string(os.PathSeparator)) {
		return "", errors.Errorf("path %q escapes disk root", path)
	}
	return full, nil
}

func (d *LocalDisk) Put(ctx context.Context, path string, r io.Reader, size int64, mimeType string) error {
	full, err := d.fullPath(path)
	if err != nil {
		return err
	}
	if err = os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return errors.Wrap(err, "creating directory")
	}

	// write to a temp file first so readers never see partial files
	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return errors.Wrap(err, "creating temp file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err = io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "writing file")
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrap(err, "closing file")
	}
	return errors.Wrap(os.Rename(tmp.Name(), full), "moving file")
}

func (d *LocalDisk) Delete(ctx context.Context, path string) error {
	full, err := d.fullPath(path)
	if err != nil {
		return err
	}
	if err = os.Remove(full); err != nil {
		return errors.Wrap(err, "removing file")
	}
	return nil
}

func (d *LocalDisk) URL(path string) string {
	return d.baseURL + "/" + path
}
