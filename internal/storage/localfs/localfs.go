// Package localfs implements storage.Backend over the local filesystem,
// rooted at a base directory. It is the only physical back-end this
// engine ships; object-store back-ends would implement the same
// storage.Backend contract.
package localfs

import (
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/framecast/videoengine/internal/retry"
	"github.com/framecast/videoengine/internal/storage"
)

// Backend roots every path under Dir.
type Backend struct {
	Dir string
}

// New returns a Backend rooted at dir, creating it if necessary.
func New(dir string) (*Backend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Backend{Dir: dir}, nil
}

func (b *Backend) resolve(path string) string {
	return filepath.Join(b.Dir, filepath.FromSlash(path))
}

func (b *Backend) Exists(path string) (bool, error) {
	_, err := os.Stat(b.resolve(path))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (b *Backend) OpenRead(path string) (storage.RandomReadFile, error) {
	f, err := os.Open(b.resolve(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, retry.Permanent(err)
		}
		return nil, err
	}
	return &readFile{f: f}, nil
}

func (b *Backend) OpenWrite(path string) (storage.WriteFile, error) {
	full := b.resolve(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(full, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &writeFile{f: f}, nil
}

type readFile struct {
	f *os.File
}

func (r *readFile) Size() (int64, error) {
	fi, err := r.f.Stat()
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

func (r *readFile) ReadAt(dst []byte, pos int64) error {
	n, err := r.f.ReadAt(dst, pos)
	if err != nil && !(errors.Is(err, io.EOF) && n == len(dst)) {
		return err
	}
	return nil
}

func (r *readFile) Close() error { return r.f.Close() }

type writeFile struct {
	f *os.File
}

func (w *writeFile) Append(p []byte) error {
	_, err := w.f.Write(p)
	return err
}

func (w *writeFile) Close() error { return w.f.Close() }
