package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Blobs stores encoded audio. Put returns the path later passed to Get.
type Blobs interface {
	Put(ctx context.Context, name string, data []byte) (string, error)
	Get(ctx context.Context, path string) ([]byte, error)
}

var ErrBlobMissing = errors.New("audio blob missing")

// FileBlobs writes blobs under a directory, "static" by default.
type FileBlobs struct {
	dir string
}

func NewFileBlobs(dir string) (*FileBlobs, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audio dir: %w", err)
	}
	return &FileBlobs{dir: dir}, nil
}

func (f *FileBlobs) Put(ctx context.Context, name string, data []byte) (string, error) {
	if name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid blob name %q", name)
	}
	path := filepath.Join(f.dir, name)
	// concurrent writers of one name each get their own temp file; the last rename wins
	tmp, err := os.CreateTemp(f.dir, name+".*.tmp")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", err
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", err
	}
	return path, nil
}

func (f *FileBlobs) Get(ctx context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, ErrBlobMissing)
	}
	return data, err
}
