package transport

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"make-upload/internal/upload"
)

// Local copies items into a directory of the local filesystem (file://).
type Local struct {
	base string
}

// NewLocal checks that base exists, or creates it.
func NewLocal(base string) (*Local, error) {
	if base == "" {
		return nil, fmt.Errorf("%w: file url without a path", upload.ErrConfigurationInvalid)
	}
	if err := os.MkdirAll(base, 0755); err != nil {
		return nil, upload.Fatal(fmt.Errorf("failed to create destination: %w", err))
	}
	return &Local{base: filepath.Clean(base)}, nil
}

func (l *Local) Put(ctx context.Context, it upload.Item) error {
	dst := filepath.Join(l.base, filepath.FromSlash(it.RelPath))
	if it.Dir {
		return os.MkdirAll(dst, 0755)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	src, err := os.Open(it.LocalPath)
	if err != nil {
		return fmt.Errorf("failed to open local file: %w", err)
	}
	defer src.Close()
	info, err := src.Stat()
	if err != nil {
		return err
	}

	tmp := dst + ".upload"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to copy file data: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}

func (l *Local) Close() error { return nil }
