package export

import (
	"context"
	"io"
	"os"
	"path/filepath"
)

// LocalSink writes objects as files below a directory.
type LocalSink struct {
	dir string
}

// NewLocalSink returns a sink writing to dir. The directory is created on
// the first Put.
func NewLocalSink(dir string) *LocalSink {
	return &LocalSink{dir: dir}
}

// Put writes body to dir/name, replacing an existing file.
func (s *LocalSink) Put(ctx context.Context, name string, body io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target := filepath.Join(s.dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return &UploadError{Location: target, Err: err}
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return &UploadError{Location: target, Err: err}
	}
	if _, err = io.Copy(f, body); err != nil {
		_ = f.Close()
		return &UploadError{Location: target, Err: err}
	}
	if err = f.Close(); err != nil {
		return &UploadError{Location: target, Err: err}
	}
	return nil
}

// Location returns the file path for name.
func (s *LocalSink) Location(name string) string {
	return filepath.Join(s.dir, filepath.FromSlash(name))
}
