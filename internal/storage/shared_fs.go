package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// SharedFS stores blobs as files under a single root directory, typically a
// volume shared between the machines computing runs.
type SharedFS struct {
	root string
}

// NewSharedFS creates the root directory if needed.
func NewSharedFS(root string) (*SharedFS, error) {
	if root == "" {
		return nil, errors.New("shared_fs storage requires a host_path")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving storage root %q", root)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating storage root %q", abs)
	}
	return &SharedFS{root: abs}, nil
}

// Put writes the blob to a staging file first and moves it into place, so a
// reference never points at a half-written file.
func (s *SharedFS) Put(ctx context.Context, r io.Reader, name string) (string, error) {
	final := filepath.Join(s.root, filepath.Base(name))
	staging := final + "." + uuid.NewString() + ".tmp"

	f, err := os.OpenFile(staging, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644) // #nosec G304
	if err != nil {
		return "", errors.Wrap(err, "creating staging file")
	}
	defer func() {
		_ = os.Remove(staging)
	}()

	_, err = io.Copy(f, r)
	if cErr := f.Close(); cErr != nil && err == nil {
		err = cErr
	}
	if err != nil {
		return "", errors.Wrapf(err, "writing blob %q", name)
	}
	if err := os.Rename(staging, final); err != nil {
		return "", errors.Wrapf(err, "publishing blob %q", name)
	}
	return final, nil
}

// Get opens the file a previous Put returned.
func (s *SharedFS) Get(ctx context.Context, ref string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Clean(ref))
	if err != nil {
		return nil, errors.Wrapf(err, "opening blob %q", ref)
	}
	return f, nil
}
