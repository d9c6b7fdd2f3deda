package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSharedFSRoundTrip(t *testing.T) {
	store, err := NewSharedFS(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	ref, err := store.Put(ctx, strings.NewReader("weights"), "abc123.state.gob")
	require.NoError(t, err)
	require.True(t, filepath.IsAbs(ref))

	r, err := store.Get(ctx, ref)
	require.NoError(t, err)
	defer r.Close()
	bs, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "weights", string(bs))
}

func TestSharedFSLeavesNoStagingFiles(t *testing.T) {
	root := t.TempDir()
	store, err := NewSharedFS(root)
	require.NoError(t, err)

	_, err = store.Put(context.Background(), strings.NewReader("x"), "blob")
	require.NoError(t, err)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "blob", entries[0].Name())
}

func TestSharedFSOverwriteKeepsLatest(t *testing.T) {
	store, err := NewSharedFS(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Put(ctx, strings.NewReader("one"), "blob")
	require.NoError(t, err)
	ref, err := store.Put(ctx, strings.NewReader("two"), "blob")
	require.NoError(t, err)

	r, err := store.Get(ctx, ref)
	require.NoError(t, err)
	defer r.Close()
	bs, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "two", string(bs))
}

func TestSharedFSGetMissing(t *testing.T) {
	store, err := NewSharedFS(t.TempDir())
	require.NoError(t, err)
	_, err = store.Get(context.Background(), filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}

func TestNewRejectsUnknownType(t *testing.T) {
	_, err := New(&Config{Type: "tape"})
	require.Error(t, err)
}

func TestS3RefParsing(t *testing.T) {
	s := &S3{bucket: "b", prefix: "models"}
	require.Equal(t, "models/x", s.key("x"))
	s.prefix = ""
	require.Equal(t, "x", s.key("x"))

	_, err := s.Get(context.Background(), "file:///nope")
	require.Error(t, err)
}
