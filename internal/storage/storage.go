// Package storage persists trained model state as blobs. The database only
// ever holds the reference returned by Put; the bytes live in one of the
// configured backends.
package storage

import (
	"context"
	"io"

	"github.com/pkg/errors"
)

// Backend type tags accepted in the storage config.
const (
	TypeSharedFS = "shared_fs"
	TypeS3       = "s3"
)

// Store is durable keyed blob storage. Put stores the contents of r under a
// backend-chosen reference derived from name; Get resolves a reference
// produced by Put.
type Store interface {
	Put(ctx context.Context, r io.Reader, name string) (ref string, err error)
	Get(ctx context.Context, ref string) (io.ReadCloser, error)
}

// Config selects and configures a blob storage backend.
type Config struct {
	Type     string         `json:"type"`
	SharedFS SharedFSConfig `json:"shared_fs"`
	S3       S3Config       `json:"s3"`
}

// SharedFSConfig configures the filesystem backend.
type SharedFSConfig struct {
	HostPath string `json:"host_path"`
}

// S3Config configures the S3 backend. EndpointURL supports S3-compatible
// stores such as minio.
type S3Config struct {
	Bucket      string `json:"bucket"`
	Prefix      string `json:"prefix"`
	Region      string `json:"region"`
	EndpointURL string `json:"endpoint_url"`
	AccessKey   string `json:"access_key"`
	SecretKey   string `json:"secret_key"`
}

// DefaultConfig stores blobs on the local filesystem.
func DefaultConfig() *Config {
	return &Config{
		Type:     TypeSharedFS,
		SharedFS: SharedFSConfig{HostPath: "fabrik-storage"},
	}
}

// New builds the store selected by cfg.
func New(cfg *Config) (Store, error) {
	switch cfg.Type {
	case TypeSharedFS:
		return NewSharedFS(cfg.SharedFS.HostPath)
	case TypeS3:
		return NewS3(cfg.S3)
	default:
		return nil, errors.Errorf("unknown storage type %q", cfg.Type)
	}
}
