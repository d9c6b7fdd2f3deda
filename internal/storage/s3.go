package storage

import (
	"context"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/docker/go-units"
	"github.com/pkg/errors"
)

const s3PartSize = 5 * units.MiB

// S3 stores blobs in an S3 (or S3-compatible, e.g. minio) bucket.
type S3 struct {
	bucket   string
	prefix   string
	client   *s3.S3
	uploader *s3manager.Uploader
}

// NewS3 builds the S3 backend from its config. Credentials fall back to the
// default AWS chain when not set explicitly.
func NewS3(cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 storage requires a bucket")
	}
	awsCfg := aws.NewConfig()
	if cfg.Region != "" {
		awsCfg = awsCfg.WithRegion(cfg.Region)
	}
	if cfg.EndpointURL != "" {
		awsCfg = awsCfg.WithEndpoint(cfg.EndpointURL).WithS3ForcePathStyle(true)
	}
	if cfg.AccessKey != "" {
		awsCfg = awsCfg.WithCredentials(
			credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""))
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, errors.Wrap(err, "creating aws session")
	}

	uploader := s3manager.NewUploader(sess, func(u *s3manager.Uploader) {
		u.PartSize = s3PartSize
	})
	return &S3{
		bucket:   cfg.Bucket,
		prefix:   strings.Trim(cfg.Prefix, "/"),
		client:   s3.New(sess),
		uploader: uploader,
	}, nil
}

func (s *S3) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

// Put uploads the blob and returns an s3:// reference.
func (s *S3) Put(ctx context.Context, r io.Reader, name string) (string, error) {
	key := s.key(name)
	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   r,
	})
	if err != nil {
		return "", errors.Wrapf(err, "uploading blob %q to bucket %q", key, s.bucket)
	}
	return "s3://" + s.bucket + "/" + key, nil
}

// Get streams a blob previously stored by Put.
func (s *S3) Get(ctx context.Context, ref string) (io.ReadCloser, error) {
	trimmed := strings.TrimPrefix(ref, "s3://")
	if trimmed == ref {
		return nil, errors.Errorf("not an s3 reference: %q", ref)
	}
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 {
		return nil, errors.Errorf("malformed s3 reference: %q", ref)
	}
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(parts[0]),
		Key:    aws.String(parts[1]),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "fetching blob %q", ref)
	}
	return out.Body, nil
}
