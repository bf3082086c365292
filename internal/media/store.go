// Package media stores uploaded exercise and meal videos in object storage
// and resolves video links into catalog references.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"coachcatalog/api/internal/catalog"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MaxUploadBytes caps a single video upload.
const MaxUploadBytes = 512 << 20

var (
	ErrTooLarge       = errors.New("el video supera el tamaño máximo permitido")
	ErrUnsupportedURL = errors.New("el enlace del video no es válido")
)

// objectStore is the subset of *minio.Client used here.
type objectStore interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Store uploads videos to a MinIO bucket and removes them when detached.
// It implements catalog.MediaCollaborator.
type Store struct {
	client objectStore
	bucket string
	logger *slog.Logger
}

var _ catalog.MediaCollaborator = (*Store)(nil)

// NewStore connects to MinIO and makes sure the bucket exists.
func NewStore(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	s := newStore(client, cfg.Bucket, logger)
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func newStore(client objectStore, bucket string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{client: client, bucket: bucket, logger: logger.With("component", "media")}
}

func (s *Store) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Upload stores body under a fresh key scoped to coachID and returns the
// selection to attach to an item.
func (s *Store) Upload(ctx context.Context, coachID, fileName string, body io.Reader, size int64, contentType string) (catalog.MediaSelection, error) {
	if size > MaxUploadBytes {
		return catalog.MediaSelection{}, ErrTooLarge
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	base := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	key := path.Join("videos", coachID, uuid.NewString()+strings.ToLower(path.Ext(base)))

	info, err := s.client.PutObject(ctx, s.bucket, key, body, size, minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: map[string]string{"original-name": base},
	})
	if err != nil {
		return catalog.MediaSelection{}, fmt.Errorf("upload video: %w", err)
	}
	s.logger.Info("video uploaded", "key", key, "bytes", info.Size)

	return catalog.MediaSelection{
		URL:        "s3://" + s.bucket + "/" + key,
		Provider:   catalog.ProviderStorage,
		ProviderID: s.bucket + "/" + key,
		FileName:   base,
	}, nil
}

// Release deletes stored objects. References to external providers are
// left alone.
func (s *Store) Release(ctx context.Context, ref catalog.VideoRef) error {
	if ref.Provider != catalog.ProviderStorage {
		return nil
	}
	bucket, key, ok := strings.Cut(ref.ProviderID, "/")
	if !ok || key == "" {
		return fmt.Errorf("malformed storage reference %q", ref.ProviderID)
	}
	if err := s.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove video: %w", err)
	}
	s.logger.Info("video released", "bucket", bucket, "key", key)
	return nil
}

// Resolve turns a pasted link into a media selection with provider and id.
func Resolve(raw string) (catalog.MediaSelection, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return catalog.MediaSelection{}, catalog.ErrVideoURLRequired
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return catalog.MediaSelection{}, ErrUnsupportedURL
	}
	switch u.Scheme {
	case "http", "https", "s3":
	default:
		return catalog.MediaSelection{}, ErrUnsupportedURL
	}
	ref, err := catalog.DeriveVideo(catalog.MediaSelection{URL: raw})
	if err != nil {
		return catalog.MediaSelection{}, err
	}
	return catalog.MediaSelection{
		URL:        ref.URL,
		ProviderID: ref.ProviderID,
		FileName:   ref.FileName,
		Provider:   ref.Provider,
		Thumbnail:  ref.Thumbnail,
	}, nil
}
