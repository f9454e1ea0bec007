package gcs

import (
	"context"
	"fmt"
	"io"
	"path"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	storage "google.golang.org/api/storage/v1"

	"suppliers/internal/config"
	"suppliers/internal/connectors/gauth"
)

type Store struct {
	service *storage.Service
}

func NewStore(ctx context.Context, cfg config.Config) (*Store, error) {
	opts, err := gauth.ClientOptions(ctx, cfg, storage.DevstorageReadWriteScope)
	if err != nil {
		return nil, err
	}
	return NewStoreWithOptions(ctx, opts...)
}

func NewStoreWithOptions(ctx context.Context, opts ...option.ClientOption) (*Store, error) {
	svc, err := storage.NewService(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &Store{service: svc}, nil
}

func (s *Store) Open(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	resp, err := s.service.Objects.Get(bucket, object).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("download gs://%s/%s: %w", bucket, object, err)
	}
	return resp.Body, nil
}

func (s *Store) Upload(ctx context.Context, bucket, object string, src io.Reader) error {
	obj := &storage.Object{Name: object, ContentType: contentType(object)}
	_, err := s.service.Objects.Insert(bucket, obj).
		Media(src, googleapi.ContentType(obj.ContentType)).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("upload gs://%s/%s: %w", bucket, object, err)
	}
	return nil
}

func contentType(object string) string {
	switch path.Ext(object) {
	case ".json":
		return "application/json"
	case ".csv":
		return "text/csv"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}
