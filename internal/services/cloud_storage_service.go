package services

import (
	"context"
	"errors"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

type GCSService struct {
	client *storage.Client
}

func NewGCSService(ctx context.Context) (*GCSService, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GCSService{client: client}, nil
}

func (s *GCSService) Close() error {
	return s.client.Close()
}

func (s *GCSService) UploadFile(ctx context.Context, bucketName, objectName string, content io.Reader) error {
	writer := s.client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	writer.ContentType = "text/markdown; charset=utf-8"
	if _, err := io.Copy(writer, content); err != nil {
		writer.Close()
		return err
	}
	return writer.Close()
}

// DeleteFile removes an object. Deleting an object that does not exist is not an error.
func (s *GCSService) DeleteFile(ctx context.Context, bucketName, objectName string) error {
	err := s.client.Bucket(bucketName).Object(objectName).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return err
}

// ListFiles lists object names under prefix.
func (s *GCSService) ListFiles(ctx context.Context, bucketName, prefix string) ([]string, error) {
	var fileNames []string
	it := s.client.Bucket(bucketName).Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		fileNames = append(fileNames, attrs.Name)
	}
	return fileNames, nil
}
