package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"nvr-orchestrator/pkg/apperror"
)

// ExportVideo is an opened export file. Callers must close Body.
type ExportVideo struct {
	Body    io.ReadCloser
	Name    string
	Size    int64
	ModTime time.Time
}

// ExportStore locates the video file the footage source wrote for an export.
type ExportStore interface {
	Open(ctx context.Context, exportID string) (*ExportVideo, error)
}

func exportFileName(exportID string) (string, error) {
	if exportID == "" || strings.ContainsAny(exportID, `/\`) || strings.Contains(exportID, "..") {
		return "", apperror.Validation("open export", "invalid export id")
	}
	return exportID + ".mp4", nil
}

type fsExportStore struct {
	dir string
}

func NewFSExportStore(dir string) ExportStore {
	return &fsExportStore{dir: dir}
}

func (s *fsExportStore) Open(ctx context.Context, exportID string) (*ExportVideo, error) {
	name, err := exportFileName(exportID)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, apperror.NotFound("open export", "Video file not found for export ID: "+exportID)
	}
	if err != nil {
		return nil, fmt.Errorf("open export %s: %w", exportID, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat export %s: %w", exportID, err)
	}

	return &ExportVideo{Body: file, Name: name, Size: info.Size(), ModTime: info.ModTime()}, nil
}

type minioExportStore struct {
	client *minio.Client
	bucket string
	prefix string
}

func NewMinIOExportStore(client *minio.Client, bucket, prefix string) ExportStore {
	return &minioExportStore{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}
}

func (s *minioExportStore) Open(ctx context.Context, exportID string) (*ExportVideo, error) {
	name, err := exportFileName(exportID)
	if err != nil {
		return nil, err
	}
	objectName := path.Join(s.prefix, name)

	info, err := s.client.StatObject(ctx, s.bucket, objectName, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, apperror.NotFound("open export", "Video file not found for export ID: "+exportID)
		}
		return nil, apperror.Upstream("open export", 0, "object storage unavailable", err)
	}

	object, err := s.client.GetObject(ctx, s.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, apperror.Upstream("open export", 0, "object storage unavailable", err)
	}

	return &ExportVideo{Body: object, Name: name, Size: info.Size, ModTime: info.LastModified}, nil
}
