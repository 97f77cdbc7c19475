package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ashwinyue/qa-grader/internal/config"
	"github.com/ashwinyue/qa-grader/internal/model"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOStorage MinIO 对象存储
type MinIOStorage struct {
	client     *minio.Client
	bucketName string
	urlPrefix  string
}

// NewMinIOStorage 创建 MinIO 存储服务，bucket 不存在时创建
func NewMinIOStorage(ctx context.Context, cfg *config.MinIOStorageConfig) (*MinIOStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}

	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &MinIOStorage{
		client:     client,
		bucketName: cfg.Bucket,
		urlPrefix:  strings.TrimSuffix(cfg.URLPrefix, "/"),
	}, nil
}

// Save 上传产物
func (s *MinIOStorage) Save(ctx context.Context, req *SaveRequest) (string, error) {
	name := filepath.Base(req.Name)
	if filepath.Ext(name) == "" {
		name += extensionByContentType(req.ContentType)
	}
	key := objectKey(req.Prefix, uuid.New().String(), name)

	size := req.Size
	if size == 0 {
		size = -1
	}
	_, err := s.client.PutObject(ctx, s.bucketName, key, req.Reader, size, minio.PutObjectOptions{
		ContentType: req.ContentType,
	})
	if err != nil {
		return "", model.NewError("storage.save", model.KindProvider, fmt.Errorf("failed to upload file to MinIO: %w", err))
	}

	return key, nil
}

// Get 获取产物内容
func (s *MinIOStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if _, err := s.client.StatObject(ctx, s.bucketName, key, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, &model.OpError{Op: "storage.get", Kind: model.KindNotFound, Path: key, Err: model.ErrNotFound}
		}
		return nil, model.NewError("storage.get", model.KindProvider, err)
	}

	object, err := s.client.GetObject(ctx, s.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, model.NewError("storage.get", model.KindProvider, fmt.Errorf("failed to get file from MinIO: %w", err))
	}
	return object, nil
}

// Delete 删除产物
func (s *MinIOStorage) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucketName, key, minio.RemoveObjectOptions{}); err != nil {
		return model.NewError("storage.delete", model.KindProvider, fmt.Errorf("failed to delete file: %w", err))
	}
	return nil
}

// GetURL 获取产物的访问URL
func (s *MinIOStorage) GetURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", s.urlPrefix, s.bucketName, key)
}
