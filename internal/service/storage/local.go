package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ashwinyue/qa-grader/internal/model"
	"github.com/google/uuid"
)

// LocalStorage 本地文件存储
type LocalStorage struct {
	basePath  string
	urlPrefix string
}

// NewLocalStorage 创建本地存储服务
func NewLocalStorage(basePath, urlPrefix string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &LocalStorage{
		basePath:  basePath,
		urlPrefix: strings.TrimSuffix(urlPrefix, "/"),
	}, nil
}

// Save 保存产物到本地
func (s *LocalStorage) Save(ctx context.Context, req *SaveRequest) (string, error) {
	name := filepath.Base(req.Name)
	if filepath.Ext(name) == "" {
		name += extensionByContentType(req.ContentType)
	}
	key := objectKey(req.Prefix, uuid.New().String(), name)
	fullPath, err := s.resolve(key)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, req.Reader); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	return key, nil
}

// Get 获取产物内容
func (s *LocalStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	fullPath, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &model.OpError{Op: "storage.get", Kind: model.KindNotFound, Path: key, Err: model.ErrNotFound}
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// Delete 删除产物，不存在时忽略
func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	fullPath, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// GetURL 获取产物的访问URL
func (s *LocalStorage) GetURL(key string) string {
	return fmt.Sprintf("%s/%s", s.urlPrefix, key)
}

// resolve 拒绝越出 basePath 的键
func (s *LocalStorage) resolve(key string) (string, error) {
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(key))
	rel, err := filepath.Rel(s.basePath, fullPath)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", &model.OpError{Op: "storage.resolve", Kind: model.KindInvalidArgument, Path: key, Err: errors.New("invalid storage key")}
	}
	return fullPath, nil
}
