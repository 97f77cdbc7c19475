// Package storage 保存训练产物（清单、指标快照等）
package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/ashwinyue/qa-grader/internal/config"
	"github.com/ashwinyue/qa-grader/internal/model"
)

// Storage 产物存储接口
type Storage interface {
	// Save 保存产物，返回存储键
	Save(ctx context.Context, req *SaveRequest) (string, error)
	// Get 获取产物内容
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete 删除产物
	Delete(ctx context.Context, key string) error
	// GetURL 获取产物的访问URL
	GetURL(key string) string
}

// SaveRequest 保存请求
type SaveRequest struct {
	Name        string // 原始文件名
	Prefix      string // 一般为运行 ID
	ContentType string
	Size        int64 // 未知时为 -1
	Reader      io.Reader
}

// Type 存储类型
type Type string

const (
	TypeLocal Type = "local"
	TypeMinIO Type = "minio"
)

// New 根据配置创建存储
func New(ctx context.Context, cfg *config.StorageConfig) (Storage, error) {
	switch Type(cfg.Type) {
	case TypeLocal, "":
		return NewLocalStorage(cfg.Local.BasePath, cfg.Local.URLPrefix)
	case TypeMinIO:
		return NewMinIOStorage(ctx, &cfg.MinIO)
	default:
		return nil, model.NewError("storage.new", model.KindUnsupported, fmt.Errorf("unsupported storage type: %s", cfg.Type))
	}
}

// objectKey 生成存储键: {prefix}/{uuid}-{name}
func objectKey(prefix, id, name string) string {
	if prefix == "" {
		prefix = "default"
	}
	return fmt.Sprintf("%s/%s-%s", prefix, id, name)
}

// extensionByContentType 根据内容类型返回扩展名
func extensionByContentType(contentType string) string {
	switch contentType {
	case "application/json":
		return ".json"
	case "application/x-ndjson", "application/jsonl":
		return ".jsonl"
	case "text/plain":
		return ".txt"
	case "text/yaml", "application/yaml":
		return ".yaml"
	default:
		return ".bin"
	}
}
