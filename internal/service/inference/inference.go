// Package inference 解析模型产物并调用运行时完成问题生成与答案评分
package inference

import (
	"context"

	"github.com/ashwinyue/qa-grader/internal/checkpoint"
	"github.com/ashwinyue/qa-grader/internal/model"
	"github.com/ashwinyue/qa-grader/internal/runtime"
	"github.com/ashwinyue/qa-grader/internal/service/cache"
)

// Runtime 推理运行时
type Runtime interface {
	Generate(ctx context.Context, req *runtime.GenerateRequest) (*runtime.GenerateResponse, error)
	Classify(ctx context.Context, req *runtime.ClassifyRequest) (*runtime.ClassifyResponse, error)
}

// Cache 预测结果缓存
type Cache interface {
	Get(ctx context.Context, key string, out interface{}) bool
	Set(ctx context.Context, key string, v interface{})
}

type nopCache struct{}

func (nopCache) Get(context.Context, string, interface{}) bool { return false }
func (nopCache) Set(context.Context, string, interface{})      {}

// ArtifactKey 最新产物查找结果的缓存键
func ArtifactKey(kind model.ModelKind, modelRoot string) string {
	return cache.Key("artifact", string(kind), modelRoot)
}

// resolver 解析显式路径或 modelRoot 下最新的产物
type resolver struct {
	finder    *checkpoint.Finder
	modelRoot string
	cache     Cache
}

func (r *resolver) resolve(ctx context.Context, explicit string, kind model.ModelKind) (*model.Artifact, error) {
	if explicit != "" {
		return r.finder.Resolve(explicit, r.modelRoot, string(kind))
	}

	key := ArtifactKey(kind, r.modelRoot)
	var cached model.Artifact
	if r.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	artifact, err := r.finder.Resolve("", r.modelRoot, string(kind))
	if err != nil {
		return nil, err
	}
	r.cache.Set(ctx, key, artifact)
	return artifact, nil
}
