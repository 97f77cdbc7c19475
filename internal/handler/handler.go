package handler

import (
	"context"
	"io"

	"github.com/ashwinyue/qa-grader/internal/config"
	"github.com/ashwinyue/qa-grader/internal/model"
	"github.com/ashwinyue/qa-grader/internal/runtime"
	"github.com/ashwinyue/qa-grader/internal/service"
	"github.com/ashwinyue/qa-grader/internal/service/inference"
)

// QuestionGenerator 问题生成
type QuestionGenerator interface {
	Generate(ctx context.Context, prompt, checkpoint string) (*model.QuestionPrediction, error)
}

// AnswerGrader 答案评分
type AnswerGrader interface {
	Classify(ctx context.Context, req *inference.ClassifyRequest) (*model.ClassifyResult, error)
}

// ReviewService 审核记录
type ReviewService interface {
	Submit(ctx context.Context, items []*model.Review) ([]*model.Review, error)
	List(ctx context.Context, limit int) ([]*model.Review, error)
}

// ArtifactFinder 模型产物查找
type ArtifactFinder interface {
	Latest(root, marker string) (*model.Artifact, error)
}

// HealthChecker 运行时健康检查
type HealthChecker interface {
	Health(ctx context.Context) (*runtime.HealthResponse, error)
}

// CacheStats 缓存统计
type CacheStats interface {
	Len() int
}

// ArtifactReader 产物读取
type ArtifactReader interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// Handlers 处理器集合
type Handlers struct {
	Inference  *InferenceHandler
	Review     *ReviewHandler
	Checkpoint *CheckpointHandler
	Artifact   *ArtifactHandler
	System     *SystemHandler
}

// NewHandlers 创建所有处理器
func NewHandlers(svc *service.Services) *Handlers {
	h := newHandlers(svc.Config, svc.Question, svc.Grader, svc.Review, svc.Finder, svc.Runtime, svc.Cache)
	h.Artifact = NewArtifactHandler(svc.Storage, svc.Config.Storage.Local.URLPrefix)
	return h
}

func newHandlers(cfg *config.Config, q QuestionGenerator, g AnswerGrader, r ReviewService, f ArtifactFinder, h HealthChecker, cs CacheStats) *Handlers {
	return &Handlers{
		Inference:  NewInferenceHandler(q, g, cfg.Base.ContextFile),
		Review:     NewReviewHandler(r),
		Checkpoint: NewCheckpointHandler(f, cfg.Base.ModelRoot),
		System:     NewSystemHandler(h, cs, cfg.App.Version),
	}
}
