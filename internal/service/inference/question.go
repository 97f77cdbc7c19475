package inference

import (
	"context"
	"errors"
	"strings"

	"github.com/ashwinyue/qa-grader/internal/checkpoint"
	"github.com/ashwinyue/qa-grader/internal/model"
	"github.com/ashwinyue/qa-grader/internal/runtime"
	"github.com/ashwinyue/qa-grader/internal/service/cache"
	"go.uber.org/zap"
)

// 问题生成参数
const (
	MaxNewTokens = 16
	Temperature  = 0.4
	TopP         = 0.9
)

// QuestionService 问题生成服务
type QuestionService struct {
	runtime  Runtime
	resolver *resolver
	cache    Cache
	logger   *zap.Logger
}

// NewQuestionService 创建问题生成服务，c 为空时不缓存
func NewQuestionService(rt Runtime, finder *checkpoint.Finder, modelRoot string, c Cache, logger *zap.Logger) *QuestionService {
	if c == nil {
		c = nopCache{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuestionService{
		runtime:  rt,
		resolver: &resolver{finder: finder, modelRoot: modelRoot, cache: c},
		cache:    c,
		logger:   logger,
	}
}

// Generate 根据提示生成问题，checkpoint 为空时使用最新产物
func (s *QuestionService) Generate(ctx context.Context, prompt, checkpointPath string) (*model.QuestionPrediction, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, model.NewError("inference.generate", model.KindInvalidArgument, errors.New("prompt is required"))
	}

	artifact, err := s.resolver.resolve(ctx, checkpointPath, model.ModelQGen)
	if err != nil {
		return nil, err
	}

	key := cache.Key("qgen", prompt, artifact.Path)
	var cached model.QuestionPrediction
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	resp, err := s.runtime.Generate(ctx, &runtime.GenerateRequest{
		Checkpoint:     artifact.Path,
		CheckpointType: artifact.Type,
		Prompt:         prompt,
		MaxNewTokens:   MaxNewTokens,
		Temperature:    Temperature,
		TopP:           TopP,
		DoSample:       true,
	})
	if err != nil {
		return nil, err
	}

	pred := &model.QuestionPrediction{
		Prompt:            prompt,
		GeneratedQuestion: strings.TrimSpace(resp.Text),
		Checkpoint:        artifact.Path,
	}
	s.cache.Set(ctx, key, pred)
	s.logger.Debug("question generated", zap.String("checkpoint", artifact.Path))
	return pred, nil
}
