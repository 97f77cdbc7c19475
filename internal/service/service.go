package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ashwinyue/qa-grader/internal/checkpoint"
	"github.com/ashwinyue/qa-grader/internal/config"
	"github.com/ashwinyue/qa-grader/internal/model"
	"github.com/ashwinyue/qa-grader/internal/repository"
	"github.com/ashwinyue/qa-grader/internal/runtime"
	"github.com/ashwinyue/qa-grader/internal/service/cache"
	"github.com/ashwinyue/qa-grader/internal/service/inference"
	"github.com/ashwinyue/qa-grader/internal/service/review"
	"github.com/ashwinyue/qa-grader/internal/service/storage"
	"github.com/ashwinyue/qa-grader/internal/service/tracking"
	"github.com/ashwinyue/qa-grader/internal/service/training"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Services 服务集合
type Services struct {
	Question *inference.QuestionService
	Grader   *inference.GraderService
	Review   *review.Service
	Trainer  *training.Trainer

	Config  *config.Config
	Finder  *checkpoint.Finder
	Runtime *runtime.Client
	Cache   *cache.Cache
	Storage storage.Storage
	Tracker tracking.Tracker
}

// NewServices 创建所有服务，repos 和 redisClient 可为空
func NewServices(ctx context.Context, cfg *config.Config, repos *repository.Repositories, redisClient *redis.Client, logger *zap.Logger) (*Services, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	store, err := storage.New(ctx, &cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to init storage: %w", err)
	}

	tracker, err := tracking.New(&cfg.Tracking, tracking.Deps{Repos: repos, Storage: store, Logger: logger})
	if err != nil {
		return nil, err
	}

	finder := checkpoint.NewFinder(logger)
	rt := runtime.NewClient(&cfg.Runtime)
	c := cache.New(redisClient, time.Duration(cfg.Redis.TTL)*time.Second, logger)

	var reviewRepo repository.ReviewRepository
	if repos != nil {
		reviewRepo = repos.Review
	}

	return &Services{
		Question: inference.NewQuestionService(rt, finder, cfg.Base.ModelRoot, c, logger),
		Grader: inference.NewGraderService(rt, finder, cfg.Base.ModelRoot,
			cfg.Classifier.MaxLen, cfg.Classifier.NumClasses, c, logger),
		Review: review.NewService(cfg.Base.ReviewFile, reviewRepo, logger),
		Trainer: training.NewTrainer(cfg, rt, tracker, finder, logger,
			training.WithTrainedHook(func(ctx context.Context, kind model.ModelKind) {
				c.Delete(ctx, inference.ArtifactKey(kind, cfg.Base.ModelRoot))
			})),

		Config:  cfg,
		Finder:  finder,
		Runtime: rt,
		Cache:   c,
		Storage: store,
		Tracker: tracker,
	}, nil
}
