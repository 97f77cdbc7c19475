// Package tracking 记录训练运行的参数、指标与产物
package tracking

import (
	"context"
	"fmt"
	"strings"

	"github.com/ashwinyue/qa-grader/internal/config"
	"github.com/ashwinyue/qa-grader/internal/model"
	"github.com/ashwinyue/qa-grader/internal/repository"
	"github.com/ashwinyue/qa-grader/internal/service/storage"
	"go.uber.org/zap"
)

// Tracker 实验追踪接口
type Tracker interface {
	// StartRun 开始一次运行，返回运行 ID
	StartRun(ctx context.Context, name string, params map[string]interface{}) (string, error)
	// LogMetric 记录标量指标
	LogMetric(ctx context.Context, runID, key string, value float64, step int) error
	// LogArtifact 上传本地文件并登记为运行产物
	LogArtifact(ctx context.Context, runID, localPath string) error
	// EndRun 结束运行
	EndRun(ctx context.Context, runID string, status model.RunStatus) error
}

// Backend 追踪后端
type Backend string

const (
	BackendMLflow   Backend = "mlflow"
	BackendDatabase Backend = "database"
	BackendNone     Backend = "none"
)

// Deps 追踪后端依赖
type Deps struct {
	Repos   *repository.Repositories // database 后端需要
	Storage storage.Storage          // 产物上传，可为空
	Logger  *zap.Logger
}

// New 根据 tracking.backend 创建追踪器，未知后端是配置错误
func New(cfg *config.TrackingConfig, deps Deps) (Tracker, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	switch Backend(strings.ToLower(cfg.Backend)) {
	case BackendMLflow:
		if cfg.TrackingURI == "" {
			return nil, model.NewError("tracking.new", model.KindInvalidArgument, fmt.Errorf("tracking.trackingUri is required for mlflow"))
		}
		return NewMLflowTracker(cfg, deps.Storage, nil, logger), nil
	case BackendDatabase:
		if deps.Repos == nil || deps.Repos.Tracking == nil {
			return nil, model.NewError("tracking.new", model.KindInvalidArgument, fmt.Errorf("database backend requires database.enabled"))
		}
		return NewDatabaseTracker(cfg.Experiment, deps.Repos.Tracking, deps.Storage, logger), nil
	case BackendNone, "":
		return NewNoopTracker(logger), nil
	default:
		return nil, model.NewError("tracking.new", model.KindUnsupported, fmt.Errorf("unknown logger: %s", cfg.Backend))
	}
}
