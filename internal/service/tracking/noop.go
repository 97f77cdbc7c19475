package tracking

import (
	"context"

	"github.com/ashwinyue/qa-grader/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NoopTracker 只写日志
type NoopTracker struct {
	logger *zap.Logger
}

// NewNoopTracker 创建空追踪器
func NewNoopTracker(logger *zap.Logger) *NoopTracker {
	return &NoopTracker{logger: logger}
}

// StartRun 生成本地运行 ID
func (t *NoopTracker) StartRun(ctx context.Context, name string, params map[string]interface{}) (string, error) {
	id := uuid.New().String()
	t.logger.Info("run started", zap.String("run_id", id), zap.String("name", name))
	return id, nil
}

// LogMetric 记录到日志
func (t *NoopTracker) LogMetric(ctx context.Context, runID, key string, value float64, step int) error {
	t.logger.Debug("metric", zap.String("run_id", runID), zap.String("key", key), zap.Float64("value", value), zap.Int("step", step))
	return nil
}

// LogArtifact 记录到日志
func (t *NoopTracker) LogArtifact(ctx context.Context, runID, localPath string) error {
	t.logger.Debug("artifact", zap.String("run_id", runID), zap.String("path", localPath))
	return nil
}

// EndRun 记录到日志
func (t *NoopTracker) EndRun(ctx context.Context, runID string, status model.RunStatus) error {
	t.logger.Info("run finished", zap.String("run_id", runID), zap.String("status", string(status)))
	return nil
}
