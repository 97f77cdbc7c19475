package tracking

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ashwinyue/qa-grader/internal/model"
	"github.com/ashwinyue/qa-grader/internal/repository"
	"github.com/ashwinyue/qa-grader/internal/service/storage"
	"go.uber.org/zap"
)

// DatabaseTracker 写入 tracking_* 表
type DatabaseTracker struct {
	experiment string
	repo       repository.TrackingRepository
	store      storage.Storage
	logger     *zap.Logger
	now        func() time.Time
}

// NewDatabaseTracker 创建数据库追踪器
func NewDatabaseTracker(experiment string, repo repository.TrackingRepository, store storage.Storage, logger *zap.Logger) *DatabaseTracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DatabaseTracker{
		experiment: experiment,
		repo:       repo,
		store:      store,
		logger:     logger,
		now:        time.Now,
	}
}

// StartRun 创建运行记录
func (t *DatabaseTracker) StartRun(ctx context.Context, name string, params map[string]interface{}) (string, error) {
	run := &model.TrackingRun{
		Experiment: t.experiment,
		Name:       name,
		Status:     model.RunStatusRunning,
		Params:     model.JSON(params),
	}
	if err := t.repo.CreateRun(ctx, run); err != nil {
		return "", fmt.Errorf("failed to create run: %w", err)
	}
	return run.ID, nil
}

// LogMetric 写入指标
func (t *DatabaseTracker) LogMetric(ctx context.Context, runID, key string, value float64, step int) error {
	return t.repo.CreateMetric(ctx, &model.TrackingMetric{RunID: runID, Key: key, Value: value, Step: step})
}

// LogArtifact 上传到产物存储并登记，无存储时登记本地路径。
// 登记失败时删除已上传的对象。
func (t *DatabaseTracker) LogArtifact(ctx context.Context, runID, localPath string) error {
	location := localPath
	var key string
	if t.store != nil {
		var err error
		key, location, err = upload(ctx, t.store, runID, localPath)
		if err != nil {
			return err
		}
	}
	err := t.repo.CreateArtifact(ctx, &model.TrackingArtifact{
		RunID:    runID,
		Name:     filepath.Base(localPath),
		Location: location,
	})
	if err != nil && key != "" {
		discard(ctx, t.store, key, t.logger)
	}
	return err
}

// EndRun 更新运行状态
func (t *DatabaseTracker) EndRun(ctx context.Context, runID string, status model.RunStatus) error {
	return t.repo.FinishRun(ctx, runID, status, t.now())
}

// upload 上传本地文件，返回存储键和访问 URL
func upload(ctx context.Context, store storage.Storage, runID, localPath string) (string, string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", "", &model.OpError{Op: "tracking.log_artifact", Kind: model.KindNotFound, Path: localPath, Err: err}
	}
	defer f.Close()

	size := int64(-1)
	if fi, err := f.Stat(); err == nil {
		size = fi.Size()
	}

	key, err := store.Save(ctx, &storage.SaveRequest{
		Name:        filepath.Base(localPath),
		Prefix:      runID,
		ContentType: contentTypeOf(localPath),
		Size:        size,
		Reader:      f,
	})
	if err != nil {
		return "", "", err
	}
	return key, store.GetURL(key), nil
}

// discard 删除未能登记的产物
func discard(ctx context.Context, store storage.Storage, key string, logger *zap.Logger) {
	if err := store.Delete(ctx, key); err != nil {
		logger.Warn("failed to remove orphaned artifact", zap.String("key", key), zap.Error(err))
	}
}

func contentTypeOf(path string) string {
	switch filepath.Ext(path) {
	case ".json":
		return "application/json"
	case ".jsonl":
		return "application/x-ndjson"
	case ".yaml", ".yml":
		return "application/yaml"
	default:
		return "application/octet-stream"
	}
}
