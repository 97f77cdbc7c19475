package repository

import (
	"context"
	"errors"
	"time"

	"github.com/ashwinyue/qa-grader/internal/model"
	"gorm.io/gorm"
)

type trackingRepositoryImpl struct {
	db *gorm.DB
}

// NewTrackingRepository 创建实验追踪仓库
func NewTrackingRepository(db *gorm.DB) TrackingRepository {
	return &trackingRepositoryImpl{db: db}
}

// CreateRun 创建运行记录
func (r *trackingRepositoryImpl) CreateRun(ctx context.Context, run *model.TrackingRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

// FinishRun 更新运行状态
func (r *trackingRepositoryImpl) FinishRun(ctx context.Context, runID string, status model.RunStatus, finishedAt time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&model.TrackingRun{}).
		Where("id = ?", runID).
		Updates(map[string]interface{}{
			"status":      status,
			"finished_at": finishedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &model.OpError{Op: "tracking.finish_run", Kind: model.KindNotFound, Path: runID, Err: model.ErrNotFound}
	}
	return nil
}

// GetRun 获取运行记录
func (r *trackingRepositoryImpl) GetRun(ctx context.Context, runID string) (*model.TrackingRun, error) {
	var run model.TrackingRun
	err := r.db.WithContext(ctx).Where("id = ?", runID).First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &model.OpError{Op: "tracking.get_run", Kind: model.KindNotFound, Path: runID, Err: model.ErrNotFound}
		}
		return nil, err
	}
	return &run, nil
}

// CreateMetric 写入指标
func (r *trackingRepositoryImpl) CreateMetric(ctx context.Context, metric *model.TrackingMetric) error {
	return r.db.WithContext(ctx).Create(metric).Error
}

// ListMetrics 按 step 顺序列出运行的指标
func (r *trackingRepositoryImpl) ListMetrics(ctx context.Context, runID string) ([]*model.TrackingMetric, error) {
	var metrics []*model.TrackingMetric
	err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("step ASC, id ASC").
		Find(&metrics).Error
	return metrics, err
}

// CreateArtifact 写入产物记录
func (r *trackingRepositoryImpl) CreateArtifact(ctx context.Context, artifact *model.TrackingArtifact) error {
	return r.db.WithContext(ctx).Create(artifact).Error
}
