// Package repository 定义数据访问接口
// Service 层依赖接口，测试时替换为内存实现
package repository

import (
	"context"
	"time"

	"github.com/ashwinyue/qa-grader/internal/model"
)

// ReviewRepository 审核记录数据访问接口
type ReviewRepository interface {
	CreateBatch(ctx context.Context, reviews []*model.Review) error
	ListRecent(ctx context.Context, limit int) ([]*model.Review, error)
}

// TrackingRepository 实验追踪数据访问接口
type TrackingRepository interface {
	CreateRun(ctx context.Context, run *model.TrackingRun) error
	FinishRun(ctx context.Context, runID string, status model.RunStatus, finishedAt time.Time) error
	GetRun(ctx context.Context, runID string) (*model.TrackingRun, error)
	CreateMetric(ctx context.Context, metric *model.TrackingMetric) error
	ListMetrics(ctx context.Context, runID string) ([]*model.TrackingMetric, error)
	CreateArtifact(ctx context.Context, artifact *model.TrackingArtifact) error
}

var (
	_ ReviewRepository   = (*reviewRepositoryImpl)(nil)
	_ TrackingRepository = (*trackingRepositoryImpl)(nil)
)
