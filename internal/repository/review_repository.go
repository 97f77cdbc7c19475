package repository

import (
	"context"

	"github.com/ashwinyue/qa-grader/internal/model"
	"gorm.io/gorm"
)

type reviewRepositoryImpl struct {
	db *gorm.DB
}

// NewReviewRepository 创建审核记录仓库
func NewReviewRepository(db *gorm.DB) ReviewRepository {
	return &reviewRepositoryImpl{db: db}
}

// CreateBatch 批量写入审核记录
func (r *reviewRepositoryImpl) CreateBatch(ctx context.Context, reviews []*model.Review) error {
	if len(reviews) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&reviews).Error
}

// ListRecent 按时间倒序列出最近的审核记录
func (r *reviewRepositoryImpl) ListRecent(ctx context.Context, limit int) ([]*model.Review, error) {
	var reviews []*model.Review
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&reviews).Error
	return reviews, err
}
