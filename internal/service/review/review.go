// Package review 处理人工审核提交
package review

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ashwinyue/qa-grader/internal/dataset"
	"github.com/ashwinyue/qa-grader/internal/model"
	"github.com/ashwinyue/qa-grader/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Service 审核服务
type Service struct {
	log    *dataset.Appender
	repo   repository.ReviewRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewService 创建审核服务，repo 为空时只写审核日志
func NewService(logPath string, repo repository.ReviewRepository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		log:    dataset.NewAppender(logPath),
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// Submit 保存一批审核记录
func (s *Service) Submit(ctx context.Context, items []*model.Review) ([]*model.Review, error) {
	const op = "review.submit"

	if len(items) == 0 {
		return nil, model.NewError(op, model.KindInvalidArgument, errors.New("no review items"))
	}

	now := s.now().UTC()
	records := make([]interface{}, 0, len(items))
	for i, it := range items {
		if it == nil || strings.TrimSpace(it.Question) == "" {
			return nil, model.NewError(op, model.KindInvalidArgument, fmt.Errorf("item %d has no question", i))
		}
		it.ID = uuid.New().String()
		it.CreatedAt = now
		records = append(records, it)
	}

	// 数据库写入失败时不追加日志
	if s.repo != nil {
		if err := s.repo.CreateBatch(ctx, items); err != nil {
			return nil, model.NewError(op, model.KindInternal, fmt.Errorf("failed to store reviews: %w", err))
		}
	}

	if err := s.log.Append(records...); err != nil {
		if s.repo != nil {
			ids := make([]string, len(items))
			for i, it := range items {
				ids[i] = it.ID
			}
			s.logger.Error("review log out of sync with database",
				zap.String("path", s.log.Path()),
				zap.Strings("ids", ids),
				zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("reviews stored", zap.Int("count", len(items)))
	return items, nil
}

// List 返回最近的审核记录，新的在前
func (s *Service) List(ctx context.Context, limit int) ([]*model.Review, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	if s.repo != nil {
		return s.repo.ListRecent(ctx, limit)
	}

	rows, err := dataset.ReadJSONLLenient[*model.Review](s.log.Path(), func(line int, err error) {
		s.logger.Warn("skipping unreadable review line",
			zap.String("path", s.log.Path()),
			zap.Int("line", line),
			zap.Error(err))
	})
	if err != nil {
		if model.IsKind(err, model.KindNotFound) {
			return []*model.Review{}, nil
		}
		return nil, err
	}

	if len(rows) > limit {
		rows = rows[len(rows)-limit:]
	}
	out := make([]*model.Review, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		out = append(out, rows[i])
	}
	return out, nil
}
