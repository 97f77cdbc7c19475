package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ashwinyue/qa-grader/internal/model"
)

// SleepFunc 可取消的等待
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy 重试策略
type Policy struct {
	MaxRetries int           // 最大尝试次数
	BaseDelay  time.Duration // 第 n 次失败后等待 2^n * BaseDelay
	Sleep      SleepFunc     // 为空时使用 ContextSleep
	Retryable  func(error) bool
}

// ContextSleep 等待 d 或 ctx 结束
func ContextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Backoff 返回第 attempt 次失败后的等待时间
func (p Policy) Backoff(attempt int) time.Duration {
	return (1 << uint(attempt)) * p.BaseDelay
}

// Retry 执行 op 直到成功、遇到不可重试错误或尝试次数耗尽。
// 耗尽时返回 exhausted 错误，包装最后一次失败。
func Retry[T any](ctx context.Context, p Policy, op func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var zero T

	sleep := p.Sleep
	if sleep == nil {
		sleep = ContextSleep
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsTransient
	}

	attempts := p.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		out, err := op(ctx, attempt)
		if err == nil {
			return out, nil
		}
		if !retryable(err) {
			return zero, err
		}
		lastErr = err

		if attempt == attempts-1 {
			break
		}
		if err := sleep(ctx, p.Backoff(attempt)); err != nil {
			return zero, err
		}
	}

	return zero, &model.OpError{
		Op:   "generation.retry",
		Kind: model.KindExhausted,
		Err:  fmt.Errorf("gave up after %d attempts: %w", attempts, lastErr),
	}
}

// IsTransient 判断是否为可重试的外部服务错误
func IsTransient(err error) bool {
	return model.IsKind(err, model.KindProvider) || model.IsKind(err, model.KindRateLimited)
}

// IsTransientOrMalformed 额外把格式错误视为可重试
func IsTransientOrMalformed(err error) bool {
	return IsTransient(err) || model.IsKind(err, model.KindMalformed)
}

// classifyProviderError 将 ChatModel 调用错误归类为 provider / rate_limited
func classifyProviderError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	kind := model.KindProvider
	if isRateLimitError(err) {
		kind = model.KindRateLimited
	}
	return model.NewError(op, kind, err)
}

func isRateLimitError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "rate limit")
}
