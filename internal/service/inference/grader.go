package inference

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/ashwinyue/qa-grader/internal/checkpoint"
	"github.com/ashwinyue/qa-grader/internal/dataset"
	"github.com/ashwinyue/qa-grader/internal/model"
	"github.com/ashwinyue/qa-grader/internal/runtime"
	"github.com/ashwinyue/qa-grader/internal/service/cache"
	"go.uber.org/zap"
)

// Reduction 多个参考答案 logits 的合并方式
type Reduction string

const (
	ReductionMean Reduction = "mean"
	ReductionMax  Reduction = "max"
)

// ParseReduction 解析合并方式，空值为 mean
func ParseReduction(s string) (Reduction, error) {
	switch Reduction(strings.ToLower(s)) {
	case "", ReductionMean:
		return ReductionMean, nil
	case ReductionMax:
		return ReductionMax, nil
	}
	return "", model.NewError("inference.reduction", model.KindInvalidArgument, fmt.Errorf("unknown reduction: %s", s))
}

// ClassifyRequest 评分请求
type ClassifyRequest struct {
	Question      string   `json:"question"`
	StudentAnswer string   `json:"student_answer"`
	RefAnswers    []string `json:"ref_answers"`
	Checkpoint    string   `json:"checkpoint,omitempty"`
	Reduction     string   `json:"reduction,omitempty"`
}

// GraderService 答案评分服务
type GraderService struct {
	runtime    Runtime
	resolver   *resolver
	cache      Cache
	maxLen     int
	numClasses int
	logger     *zap.Logger
}

// NewGraderService 创建评分服务
func NewGraderService(rt Runtime, finder *checkpoint.Finder, modelRoot string, maxLen, numClasses int, c Cache, logger *zap.Logger) *GraderService {
	if c == nil {
		c = nopCache{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxLen <= 0 {
		maxLen = 128
	}
	if numClasses <= 0 {
		numClasses = model.MaxScore - model.MinScore + 1
	}
	return &GraderService{
		runtime:    rt,
		resolver:   &resolver{finder: finder, modelRoot: modelRoot, cache: c},
		cache:      c,
		maxLen:     maxLen,
		numClasses: numClasses,
		logger:     logger,
	}
}

// Classify 对学生答案打分：每个参考答案一组 logits，合并后 softmax，取最大概率的等级
func (s *GraderService) Classify(ctx context.Context, req *ClassifyRequest) (*model.ClassifyResult, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, model.NewError("inference.classify", model.KindInvalidArgument, errors.New("question is required"))
	}
	reduction, err := ParseReduction(req.Reduction)
	if err != nil {
		return nil, err
	}

	artifact, err := s.resolver.resolve(ctx, req.Checkpoint, model.ModelGrader)
	if err != nil {
		return nil, err
	}

	refs := req.RefAnswers
	if len(refs) == 0 {
		refs = []string{""}
	}

	key := cache.Key("grader", append([]string{req.Question, req.StudentAnswer, string(reduction), artifact.Path}, refs...)...)
	var cached model.ClassifyResult
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	pairs := make([]runtime.PromptPair, 0, len(refs))
	for _, ref := range refs {
		pairs = append(pairs, runtime.PromptPair{
			Context: dataset.ClassifierContext(req.Question, ref),
			Student: req.StudentAnswer,
		})
	}

	resp, err := s.runtime.Classify(ctx, &runtime.ClassifyRequest{
		Checkpoint:     artifact.Path,
		CheckpointType: artifact.Type,
		Pairs:          pairs,
		MaxLen:         s.maxLen,
	})
	if err != nil {
		return nil, err
	}

	logits, err := Reduce(resp.Logits, reduction, s.numClasses)
	if err != nil {
		return nil, err
	}

	probs := Softmax(logits)
	for i := range probs {
		probs[i] = math.Round(probs[i]*1e4) / 1e4
	}

	result := &model.ClassifyResult{
		Question:       req.Question,
		StudentAnswer:  req.StudentAnswer,
		PredictedScore: Argmax(logits),
		Probabilities:  probs,
		CheckpointUsed: artifact.Path,
	}
	s.cache.Set(ctx, key, result)
	return result, nil
}

// Reduce 按列合并多组 logits
func Reduce(rows [][]float64, reduction Reduction, numClasses int) ([]float64, error) {
	if len(rows) == 0 {
		return nil, model.NewError("inference.reduce", model.KindMalformed, errors.New("no logits returned"))
	}
	for i, row := range rows {
		if len(row) != numClasses {
			return nil, model.NewError("inference.reduce", model.KindMalformed,
				fmt.Errorf("logit row %d has %d classes, want %d", i, len(row), numClasses))
		}
	}

	out := make([]float64, numClasses)
	copy(out, rows[0])
	for _, row := range rows[1:] {
		for j, v := range row {
			switch reduction {
			case ReductionMax:
				out[j] = math.Max(out[j], v)
			default:
				out[j] += v
			}
		}
	}
	if reduction != ReductionMax {
		for j := range out {
			out[j] /= float64(len(rows))
		}
	}
	return out, nil
}

// Softmax 数值稳定的 softmax
func Softmax(logits []float64) []float64 {
	if len(logits) == 0 {
		return nil
	}
	maxV := logits[0]
	for _, v := range logits[1:] {
		maxV = math.Max(maxV, v)
	}
	out := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		out[i] = math.Exp(v - maxV)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// Argmax 返回最大值下标，相同时取第一个
func Argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
