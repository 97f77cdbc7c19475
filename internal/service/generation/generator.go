// Package generation 通过 chat-completion API 合成训练数据
package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ashwinyue/qa-grader/internal/config"
	"github.com/ashwinyue/qa-grader/internal/model"
	ecomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
)

const (
	qaSystemPrompt      = "You are a data API. Return valid JSON only."
	contextSystemPrompt = "You are a helpful educational assistant. Return valid JSON only."

	gradingSystemPrompt = `You are an expert statistics instructor.
Produce short student answers at 4 rubric levels:

Score 3 - fully correct, at most 15 words
Score 2 - partly correct
Score 1 - vague/off-topic
Score 0 - wrong

Return exactly 2 answers for each score:

3) ...
3) ...
2) ...
2) ...
1) ...
1) ...
0) ...
0) ...
`
)

// Generator 数据合成器
type Generator struct {
	chatModel     ecomodel.BaseChatModel
	jsonModel     ecomodel.BaseChatModel
	logger        *zap.Logger
	pairsPerTopic int
	logPrompts    bool
	retry         Policy
}

// Option 生成器选项
type Option func(*Generator)

// WithSleep 替换退避等待函数
func WithSleep(sleep SleepFunc) Option {
	return func(g *Generator) {
		g.retry.Sleep = sleep
	}
}

// WithJSONModel 问答集与背景段落改用 cm，一般是开启 json_object 的模型
func WithJSONModel(cm ecomodel.BaseChatModel) Option {
	return func(g *Generator) {
		g.jsonModel = cm
	}
}

// NewGenerator 创建生成器
func NewGenerator(cm ecomodel.BaseChatModel, cfg *config.DataParserConfig, logger *zap.Logger, opts ...Option) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Generator{
		chatModel:     cm,
		jsonModel:     cm,
		logger:        logger,
		pairsPerTopic: cfg.PairsPerTopic,
		logPrompts:    cfg.LogPrompts,
		retry: Policy{
			MaxRetries: cfg.MaxRetries,
			BaseDelay:  cfg.RateDelay(),
		},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Generator) policy(retryable func(error) bool) Policy {
	p := g.retry
	p.Retryable = retryable
	return p
}

// GenerateQAPairs 为主题生成问答集。
// 调用失败按退避重试，响应格式错误直接返回。
func (g *Generator) GenerateQAPairs(ctx context.Context, topic string) ([]model.QAItem, error) {
	prompt := fmt.Sprintf(
		"Generate short and interesting %d question-answer sets about %q.\n"+
			"No numeric calculations, no formulas, no symbols like +, -, x, /, =.\n"+
			"Return a JSON object whose \"data\" field is an array; each item must be\n"+
			"Generate the type of a question, e.g. definition, general, application, importance, comparison, explanation etc.\n"+
			"Each generated question must have a unique type. Must be no duplicated types.\n"+
			`{"question": "...", "answers": ["answer1", "answer2"], "type": "..."}.`,
		g.pairsPerTopic, topic)

	return Retry(ctx, g.policy(IsTransient), func(ctx context.Context, attempt int) ([]model.QAItem, error) {
		content, err := g.complete(ctx, g.jsonModel, "generation.qa_pairs", qaSystemPrompt, prompt)
		if err != nil {
			g.logger.Warn("qa pair request failed", zap.String("topic", topic), zap.Int("attempt", attempt), zap.Error(err))
			return nil, err
		}
		return g.decodeQAItems(content)
	})
}

// GenerateGradedAnswers 以第一个参考答案为标准生成分级学生答案
func (g *Generator) GenerateGradedAnswers(ctx context.Context, question string, refs []string) ([]model.ScoredAnswer, error) {
	if len(refs) == 0 {
		return nil, model.NewError("generation.graded", model.KindInvalidArgument, errors.New("at least one reference answer is required"))
	}
	prompt := fmt.Sprintf("Question: %s\nCorrect answer: %s", question, refs[0])

	return Retry(ctx, g.policy(IsTransient), func(ctx context.Context, attempt int) ([]model.ScoredAnswer, error) {
		content, err := g.complete(ctx, g.chatModel, "generation.graded", gradingSystemPrompt, prompt)
		if err != nil {
			g.logger.Warn("grading request failed", zap.Int("attempt", attempt), zap.Error(err))
			return nil, err
		}
		return ParseGradedAnswers(content), nil
	})
}

// GenerateContext 生成主题背景段落，格式错误也会重试
func (g *Generator) GenerateContext(ctx context.Context, topic string) (string, error) {
	prompt := fmt.Sprintf(
		"Write a clear and informative paragraph explaining the concept of %q in statistics.\n"+
			"Include its definition, how it is calculated, when it is used, and its limitations.\n"+
			"Do not use any mathematical symbols, formulas, or equations. Use simple language.\n"+
			"Do not use word statistics in the answer.\n"+
			"Return your answer as a JSON object in the format:\n"+
			`{"topic": %q, "context": "your explanation here"}`,
		topic, topic)

	return Retry(ctx, g.policy(IsTransientOrMalformed), func(ctx context.Context, attempt int) (string, error) {
		content, err := g.complete(ctx, g.jsonModel, "generation.context", contextSystemPrompt, prompt)
		if err != nil {
			g.logger.Warn("context request failed", zap.String("topic", topic), zap.Int("attempt", attempt), zap.Error(err))
			return "", err
		}

		var obj struct {
			Context string `json:"context"`
		}
		if err := json.Unmarshal([]byte(repairJSON(content)), &obj); err != nil {
			return "", model.NewError("generation.context", model.KindMalformed, err)
		}
		return obj.Context, nil
	})
}

func (g *Generator) complete(ctx context.Context, cm ecomodel.BaseChatModel, op, system, user string) (string, error) {
	messages := []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(user),
	}

	resp, err := cm.Generate(ctx, messages)
	if err != nil {
		return "", classifyProviderError(op, err)
	}
	if resp == nil {
		return "", model.NewError(op, model.KindProvider, errors.New("empty response"))
	}

	content := strings.TrimSpace(resp.Content)
	if g.logPrompts {
		g.logger.Info("chat completion",
			zap.String("op", op),
			zap.String("request", user),
			zap.String("response", content),
		)
	}
	return content, nil
}

// decodeQAItems 接受数组、{data: [...]} 或第一个数组字段，其余情况返回空结果
func (g *Generator) decodeQAItems(content string) ([]model.QAItem, error) {
	raw := []byte(repairJSON(content))

	list, err := extractList(raw)
	if err != nil {
		return nil, model.NewError("generation.qa_pairs", model.KindMalformed, err)
	}

	items := make([]model.QAItem, 0, len(list))
	for _, elem := range list {
		var it model.QAItem
		if err := json.Unmarshal(elem, &it); err != nil {
			g.logger.Warn("skipping malformed item", zap.ByteString("item", elem), zap.Error(err))
			continue
		}
		items = append(items, it)
	}
	return items, nil
}
