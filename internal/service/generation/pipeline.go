package generation

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/ashwinyue/qa-grader/internal/config"
	"github.com/ashwinyue/qa-grader/internal/dataset"
	"github.com/ashwinyue/qa-grader/internal/model"
	"go.uber.org/zap"
)

// Report 流水线执行结果
type Report struct {
	Processed int `json:"processed"`
	Written   int `json:"written"`
	Failed    int `json:"failed"`
}

// Pipeline 数据合成流水线
type Pipeline struct {
	gen    *Generator
	base   *config.BaseConfig
	parser *config.DataParserConfig
	logger *zap.Logger
	sleep  SleepFunc
	rng    *rand.Rand
}

// NewPipeline 创建流水线
func NewPipeline(gen *Generator, cfg *config.Config, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	sleep := gen.retry.Sleep
	if sleep == nil {
		sleep = ContextSleep
	}
	return &Pipeline{
		gen:    gen,
		base:   &cfg.Base,
		parser: &cfg.DataParser,
		logger: logger,
		sleep:  sleep,
		rng:    rand.New(rand.NewSource(cfg.DataParser.Seed)),
	}
}

// RunSynthetic 为每个子主题生成问答集，去掉重复 type 后追加到问答文件
func (p *Pipeline) RunSynthetic(ctx context.Context) (*Report, error) {
	out := dataset.NewAppender(p.base.QAFile)
	report := &Report{}

	for _, topic := range p.parser.Subtopics {
		p.logger.Info("prompting for topic", zap.String("topic", topic))

		items, err := p.gen.GenerateQAPairs(ctx, topic)
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			p.logger.Error("qa generation failed", zap.String("topic", topic), zap.Error(err))
			report.Failed++
			if err := p.pause(ctx); err != nil {
				return report, err
			}
			continue
		}
		report.Processed++
		p.logger.Info("received pairs", zap.String("topic", topic), zap.Int("count", len(items)))

		p.rng.Shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })

		seen := make(map[string]bool)
		records := make([]interface{}, 0, len(items))
		for _, it := range items {
			if seen[it.Type] {
				continue
			}
			seen[it.Type] = true
			records = append(records, model.QARecord{
				Input:  fmt.Sprintf("generate a %s question about: %s", it.Type, topic),
				Output: it,
			})
		}

		if err := out.Append(records...); err != nil {
			return report, err
		}
		report.Written += len(records)

		if err := p.pause(ctx); err != nil {
			return report, err
		}
	}
	return report, nil
}

// RunBuildGraded 为问答文件中的每个问题生成分级答案，题号接着已有行数递增
func (p *Pipeline) RunBuildGraded(ctx context.Context) (*Report, error) {
	report := &Report{}

	rows, err := dataset.ReadJSONL[model.QARecord](p.base.QAFile)
	if err != nil {
		if model.IsKind(err, model.KindNotFound) {
			p.logger.Warn("qa file not found, nothing to grade", zap.String("path", p.base.QAFile))
			return report, nil
		}
		return report, err
	}

	out := dataset.NewAppender(p.base.ClassifierFile)
	qid, err := out.Count()
	if err != nil {
		return report, err
	}

	for _, row := range rows {
		question := row.Output.Question
		refs := row.Output.Answers
		if question == "" || len(refs) == 0 {
			p.logger.Warn("skipping row without question or answers", zap.String("input", row.Input))
			report.Failed++
			continue
		}

		p.logger.Info("grading question", zap.String("question", question))
		graded, err := p.gen.GenerateGradedAnswers(ctx, question, refs)
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			p.logger.Error("graded answer generation failed", zap.String("question", question), zap.Error(err))
			report.Failed++
			if err := p.pause(ctx); err != nil {
				return report, err
			}
			continue
		}
		report.Processed++
		p.logger.Info("received graded answers", zap.Int("count", len(graded)))

		records := make([]interface{}, 0, len(graded))
		for _, ans := range graded {
			qid++
			rec := model.GradedAnswer{
				QID:           dataset.FormatQID(qid),
				Question:      question,
				RefAnswers:    refs,
				StudentAnswer: ans.Answer,
				Score:         ans.Score,
			}
			if err := rec.Validate(); err != nil {
				return report, err
			}
			records = append(records, rec)
		}

		if err := out.Append(records...); err != nil {
			return report, err
		}
		report.Written += len(records)

		if err := p.pause(ctx); err != nil {
			return report, err
		}
	}
	return report, nil
}

// RunContext 为每个子主题生成背景段落
func (p *Pipeline) RunContext(ctx context.Context) (*Report, error) {
	out := dataset.NewAppender(p.base.ContextFile)
	report := &Report{}

	for _, topic := range p.parser.Subtopics {
		p.logger.Info("prompting for context", zap.String("topic", topic))

		text, err := p.gen.GenerateContext(ctx, topic)
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			p.logger.Warn("skipping topic", zap.String("topic", topic), zap.Error(err))
			report.Failed++
			continue
		}
		report.Processed++

		if err := out.Append(model.TopicContext{Topic: topic, Context: text}); err != nil {
			return report, err
		}
		report.Written++

		if err := p.pause(ctx); err != nil {
			return report, err
		}
	}
	return report, nil
}

func (p *Pipeline) pause(ctx context.Context) error {
	return p.sleep(ctx, p.parser.RateDelay())
}
