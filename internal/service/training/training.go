// Package training 准备数据切分并把训练任务交给运行时
package training

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/ashwinyue/qa-grader/internal/checkpoint"
	"github.com/ashwinyue/qa-grader/internal/config"
	"github.com/ashwinyue/qa-grader/internal/dataset"
	"github.com/ashwinyue/qa-grader/internal/model"
	"github.com/ashwinyue/qa-grader/internal/runtime"
	"github.com/ashwinyue/qa-grader/internal/service/tracking"
	"go.uber.org/zap"
)

const (
	saveTopK      = 1
	defaultMetric = "val_loss"
	defaultMode   = "min"
)

// Runtime 训练运行时
type Runtime interface {
	Train(ctx context.Context, req *runtime.TrainRequest) (*runtime.TrainResponse, error)
}

// Result 训练结果
type Result struct {
	BestModelPath string `json:"best_model_path"`
	ResumedFrom   string `json:"resumed_from,omitempty"`
	RunID         string `json:"run_id"`
	TrainExamples int    `json:"train_examples"`
	ValExamples   int    `json:"val_examples"`
}

// Trainer 训练任务封装
type Trainer struct {
	cfg     *config.Config
	runtime Runtime
	tracker tracking.Tracker
	finder  *checkpoint.Finder
	logger  *zap.Logger
	now     func() time.Time

	onTrained []func(ctx context.Context, kind model.ModelKind)
}

// Option 训练器选项
type Option func(*Trainer)

// WithTrainedHook 训练成功并写完清单后调用 fn
func WithTrainedHook(fn func(ctx context.Context, kind model.ModelKind)) Option {
	return func(t *Trainer) {
		t.onTrained = append(t.onTrained, fn)
	}
}

// NewTrainer 创建训练器
func NewTrainer(cfg *config.Config, rt Runtime, tracker tracking.Tracker, finder *checkpoint.Finder, logger *zap.Logger, opts ...Option) *Trainer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if finder == nil {
		finder = checkpoint.NewFinder(logger)
	}
	t := &Trainer{
		cfg:     cfg,
		runtime: rt,
		tracker: tracker,
		finder:  finder,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Train 训练指定模型。resume 为 true 时从 model_dir 中 epoch 最大的 checkpoint 继续，
// 找不到时从头开始。
func (t *Trainer) Train(ctx context.Context, kind model.ModelKind, resume bool) (*Result, error) {
	tc := t.cfg.TrainConfigFor(string(kind))
	prefix := string(kind)
	monitor := orDefault(tc.Monitor, defaultMetric)

	runDir := filepath.Join(t.cfg.Base.RunDir, fmt.Sprintf("%s-%s", prefix, t.now().UTC().Format("20060102-150405")))
	trainFile := filepath.Join(runDir, "train.jsonl")
	valFile := filepath.Join(runDir, "val.jsonl")

	nTrain, nVal, err := t.prepare(kind, tc, trainFile, valFile)
	if err != nil {
		return nil, err
	}
	t.logger.Info("dataset prepared",
		zap.String("kind", prefix),
		zap.Int("train", nTrain),
		zap.Int("val", nVal),
		zap.String("run_dir", runDir),
	)

	result := &Result{TrainExamples: nTrain, ValExamples: nVal}
	if resume {
		path, found, err := t.finder.FindLatestByEpoch(tc.ModelDir, prefix)
		if err != nil {
			return nil, err
		}
		if found {
			result.ResumedFrom = path
			t.logger.Info("resuming from checkpoint", zap.String("path", path))
		} else {
			t.logger.Info("no checkpoint to resume, starting fresh", zap.String("dir", tc.ModelDir))
		}
	}

	runID, err := t.tracker.StartRun(ctx, prefix, trainParams(tc))
	if err != nil {
		return nil, fmt.Errorf("failed to start tracking run: %w", err)
	}
	result.RunID = runID

	resp, err := t.runtime.Train(ctx, &runtime.TrainRequest{
		Kind:             kind,
		ModelName:        tc.ModelName,
		TrainFile:        trainFile,
		ValFile:          valFile,
		OutputDir:        tc.ModelDir,
		FilenamePrefix:   prefix,
		FilenameTemplate: checkpoint.FilenameTemplate(prefix, monitor),
		ResumeFrom:       result.ResumedFrom,
		RunID:            runID,
		Epochs:           tc.Epochs,
		BatchSize:        tc.BatchSize,
		LR:               tc.LR,
		MaxLen:           tc.MaxLen,
		MaxIn:            tc.MaxIn,
		MaxOut:           tc.MaxOut,
		NumClasses:       tc.NumClasses,
		NumWorkers:       tc.NumWorkers,
		Seed:             tc.Seed,
		Accelerator:      tc.Accelerator,
		Devices:          tc.Devices,
		Precision:        tc.Precision,
		GradClip:         tc.GradClip,
		AccumGrad:        tc.AccumGrad,
		Monitor:          monitor,
		Mode:             orDefault(tc.Mode, defaultMode),
		SaveTopK:         saveTopK,
	})
	if err != nil {
		t.endRun(ctx, runID, model.RunStatusFailed)
		return nil, err
	}

	for _, epoch := range resp.History {
		keys := make([]string, 0, len(epoch.Metrics))
		for k := range epoch.Metrics {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := t.tracker.LogMetric(ctx, runID, k, epoch.Metrics[k], epoch.Epoch); err != nil {
				t.logger.Warn("failed to log metric", zap.String("key", k), zap.Error(err))
			}
		}
	}

	// 清单中的 epoch 以文件名为准
	bestEpoch := resp.BestEpoch
	if epoch, ok := checkpoint.ParseEpoch(prefix, filepath.Base(resp.BestModelPath)); ok && epoch != bestEpoch {
		t.logger.Warn("runtime best epoch disagrees with checkpoint name",
			zap.Int("reported", bestEpoch),
			zap.Int("parsed", epoch),
			zap.String("path", resp.BestModelPath),
		)
		bestEpoch = epoch
	}

	manifest := &model.Manifest{
		Prefix:      prefix,
		Epoch:       bestEpoch,
		MetricName:  monitor,
		MetricValue: resp.BestScore,
		RunID:       runID,
		CreatedAt:   t.now().UTC(),
	}
	if err := checkpoint.WriteManifest(resp.BestModelPath, manifest); err != nil {
		t.endRun(ctx, runID, model.RunStatusFailed)
		return nil, err
	}
	if err := t.tracker.LogArtifact(ctx, runID, checkpoint.ManifestPath(resp.BestModelPath)); err != nil {
		t.logger.Warn("failed to log manifest artifact", zap.Error(err))
	}

	t.endRun(ctx, runID, model.RunStatusFinished)
	for _, fn := range t.onTrained {
		fn(ctx, kind)
	}

	result.BestModelPath = resp.BestModelPath
	t.logger.Info("training finished",
		zap.String("kind", prefix),
		zap.String("best_model_path", resp.BestModelPath),
		zap.Int("best_epoch", bestEpoch),
		zap.Float64(monitor, resp.BestScore),
	)
	return result, nil
}

// prepare 构造样本并写入训练/验证切分
func (t *Trainer) prepare(kind model.ModelKind, tc *config.TrainConfig, trainFile, valFile string) (int, int, error) {
	switch kind {
	case model.ModelQGen:
		rows, err := dataset.ReadJSONL[model.QARecord](t.cfg.Base.QAFile)
		if err != nil {
			return 0, 0, err
		}
		var contexts map[string]string
		if tc.UseContext {
			contexts = dataset.LoadContexts(t.cfg.Base.ContextFile)
		}
		train, val := dataset.Split(dataset.BuildQGenExamples(rows, contexts, tc.UseContext), tc.ValSplit, tc.Seed)
		return writeSplits(train, val, trainFile, valFile)

	case model.ModelGrader:
		rows, err := dataset.ReadJSONL[model.GradedAnswer](t.cfg.Base.ClassifierFile)
		if err != nil {
			return 0, 0, err
		}
		train, val := dataset.Split(dataset.ExplodeGraded(rows, tc.UseRefAnswers), tc.ValSplit, tc.Seed)
		return writeSplits(train, val, trainFile, valFile)
	}
	return 0, 0, model.NewError("training.prepare", model.KindInvalidArgument, model.ErrUnknownModelKind(kind))
}

func writeSplits[T any](train, val []T, trainFile, valFile string) (int, int, error) {
	if len(train) == 0 {
		return 0, 0, model.NewError("training.prepare", model.KindInvalidArgument, errors.New("no training examples"))
	}
	if err := dataset.WriteJSONL(trainFile, train); err != nil {
		return 0, 0, err
	}
	if err := dataset.WriteJSONL(valFile, val); err != nil {
		return 0, 0, err
	}
	return len(train), len(val), nil
}

func (t *Trainer) endRun(ctx context.Context, runID string, status model.RunStatus) {
	if err := t.tracker.EndRun(ctx, runID, status); err != nil {
		t.logger.Warn("failed to end tracking run", zap.String("run_id", runID), zap.Error(err))
	}
}

func trainParams(tc *config.TrainConfig) map[string]interface{} {
	return map[string]interface{}{
		"model_name":              tc.ModelName,
		"epochs":                  tc.Epochs,
		"batch_size":              tc.BatchSize,
		"lr":                      tc.LR,
		"val_split":               tc.ValSplit,
		"seed":                    tc.Seed,
		"precision":               tc.Precision,
		"gradient_clip_val":       tc.GradClip,
		"accumulate_grad_batches": tc.AccumGrad,
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
