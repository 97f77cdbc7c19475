package tracking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ashwinyue/qa-grader/internal/config"
	"github.com/ashwinyue/qa-grader/internal/model"
	"github.com/ashwinyue/qa-grader/internal/service/storage"
	"go.uber.org/zap"
)

const mlflowAPI = "/api/2.0/mlflow"

// MLflowTracker 通过 MLflow REST API 记录运行
type MLflowTracker struct {
	baseURL    string
	experiment string
	runName    string
	httpClient *http.Client
	store      storage.Storage
	logger     *zap.Logger
	now        func() time.Time

	mu           sync.Mutex
	experimentID string
}

type mlflowError struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

type mlflowParam struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// NewMLflowTracker 创建 MLflow 追踪器，httpClient 为空时使用默认客户端
func NewMLflowTracker(cfg *config.TrackingConfig, store storage.Storage, httpClient *http.Client, logger *zap.Logger) *MLflowTracker {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	experiment := cfg.Experiment
	if experiment == "" {
		experiment = "Default"
	}
	return &MLflowTracker{
		baseURL:    strings.TrimRight(cfg.TrackingURI, "/"),
		experiment: experiment,
		runName:    cfg.RunName,
		httpClient: httpClient,
		store:      store,
		logger:     logger,
		now:        time.Now,
	}
}

// StartRun 创建 MLflow 运行并记录参数
func (t *MLflowTracker) StartRun(ctx context.Context, name string, params map[string]interface{}) (string, error) {
	expID, err := t.ensureExperiment(ctx)
	if err != nil {
		return "", err
	}
	if t.runName != "" {
		name = t.runName
	}

	var created struct {
		Run struct {
			Info struct {
				RunID string `json:"run_id"`
			} `json:"info"`
		} `json:"run"`
	}
	err = t.call(ctx, http.MethodPost, "/runs/create", map[string]interface{}{
		"experiment_id": expID,
		"run_name":      name,
		"start_time":    t.now().UnixMilli(),
	}, &created)
	if err != nil {
		return "", err
	}
	runID := created.Run.Info.RunID
	if runID == "" {
		return "", model.NewError("tracking.mlflow", model.KindMalformed, fmt.Errorf("runs/create returned no run_id"))
	}

	if len(params) > 0 {
		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		batch := make([]mlflowParam, 0, len(params))
		for _, k := range keys {
			batch = append(batch, mlflowParam{Key: k, Value: fmt.Sprint(params[k])})
		}
		if err := t.call(ctx, http.MethodPost, "/runs/log-batch", map[string]interface{}{
			"run_id": runID,
			"params": batch,
		}, nil); err != nil {
			return "", err
		}
	}

	t.logger.Info("mlflow run started", zap.String("run_id", runID), zap.String("experiment_id", expID))
	return runID, nil
}

// LogMetric 记录指标
func (t *MLflowTracker) LogMetric(ctx context.Context, runID, key string, value float64, step int) error {
	return t.call(ctx, http.MethodPost, "/runs/log-metric", map[string]interface{}{
		"run_id":    runID,
		"key":       key,
		"value":     value,
		"timestamp": t.now().UnixMilli(),
		"step":      step,
	}, nil)
}

// LogArtifact 上传到产物存储，并以 tag 形式登记位置
func (t *MLflowTracker) LogArtifact(ctx context.Context, runID, localPath string) error {
	location := localPath
	var key string
	if t.store != nil {
		var err error
		key, location, err = upload(ctx, t.store, runID, localPath)
		if err != nil {
			return err
		}
	}
	err := t.call(ctx, http.MethodPost, "/runs/set-tag", map[string]interface{}{
		"run_id": runID,
		"key":    "artifact." + filepath.Base(localPath),
		"value":  location,
	}, nil)
	if err != nil && key != "" {
		discard(ctx, t.store, key, t.logger)
	}
	return err
}

// EndRun 结束运行
func (t *MLflowTracker) EndRun(ctx context.Context, runID string, status model.RunStatus) error {
	mlStatus := "FINISHED"
	if status == model.RunStatusFailed {
		mlStatus = "FAILED"
	}
	return t.call(ctx, http.MethodPost, "/runs/update", map[string]interface{}{
		"run_id":   runID,
		"status":   mlStatus,
		"end_time": t.now().UnixMilli(),
	}, nil)
}

// ensureExperiment 按名称查找实验，不存在时创建
func (t *MLflowTracker) ensureExperiment(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.experimentID != "" {
		return t.experimentID, nil
	}

	var found struct {
		Experiment struct {
			ExperimentID string `json:"experiment_id"`
		} `json:"experiment"`
	}
	path := "/experiments/get-by-name?experiment_name=" + url.QueryEscape(t.experiment)
	err := t.call(ctx, http.MethodGet, path, nil, &found)
	switch {
	case err == nil && found.Experiment.ExperimentID != "":
		t.experimentID = found.Experiment.ExperimentID
		return t.experimentID, nil
	case err != nil && !model.IsKind(err, model.KindNotFound):
		return "", err
	}

	var created struct {
		ExperimentID string `json:"experiment_id"`
	}
	if err := t.call(ctx, http.MethodPost, "/experiments/create", map[string]string{"name": t.experiment}, &created); err != nil {
		return "", err
	}
	t.experimentID = created.ExperimentID
	return t.experimentID, nil
}

func (t *MLflowTracker) call(ctx context.Context, method, path string, body, out interface{}) error {
	const op = "tracking.mlflow"

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return model.NewError(op, model.KindInternal, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+mlflowAPI+path, reader)
	if err != nil {
		return model.NewError(op, model.KindInternal, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return model.NewError(op, model.KindProvider, fmt.Errorf("failed to send request: %w", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return model.NewError(op, model.KindProvider, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var me mlflowError
		_ = json.Unmarshal(data, &me)
		kind := model.KindProvider
		if me.ErrorCode == "RESOURCE_DOES_NOT_EXIST" || resp.StatusCode == http.StatusNotFound {
			kind = model.KindNotFound
		}
		return &model.OpError{Op: op, Kind: kind, Path: path,
			Err: fmt.Errorf("mlflow returned status %d: %s %s", resp.StatusCode, me.ErrorCode, strings.TrimSpace(me.Message))}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return model.NewError(op, model.KindMalformed, err)
	}
	return nil
}
