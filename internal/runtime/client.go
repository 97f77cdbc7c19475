// Package runtime 是深度学习运行时的 HTTP 客户端。
// 模型结构与训练数学由运行时负责，这里只负责组装请求和解析响应。
package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ashwinyue/qa-grader/internal/config"
	"github.com/ashwinyue/qa-grader/internal/model"
)

// Client 运行时客户端
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// TrainRequest 训练任务
type TrainRequest struct {
	Kind             model.ModelKind `json:"kind"`
	ModelName        string          `json:"model_name"`
	TrainFile        string          `json:"train_file"`
	ValFile          string          `json:"val_file"`
	OutputDir        string          `json:"output_dir"`
	FilenamePrefix   string          `json:"filename_prefix"`
	FilenameTemplate string          `json:"filename_template"`
	ResumeFrom       string          `json:"resume_from,omitempty"`
	RunID            string          `json:"run_id,omitempty"`
	Epochs           int             `json:"epochs"`
	BatchSize        int             `json:"batch_size"`
	LR               float64         `json:"lr"`
	MaxLen           int             `json:"max_len,omitempty"`
	MaxIn            int             `json:"max_in,omitempty"`
	MaxOut           int             `json:"max_out,omitempty"`
	NumClasses       int             `json:"num_classes,omitempty"`
	NumWorkers       int             `json:"num_workers"`
	Seed             int64           `json:"seed"`
	Accelerator      string          `json:"accelerator"`
	Devices          int             `json:"devices"`
	Precision        string          `json:"precision"`
	GradClip         float64         `json:"gradient_clip_val"`
	AccumGrad        int             `json:"accumulate_grad_batches"`
	Monitor          string          `json:"monitor"`
	Mode             string          `json:"mode"`
	SaveTopK         int             `json:"save_top_k"`
}

// EpochMetrics 单个 epoch 的指标
type EpochMetrics struct {
	Epoch   int                `json:"epoch"`
	Metrics map[string]float64 `json:"metrics"`
}

// TrainResponse 训练结果
type TrainResponse struct {
	BestModelPath string         `json:"best_model_path"`
	BestEpoch     int            `json:"best_epoch"`
	BestScore     float64        `json:"best_score"`
	History       []EpochMetrics `json:"history"`
}

// GenerateRequest 文本生成请求
type GenerateRequest struct {
	Checkpoint     string             `json:"checkpoint"`
	CheckpointType model.ArtifactType `json:"checkpoint_type"`
	Prompt         string             `json:"prompt"`
	MaxNewTokens   int                `json:"max_new_tokens"`
	Temperature    float64            `json:"temperature"`
	TopP           float64            `json:"top_p"`
	DoSample       bool               `json:"do_sample"`
}

// GenerateResponse 文本生成结果
type GenerateResponse struct {
	Text string `json:"text"`
}

// PromptPair 评分模型输入对
type PromptPair struct {
	Context string `json:"context"`
	Student string `json:"student"`
}

// ClassifyRequest 批量打分请求
type ClassifyRequest struct {
	Checkpoint     string             `json:"checkpoint"`
	CheckpointType model.ArtifactType `json:"checkpoint_type"`
	Pairs          []PromptPair       `json:"pairs"`
	MaxLen         int                `json:"max_len"`
}

// ClassifyResponse 每个输入对一组 logits
type ClassifyResponse struct {
	Logits [][]float64 `json:"logits"`
}

// HealthResponse 健康检查结果
type HealthResponse struct {
	Status  string `json:"status"`
	Device  string `json:"device,omitempty"`
	Message string `json:"message,omitempty"`
}

// NewClient 创建运行时客户端
func NewClient(cfg *config.RuntimeConfig) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return NewClientWithHTTP(cfg.BaseURL, &http.Client{Timeout: timeout})
}

// NewClientWithHTTP 使用自定义 http.Client 创建客户端
func NewClientWithHTTP(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Train 提交训练任务并等待完成
func (c *Client) Train(ctx context.Context, req *TrainRequest) (*TrainResponse, error) {
	var resp TrainResponse
	if err := c.do(ctx, "runtime.train", http.MethodPost, "/v1/train", req, &resp); err != nil {
		return nil, err
	}
	if resp.BestModelPath == "" {
		return nil, model.NewError("runtime.train", model.KindMalformed, fmt.Errorf("response has no best_model_path"))
	}
	return &resp, nil
}

// Generate 生成文本
func (c *Client) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	var resp GenerateResponse
	if err := c.do(ctx, "runtime.generate", http.MethodPost, "/v1/generate", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Classify 返回每个输入对的 logits
func (c *Client) Classify(ctx context.Context, req *ClassifyRequest) (*ClassifyResponse, error) {
	var resp ClassifyResponse
	if err := c.do(ctx, "runtime.classify", http.MethodPost, "/v1/classify", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Logits) != len(req.Pairs) {
		return nil, model.NewError("runtime.classify", model.KindMalformed,
			fmt.Errorf("got %d logit rows for %d pairs", len(resp.Logits), len(req.Pairs)))
	}
	return &resp, nil
}

// Health 检查运行时状态
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.do(ctx, "runtime.health", http.MethodGet, "/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return model.NewError(op, model.KindInternal, fmt.Errorf("failed to marshal request: %w", err))
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return model.NewError(op, model.KindInternal, fmt.Errorf("failed to create request: %w", err))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.NewError(op, model.KindProvider, fmt.Errorf("failed to send request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return model.NewError(op, model.KindProvider,
			fmt.Errorf("runtime returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data))))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return model.NewError(op, model.KindMalformed, fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}
