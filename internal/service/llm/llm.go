// Package llm 创建数据合成使用的 ChatModel
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/ashwinyue/qa-grader/internal/config"
	"github.com/ashwinyue/qa-grader/internal/model"
	"github.com/cloudwego/eino-ext/components/model/openai"
	ecomodel "github.com/cloudwego/eino/components/model"
)

const (
	defaultModel     = "gpt-4o-mini"
	dashscopeBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"
)

// NewChatModel 根据 ai.provider 创建 ChatModel
func NewChatModel(ctx context.Context, aiCfg *config.AIConfig, temperature float32) (ecomodel.BaseChatModel, error) {
	return newChatModel(ctx, aiCfg, temperature, false)
}

// NewJSONChatModel 创建开启 json_object 响应格式的 ChatModel
func NewJSONChatModel(ctx context.Context, aiCfg *config.AIConfig, temperature float32) (ecomodel.BaseChatModel, error) {
	return newChatModel(ctx, aiCfg, temperature, true)
}

func newChatModel(ctx context.Context, aiCfg *config.AIConfig, temperature float32, jsonMode bool) (ecomodel.BaseChatModel, error) {
	cfg, err := chatModelConfig(aiCfg, temperature, jsonMode)
	if err != nil {
		return nil, err
	}
	cm, err := openai.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, model.NewError("llm.new", model.KindProvider, err)
	}
	return cm, nil
}

// chatModelConfig 按 provider 填充 OpenAI 兼容配置
func chatModelConfig(aiCfg *config.AIConfig, temperature float32, jsonMode bool) (*openai.ChatModelConfig, error) {
	var apiKey, baseURL, modelName string
	var timeout int

	switch aiCfg.Provider {
	case "openai":
		apiKey = aiCfg.OpenAI.APIKey
		baseURL = aiCfg.OpenAI.BaseURL
		modelName = aiCfg.OpenAI.Model
		timeout = aiCfg.OpenAI.Timeout
	case "alibaba", "qwen", "dashscope":
		apiKey = aiCfg.Alibaba.AccessKeySecret
		baseURL = dashscopeBaseURL
		modelName = aiCfg.Alibaba.Model
		timeout = aiCfg.Alibaba.Timeout
	case "deepseek":
		apiKey = aiCfg.DeepSeek.APIKey
		baseURL = aiCfg.DeepSeek.BaseURL
		modelName = aiCfg.DeepSeek.Model
		timeout = aiCfg.DeepSeek.Timeout
	default:
		return nil, model.NewError("llm.new", model.KindUnsupported, fmt.Errorf("unsupported ai provider: %s", aiCfg.Provider))
	}

	if apiKey == "" {
		return nil, model.NewError("llm.new", model.KindInvalidArgument, fmt.Errorf("api_key is required for provider: %s", aiCfg.Provider))
	}

	if modelName == "" {
		modelName = defaultModel
	}

	cfg := &openai.ChatModelConfig{
		APIKey:      apiKey,
		BaseURL:     baseURL,
		Model:       modelName,
		Temperature: &temperature,
		Timeout:     time.Duration(timeout) * time.Second,
	}
	if jsonMode {
		cfg.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	return cfg, nil
}
