package component

import (
	"context"
	"fmt"

	arkext "github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"opentry/internal/config"
)

// 各 Provider 的默认地址与模型
const (
	defaultArkBaseURL     = "https://ark.cn-beijing.volces.com/api/v3"
	defaultArkModel       = "doubao-seed-1-6-flash-250615"
	defaultGatewayBaseURL = "https://ai.gateway.lovable.dev/v1"
	defaultGatewayModel   = "google/gemini-2.5-pro"
)

// NewChatModel 按 Provider 创建写导演脚本用的 ChatModel
// openai: OpenAI 官方；gateway: OpenAI 兼容的 AI 网关；azure: Azure OpenAI；ark: 火山方舟
func NewChatModel(ctx context.Context, cfg *config.AIConfig) (model.ChatModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("ai api key is required for provider %q", cfg.Provider)
	}

	s := newSampling(cfg.Options)
	switch cfg.Provider {
	case "openai", "":
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: s.temperature,
			MaxTokens:   s.maxTokens,
			TopP:        s.topP,
		})
	case "gateway":
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			APIKey:      cfg.APIKey,
			BaseURL:     orDefault(cfg.BaseURL, defaultGatewayBaseURL),
			Model:       orDefault(cfg.Model, defaultGatewayModel),
			Temperature: s.temperature,
			MaxTokens:   s.maxTokens,
			TopP:        s.topP,
		})
	case "azure":
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			ByAzure:     true,
			Temperature: s.temperature,
		})
	case "ark":
		return arkext.NewChatModel(ctx, &arkext.ChatModelConfig{
			APIKey:      cfg.APIKey,
			BaseURL:     orDefault(cfg.BaseURL, defaultArkBaseURL),
			Model:       orDefault(cfg.Model, defaultArkModel),
			Temperature: s.temperature,
			MaxTokens:   s.maxTokens,
			TopP:        s.topP,
		})
	default:
		return nil, fmt.Errorf("unsupported AI provider: %s", cfg.Provider)
	}
}

// sampling 采样参数，零值表示使用模型默认
type sampling struct {
	temperature *float32
	maxTokens   *int
	topP        *float32
}

func newSampling(o config.AIOptionsConfig) sampling {
	var s sampling
	if o.Temperature > 0 {
		t := float32(o.Temperature)
		s.temperature = &t
	}
	if o.MaxTokens > 0 {
		n := o.MaxTokens
		s.maxTokens = &n
	}
	if o.TopP > 0 {
		p := float32(o.TopP)
		s.topP = &p
	}
	return s
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
