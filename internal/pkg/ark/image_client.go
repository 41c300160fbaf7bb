package ark

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/volcengine/volcengine-go-sdk/service/arkruntime"
	"github.com/volcengine/volcengine-go-sdk/service/arkruntime/model"
)

// DefaultBaseURL Ark API 默认地址
const DefaultBaseURL = "https://ark.cn-beijing.volces.com/api/v3"

// ImageConfig Ark 图片生成配置
type ImageConfig struct {
	APIKey  string // API Key（必需）
	BaseURL string // API 基础 URL（可选）
	Model   string // 模型名称（可选，默认: doubao-seedream-4-0-250828）
	Size    string // 输出尺寸（可选，默认: 1080x1920）
}

// ImageClient Ark 图片生成客户端（Seedream，支持参考图）
type ImageClient struct {
	client *arkruntime.Client
	model  string
	size   string
}

// NewImageClient 创建 Ark 图片生成客户端
func NewImageClient(cfg ImageConfig) (*ImageClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("ark api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "doubao-seedream-4-0-250828"
	}
	if cfg.Size == "" {
		cfg.Size = "1080x1920"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	return &ImageClient{
		client: arkruntime.NewClientWithApiKey(cfg.APIKey, arkruntime.WithBaseUrl(cfg.BaseURL)),
		model:  cfg.Model,
		size:   cfg.Size,
	}, nil
}

// GenerateImage 根据提示词和参考图生成一张图片，返回图片二进制数据
// referenceImages 可以是公网 URL 或 data URL
func (c *ImageClient) GenerateImage(ctx context.Context, prompt string, referenceImages []string) ([]byte, error) {
	responseFormat := "b64_json"
	watermark := false
	size := c.size

	input := model.GenerateImagesRequest{
		Model:          c.model,
		Prompt:         prompt,
		Size:           &size,
		ResponseFormat: &responseFormat,
		Watermark:      &watermark,
	}
	if len(referenceImages) > 0 {
		input.Image = referenceImages
	}

	output, err := c.client.GenerateImages(ctx, input)
	if err != nil {
		log.Error().Err(err).Str("model", c.model).Msg("ark generate images failed")
		return nil, fmt.Errorf("ark generate images: %w", err)
	}

	if len(output.Data) == 0 || output.Data[0].B64Json == nil {
		return nil, errors.New("ark generate images: no image data in response")
	}

	data, err := base64.StdEncoding.DecodeString(*output.Data[0].B64Json)
	if err != nil {
		return nil, fmt.Errorf("ark generate images: decode base64: %w", err)
	}

	log.Debug().Str("model", c.model).Int("refs", len(referenceImages)).Int("size", len(data)).Msg("ark image generated")
	return data, nil
}
