package providers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"opentry/internal/config"
	"opentry/internal/pkg/ark"
	"opentry/internal/pkg/gateway"
	"opentry/internal/pkg/id"
	"opentry/internal/pkg/storage"
	"opentry/internal/reel"
)

// generatedPrefix 生成图片在存储中的目录
const generatedPrefix = "generated/"

// GatewayImageProvider AI 网关图片生成提供者
// 网关通常返回 data URL，落盘到存储后返回可公开访问的地址
type GatewayImageProvider struct {
	client *gateway.ImageClient
	store  storage.Storage
}

// NewGatewayImageProvider 创建网关图片提供者
func NewGatewayImageProvider(client *gateway.ImageClient, store storage.Storage) *GatewayImageProvider {
	return &GatewayImageProvider{client: client, store: store}
}

// GenerateImage 生成图片
func (p *GatewayImageProvider) GenerateImage(ctx context.Context, prompt string, referenceImages []string) (string, error) {
	url, err := p.client.GenerateImage(ctx, prompt, referenceImages)
	if err != nil {
		return "", err
	}
	if !storage.IsDataURL(url) {
		return url, nil
	}

	hosted, err := storage.UploadDataURL(ctx, p.store, generatedPrefix+id.New(), url)
	if err != nil {
		return "", fmt.Errorf("store generated image: %w", err)
	}
	return hosted, nil
}

// ArkImageProvider Ark Seedream 图片生成提供者
// 适配层，调用 ark.ImageClient 并把二进制结果上传到存储
type ArkImageProvider struct {
	client *ark.ImageClient
	store  storage.Storage
}

// NewArkImageProvider 创建 Ark 图片提供者
func NewArkImageProvider(client *ark.ImageClient, store storage.Storage) *ArkImageProvider {
	return &ArkImageProvider{client: client, store: store}
}

// GenerateImage 生成图片
func (p *ArkImageProvider) GenerateImage(ctx context.Context, prompt string, referenceImages []string) (string, error) {
	data, err := p.client.GenerateImage(ctx, prompt, referenceImages)
	if err != nil {
		return "", fmt.Errorf("Ark generate image: %w", err)
	}

	contentType := http.DetectContentType(data)
	url, err := storage.UploadBytes(ctx, p.store, generatedPrefix+id.New(), contentType, data)
	if err != nil {
		return "", fmt.Errorf("store generated image: %w", err)
	}

	log.Debug().
		Int("size", len(data)).
		Str("content_type", contentType).
		Msg("ark image stored")
	return url, nil
}

// NewImageGenerator 按配置选择图片生成提供者
func NewImageGenerator(cfg config.ImageGenConfig, store storage.Storage) (reel.ImageGenerator, error) {
	switch cfg.Provider {
	case "ark":
		client, err := ark.NewImageClient(ark.ImageConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Size:    cfg.Size,
		})
		if err != nil {
			return nil, fmt.Errorf("create ark image client: %w", err)
		}
		return NewArkImageProvider(client, store), nil
	case "gateway", "":
		client, err := gateway.NewImageClient(gateway.Config{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("create gateway image client: %w", err)
		}
		return NewGatewayImageProvider(client, store), nil
	default:
		return nil, fmt.Errorf("unknown image provider %q", cfg.Provider)
	}
}
