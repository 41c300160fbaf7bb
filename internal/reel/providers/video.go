package providers

import (
	"context"

	"opentry/internal/pkg/ark"
)

// ArkVideoProvider Ark 图生视频提供者
type ArkVideoProvider struct {
	client *ark.VideoClient
}

// NewArkVideoProvider 创建视频提供者
func NewArkVideoProvider(client *ark.VideoClient) *ArkVideoProvider {
	return &ArkVideoProvider{client: client}
}

// GenerateVideo 使用默认画幅和时长生成视频
func (p *ArkVideoProvider) GenerateVideo(ctx context.Context, imageURL, prompt string) (string, error) {
	return p.client.GenerateVideo(ctx, ark.VideoRequest{ImageURL: imageURL, Prompt: prompt})
}

// GenerateShot 指定时长生成视频镜头（广告制作的单幕）
func (p *ArkVideoProvider) GenerateShot(ctx context.Context, imageURL, prompt string, duration int) (string, error) {
	return p.client.GenerateVideo(ctx, ark.VideoRequest{ImageURL: imageURL, Prompt: prompt, Duration: duration})
}
