// Package gateway 封装 OpenAI 兼容的 AI 网关图片生成接口（chat/completions + image 模态）
package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"opentry/internal/pkg/httpclient"
)

var (
	// ErrRateLimited 网关限流（HTTP 429）
	ErrRateLimited = errors.New("Rate limit exceeded. Please try again in a moment.")
	// ErrCreditsExhausted 网关额度耗尽（HTTP 402）
	ErrCreditsExhausted = errors.New("Credits exhausted. Please add credits to continue.")
	// ErrNoImage 响应中没有图片
	ErrNoImage = errors.New("No image generated")
)

const referencePromptTemplate = `Generate an image based on this description. Use the provided reference photos to include the person's face and features accurately in the generated image.

IMPORTANT: The generated image should feature the SAME PERSON from the reference photos.

Description: `

// Config 网关配置
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// ImageClient AI 网关图片客户端
type ImageClient struct {
	cfg    Config
	client *http.Client
}

// NewImageClient 创建网关图片客户端
func NewImageClient(cfg Config) (*ImageClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gateway api key is required")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("gateway base url is required")
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = "google/gemini-3-pro-image-preview"
	}
	client := cfg.HTTPClient
	if client == nil {
		client = httpclient.New(httpclient.Options{Timeout: cfg.Timeout})
	}
	return &ImageClient{cfg: cfg, client: client}, nil
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model      string        `json:"model"`
	Messages   []chatMessage `json:"messages"`
	Modalities []string      `json:"modalities"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Images  []struct {
				ImageURL imageURL `json:"image_url"`
			} `json:"images"`
		} `json:"message"`
	} `json:"choices"`
}

// GenerateImage 生成图片，返回网关给出的图片URL（通常是 data URL）
func (c *ImageClient) GenerateImage(ctx context.Context, prompt string, referenceImages []string) (string, error) {
	parts := make([]contentPart, 0, len(referenceImages)+1)
	parts = append(parts, contentPart{Type: "text", Text: referencePromptTemplate + prompt})
	for _, ref := range referenceImages {
		parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: ref}})
	}

	var resp chatResponse
	err := httpclient.DoJSON(ctx, c.client, httpclient.Request{
		Service: "ai gateway",
		Method:  http.MethodPost,
		URL:     c.cfg.BaseURL + "/chat/completions",
		Header:  httpclient.Bearer(c.cfg.APIKey),
		Body: chatRequest{
			Model:      c.cfg.Model,
			Messages:   []chatMessage{{Role: "user", Content: parts}},
			Modalities: []string{"image", "text"},
		},
	}, &resp)
	if err != nil {
		return "", mapStatusError(err)
	}

	if len(resp.Choices) == 0 || len(resp.Choices[0].Message.Images) == 0 || resp.Choices[0].Message.Images[0].ImageURL.URL == "" {
		log.Error().Str("model", c.cfg.Model).Msg("gateway response contains no image")
		return "", ErrNoImage
	}

	return resp.Choices[0].Message.Images[0].ImageURL.URL, nil
}

// mapStatusError 把 429/402 转换成面向用户的错误
func mapStatusError(err error) error {
	var se *httpclient.StatusError
	if errors.As(err, &se) {
		switch se.StatusCode {
		case http.StatusTooManyRequests:
			return ErrRateLimited
		case http.StatusPaymentRequired:
			return ErrCreditsExhausted
		}
	}
	return err
}
