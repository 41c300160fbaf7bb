// Package tts 封装 ElevenLabs 文本转语音接口，用于广告旁白配音
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"opentry/internal/pkg/httpclient"
)

// DefaultBaseURL ElevenLabs API 地址
const DefaultBaseURL = "https://api.elevenlabs.io"

// ErrNoScripts 没有可配音的文本
var ErrNoScripts = errors.New("No scripts provided")

// VoicePresets 语气到音色ID的映射
var VoicePresets = map[string]string{
	"professional":  "onwK4e9ZLuTAKqWW03F9",
	"warm":          "EXAVITQu4vr4xnSDxMaL",
	"energetic":     "IKne3meq5aSn9XLyUdCD",
	"sophisticated": "JBFqnCBsd6RMkjVDRZzb",
	"inspiring":     "CwhRBWXzGAHq8TQ4Fs17",
	"youthful":      "SAz9YHcvj6GT2YYXdXww",
}

// Config TTS 配置
type Config struct {
	BaseURL    string
	APIKey     string // 必需
	Model      string // 默认 eleven_multilingual_v2
	HTTPClient *http.Client
}

// Client ElevenLabs 客户端
type Client struct {
	cfg    Config
	client *http.Client
}

// NewClient 创建 TTS 客户端
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("elevenlabs api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = "eleven_multilingual_v2"
	}
	client := cfg.HTTPClient
	if client == nil {
		client = httpclient.New(httpclient.Options{Timeout: 2 * time.Minute})
	}
	return &Client{cfg: cfg, client: client}, nil
}

// Request 配音请求
type Request struct {
	Scripts []string
	VoiceID string // 可选，优先于 Tone
	Tone    string // 可选，默认 professional
}

// Result 配音结果
type Result struct {
	Audio       []byte // mp3 数据
	ContentType string
	Duration    int // 估算时长（秒）
}

// VoiceFor 根据语气选择音色，未知语气回退到 professional
func VoiceFor(tone string) string {
	if v, ok := VoicePresets[tone]; ok {
		return v
	}
	return VoicePresets["professional"]
}

// EstimateDuration 按每秒 2.5 个词估算时长
func EstimateDuration(text string) int {
	return int(math.Ceil(float64(len(strings.Split(text, " "))) / 2.5))
}

// Synthesize 把多段文本合成一段旁白
func (c *Client) Synthesize(ctx context.Context, req Request) (*Result, error) {
	if len(req.Scripts) == 0 {
		return nil, ErrNoScripts
	}

	voice := req.VoiceID
	if voice == "" {
		voice = VoiceFor(req.Tone)
	}
	text := strings.Join(req.Scripts, " ... ")

	payload, err := json.Marshal(map[string]any{
		"text":     text,
		"model_id": c.cfg.Model,
		"voice_settings": map[string]any{
			"stability":         0.6,
			"similarity_boost":  0.8,
			"style":             0.4,
			"use_speaker_boost": true,
			"speed":             0.95,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("tts: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=mp3_44100_128", c.cfg.BaseURL, voice)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("tts: create request: %w", err)
	}
	httpReq.Header.Set("xi-api-key", c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("tts: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return nil, &httpclient.StatusError{Service: "elevenlabs", StatusCode: resp.StatusCode, Body: string(body)}
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tts: read audio: %w", err)
	}

	log.Info().Int("segments", len(req.Scripts)).Int("bytes", len(audio)).Str("voice", voice).Msg("voiceover generated")

	return &Result{
		Audio:       audio,
		ContentType: "audio/mpeg",
		Duration:    EstimateDuration(text),
	}, nil
}
