// Package creatomate 封装 Creatomate 渲染接口：模板合成与母版合成
package creatomate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"opentry/internal/pkg/httpclient"
	"opentry/internal/pkg/poll"
)

// DefaultBaseURL Creatomate API 地址
const DefaultBaseURL = "https://api.creatomate.com"

var (
	// ErrRenderTimeout 模板合成轮询超时
	ErrRenderTimeout = errors.New("Render timeout - please try again")
	// ErrMasterTimeout 母版合成轮询超时
	ErrMasterTimeout = errors.New("Render timed out")
	// ErrNoVideos 没有可合成的视频
	ErrNoVideos = errors.New("No video URLs provided")
)

// 渲染状态
const (
	StatusPlanned    = "planned"
	StatusWaiting    = "waiting"
	StatusRendering  = "rendering"
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
	resolutionMaster = "1920x1080"
)

// Config 客户端配置
type Config struct {
	BaseURL            string
	APIKey             string
	PollInterval       time.Duration // 模板合成轮询间隔，默认 2s
	MaxAttempts        int           // 模板合成最大轮询次数，默认 60
	MasterPollInterval time.Duration // 母版合成轮询间隔，默认 5s
	MasterMaxAttempts  int           // 母版合成最大轮询次数，默认 60
	HTTPClient         *http.Client
}

// Client Creatomate 客户端
type Client struct {
	cfg    Config
	client *http.Client
}

// NewClient 创建客户端
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("creatomate api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 60
	}
	if cfg.MasterPollInterval <= 0 {
		cfg.MasterPollInterval = 5 * time.Second
	}
	if cfg.MasterMaxAttempts <= 0 {
		cfg.MasterMaxAttempts = 60
	}
	client := cfg.HTTPClient
	if client == nil {
		client = httpclient.New(httpclient.Options{Timeout: 60 * time.Second})
	}
	return &Client{cfg: cfg, client: client}, nil
}

// Render 渲染任务
type Render struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	URL          string `json:"url,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// Compose 按模板合成：video_{i+1}.source 依次替换为 videoURLs，返回成片URL
func (c *Client) Compose(ctx context.Context, templateID string, videoURLs []string) (string, error) {
	if len(videoURLs) == 0 {
		return "", ErrNoVideos
	}

	modifications := make(map[string]string, len(videoURLs))
	for i, url := range videoURLs {
		modifications[fmt.Sprintf("video_%d.source", i+1)] = url
	}

	render, err := c.createRender(ctx, "/v2/renders", map[string]any{
		"template_id":   templateID,
		"modifications": modifications,
	})
	if err != nil {
		return "", err
	}
	log.Info().Str("render_id", render.ID).Str("template_id", templateID).Int("clips", len(videoURLs)).Msg("compose render submitted")

	url, err := c.wait(ctx, "/v2/renders/", render.ID, c.cfg.PollInterval, c.cfg.MaxAttempts, "Creatomate render failed: ")
	if errors.Is(err, poll.ErrMaxAttempts) {
		return "", ErrRenderTimeout
	}
	return url, err
}

// MasterRequest 母版合成请求
type MasterRequest struct {
	VideoURLs    []string
	VoiceoverURL string
	BrandLogo    string // 可选
	BrandName    string
	Duration     float64 // 总时长（秒）
}

// MasterVideo 母版合成结果
type MasterVideo struct {
	VideoURL   string  `json:"videoUrl"`
	Duration   float64 `json:"duration"`
	Resolution string  `json:"resolution"`
}

// Master 合成带配音、Logo、品牌片尾的 1920x1080 母版
func (c *Client) Master(ctx context.Context, req MasterRequest) (*MasterVideo, error) {
	if len(req.VideoURLs) == 0 {
		return nil, ErrNoVideos
	}

	render, err := c.createRender(ctx, "/v1/renders", map[string]any{
		"output_format": "mp4",
		"width":         1920,
		"height":        1080,
		"frame_rate":    30,
		"duration":      req.Duration,
		"elements":      MasterElements(req),
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("render_id", render.ID).Int("clips", len(req.VideoURLs)).Msg("master render submitted")

	url, err := c.wait(ctx, "/v1/renders/", render.ID, c.cfg.MasterPollInterval, c.cfg.MasterMaxAttempts, "Render failed: ")
	if errors.Is(err, poll.ErrMaxAttempts) {
		return nil, ErrMasterTimeout
	}
	if err != nil {
		return nil, err
	}

	return &MasterVideo{VideoURL: url, Duration: req.Duration, Resolution: resolutionMaster}, nil
}

// MasterElements 构造母版的元素列表：视频片段（淡入淡出）、配音、Logo、品牌片尾
func MasterElements(req MasterRequest) []map[string]any {
	segment := req.Duration / float64(len(req.VideoURLs))
	elements := make([]map[string]any, 0, len(req.VideoURLs)+3)

	for i, url := range req.VideoURLs {
		elements = append(elements, map[string]any{
			"type":     "video",
			"source":   url,
			"time":     float64(i) * segment,
			"duration": segment,
			"fit":      "cover",
			"animations": []map[string]any{
				{"type": "fade", "fade": "in", "duration": 0.3},
				{"type": "fade", "fade": "out", "duration": 0.3, "time": segment - 0.3},
			},
		})
	}

	elements = append(elements, map[string]any{
		"type":     "audio",
		"source":   req.VoiceoverURL,
		"time":     0,
		"duration": req.Duration,
		"volume":   "100%",
	})

	if req.BrandLogo != "" {
		elements = append(elements, map[string]any{
			"type":     "image",
			"source":   req.BrandLogo,
			"time":     0,
			"duration": req.Duration,
			"width":    "15%",
			"x":        "90%",
			"y":        "10%",
			"opacity":  "80%",
		})
	}

	elements = append(elements, map[string]any{
		"type":     "composition",
		"time":     req.Duration - 3,
		"duration": 3,
		"elements": []map[string]any{
			{
				"type":       "shape",
				"path":       "rectangle",
				"fill_color": "rgba(0,0,0,0.7)",
				"width":      "100%",
				"height":     "100%",
				"animations": []map[string]any{{"type": "fade", "fade": "in", "duration": 0.5}},
			},
			{
				"type":        "text",
				"text":        req.BrandName,
				"font_family": "Inter",
				"font_weight": "700",
				"font_size":   "8 vmin",
				"fill_color":  "#ffffff",
				"x":           "50%",
				"y":           "50%",
				"x_alignment": "50%",
				"y_alignment": "50%",
				"animations": []map[string]any{
					{"type": "fade", "fade": "in", "duration": 0.5},
					{"type": "scale", "start_scale": "80%", "duration": 0.5},
				},
			},
		},
	})

	return elements
}

// GetRender 查询渲染任务
func (c *Client) GetRender(ctx context.Context, path, id string) (*Render, error) {
	var r Render
	if err := httpclient.DoJSON(ctx, c.client, httpclient.Request{
		Service: "creatomate",
		Method:  http.MethodGet,
		URL:     c.cfg.BaseURL + path + id,
		Header:  httpclient.Bearer(c.cfg.APIKey),
	}, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// createRender 提交渲染，兼容返回数组或单个对象
func (c *Client) createRender(ctx context.Context, path string, body any) (*Render, error) {
	var raw json.RawMessage
	if err := httpclient.DoJSON(ctx, c.client, httpclient.Request{
		Service: "creatomate",
		Method:  http.MethodPost,
		URL:     c.cfg.BaseURL + path,
		Header:  httpclient.Bearer(c.cfg.APIKey),
		Body:    body,
	}, &raw); err != nil {
		return nil, err
	}

	var render Render
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var renders []Render
		if err := json.Unmarshal(raw, &renders); err != nil {
			return nil, fmt.Errorf("creatomate: decode renders: %w", err)
		}
		if len(renders) > 0 {
			render = renders[0]
		}
	} else if err := json.Unmarshal(raw, &render); err != nil {
		return nil, fmt.Errorf("creatomate: decode render: %w", err)
	}

	if render.ID == "" {
		return nil, errors.New("creatomate: invalid response, no render id")
	}
	return &render, nil
}

// wait 轮询渲染状态；查询失败同样计为一次尝试
func (c *Client) wait(ctx context.Context, path, id string, interval time.Duration, maxAttempts int, failPrefix string) (string, error) {
	return poll.Until(ctx, interval, maxAttempts, func(ctx context.Context, attempt int) (string, bool, error) {
		r, err := c.GetRender(ctx, path, id)
		if err != nil {
			log.Warn().Err(err).Str("render_id", id).Int("attempt", attempt).Msg("poll render failed")
			return "", false, nil
		}

		switch r.Status {
		case StatusSucceeded:
			return r.URL, true, nil
		case StatusFailed:
			msg := r.ErrorMessage
			if msg == "" {
				msg = "Unknown error"
			}
			return "", false, errors.New(failPrefix + msg)
		default:
			log.Debug().Str("render_id", id).Str("status", r.Status).Int("attempt", attempt).Msg("render in progress")
			return "", false, nil
		}
	})
}
