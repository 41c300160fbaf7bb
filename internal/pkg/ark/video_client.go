package ark

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"opentry/internal/pkg/httpclient"
	"opentry/internal/pkg/poll"
)

// ErrVideoTimeout 视频生成任务轮询超时
var ErrVideoTimeout = errors.New("Video generation timeout - please try again")

// 任务状态
const (
	TaskStatusQueued    = "queued"
	TaskStatusRunning   = "running"
	TaskStatusSucceeded = "succeeded"
	TaskStatusFailed    = "failed"
)

// VideoConfig Ark 视频生成配置
type VideoConfig struct {
	APIKey       string        // API Key（必需）
	BaseURL      string        // API 基础 URL（可选）
	Model        string        // 模型名称（可选，默认: doubao-seedance-1-0-lite-i2v-250428）
	Ratio        string        // 画幅，默认 9:16
	Duration     int           // 时长（秒），默认 5
	PollInterval time.Duration // 轮询间隔，默认 2s
	MaxAttempts  int           // 最大轮询次数，默认 120
	HTTPClient   *http.Client  // 可选
}

// VideoClient Ark 图生视频客户端（内容生成任务 API）
type VideoClient struct {
	cfg    VideoConfig
	client *http.Client
}

// NewVideoClient 创建 Ark 视频生成客户端
func NewVideoClient(cfg VideoConfig) (*VideoClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("ark api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = "doubao-seedance-1-0-lite-i2v-250428"
	}
	if cfg.Ratio == "" {
		cfg.Ratio = "9:16"
	}
	if cfg.Duration <= 0 {
		cfg.Duration = 5
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 120
	}
	client := cfg.HTTPClient
	if client == nil {
		client = httpclient.New(httpclient.Options{Timeout: 2 * time.Minute})
	}

	return &VideoClient{cfg: cfg, client: client}, nil
}

// VideoRequest 图生视频请求
type VideoRequest struct {
	ImageURL string // 首帧图片（URL 或 data URL）
	Prompt   string // 运动提示词
	Ratio    string // 可选，覆盖默认画幅
	Duration int    // 可选，覆盖默认时长
}

// Task 视频生成任务
type Task struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Content struct {
		VideoURL string `json:"video_url"`
	} `json:"content"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// CreateTask 提交视频生成任务，返回任务ID
func (c *VideoClient) CreateTask(ctx context.Context, req VideoRequest) (string, error) {
	ratio := req.Ratio
	if ratio == "" {
		ratio = c.cfg.Ratio
	}
	duration := req.Duration
	if duration <= 0 {
		duration = c.cfg.Duration
	}
	if duration > 12 {
		duration = 12
	}

	body := map[string]any{
		"model": c.cfg.Model,
		"content": []map[string]any{
			{"type": "text", "text": req.Prompt},
			{"type": "image_url", "image_url": map[string]string{"url": req.ImageURL}},
		},
		"ratio":     ratio,
		"duration":  duration,
		"watermark": false,
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := httpclient.DoJSON(ctx, c.client, httpclient.Request{
		Service: "ark video",
		Method:  http.MethodPost,
		URL:     c.cfg.BaseURL + "/contents/generations/tasks",
		Header:  httpclient.Bearer(c.cfg.APIKey),
		Body:    body,
	}, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", errors.New("ark video: task id is empty in response")
	}
	return resp.ID, nil
}

// GetTask 查询任务
func (c *VideoClient) GetTask(ctx context.Context, taskID string) (*Task, error) {
	var task Task
	if err := httpclient.DoJSON(ctx, c.client, httpclient.Request{
		Service: "ark video",
		Method:  http.MethodGet,
		URL:     c.cfg.BaseURL + "/contents/generations/tasks/" + taskID,
		Header:  httpclient.Bearer(c.cfg.APIKey),
	}, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// GenerateVideo 提交任务并轮询直到完成，返回视频URL
func (c *VideoClient) GenerateVideo(ctx context.Context, req VideoRequest) (string, error) {
	taskID, err := c.CreateTask(ctx, req)
	if err != nil {
		return "", err
	}
	log.Info().Str("task_id", taskID).Msg("video generation task submitted")

	url, err := poll.Until(ctx, c.cfg.PollInterval, c.cfg.MaxAttempts, func(ctx context.Context, attempt int) (string, bool, error) {
		task, err := c.GetTask(ctx, taskID)
		if err != nil {
			// 单次查询失败不终止，继续下一次轮询
			log.Warn().Err(err).Str("task_id", taskID).Int("attempt", attempt).Msg("poll video task failed")
			return "", false, nil
		}

		switch strings.ToLower(task.Status) {
		case TaskStatusSucceeded, "completed", "success":
			if task.Content.VideoURL == "" {
				return "", false, fmt.Errorf("ark video: task %s succeeded without video url", taskID)
			}
			return task.Content.VideoURL, true, nil
		case TaskStatusFailed, "error", "cancelled":
			msg := "Video generation failed"
			if task.Error != nil && task.Error.Message != "" {
				msg = task.Error.Message
			}
			return "", false, fmt.Errorf("ark video: task %s: %s", taskID, msg)
		default:
			log.Debug().Str("task_id", taskID).Str("status", task.Status).Int("attempt", attempt).Msg("video still generating")
			return "", false, nil
		}
	})
	if errors.Is(err, poll.ErrMaxAttempts) {
		return "", ErrVideoTimeout
	}
	if err != nil {
		return "", err
	}

	log.Info().Str("task_id", taskID).Msg("video generation succeeded")
	return url, nil
}
