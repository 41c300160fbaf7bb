// Package reel 实现短视频流水线的各阶段执行器：
// 图片生成、单张重新生成、视频生成（失败降级为原图）以及合成渲染。
// 执行器本身不持久化状态，进度通过 Observer 回调向外暴露。
package reel

import (
	"context"
	"errors"

	model "opentry/internal/model/reel"
)

var (
	// ErrRegenerateBusy 同一项目已有重新生成在进行
	ErrRegenerateBusy = errors.New("another image is already regenerating")
	// ErrImageIndex 图片下标越界
	ErrImageIndex = errors.New("image index out of range")
	// ErrNothingToCompose 没有可用于合成的视频
	ErrNothingToCompose = errors.New("no videos to compose")
	// ErrEmptyResult 供应商返回成功但没有地址
	ErrEmptyResult = errors.New("generator returned an empty url")
)

// ImageGenerator 根据提示词和参考图生成一张图片，返回可访问的地址
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string, referenceImages []string) (string, error)
}

// VideoGenerator 以图片为首帧生成视频，返回视频地址
type VideoGenerator interface {
	GenerateVideo(ctx context.Context, imageURL, prompt string) (string, error)
}

// Compositor 将有序视频片段合成为成片
type Compositor interface {
	Compose(ctx context.Context, templateID string, videoURLs []string) (string, error)
}

// ImageObserver 每次图片集合变化时收到一份快照
type ImageObserver func(images []model.GeneratedImage)

// VideoObserver 每次视频集合变化时收到一份快照
type VideoObserver func(videos []model.GeneratedVideo)

// Runner 流水线阶段执行器
type Runner struct {
	images      ImageGenerator
	videos      VideoGenerator
	compositor  Compositor
	concurrency int
	guard       *Guard
}

// Option Runner 可选项
type Option func(*Runner)

// WithConcurrency 限制单阶段并发请求数，<=0 表示不限制
func WithConcurrency(n int) Option {
	return func(r *Runner) { r.concurrency = n }
}

// NewRunner 创建执行器
func NewRunner(images ImageGenerator, videos VideoGenerator, compositor Compositor, opts ...Option) *Runner {
	r := &Runner{
		images:     images,
		videos:     videos,
		compositor: compositor,
		guard:      NewGuard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}
