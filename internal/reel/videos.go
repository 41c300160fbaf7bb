package reel

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"opentry/internal/catalog"
	model "opentry/internal/model/reel"
)

type videoEvent struct {
	index int
	video model.GeneratedVideo
}

// VideoID 第 i 个视频的稳定 ID
func VideoID(i int) string { return fmt.Sprintf("vid-%d", i) }

// GenerateVideos 为每张已完成的图片并发生成视频
// 失败的条目以原图地址作为降级结果，返回的每个条目 URL 都不为空
func (r *Runner) GenerateVideos(ctx context.Context, tmpl catalog.Template, images []model.GeneratedImage, observe VideoObserver) []model.GeneratedVideo {
	sources := make([]model.GeneratedImage, 0, len(images))
	for _, img := range images {
		if img.Status == model.ItemComplete && img.URL != "" {
			sources = append(sources, img)
		}
	}

	videos := make([]model.GeneratedVideo, len(sources))
	for i, img := range sources {
		videos[i] = model.GeneratedVideo{
			ID:      VideoID(i),
			ImageID: img.ID,
			Status:  model.ItemPending,
		}
	}
	notifyVideos(observe, videos)

	// 每个条目最多两个事件：generating 与最终状态
	events := make(chan videoEvent, 2*len(videos))
	go func() {
		var g errgroup.Group
		if r.concurrency > 0 {
			g.SetLimit(r.concurrency)
		}
		for i := range videos {
			item := videos[i]
			index := i
			source := sources[i]
			prompt := tmpl.VideoPrompt(index)
			g.Go(func() error {
				item.Status = model.ItemGenerating
				events <- videoEvent{index: index, video: item}
				events <- videoEvent{index: index, video: r.animate(ctx, item, source, prompt)}
				return nil
			})
		}
		_ = g.Wait()
		close(events)
	}()

	for ev := range events {
		videos[ev.index] = ev.video
		notifyVideos(observe, videos)
	}

	fallbacks := 0
	for _, v := range videos {
		if v.Fallback {
			fallbacks++
		}
	}
	log.Info().
		Str("template_id", tmpl.ID).
		Int("total", len(videos)).
		Int("fallbacks", fallbacks).
		Msg("video phase finished")

	return videos
}

func (r *Runner) animate(ctx context.Context, item model.GeneratedVideo, source model.GeneratedImage, prompt string) model.GeneratedVideo {
	url, err := r.videos.GenerateVideo(ctx, source.URL, prompt)
	if err == nil && url == "" {
		err = ErrEmptyResult
	}
	if err != nil {
		log.Warn().Err(err).Str("video_id", item.ID).Str("image_id", source.ID).Msg("video generation failed, using image fallback")
		item.Status = model.ItemError
		item.URL = source.URL
		item.Fallback = true
		item.Error = err.Error()
		return item
	}
	item.Status = model.ItemComplete
	item.URL = url
	return item
}

// Compose 将视频按顺序提交合成
func (r *Runner) Compose(ctx context.Context, tmpl catalog.Template, videos []model.GeneratedVideo) (string, error) {
	urls := make([]string, 0, len(videos))
	for _, v := range videos {
		if v.URL != "" {
			urls = append(urls, v.URL)
		}
	}
	if len(urls) == 0 {
		return "", ErrNothingToCompose
	}

	url, err := r.compositor.Compose(ctx, tmpl.RenderTemplateID, urls)
	if err != nil {
		return "", err
	}
	if url == "" {
		return "", ErrEmptyResult
	}
	return url, nil
}

func notifyVideos(observe VideoObserver, videos []model.GeneratedVideo) {
	if observe == nil {
		return
	}
	snapshot := make([]model.GeneratedVideo, len(videos))
	copy(snapshot, videos)
	observe(snapshot)
}
