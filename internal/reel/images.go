package reel

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"opentry/internal/catalog"
	model "opentry/internal/model/reel"
)

// imageEvent 单张图片的状态变化
type imageEvent struct {
	index int
	image model.GeneratedImage
}

// ImageID 第 i 个镜头的稳定 ID
func ImageID(i int) string { return fmt.Sprintf("img-%d", i) }

// GenerateImages 为模板每个镜头并发生成一张图片
// 返回时每个条目都已是 complete 或 error，单个失败不影响其他条目
func (r *Runner) GenerateImages(ctx context.Context, tmpl catalog.Template, refs []string, observe ImageObserver) []model.GeneratedImage {
	images := make([]model.GeneratedImage, tmpl.Shots)
	for i := range images {
		images[i] = model.GeneratedImage{
			ID:     ImageID(i),
			Prompt: tmpl.Prompts[i],
			Status: model.ItemGenerating,
		}
	}
	notifyImages(observe, images)

	events := make(chan imageEvent, len(images))
	go func() {
		var g errgroup.Group
		if r.concurrency > 0 {
			g.SetLimit(r.concurrency)
		}
		for i := range images {
			slot := images[i]
			index := i
			g.Go(func() error {
				events <- imageEvent{index: index, image: r.generateOne(ctx, slot, refs)}
				return nil
			})
		}
		_ = g.Wait()
		close(events)
	}()

	for ev := range events {
		images[ev.index] = ev.image
		notifyImages(observe, images)
	}

	failed := 0
	for _, img := range images {
		if img.Status == model.ItemError {
			failed++
		}
	}
	log.Info().
		Str("template_id", tmpl.ID).
		Int("total", len(images)).
		Int("failed", failed).
		Msg("image phase finished")

	return images
}

// RegenerateImage 重新生成第 i 张图片，其余条目保持不变
// key 通常为项目 ID，同一 key 同时只允许一次重新生成
func (r *Runner) RegenerateImage(ctx context.Context, key string, refs []string, images []model.GeneratedImage, i int, observe ImageObserver) ([]model.GeneratedImage, error) {
	if i < 0 || i >= len(images) {
		return nil, fmt.Errorf("%w: %d", ErrImageIndex, i)
	}
	if !r.guard.TryAcquire(key) {
		return nil, ErrRegenerateBusy
	}
	defer r.guard.Release(key)

	out := make([]model.GeneratedImage, len(images))
	copy(out, images)
	out[i] = model.GeneratedImage{
		ID:     out[i].ID,
		Prompt: out[i].Prompt,
		Status: model.ItemGenerating,
	}
	notifyImages(observe, out)

	out[i] = r.generateOne(ctx, out[i], refs)
	notifyImages(observe, out)
	return out, nil
}

// Regenerating 项目当前是否有重新生成在进行
func (r *Runner) Regenerating(key string) bool {
	return r.guard.Busy(key)
}

func (r *Runner) generateOne(ctx context.Context, slot model.GeneratedImage, refs []string) model.GeneratedImage {
	url, err := r.images.GenerateImage(ctx, slot.Prompt, refs)
	if err == nil && url == "" {
		err = ErrEmptyResult
	}
	if err != nil {
		log.Warn().Err(err).Str("image_id", slot.ID).Msg("image generation failed")
		slot.Status = model.ItemError
		slot.URL = ""
		slot.Error = err.Error()
		return slot
	}
	slot.Status = model.ItemComplete
	slot.URL = url
	slot.Error = ""
	return slot
}

func notifyImages(observe ImageObserver, images []model.GeneratedImage) {
	if observe == nil {
		return
	}
	snapshot := make([]model.GeneratedImage, len(images))
	copy(snapshot, images)
	observe(snapshot)
}
