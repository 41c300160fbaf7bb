package providers

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"opentry/internal/model/production"
	"opentry/internal/pkg/id"
	"opentry/internal/pkg/storage"
	"opentry/internal/pkg/tts"
)

// VoiceoverProvider 旁白提供者
// 调用 TTS 合成后把音频上传到存储，母版合成需要公网可访问的地址
type VoiceoverProvider struct {
	client *tts.Client
	store  storage.Storage
}

// NewVoiceoverProvider 创建旁白提供者
func NewVoiceoverProvider(client *tts.Client, store storage.Storage) *VoiceoverProvider {
	return &VoiceoverProvider{client: client, store: store}
}

// Voiceover 合成旁白
func (p *VoiceoverProvider) Voiceover(ctx context.Context, scripts []string, tone string) (*production.Audio, error) {
	result, err := p.client.Synthesize(ctx, tts.Request{Scripts: scripts, Tone: tone})
	if err != nil {
		return nil, err
	}

	url, err := storage.UploadBytes(ctx, p.store, "voiceovers/"+id.New(), result.ContentType, result.Audio)
	if err != nil {
		return nil, fmt.Errorf("store voiceover: %w", err)
	}

	log.Info().
		Str("tone", tone).
		Int("duration", result.Duration).
		Int("size", len(result.Audio)).
		Msg("voiceover stored")

	return &production.Audio{VoiceoverURL: url, Duration: result.Duration}, nil
}
