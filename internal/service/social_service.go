package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"opentry/internal/model/social"
	socialRepo "opentry/internal/repository/social"
)

var (
	ErrMissingSession   = errors.New("missing session id")
	ErrInvalidPlatform  = errors.New("unsupported platform")
	ErrNoPlatforms      = errors.New("Missing sessionId or platforms")
	ErrConnectionAbsent = errors.New("connection not found")
)

// SocialService 社交平台绑定与发布
// 会话ID由 handler 从 X-Session-ID 读取后显式传入
type SocialService struct {
	conns socialRepo.ConnectionRepository
}

// NewSocialService 创建社交服务
func NewSocialService(conns socialRepo.ConnectionRepository) *SocialService {
	return &SocialService{conns: conns}
}

// List 列出会话已绑定的平台
func (s *SocialService) List(ctx context.Context, sessionID string) ([]*social.Connection, error) {
	if sessionID == "" {
		return nil, ErrMissingSession
	}
	return s.conns.ListBySession(ctx, sessionID)
}

// Save 记录外部 OAuth 流程获得的账号与 Token
func (s *SocialService) Save(ctx context.Context, sessionID string, conn *social.Connection) error {
	if sessionID == "" {
		return ErrMissingSession
	}
	if !conn.Platform.IsValid() {
		return ErrInvalidPlatform
	}
	conn.SessionID = sessionID
	if err := s.conns.Upsert(ctx, conn); err != nil {
		log.Error().Err(err).Str("platform", string(conn.Platform)).Msg("failed to save social connection")
		return err
	}
	log.Info().Str("platform", string(conn.Platform)).Str("username", conn.PlatformUsername).Msg("social account connected")
	return nil
}

// Disconnect 解除平台绑定
func (s *SocialService) Disconnect(ctx context.Context, sessionID string, platform social.Platform) error {
	if sessionID == "" {
		return ErrMissingSession
	}
	if !platform.IsValid() {
		return ErrInvalidPlatform
	}
	deleted, err := s.conns.Delete(ctx, sessionID, platform)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrConnectionAbsent
	}
	return nil
}

// PostRequest 发布请求
type PostRequest struct {
	Platforms []social.Platform `json:"platforms"`
	Caption   string            `json:"caption"`
	VideoURL  string            `json:"video_url"`
	ImageURL  string            `json:"image_url"`
}

// PostResult 单个平台的发布结果
type PostResult struct {
	Success     bool   `json:"success"`
	Message     string `json:"message,omitempty"`
	Error       string `json:"error,omitempty"`
	Username    string `json:"username,omitempty"`
	ChannelName string `json:"channel_name,omitempty"`
}

// Post 向已绑定的平台发布成片，返回每个平台的结果
// 平台上传由客户端完成，这里只做绑定检查与发布准备
func (s *SocialService) Post(ctx context.Context, sessionID string, req PostRequest) (map[social.Platform]PostResult, error) {
	if sessionID == "" || len(req.Platforms) == 0 {
		return nil, ErrNoPlatforms
	}

	conns, err := s.conns.ListBySession(ctx, sessionID, req.Platforms...)
	if err != nil {
		return nil, err
	}
	byPlatform := make(map[social.Platform]*social.Connection, len(conns))
	for _, c := range conns {
		byPlatform[c.Platform] = c
	}

	results := make(map[social.Platform]PostResult, len(req.Platforms))
	for _, platform := range req.Platforms {
		conn, ok := byPlatform[platform]
		if !ok {
			results[platform] = PostResult{Error: fmt.Sprintf("Not connected to %s", platform)}
			continue
		}

		switch platform {
		case social.PlatformYouTube:
			if req.VideoURL == "" {
				results[platform] = PostResult{Error: "No video URL provided"}
				continue
			}
			results[platform] = PostResult{
				Success:     true,
				Message:     "YouTube upload initiated. Note: Full video upload requires client-side handling for large files.",
				ChannelName: conn.PlatformUsername,
			}
		case social.PlatformInstagram:
			if req.VideoURL == "" && req.ImageURL == "" {
				results[platform] = PostResult{Error: "No media URL provided"}
				continue
			}
			results[platform] = PostResult{
				Success:  true,
				Message:  "Instagram post prepared. Note: Posting requires Instagram Graph API with Business account.",
				Username: conn.PlatformUsername,
			}
		default:
			results[platform] = PostResult{Error: ErrInvalidPlatform.Error()}
		}
	}

	log.Info().Int("platforms", len(req.Platforms)).Msg("social post prepared")
	return results, nil
}
