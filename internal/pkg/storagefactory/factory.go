package storagefactory

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"opentry/internal/config"
	"opentry/internal/pkg/storage"
	"opentry/internal/pkg/storage/local"
	"opentry/internal/pkg/storage/oss"
)

// NewStorage 根据配置创建存储：local 用于开发，oss 用于生产
// 参考图、关键帧与配音都需要公网可访问，local 的 base_url 必须能被视频厂商拉取
func NewStorage(ctx context.Context, cfg *config.StorageConfig) (storage.Storage, error) {
	switch cfg.Type {
	case "local", "":
		if cfg.Local == nil || cfg.Local.BasePath == "" {
			return nil, errors.New("storage.local.base_path is required")
		}
		st, err := local.NewLocalStorage(cfg.Local.BasePath, cfg.Local.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("create local storage: %w", err)
		}
		log.Info().Str("base_path", cfg.Local.BasePath).Msg("using local storage")
		return st, nil
	case "oss":
		if cfg.OSS == nil || cfg.OSS.Bucket == "" || cfg.OSS.Endpoint == "" {
			return nil, errors.New("storage.oss endpoint and bucket are required")
		}
		st, err := oss.NewOSSStorage(
			cfg.OSS.Endpoint,
			cfg.OSS.Bucket,
			cfg.OSS.AccessKeyID,
			cfg.OSS.AccessKeySecret,
			cfg.OSS.PresignExpiry,
		)
		if err != nil {
			return nil, fmt.Errorf("create oss storage: %w", err)
		}
		log.Info().Str("bucket", cfg.OSS.Bucket).Msg("using oss storage")
		return st, nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
