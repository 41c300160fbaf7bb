package storage

import (
	"context"
	"io"
	"time"
)

// Storage 媒体资产存储接口
// 参考图、关键帧、配音等需要对外部厂商可访问的文件都通过它落盘
type Storage interface {
	// Upload 上传文件，返回可公开访问的URL
	Upload(ctx context.Context, key string, data io.Reader, contentType string) (string, error)

	// GetPresignedDownloadURL 获取预签名下载URL（私有Bucket交给厂商拉取时使用）
	GetPresignedDownloadURL(ctx context.Context, key string, expiresIn time.Duration) (string, error)

	// Delete 删除文件
	Delete(ctx context.Context, key string) error

	// Exists 检查文件是否存在
	Exists(ctx context.Context, key string) (bool, error)

	// GetStorageType 获取存储类型
	GetStorageType() string
}

// StorageType 存储类型
type StorageType string

const (
	StorageTypeLocal StorageType = "local" // 本地文件系统
	StorageTypeOSS   StorageType = "oss"   // 阿里云OSS
)
