package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// MaxDataURLBytes 单个 data URL 解码后的最大字节数
const MaxDataURLBytes = 10 << 20

var (
	// ErrInvalidDataURL data URL 格式错误
	ErrInvalidDataURL = errors.New("invalid data url")
	// ErrDataTooLarge data URL 超过大小限制
	ErrDataTooLarge = errors.New("data url exceeds size limit")
)

// extByContentType 常见媒体类型对应的扩展名
var extByContentType = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
	"audio/mpeg": ".mp3",
	"audio/wav":  ".wav",
	"video/mp4":  ".mp4",
}

// IsDataURL 判断是否为 base64 data URL
func IsDataURL(s string) bool {
	return strings.HasPrefix(s, "data:")
}

// DecodeDataURL 解析 data:<mime>;base64,<payload>
func DecodeDataURL(s string) (contentType string, data []byte, err error) {
	if !IsDataURL(s) {
		return "", nil, ErrInvalidDataURL
	}
	header, payload, ok := strings.Cut(strings.TrimPrefix(s, "data:"), ",")
	if !ok || !strings.HasSuffix(header, ";base64") {
		return "", nil, ErrInvalidDataURL
	}
	contentType = strings.TrimSuffix(header, ";base64")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if base64.StdEncoding.DecodedLen(len(payload)) > MaxDataURLBytes+3 {
		return "", nil, ErrDataTooLarge
	}
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	if len(data) > MaxDataURLBytes {
		return "", nil, ErrDataTooLarge
	}
	return contentType, data, nil
}

// EncodeDataURL 把二进制数据编码成 data URL
func EncodeDataURL(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ExtFor 根据 Content-Type 返回文件扩展名
func ExtFor(contentType string) string {
	if ext, ok := extByContentType[contentType]; ok {
		return ext
	}
	return ".bin"
}

// UploadBytes 上传内存中的数据，key 不含扩展名时自动补全
func UploadBytes(ctx context.Context, s Storage, key, contentType string, data []byte) (string, error) {
	if !strings.Contains(key[strings.LastIndex(key, "/")+1:], ".") {
		key += ExtFor(contentType)
	}
	url, err := s.Upload(ctx, key, bytes.NewReader(data), contentType)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return url, nil
}

// UploadDataURL 解码 data URL 并上传
func UploadDataURL(ctx context.Context, s Storage, key, dataURL string) (string, error) {
	contentType, data, err := DecodeDataURL(dataURL)
	if err != nil {
		return "", err
	}
	return UploadBytes(ctx, s, key, contentType, data)
}
