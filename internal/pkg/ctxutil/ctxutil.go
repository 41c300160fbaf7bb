// Package ctxutil 在 request context 中传递调用方身份
package ctxutil

import "context"

// SessionIDHeader 前端生成的不透明会话ID所在的请求头
const SessionIDHeader = "X-Session-ID"

type key int

const (
	userIDKey key = iota
	sessionIDKey
)

// WithUserID 注入登录用户ID，由认证中间件调用
func WithUserID(ctx context.Context, userID string) context.Context {
	return with(ctx, userIDKey, userID)
}

// GetUserID 读取登录用户ID
func GetUserID(ctx context.Context) (string, bool) {
	return get(ctx, userIDKey)
}

// WithSessionID 注入浏览器会话ID（社交绑定使用）
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return with(ctx, sessionIDKey, sessionID)
}

// GetSessionID 读取浏览器会话ID
func GetSessionID(ctx context.Context) (string, bool) {
	return get(ctx, sessionIDKey)
}

func with(ctx context.Context, k key, v string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, k, v)
}

// get 空字符串视为不存在
func get(ctx context.Context, k key) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(k).(string)
	return v, ok && v != ""
}
