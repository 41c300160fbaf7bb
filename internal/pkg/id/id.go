// Package id 实体ID
package id

import (
	"github.com/google/uuid"
)

// New 生成实体ID（UUID v4 字符串）
func New() string {
	return uuid.NewString()
}

// Valid 路径参数是否可能是本服务生成的ID，非法值无需查库
func Valid(s string) bool {
	u, err := uuid.Parse(s)
	return err == nil && u.Version() == 4
}
