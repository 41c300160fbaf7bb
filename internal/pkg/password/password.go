package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt 只使用前 72 字节
const (
	MinLength = 8
	MaxLength = 72
)

var (
	ErrTooShort = errors.New("password must be at least 8 characters")
	ErrTooLong  = errors.New("password must be at most 72 bytes")
)

// Validate 检查密码长度
func Validate(pwd string) error {
	switch {
	case len(pwd) < MinLength:
		return ErrTooShort
	case len(pwd) > MaxLength:
		return ErrTooLong
	}
	return nil
}

// Hash 校验长度后生成 bcrypt 哈希
func Hash(pwd string) (string, error) {
	if err := Validate(pwd); err != nil {
		return "", err
	}
	b, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify 比对密码与哈希
func Verify(pwd, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pwd)) == nil
}
