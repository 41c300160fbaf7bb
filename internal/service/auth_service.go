package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"

	"opentry/internal/model/auth"
	"opentry/internal/pkg/id"
	"opentry/internal/pkg/jwt"
	"opentry/internal/pkg/password"
	authRepo "opentry/internal/repository/auth"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserBanned         = errors.New("user is banned")
	ErrWeakPassword       = errors.New("password must be 8 to 72 characters")
)

// AuthService 认证服务
type AuthService struct {
	users authRepo.UserRepository
	jwt   *jwt.JWT
}

// NewAuthService 创建认证服务
func NewAuthService(users authRepo.UserRepository, jwtSecret string, accessTokenExpiry time.Duration) *AuthService {
	return &AuthService{
		users: users,
		jwt:   jwt.NewJWT(jwtSecret, accessTokenExpiry),
	}
}

// TokenResult 登录/注册后签发的 Token
type TokenResult struct {
	AccessToken string     `json:"access_token"`
	ExpiresIn   int        `json:"expires_in"`
	TokenType   string     `json:"token_type"`
	User        *auth.User `json:"user"`
}

// Register 注册并直接签发 Token
func (s *AuthService) Register(ctx context.Context, email, pwd, name string) (*TokenResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if password.Validate(pwd) != nil {
		return nil, ErrWeakPassword
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hashed, err := password.Hash(pwd)
	if err != nil {
		log.Error().Err(err).Msg("failed to hash password")
		return nil, err
	}

	user := &auth.User{
		ID:       id.New(),
		Email:    email,
		Password: hashed,
		Name:     name,
		Status:   auth.UserStatusActive,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrEmailTaken
		}
		log.Error().Err(err).Msg("failed to create user")
		return nil, err
	}

	log.Info().Str("user_id", user.ID).Msg("user registered")
	return s.issue(user)
}

// Login 邮箱密码登录
func (s *AuthService) Login(ctx context.Context, email, pwd string) (*TokenResult, error) {
	user, err := s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !password.Verify(pwd, user.Password) {
		return nil, ErrInvalidCredentials
	}
	if user.Status == auth.UserStatusBanned {
		return nil, ErrUserBanned
	}

	if err := s.users.TouchLogin(ctx, user.ID, time.Now()); err != nil {
		// 不影响登录
		log.Warn().Err(err).Str("user_id", user.ID).Msg("failed to update last login time")
	}

	return s.issue(user)
}

// Me 获取当前用户
func (s *AuthService) Me(ctx context.Context, userID string) (*auth.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// ValidateToken 校验 Access Token，返回用户ID
func (s *AuthService) ValidateToken(token string) (string, error) {
	claims, err := s.jwt.ValidateToken(token)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

func (s *AuthService) issue(user *auth.User) (*TokenResult, error) {
	token, err := s.jwt.GenerateToken(user.ID, user.Email)
	if err != nil {
		log.Error().Err(err).Msg("failed to generate access token")
		return nil, err
	}
	return &TokenResult{
		AccessToken: token,
		ExpiresIn:   int(s.jwt.TTL().Seconds()),
		TokenType:   "Bearer",
		User:        user,
	}, nil
}
