package config

import (
	"errors"
	"fmt"
	"time"
)

// Config 应用配置根结构
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	AI         AIConfig         `mapstructure:"ai"`
	Log        LogConfig        `mapstructure:"log"`
	Mongo      MongoConfig      `mapstructure:"mongo"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Storage    StorageConfig    `mapstructure:"storage"`
	ImageGen   ImageGenConfig   `mapstructure:"imagegen"`
	VideoGen   VideoGenConfig   `mapstructure:"videogen"`
	Render     RenderConfig     `mapstructure:"render"`
	Voice      VoiceConfig      `mapstructure:"voice"`
	Razorpay   RazorpayConfig   `mapstructure:"razorpay"`
	Payment    PaymentConfig    `mapstructure:"payment"`
	Production ProductionConfig `mapstructure:"production"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// AllowOrigins CORS 允许的来源，空表示允许全部
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// AIConfig 文本大模型配置（用于生成导演脚本）
type AIConfig struct {
	Provider string          `mapstructure:"provider"` // openai, azure, ark
	APIKey   string          `mapstructure:"api_key"`
	Model    string          `mapstructure:"model"`
	BaseURL  string          `mapstructure:"base_url"`
	Options  AIOptionsConfig `mapstructure:"options"`
}

// AIOptionsConfig AI 模型参数
type AIOptionsConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	TopP        float64 `mapstructure:"top_p"`
}

// LogConfig 日志配置 (Zerolog)
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	TimeFormat string `mapstructure:"time_format"`
}

// MongoConfig MongoDB 配置
type MongoConfig struct {
	URI         string `mapstructure:"uri"`
	Database    string `mapstructure:"database"`
	MaxPoolSize uint64 `mapstructure:"max_pool_size"`
	MinPoolSize uint64 `mapstructure:"min_pool_size"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig 认证配置
type AuthConfig struct {
	JWTSecret         string        `mapstructure:"jwt_secret"`          // JWT密钥
	AccessTokenExpiry time.Duration `mapstructure:"access_token_expiry"` // Access Token过期时间
}

// StorageConfig 存储配置
type StorageConfig struct {
	Type  string       `mapstructure:"type"` // local, oss
	Local *LocalConfig `mapstructure:"local,omitempty"`
	OSS   *OSSConfig   `mapstructure:"oss,omitempty"`
}

// LocalConfig 本地文件系统配置
type LocalConfig struct {
	BasePath string `mapstructure:"base_path"` // 基础路径
	BaseURL  string `mapstructure:"base_url"`  // 基础URL（用于生成访问URL）
}

// OSSConfig 阿里云OSS配置
type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`          // OSS端点
	Bucket          string `mapstructure:"bucket"`            // Bucket名称
	AccessKeyID     string `mapstructure:"access_key_id"`     // AccessKey ID
	AccessKeySecret string `mapstructure:"access_key_secret"` // AccessKey Secret
	PresignExpiry   int    `mapstructure:"presign_expiry"`    // 预签名URL过期时间（秒）
}

// ImageGenConfig 图片生成配置
type ImageGenConfig struct {
	Provider string        `mapstructure:"provider"` // gateway, ark
	BaseURL  string        `mapstructure:"base_url"`
	APIKey   string        `mapstructure:"api_key"`
	Model    string        `mapstructure:"model"`
	Size     string        `mapstructure:"size"` // 仅 ark 使用
	Timeout  time.Duration `mapstructure:"timeout"`
}

// VideoGenConfig 视频生成配置（Ark 内容生成任务）
type VideoGenConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	Model        string        `mapstructure:"model"`
	Ratio        string        `mapstructure:"ratio"`
	Duration     int           `mapstructure:"duration"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
}

// RenderConfig 合成渲染配置（Creatomate）
type RenderConfig struct {
	BaseURL            string        `mapstructure:"base_url"`
	APIKey             string        `mapstructure:"api_key"`
	PollInterval       time.Duration `mapstructure:"poll_interval"`
	MaxAttempts        int           `mapstructure:"max_attempts"`
	MasterPollInterval time.Duration `mapstructure:"master_poll_interval"`
	MasterMaxAttempts  int           `mapstructure:"master_max_attempts"`
}

// VoiceConfig 配音配置（ElevenLabs）
type VoiceConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
}

// RazorpayConfig Razorpay 配置
type RazorpayConfig struct {
	KeyID         string `mapstructure:"key_id"`
	KeySecret     string `mapstructure:"key_secret"`
	WebhookSecret string `mapstructure:"webhook_secret"`
}

// PaymentConfig 支付门控配置
type PaymentConfig struct {
	Window        time.Duration `mapstructure:"window"`         // 二维码有效期
	PollInterval  time.Duration `mapstructure:"poll_interval"`  // 轮询间隔
	ProceedDelay  time.Duration `mapstructure:"proceed_delay"`  // 支付成功后进入下一阶段前的延迟
	SweepSchedule string        `mapstructure:"sweep_schedule"` // 过期清理的 cron 表达式
}

// ProductionConfig 广告制作流程配置
type ProductionConfig struct {
	SubstepDelay time.Duration `mapstructure:"substep_delay"` // 子步骤展示延迟
}

// Validate 验证配置有效性
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("invalid server port")
	}

	validModes := map[string]bool{"debug": true, "release": true, "test": true}
	if !validModes[c.Server.Mode] {
		return errors.New("invalid server mode, must be debug/release/test")
	}

	switch c.ImageGen.Provider {
	case "gateway", "ark":
	default:
		return fmt.Errorf("invalid imagegen provider %q, must be gateway/ark", c.ImageGen.Provider)
	}

	if c.Payment.Window <= 0 || c.Payment.PollInterval <= 0 {
		return errors.New("payment window and poll interval must be positive")
	}
	if c.Render.MaxAttempts <= 0 || c.Render.MasterMaxAttempts <= 0 {
		return errors.New("render max attempts must be positive")
	}
	if c.VideoGen.MaxAttempts <= 0 {
		return errors.New("videogen max attempts must be positive")
	}

	return nil
}
