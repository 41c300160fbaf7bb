package social

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Platform 社交平台
type Platform string

const (
	PlatformYouTube   Platform = "youtube"
	PlatformInstagram Platform = "instagram"
)

// IsValid 检查平台是否支持
func (p Platform) IsValid() bool {
	return p == PlatformYouTube || p == PlatformInstagram
}

// Connection 浏览器会话与社交平台账号的绑定
// AccessToken/RefreshToken 由外部 OAuth 流程写入，不对外返回
type Connection struct {
	SessionID        string         `bson:"session_id" json:"-"`
	Platform         Platform       `bson:"platform" json:"platform"`
	PlatformUsername string         `bson:"platform_username" json:"platform_username"`
	PlatformUserID   string         `bson:"platform_user_id" json:"platform_user_id"`
	AccessToken      string         `bson:"access_token,omitempty" json:"-"`
	RefreshToken     string         `bson:"refresh_token,omitempty" json:"-"`
	TokenExpiresAt   *time.Time     `bson:"token_expires_at,omitempty" json:"-"`
	ExtraData        map[string]any `bson:"extra_data,omitempty" json:"extra_data"`
	CreatedAt        time.Time      `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `bson:"updated_at" json:"-"`
}

// Collection 返回集合名称
func (c *Connection) Collection() string { return "social_connections" }

// EnsureIndexes 每个会话每个平台仅保留一条绑定
func (c *Connection) EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(c.Collection())
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "session_id", Value: 1}, {Key: "platform", Value: 1}},
			Options: options.Index().SetName("uniq_session_platform").SetUnique(true),
		},
	}
	_, err := coll.Indexes().CreateMany(ctx, indexes)
	return err
}
