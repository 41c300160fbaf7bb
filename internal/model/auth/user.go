package auth

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// User 注册用户，拥有短视频项目、交易与广告制作
type User struct {
	ID          string     `bson:"_id,omitempty" json:"id"`
	Email       string     `bson:"email" json:"email"` // 小写存储，唯一
	Password    string     `bson:"password" json:"-"`   // bcrypt 哈希
	Name        string     `bson:"name,omitempty" json:"name"`
	Status      UserStatus `bson:"status" json:"status"`
	LastLoginAt *time.Time `bson:"last_login_at,omitempty" json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"updated_at"`
}

// UserStatus 用户状态
type UserStatus string

const (
	UserStatusActive UserStatus = "active"
	UserStatusBanned UserStatus = "banned"
)

// Collection 返回集合名称
func (u *User) Collection() string { return "users" }

// EnsureIndexes 邮箱唯一索引
func (u *User) EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(u.Collection())
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{bson.E{Key: "email", Value: 1}},
			Options: options.Index().SetName("idx_email").SetUnique(true),
		},
	}
	_, err := coll.Indexes().CreateMany(ctx, indexes)
	return err
}
