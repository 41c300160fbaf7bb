package auth

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"opentry/internal/model/auth"
)

// UserRepository 用户仓库接口（供 service 层依赖）
type UserRepository interface {
	Create(ctx context.Context, user *auth.User) error
	FindByID(ctx context.Context, id string) (*auth.User, error)
	FindByEmail(ctx context.Context, email string) (*auth.User, error)
	TouchLogin(ctx context.Context, id string, at time.Time) error
}

// UserRepo 用户仓库，未找到时返回 mongo.ErrNoDocuments
type UserRepo struct {
	coll *mongo.Collection
}

// NewUserRepo 创建用户仓库
func NewUserRepo(db *mongo.Database) *UserRepo {
	var u auth.User
	return &UserRepo{coll: db.Collection(u.Collection())}
}

// Create 创建用户，邮箱重复时返回 duplicate key 错误
func (r *UserRepo) Create(ctx context.Context, user *auth.User) error {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	_, err := r.coll.InsertOne(ctx, user)
	return err
}

// FindByID 根据ID查询
func (r *UserRepo) FindByID(ctx context.Context, id string) (*auth.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// FindByEmail 根据邮箱查询，调用方负责规范化大小写
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

// TouchLogin 记录登录时间
func (r *UserRepo) TouchLogin(ctx context.Context, id string, at time.Time) error {
	res, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{"last_login_at": at, "updated_at": at}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (r *UserRepo) findOne(ctx context.Context, filter bson.M) (*auth.User, error) {
	var u auth.User
	if err := r.coll.FindOne(ctx, filter).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}
