package social

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"opentry/internal/model/social"
)

// ConnectionRepository 社交绑定仓库接口（供 service 层依赖）
type ConnectionRepository interface {
	ListBySession(ctx context.Context, sessionID string, platforms ...social.Platform) ([]*social.Connection, error)
	Upsert(ctx context.Context, conn *social.Connection) error
	Delete(ctx context.Context, sessionID string, platform social.Platform) (bool, error)
}

// ConnectionRepo 社交绑定仓库
type ConnectionRepo struct {
	coll *mongo.Collection
}

// NewConnectionRepo 创建仓库
func NewConnectionRepo(db *mongo.Database) *ConnectionRepo {
	var c social.Connection
	return &ConnectionRepo{coll: db.Collection(c.Collection())}
}

// ListBySession 查询会话的绑定，platforms 为空时返回全部
func (r *ConnectionRepo) ListBySession(ctx context.Context, sessionID string, platforms ...social.Platform) ([]*social.Connection, error) {
	filter := bson.M{"session_id": sessionID}
	if len(platforms) > 0 {
		filter["platform"] = bson.M{"$in": platforms}
	}
	cur, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	conns := []*social.Connection{}
	if err := cur.All(ctx, &conns); err != nil {
		return nil, err
	}
	return conns, nil
}

// Upsert 按 (session_id, platform) 写入绑定，已存在时覆盖令牌与账号信息
func (r *ConnectionRepo) Upsert(ctx context.Context, conn *social.Connection) error {
	now := time.Now()
	conn.UpdatedAt = now
	filter := bson.M{"session_id": conn.SessionID, "platform": conn.Platform}
	update := bson.M{
		"$set": bson.M{
			"platform_username": conn.PlatformUsername,
			"platform_user_id":  conn.PlatformUserID,
			"access_token":      conn.AccessToken,
			"refresh_token":     conn.RefreshToken,
			"token_expires_at":  conn.TokenExpiresAt,
			"extra_data":        conn.ExtraData,
			"updated_at":        now,
		},
		"$setOnInsert": bson.M{"created_at": now},
	}
	_, err := r.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

// Delete 删除绑定，返回是否存在
func (r *ConnectionRepo) Delete(ctx context.Context, sessionID string, platform social.Platform) (bool, error) {
	res, err := r.coll.DeleteOne(ctx, bson.M{"session_id": sessionID, "platform": platform})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}
