package reel

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"opentry/internal/model/reel"
)

// ProjectRepository 短视频项目仓库接口（供 service 层依赖）
type ProjectRepository interface {
	Create(ctx context.Context, p *reel.Project) error
	FindByID(ctx context.Context, id string) (*reel.Project, error)
	ListByUser(ctx context.Context, userID string, limit int64) ([]*reel.Project, error)
	SetPhase(ctx context.Context, id string, phase reel.Phase, errMsg string) error
	SetImages(ctx context.Context, id string, images []reel.GeneratedImage) error
	SetVideos(ctx context.Context, id string, videos []reel.GeneratedVideo) error
	SetTransaction(ctx context.Context, id, transactionID string) error
	SetFinalVideo(ctx context.Context, id, url string) error
}

// ProjectRepo 短视频项目仓库
type ProjectRepo struct {
	coll *mongo.Collection
}

// NewProjectRepo 创建项目仓库
func NewProjectRepo(db *mongo.Database) *ProjectRepo {
	var p reel.Project
	return &ProjectRepo{coll: db.Collection(p.Collection())}
}

// Create 创建项目
func (r *ProjectRepo) Create(ctx context.Context, p *reel.Project) error {
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	_, err := r.coll.InsertOne(ctx, p)
	return err
}

// FindByID 根据ID查询
func (r *ProjectRepo) FindByID(ctx context.Context, id string) (*reel.Project, error) {
	var p reel.Project
	if err := r.coll.FindOne(ctx, bson.M{"id": id}).Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListByUser 查询用户的项目（按创建时间倒序）
func (r *ProjectRepo) ListByUser(ctx context.Context, userID string, limit int64) ([]*reel.Project, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := r.coll.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	projects := []*reel.Project{}
	if err := cur.All(ctx, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// SetPhase 更新阶段，errMsg 为空时清除错误
func (r *ProjectRepo) SetPhase(ctx context.Context, id string, phase reel.Phase, errMsg string) error {
	return r.set(ctx, id, bson.M{"phase": phase, "error": errMsg})
}

// SetImages 覆盖图片集合
func (r *ProjectRepo) SetImages(ctx context.Context, id string, images []reel.GeneratedImage) error {
	return r.set(ctx, id, bson.M{"images": images})
}

// SetVideos 覆盖视频集合
func (r *ProjectRepo) SetVideos(ctx context.Context, id string, videos []reel.GeneratedVideo) error {
	return r.set(ctx, id, bson.M{"videos": videos})
}

// SetTransaction 关联支付交易
func (r *ProjectRepo) SetTransaction(ctx context.Context, id, transactionID string) error {
	return r.set(ctx, id, bson.M{"transaction_id": transactionID})
}

// SetFinalVideo 写入成片地址并标记完成
func (r *ProjectRepo) SetFinalVideo(ctx context.Context, id, url string) error {
	return r.set(ctx, id, bson.M{"final_video_url": url, "phase": reel.PhaseComplete, "error": ""})
}

func (r *ProjectRepo) set(ctx context.Context, id string, fields bson.M) error {
	fields["updated_at"] = time.Now()
	res, err := r.coll.UpdateOne(ctx, bson.M{"id": id}, bson.M{"$set": fields})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
