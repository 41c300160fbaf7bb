package production

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"opentry/internal/model/production"
)

// ProductionRepository 广告制作仓库接口（供 service 层依赖）
type ProductionRepository interface {
	Create(ctx context.Context, p *production.Production) error
	FindByID(ctx context.Context, id string) (*production.Production, error)
	SaveState(ctx context.Context, id string, state production.State) error
}

// ProductionRepo 广告制作仓库
type ProductionRepo struct {
	coll *mongo.Collection
}

// NewProductionRepo 创建仓库
func NewProductionRepo(db *mongo.Database) *ProductionRepo {
	var p production.Production
	return &ProductionRepo{coll: db.Collection(p.Collection())}
}

// Create 创建制作任务
func (r *ProductionRepo) Create(ctx context.Context, p *production.Production) error {
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	_, err := r.coll.InsertOne(ctx, p)
	return err
}

// FindByID 根据ID查询
func (r *ProductionRepo) FindByID(ctx context.Context, id string) (*production.Production, error) {
	var p production.Production
	if err := r.coll.FindOne(ctx, bson.M{"id": id}).Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// SaveState 覆盖流程状态
func (r *ProductionRepo) SaveState(ctx context.Context, id string, state production.State) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"id": id}, bson.M{"$set": bson.M{
		"state":      state,
		"updated_at": time.Now(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
