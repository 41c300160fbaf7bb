package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"

	"opentry/internal/model/auth"
	"opentry/internal/model/payment"
	"opentry/internal/model/production"
	"opentry/internal/model/reel"
	"opentry/internal/model/social"
)

// EnsureIndexes 启动时创建用户、项目、交易、制作与社交绑定的索引
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	models := []Model{
		&auth.User{},
		&reel.Project{},
		&payment.Transaction{},
		&production.Production{},
		&social.Connection{},
	}
	return EnsureAllIndexes(ctx, db, models...)
}
