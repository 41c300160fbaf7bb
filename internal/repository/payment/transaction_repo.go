package payment

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"opentry/internal/model/payment"
)

// TransactionRepository 交易仓库接口（供 service 层依赖）
type TransactionRepository interface {
	Create(ctx context.Context, tx *payment.Transaction) error
	FindByID(ctx context.Context, id string) (*payment.Transaction, error)
	FindByVendorRef(ctx context.Context, vendorRef string) (*payment.Transaction, error)
	FindByPaymentID(ctx context.Context, paymentID string) (*payment.Transaction, error)
	AttachQR(ctx context.Context, id string, qr payment.QRInfo) error
	Settle(ctx context.Context, id string, s payment.Settlement) (bool, error)
	ListExpiredPending(ctx context.Context, now time.Time, limit int64) ([]*payment.Transaction, error)
}

// TransactionRepo 交易仓库
type TransactionRepo struct {
	coll *mongo.Collection
}

// NewTransactionRepo 创建交易仓库
func NewTransactionRepo(db *mongo.Database) *TransactionRepo {
	var tx payment.Transaction
	return &TransactionRepo{coll: db.Collection(tx.Collection())}
}

// Create 创建交易
func (r *TransactionRepo) Create(ctx context.Context, tx *payment.Transaction) error {
	now := time.Now()
	tx.CreatedAt = now
	tx.UpdatedAt = now
	_, err := r.coll.InsertOne(ctx, tx)
	return err
}

// FindByID 根据ID查询
func (r *TransactionRepo) FindByID(ctx context.Context, id string) (*payment.Transaction, error) {
	var tx payment.Transaction
	if err := r.coll.FindOne(ctx, bson.M{"id": id}).Decode(&tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// FindByVendorRef 根据厂商引用（二维码ID或订单ID）查询
func (r *TransactionRepo) FindByVendorRef(ctx context.Context, vendorRef string) (*payment.Transaction, error) {
	return r.findOne(ctx, bson.M{"$or": bson.A{
		bson.M{"vendor_ref": vendorRef},
		bson.M{"order_ref": vendorRef},
	}})
}

// FindByPaymentID 查询已记录该支付ID的交易
func (r *TransactionRepo) FindByPaymentID(ctx context.Context, paymentID string) (*payment.Transaction, error) {
	return r.findOne(ctx, bson.M{"payment_id": paymentID})
}

func (r *TransactionRepo) findOne(ctx context.Context, filter bson.M) (*payment.Transaction, error) {
	var tx payment.Transaction
	if err := r.coll.FindOne(ctx, filter).Decode(&tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// AttachQR 记录二维码信息
func (r *TransactionRepo) AttachQR(ctx context.Context, id string, qr payment.QRInfo) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"id": id}, bson.M{"$set": bson.M{
		"vendor_ref":   qr.VendorRef,
		"order_ref":    qr.OrderRef,
		"qr_image_url": qr.ImageURL,
		"payment_link": qr.PaymentLink,
		"close_by":     qr.CloseBy,
		"updated_at":   time.Now(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// Settle 条件更新：仅当交易仍为 pending 时写入终态
// 返回本次调用是否生效，并发的 webhook 与轮询只有一个会成功
func (r *TransactionRepo) Settle(ctx context.Context, id string, s payment.Settlement) (bool, error) {
	now := time.Now()
	set := bson.M{
		"status":     s.Status,
		"settled_by": s.By,
		"updated_at": now,
	}
	if s.PaymentID != "" {
		set["payment_id"] = s.PaymentID
	}
	if s.Reason != "" {
		set["failure_reason"] = s.Reason
	}
	if s.Status == payment.StatusCompleted {
		set["paid_at"] = now
	}

	res, err := r.coll.UpdateOne(ctx,
		bson.M{"id": id, "status": payment.StatusPending},
		bson.M{"$set": set},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// ListExpiredPending 查询已过期仍未支付的交易
func (r *TransactionRepo) ListExpiredPending(ctx context.Context, now time.Time, limit int64) ([]*payment.Transaction, error) {
	opts := options.Find().SetSort(bson.D{{Key: "close_by", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	filter := bson.M{
		"status":   payment.StatusPending,
		"close_by": bson.M{"$lt": now},
	}
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var txs []*payment.Transaction
	if err := cur.All(ctx, &txs); err != nil {
		return nil, err
	}
	return txs, nil
}
