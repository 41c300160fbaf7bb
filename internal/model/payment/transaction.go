package payment

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Status 交易状态，只允许 pending -> completed / pending -> failed 一次
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal 是否为终态
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// 失败原因
const (
	ReasonExpired  = "expired"  // 二维码过期未支付
	ReasonDeclined = "declined" // 支付被拒
)

// 终态写入来源
const (
	SettledByPoll     = "poll"
	SettledByWebhook  = "webhook"
	SettledByCheckout = "checkout"
	SettledBySweeper  = "sweeper"
)

// QRInfo 厂商返回的二维码信息
type QRInfo struct {
	VendorRef   string
	OrderRef    string // 可选，Checkout 订单ID
	ImageURL    string
	PaymentLink string
	CloseBy     time.Time
}

// Settlement 一次终态写入
type Settlement struct {
	Status    Status
	PaymentID string
	Reason    string
	By        string
}

// Snapshot 发起支付时的输入快照
type Snapshot struct {
	ProjectID  string `bson:"project_id" json:"project_id"`
	TemplateID string `bson:"template_id" json:"template_id"`
	ShotCount  int    `bson:"shot_count" json:"shot_count"`
}

// Transaction 支付交易
type Transaction struct {
	ID            string     `bson:"id" json:"id"`
	UserID        string     `bson:"user_id" json:"user_id"`
	Amount        int        `bson:"amount" json:"amount"` // 卢比
	Currency      string     `bson:"currency" json:"currency"`
	Status        Status     `bson:"status" json:"status"`
	Snapshot      Snapshot   `bson:"snapshot" json:"snapshot"`
	VendorRef     string     `bson:"vendor_ref,omitempty" json:"vendor_ref,omitempty"` // Razorpay 二维码ID
	OrderRef      string     `bson:"order_ref,omitempty" json:"order_ref,omitempty"`   // Razorpay 订单ID，Checkout 校验时必须一致
	QRImageURL    string     `bson:"qr_image_url,omitempty" json:"qr_image_url,omitempty"`
	PaymentLink   string     `bson:"payment_link,omitempty" json:"payment_link,omitempty"`
	CloseBy       time.Time  `bson:"close_by" json:"close_by"`
	PaymentID     string     `bson:"payment_id,omitempty" json:"payment_id,omitempty"`
	FailureReason string     `bson:"failure_reason,omitempty" json:"failure_reason,omitempty"`
	SettledBy     string     `bson:"settled_by,omitempty" json:"settled_by,omitempty"`
	PaidAt        *time.Time `bson:"paid_at,omitempty" json:"paid_at,omitempty"`
	CreatedAt     time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `bson:"updated_at" json:"updated_at"`
}

// Collection 返回集合名称
func (t *Transaction) Collection() string { return "transactions" }

// EnsureIndexes 创建和维护索引
func (t *Transaction) EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(t.Collection())
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetName("uniq_id").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_user_created"),
		},
		{
			Keys:    bson.D{{Key: "vendor_ref", Value: 1}},
			Options: options.Index().SetName("idx_vendor_ref").SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "order_ref", Value: 1}},
			Options: options.Index().SetName("idx_order_ref").SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "payment_id", Value: 1}},
			Options: options.Index().SetName("idx_payment_id").SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "close_by", Value: 1}},
			Options: options.Index().SetName("idx_status_close_by"),
		},
	}
	_, err := coll.Indexes().CreateMany(ctx, indexes)
	return err
}
