// Package razorpay 封装 Razorpay UPI 二维码、支付查询与签名校验
package razorpay

import (
	"context"
	"errors"
	"fmt"
	"time"

	rzp "github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"
	"github.com/rs/zerolog/log"
)

// 支付状态（Razorpay payment.status）
const (
	PaymentStatusCreated    = "created"
	PaymentStatusAuthorized = "authorized"
	PaymentStatusCaptured   = "captured"
	PaymentStatusFailed     = "failed"
	PaymentStatusRefunded   = "refunded"
)

// Config Razorpay 配置
type Config struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
}

// QRRequest 创建 UPI 二维码请求
type QRRequest struct {
	TransactionID string
	UserID        string
	Amount        int // 金额（卢比）
	CloseBy       time.Time
}

// QRCode 二维码
type QRCode struct {
	ID       string `json:"qr_id"`
	ImageURL string `json:"qr_image_url"`
	ShortURL string `json:"payment_link"`
	CloseBy  int64  `json:"close_by"`
}

// OrderRequest 创建 Checkout 订单请求
type OrderRequest struct {
	TransactionID string
	UserID        string
	Amount        int // 金额（卢比）
}

// Order Checkout 订单
type Order struct {
	ID     string `json:"order_id"`
	Amount int64  `json:"amount"` // 单位：paise
}

// Payment 一笔支付
type Payment struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Amount  int64  `json:"amount"` // 单位：paise
	OrderID string `json:"order_id,omitempty"`
}

// Client Razorpay 客户端
type Client struct {
	rz            *rzp.Client
	keySecret     string
	webhookSecret string
}

// NewClient 创建 Razorpay 客户端
func NewClient(cfg Config) (*Client, error) {
	if cfg.KeyID == "" || cfg.KeySecret == "" {
		return nil, errors.New("Razorpay keys not configured")
	}
	return &Client{
		rz:            rzp.NewClient(cfg.KeyID, cfg.KeySecret),
		keySecret:     cfg.KeySecret,
		webhookSecret: cfg.WebhookSecret,
	}, nil
}

// CreateUPIQR 创建一次性、固定金额的 UPI 二维码
func (c *Client) CreateUPIQR(ctx context.Context, req QRRequest) (*QRCode, error) {
	short := req.TransactionID
	if len(short) > 8 {
		short = short[:8]
	}
	data := map[string]interface{}{
		"type":           "upi_qr",
		"name":           "Opentry Video - " + short,
		"usage":          "single_use",
		"fixed_amount":   true,
		"payment_amount": req.Amount * 100,
		"description":    "Opentry Video Generation",
		"close_by":       req.CloseBy.Unix(),
		"notes": map[string]interface{}{
			"user_id":        req.UserID,
			"transaction_id": req.TransactionID,
		},
	}

	body, err := c.rz.QrCode.Create(data, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay create qr: %w", err)
	}

	qr := &QRCode{
		ID:       stringField(body, "id"),
		ImageURL: stringField(body, "image_url"),
		ShortURL: stringField(body, "short_url"),
		CloseBy:  req.CloseBy.Unix(),
	}
	if qr.ID == "" {
		return nil, errors.New("razorpay create qr: empty qr id")
	}

	log.Info().Str("qr_id", qr.ID).Str("transaction_id", req.TransactionID).Msg("razorpay qr created")
	return qr, nil
}

// CreateOrder 创建与交易绑定的 Checkout 订单，receipt 与 notes 记录交易ID
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	body, err := c.rz.Order.Create(map[string]interface{}{
		"amount":   req.Amount * 100,
		"currency": "INR",
		"receipt":  req.TransactionID,
		"notes": map[string]interface{}{
			"user_id":        req.UserID,
			"transaction_id": req.TransactionID,
		},
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay create order: %w", err)
	}
	order := &Order{ID: stringField(body, "id"), Amount: int64Field(body, "amount")}
	if order.ID == "" {
		return nil, errors.New("razorpay create order: empty order id")
	}
	log.Info().Str("order_id", order.ID).Str("transaction_id", req.TransactionID).Msg("razorpay order created")
	return order, nil
}

// FetchPayment 查询单笔支付
func (c *Client) FetchPayment(ctx context.Context, paymentID string) (*Payment, error) {
	body, err := c.rz.Payment.Fetch(paymentID, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay fetch payment: %w", err)
	}
	p := paymentOf(body)
	return &p, nil
}

// FetchQRPayments 查询二维码下的支付记录
func (c *Client) FetchQRPayments(ctx context.Context, qrID string) ([]Payment, error) {
	body, err := c.rz.QrCode.FetchPayments(qrID, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay fetch qr payments: %w", err)
	}
	return parsePayments(body), nil
}

// VerifyWebhook 校验 webhook 原始请求体的 HMAC-SHA256 签名
func (c *Client) VerifyWebhook(body []byte, signature string) bool {
	if c.webhookSecret == "" || signature == "" {
		return false
	}
	return utils.VerifyWebhookSignature(string(body), signature, c.webhookSecret)
}

// VerifyCheckout 校验 Checkout 回调签名 HMAC(order_id|payment_id)
func (c *Client) VerifyCheckout(orderID, paymentID, signature string) bool {
	if orderID == "" || paymentID == "" || signature == "" {
		return false
	}
	return utils.VerifyPaymentSignature(map[string]interface{}{
		"razorpay_order_id":   orderID,
		"razorpay_payment_id": paymentID,
	}, signature, c.keySecret)
}

// FirstCaptured 返回第一笔已捕获的支付
func FirstCaptured(payments []Payment) (Payment, bool) {
	for _, p := range payments {
		if p.Status == PaymentStatusCaptured {
			return p, true
		}
	}
	return Payment{}, false
}

func parsePayments(body map[string]interface{}) []Payment {
	items, _ := body["items"].([]interface{})
	payments := make([]Payment, 0, len(items))
	for _, it := range items {
		m, ok := it.(map[string]interface{})
		if !ok {
			continue
		}
		payments = append(payments, paymentOf(m))
	}
	return payments
}

func paymentOf(m map[string]interface{}) Payment {
	return Payment{
		ID:      stringField(m, "id"),
		Status:  stringField(m, "status"),
		Amount:  int64Field(m, "amount"),
		OrderID: stringField(m, "order_id"),
	}
}

func stringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func int64Field(m map[string]interface{}, key string) int64 {
	switch v := m[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}
