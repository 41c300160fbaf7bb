package razorpay

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Webhook 事件类型
const (
	EventPaymentCaptured   = "payment.captured"
	EventPaymentAuthorized = "payment.authorized"
	EventPaymentFailed     = "payment.failed"
	EventQRCodeCredited    = "qr_code.credited"
)

// WebhookEvent 从 webhook 请求体中提取的支付信息
type WebhookEvent struct {
	Event         string
	PaymentID     string
	OrderID       string
	QRCodeID      string
	TransactionID string // notes.transaction_id
	Status        string
}

// Paid 事件是否表示支付成功
func (e *WebhookEvent) Paid() bool {
	switch e.Event {
	case EventPaymentCaptured, EventPaymentAuthorized, EventQRCodeCredited:
		return true
	}
	return false
}

// Failed 事件是否表示支付失败
func (e *WebhookEvent) Failed() bool {
	return e.Event == EventPaymentFailed
}

// HasPayment 是否携带支付实体
func (e *WebhookEvent) HasPayment() bool {
	return e.PaymentID != ""
}

type webhookBody struct {
	Event   string `json:"event"`
	Payload struct {
		Payment *struct {
			Entity struct {
				ID      string          `json:"id"`
				OrderID string          `json:"order_id"`
				Status  string          `json:"status"`
				Notes   json.RawMessage `json:"notes"`
			} `json:"entity"`
		} `json:"payment"`
		QRCode *struct {
			Entity struct {
				ID    string          `json:"id"`
				Notes json.RawMessage `json:"notes"`
			} `json:"entity"`
		} `json:"qr_code"`
	} `json:"payload"`
}

// ParseWebhookEvent 解析 webhook 请求体（签名需事先校验）
func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	var raw webhookBody
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("razorpay webhook: %w", err)
	}

	ev := &WebhookEvent{Event: raw.Event}
	if p := raw.Payload.Payment; p != nil {
		ev.PaymentID = p.Entity.ID
		ev.OrderID = p.Entity.OrderID
		ev.Status = p.Entity.Status
		ev.TransactionID = noteString(p.Entity.Notes, "transaction_id")
	}
	if q := raw.Payload.QRCode; q != nil {
		ev.QRCodeID = q.Entity.ID
		if ev.TransactionID == "" {
			ev.TransactionID = noteString(q.Entity.Notes, "transaction_id")
		}
	}
	return ev, nil
}

// noteString 读取 notes 中的字符串字段；notes 为空时 Razorpay 发送 []，按无备注处理
func noteString(raw json.RawMessage, key string) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return ""
	}
	var notes map[string]any
	if err := json.Unmarshal(raw, &notes); err != nil {
		return ""
	}
	s, _ := notes[key].(string)
	return s
}
