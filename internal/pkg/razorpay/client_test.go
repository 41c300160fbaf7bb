package razorpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func sign(secret, payload string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}

func TestSignatures(t *testing.T) {
	Convey("Razorpay 签名校验", t, func() {
		c, err := NewClient(Config{KeyID: "rzp_test", KeySecret: "key-secret", WebhookSecret: "hook-secret"})
		So(err, ShouldBeNil)

		body := []byte(`{"event":"payment.captured","payload":{}}`)

		Convey("webhook 签名匹配", func() {
			So(c.VerifyWebhook(body, sign("hook-secret", string(body))), ShouldBeTrue)
		})

		Convey("webhook 签名不匹配或缺失", func() {
			So(c.VerifyWebhook(body, sign("wrong", string(body))), ShouldBeFalse)
			So(c.VerifyWebhook(body, ""), ShouldBeFalse)
		})

		Convey("checkout 签名基于 order_id|payment_id", func() {
			sig := sign("key-secret", "order_1|pay_1")
			So(c.VerifyCheckout("order_1", "pay_1", sig), ShouldBeTrue)
			So(c.VerifyCheckout("order_1", "pay_2", sig), ShouldBeFalse)
			So(c.VerifyCheckout("", "pay_1", sig), ShouldBeFalse)
		})
	})

	Convey("缺少密钥时无法创建客户端", t, func() {
		_, err := NewClient(Config{KeyID: "rzp_test"})
		So(err, ShouldNotBeNil)
	})
}

func TestPayments(t *testing.T) {
	Convey("解析二维码支付列表", t, func() {
		payments := parsePayments(map[string]interface{}{
			"count": float64(2),
			"items": []interface{}{
				map[string]interface{}{"id": "pay_1", "status": "failed", "amount": float64(2900)},
				map[string]interface{}{"id": "pay_2", "status": "captured", "amount": float64(2900), "order_id": "order_5"},
				"garbage",
			},
		})
		So(len(payments), ShouldEqual, 2)
		So(payments[1].Amount, ShouldEqual, 2900)
		So(payments[1].OrderID, ShouldEqual, "order_5")
		So(payments[0].OrderID, ShouldBeEmpty)

		p, ok := FirstCaptured(payments)
		So(ok, ShouldBeTrue)
		So(p.ID, ShouldEqual, "pay_2")

		_, ok = FirstCaptured(payments[:1])
		So(ok, ShouldBeFalse)
	})
}

func TestParseWebhookEvent(t *testing.T) {
	Convey("解析 webhook 事件", t, func() {
		Convey("payment.captured 携带订单与备注", func() {
			ev, err := ParseWebhookEvent([]byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_9","order_id":"order_3","status":"captured","notes":{"transaction_id":"tx-1"}}}}}`))
			So(err, ShouldBeNil)
			So(ev.Paid(), ShouldBeTrue)
			So(ev.Failed(), ShouldBeFalse)
			So(ev.HasPayment(), ShouldBeTrue)
			So(ev.PaymentID, ShouldEqual, "pay_9")
			So(ev.OrderID, ShouldEqual, "order_3")
			So(ev.TransactionID, ShouldEqual, "tx-1")
		})

		Convey("二维码入账事件带 qr_code 实体", func() {
			ev, err := ParseWebhookEvent([]byte(`{"event":"qr_code.credited","payload":{"payment":{"entity":{"id":"pay_1","status":"captured"}},"qr_code":{"entity":{"id":"qr_7","notes":{"transaction_id":"tx-2"}}}}}`))
			So(err, ShouldBeNil)
			So(ev.Paid(), ShouldBeTrue)
			So(ev.QRCodeID, ShouldEqual, "qr_7")
			So(ev.TransactionID, ShouldEqual, "tx-2")
		})

		Convey("支付实体的 notes 为空数组时读取二维码备注", func() {
			ev, err := ParseWebhookEvent([]byte(`{"event":"qr_code.credited","payload":{"payment":{"entity":{"id":"pay_3","status":"captured","notes":[]}},"qr_code":{"entity":{"id":"qr_8","notes":{"transaction_id":"tx-3"}}}}}`))
			So(err, ShouldBeNil)
			So(ev.PaymentID, ShouldEqual, "pay_3")
			So(ev.QRCodeID, ShouldEqual, "qr_8")
			So(ev.TransactionID, ShouldEqual, "tx-3")

			ev, err = ParseWebhookEvent([]byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_4","notes":[]}},"qr_code":{"entity":{"id":"qr_9","notes":[]}}}}`))
			So(err, ShouldBeNil)
			So(ev.TransactionID, ShouldBeEmpty)
			So(ev.QRCodeID, ShouldEqual, "qr_9")
		})

		Convey("payment.failed", func() {
			ev, err := ParseWebhookEvent([]byte(`{"event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_2","status":"failed"}}}}`))
			So(err, ShouldBeNil)
			So(ev.Failed(), ShouldBeTrue)
		})

		Convey("没有支付实体", func() {
			ev, err := ParseWebhookEvent([]byte(`{"event":"order.paid","payload":{}}`))
			So(err, ShouldBeNil)
			So(ev.HasPayment(), ShouldBeFalse)
		})

		Convey("非法 JSON", func() {
			_, err := ParseWebhookEvent([]byte(`not json`))
			So(err, ShouldNotBeNil)
		})
	})
}
