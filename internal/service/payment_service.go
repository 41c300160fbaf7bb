package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"

	"opentry/internal/model/payment"
	"opentry/internal/pkg/cache"
	"opentry/internal/pkg/id"
	"opentry/internal/pkg/razorpay"
	paymentRepo "opentry/internal/repository/payment"
)

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrPaymentUnavailable  = errors.New("Razorpay keys not configured")
	ErrMissingSignature    = errors.New("No signature")
	ErrInvalidSignature    = errors.New("Invalid signature")
	ErrPaymentExpired      = errors.New("payment window expired")
	ErrPaymentFailed       = errors.New("payment failed")
	ErrCheckoutMismatch    = errors.New("checkout does not match transaction")
	ErrPaymentReused       = errors.New("payment already used by another transaction")
)

// PaymentGateway 支付厂商能力（由 razorpay.Client 实现）
type PaymentGateway interface {
	CreateUPIQR(ctx context.Context, req razorpay.QRRequest) (*razorpay.QRCode, error)
	FetchQRPayments(ctx context.Context, qrID string) ([]razorpay.Payment, error)
	CreateOrder(ctx context.Context, req razorpay.OrderRequest) (*razorpay.Order, error)
	FetchPayment(ctx context.Context, paymentID string) (*razorpay.Payment, error)
	VerifyWebhook(body []byte, signature string) bool
	VerifyCheckout(orderID, paymentID, signature string) bool
}

// Locker 分布式锁与事件去重（Redis 或进程内实现）
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
	MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// PaymentOptions 支付门控参数
type PaymentOptions struct {
	Window       time.Duration // 二维码有效期，默认 15m
	PollInterval time.Duration // 默认 3s
	ProceedDelay time.Duration // 默认 1.5s
}

func (o *PaymentOptions) normalize() {
	if o.Window <= 0 {
		o.Window = 15 * time.Minute
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 3 * time.Second
	}
	if o.ProceedDelay < 0 {
		o.ProceedDelay = 0
	}
}

// PaymentService 支付门控：发起二维码、查询、等待、终态写入、webhook 与过期清理
// 终态只通过 Settle 写入一次，webhook、轮询、checkout 校验与清理任务共用这一条路径
type PaymentService struct {
	txs     paymentRepo.TransactionRepository
	gateway PaymentGateway
	locker  Locker
	opts    PaymentOptions
	now     func() time.Time
}

// NewPaymentService 创建支付服务；gateway 为 nil 时发起/查询支付返回 ErrPaymentUnavailable
func NewPaymentService(txs paymentRepo.TransactionRepository, gateway PaymentGateway, locker Locker, opts PaymentOptions) *PaymentService {
	opts.normalize()
	return &PaymentService{
		txs:     txs,
		gateway: gateway,
		locker:  locker,
		opts:    opts,
		now:     time.Now,
	}
}

// PaymentSession 发起支付后返回给前端的二维码信息
type PaymentSession struct {
	TransactionID string `json:"transaction_id"`
	QRID          string `json:"qr_id"`
	QRImageURL    string `json:"qr_image_url"`
	Amount        int    `json:"amount"`
	PaymentLink   string `json:"payment_link"`
	OrderID       string `json:"order_id,omitempty"` // Checkout 订单，创建失败时为空
	CloseBy       int64  `json:"close_by"`
}

// PaymentStatus 支付状态查询结果
type PaymentStatus struct {
	TransactionID string         `json:"transaction_id"`
	Paid          bool           `json:"paid"`
	Status        payment.Status `json:"status"`
	PaymentID     string         `json:"payment_id,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	PaymentsCount int            `json:"payments_count"`
}

// Start 创建待支付交易并申请一次性 UPI 二维码
func (s *PaymentService) Start(ctx context.Context, userID string, snap payment.Snapshot, amount int) (*PaymentSession, error) {
	if s.gateway == nil {
		return nil, ErrPaymentUnavailable
	}

	closeBy := s.now().Add(s.opts.Window)
	tx := &payment.Transaction{
		ID:       id.New(),
		UserID:   userID,
		Amount:   amount,
		Currency: "INR",
		Status:   payment.StatusPending,
		Snapshot: snap,
		CloseBy:  closeBy,
	}
	if err := s.txs.Create(ctx, tx); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("failed to create transaction")
		return nil, err
	}

	qr, err := s.gateway.CreateUPIQR(ctx, razorpay.QRRequest{
		TransactionID: tx.ID,
		UserID:        userID,
		Amount:        amount,
		CloseBy:       closeBy,
	})
	if err != nil {
		log.Error().Err(err).Str("transaction_id", tx.ID).Msg("failed to create payment qr")
		if _, serr := s.Settle(ctx, tx.ID, payment.Settlement{Status: payment.StatusFailed, Reason: "qr_create_failed", By: payment.SettledByPoll}); serr != nil {
			log.Warn().Err(serr).Str("transaction_id", tx.ID).Msg("failed to settle transaction after qr error")
		}
		return nil, fmt.Errorf("create payment qr: %w", err)
	}

	// 订单只服务于 Checkout 校验，创建失败不影响二维码支付
	orderRef := ""
	order, err := s.gateway.CreateOrder(ctx, razorpay.OrderRequest{
		TransactionID: tx.ID,
		UserID:        userID,
		Amount:        amount,
	})
	if err != nil {
		log.Warn().Err(err).Str("transaction_id", tx.ID).Msg("failed to create checkout order")
	} else {
		orderRef = order.ID
	}

	if err := s.txs.AttachQR(ctx, tx.ID, payment.QRInfo{
		VendorRef:   qr.ID,
		OrderRef:    orderRef,
		ImageURL:    qr.ImageURL,
		PaymentLink: qr.ShortURL,
		CloseBy:     closeBy,
	}); err != nil {
		log.Error().Err(err).Str("transaction_id", tx.ID).Msg("failed to attach qr to transaction")
		return nil, err
	}

	log.Info().Str("transaction_id", tx.ID).Str("qr_id", qr.ID).Int("amount", amount).Msg("payment started")

	return &PaymentSession{
		TransactionID: tx.ID,
		QRID:          qr.ID,
		QRImageURL:    qr.ImageURL,
		Amount:        amount,
		PaymentLink:   qr.ShortURL,
		OrderID:       orderRef,
		CloseBy:       closeBy.Unix(),
	}, nil
}

// Transaction 查询交易；userID 非空时校验归属
func (s *PaymentService) Transaction(ctx context.Context, userID, txID string) (*payment.Transaction, error) {
	tx, err := s.txs.FindByID(ctx, txID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	if userID != "" && tx.UserID != userID {
		return nil, ErrTransactionNotFound
	}
	return tx, nil
}

// Check 查询支付状态：已是终态直接返回，否则向 Razorpay 拉取二维码下的支付
// 发现已捕获的支付即写入 completed；二维码过期仍未支付写入 failed(expired)
func (s *PaymentService) Check(ctx context.Context, userID, txID string) (*PaymentStatus, error) {
	tx, err := s.Transaction(ctx, userID, txID)
	if err != nil {
		return nil, err
	}
	if tx.Status.Terminal() {
		return statusOf(tx, 0), nil
	}
	if s.gateway == nil {
		return nil, ErrPaymentUnavailable
	}
	if tx.VendorRef == "" {
		return statusOf(tx, 0), nil
	}

	payments, err := s.gateway.FetchQRPayments(ctx, tx.VendorRef)
	if err != nil {
		return nil, fmt.Errorf("fetch qr payments: %w", err)
	}

	if p, ok := razorpay.FirstCaptured(payments); ok {
		if _, err := s.Settle(ctx, tx.ID, payment.Settlement{
			Status:    payment.StatusCompleted,
			PaymentID: p.ID,
			By:        payment.SettledByPoll,
		}); err != nil {
			return nil, err
		}
	} else if !tx.CloseBy.IsZero() && s.now().After(tx.CloseBy) {
		if _, err := s.expire(ctx, tx.ID, payment.SettledByPoll); err != nil {
			return nil, err
		}
	} else {
		return statusOf(tx, len(payments)), nil
	}

	// 无论本次是否写入成功，都以库中的终态为准
	settled, err := s.Transaction(ctx, "", tx.ID)
	if err != nil {
		return nil, err
	}
	return statusOf(settled, len(payments)), nil
}

// Await 等待交易进入终态：轮询与过期计时在同一个 select 中
// 支付成功后再等待 ProceedDelay 才返回；到期时最后查询一次厂商，仍未支付才写入 failed(expired)
func (s *PaymentService) Await(ctx context.Context, userID, txID string) (*PaymentStatus, error) {
	tx, err := s.Transaction(ctx, userID, txID)
	if err != nil {
		return nil, err
	}
	if tx.Status.Terminal() {
		return terminalResult(statusOf(tx, 0))
	}

	remaining := s.opts.Window
	if !tx.CloseBy.IsZero() {
		remaining = tx.CloseBy.Sub(s.now())
	}
	if remaining < 0 {
		remaining = 0
	}

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()
	expiry := time.NewTimer(remaining)
	defer expiry.Stop()
	expired := expiry.C

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case <-expired:
			if _, err := s.closeOut(ctx, tx, payment.SettledByPoll); err != nil {
				// 之后由轮询中的 Check 完成捕获或过期
				log.Warn().Err(err).Str("transaction_id", tx.ID).Msg("final payment check failed, will retry")
				expired = nil
				continue
			}
			final, err := s.Transaction(ctx, "", tx.ID)
			if err != nil {
				return nil, err
			}
			res, err := terminalResult(statusOf(final, 0))
			if err == nil {
				err = s.pause(ctx)
			}
			return res, err

		case <-ticker.C:
			res, err := s.Check(ctx, userID, txID)
			if err != nil {
				if errors.Is(err, ErrTransactionNotFound) || errors.Is(err, ErrPaymentUnavailable) {
					return nil, err
				}
				log.Warn().Err(err).Str("transaction_id", txID).Msg("payment check failed, will retry")
				continue
			}
			if !res.Status.Terminal() {
				continue
			}
			res, err = terminalResult(res)
			if err == nil {
				err = s.pause(ctx)
			}
			return res, err
		}
	}
}

// Settle 终态写入，仅当交易仍为 pending 时生效，返回本次调用是否生效
func (s *PaymentService) Settle(ctx context.Context, txID string, st payment.Settlement) (bool, error) {
	applied, err := s.txs.Settle(ctx, txID, st)
	if err != nil {
		log.Error().Err(err).Str("transaction_id", txID).Msg("failed to settle transaction")
		return false, err
	}
	ev := log.Info()
	if !applied {
		ev = log.Debug()
	}
	ev.Str("transaction_id", txID).
		Str("status", string(st.Status)).
		Str("by", st.By).
		Str("payment_id", st.PaymentID).
		Bool("applied", applied).
		Msg("transaction settle")
	return applied, nil
}

// WebhookRequest webhook 原始请求
type WebhookRequest struct {
	Body      []byte
	Signature string // X-Razorpay-Signature
	EventID   string // X-Razorpay-Event-Id，可能为空
}

// HandleWebhook 校验签名后根据支付事件写入终态
// 重复的事件ID直接忽略；处理失败时撤销去重标记以便 Razorpay 重投
func (s *PaymentService) HandleWebhook(ctx context.Context, req WebhookRequest) error {
	if req.Signature == "" {
		log.Warn().Msg("razorpay webhook without signature")
		return ErrMissingSignature
	}
	if s.gateway == nil || !s.gateway.VerifyWebhook(req.Body, req.Signature) {
		log.Warn().Msg("razorpay webhook signature mismatch")
		return ErrInvalidSignature
	}

	ev, err := razorpay.ParseWebhookEvent(req.Body)
	if err != nil {
		log.Warn().Err(err).Msg("razorpay webhook body is not valid json")
		return nil
	}

	dedupKey := ""
	if req.EventID != "" && s.locker != nil {
		key := cache.WebhookEventKeyPrefix + req.EventID
		first, err := s.locker.MarkOnce(ctx, key, cache.WebhookEventTTL)
		switch {
		case err != nil:
			log.Warn().Err(err).Str("event_id", req.EventID).Msg("webhook dedup unavailable")
		case !first:
			log.Info().Str("event_id", req.EventID).Str("event", ev.Event).Msg("duplicate razorpay webhook ignored")
			return nil
		default:
			dedupKey = key
		}
	}

	if err := s.applyWebhookEvent(ctx, ev); err != nil {
		if dedupKey != "" {
			if uerr := s.locker.Unlock(ctx, dedupKey); uerr != nil {
				log.Warn().Err(uerr).Str("event_id", req.EventID).Msg("failed to clear webhook dedup key")
			}
		}
		return err
	}
	return nil
}

func (s *PaymentService) applyWebhookEvent(ctx context.Context, ev *razorpay.WebhookEvent) error {
	log.Info().Str("event", ev.Event).Str("payment_id", ev.PaymentID).Msg("razorpay webhook received")

	if !ev.HasPayment() {
		return nil
	}
	if !ev.Paid() && !ev.Failed() {
		log.Info().Str("event", ev.Event).Msg("unhandled razorpay event")
		return nil
	}

	tx, err := s.locate(ctx, ev)
	if err != nil {
		return err
	}
	if tx == nil {
		log.Warn().
			Str("event", ev.Event).
			Str("order_id", ev.OrderID).
			Str("qr_id", ev.QRCodeID).
			Msg("no transaction matches razorpay event")
		return nil
	}

	st := payment.Settlement{PaymentID: ev.PaymentID, By: payment.SettledByWebhook}
	if ev.Paid() {
		st.Status = payment.StatusCompleted
	} else {
		st.Status = payment.StatusFailed
		st.Reason = payment.ReasonDeclined
	}
	_, err = s.Settle(ctx, tx.ID, st)
	return err
}

// locate 依次按备注中的交易ID、订单ID、二维码ID定位交易
func (s *PaymentService) locate(ctx context.Context, ev *razorpay.WebhookEvent) (*payment.Transaction, error) {
	if ev.TransactionID != "" {
		tx, err := s.txs.FindByID(ctx, ev.TransactionID)
		if err == nil {
			return tx, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, err
		}
	}
	for _, ref := range []string{ev.OrderID, ev.QRCodeID} {
		if ref == "" {
			continue
		}
		tx, err := s.txs.FindByVendorRef(ctx, ref)
		if err == nil {
			return tx, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, err
		}
	}
	return nil, nil
}

// CheckoutVerification Razorpay Checkout 回调参数
type CheckoutVerification struct {
	TransactionID string `json:"transaction_id" binding:"required"`
	OrderID       string `json:"razorpay_order_id" binding:"required"`
	PaymentID     string `json:"razorpay_payment_id" binding:"required"`
	Signature     string `json:"razorpay_signature" binding:"required"`
}

// VerifyCheckout 服务端校验 checkout 回调：签名、订单归属、支付未被其他交易使用，
// 再向 Razorpay 查询该支付的订单与金额，全部一致才写入 completed
func (s *PaymentService) VerifyCheckout(ctx context.Context, userID string, req CheckoutVerification) (*PaymentStatus, error) {
	tx, err := s.Transaction(ctx, userID, req.TransactionID)
	if err != nil {
		return nil, err
	}
	if s.gateway == nil {
		return nil, ErrPaymentUnavailable
	}
	if !s.gateway.VerifyCheckout(req.OrderID, req.PaymentID, req.Signature) {
		log.Warn().Str("transaction_id", tx.ID).Msg("checkout signature mismatch")
		return nil, ErrInvalidSignature
	}
	if tx.OrderRef == "" || req.OrderID != tx.OrderRef {
		log.Warn().Str("transaction_id", tx.ID).Str("order_id", req.OrderID).Msg("checkout order does not belong to transaction")
		return nil, ErrCheckoutMismatch
	}

	used, err := s.txs.FindByPaymentID(ctx, req.PaymentID)
	switch {
	case err == nil && used.ID != tx.ID:
		log.Warn().Str("transaction_id", tx.ID).Str("payment_id", req.PaymentID).Str("used_by", used.ID).Msg("checkout payment reused")
		return nil, ErrPaymentReused
	case err != nil && !errors.Is(err, mongo.ErrNoDocuments):
		return nil, err
	}

	if tx.Status.Terminal() {
		return statusOf(tx, 0), nil
	}

	p, err := s.gateway.FetchPayment(ctx, req.PaymentID)
	if err != nil {
		return nil, fmt.Errorf("fetch payment: %w", err)
	}
	if p.OrderID != tx.OrderRef || p.Amount != int64(tx.Amount)*100 {
		log.Warn().
			Str("transaction_id", tx.ID).
			Str("payment_order_id", p.OrderID).
			Int64("payment_amount", p.Amount).
			Msg("checkout payment does not match transaction")
		return nil, ErrCheckoutMismatch
	}
	if p.Status != razorpay.PaymentStatusCaptured && p.Status != razorpay.PaymentStatusAuthorized {
		return statusOf(tx, 1), nil
	}

	if _, err := s.Settle(ctx, tx.ID, payment.Settlement{
		Status:    payment.StatusCompleted,
		PaymentID: req.PaymentID,
		By:        payment.SettledByCheckout,
	}); err != nil {
		return nil, err
	}

	final, err := s.Transaction(ctx, "", tx.ID)
	if err != nil {
		return nil, err
	}
	return statusOf(final, 0), nil
}

// SweepExpired 处理已过期仍为 pending 的交易：厂商已捕获的写入 completed，其余写入 failed(expired)
// 返回本次写入过期的条数；单条查询失败时跳过，留给下一轮
func (s *PaymentService) SweepExpired(ctx context.Context) (int, error) {
	txs, err := s.txs.ListExpiredPending(ctx, s.now(), 100)
	if err != nil {
		return 0, err
	}
	swept := 0
	for _, tx := range txs {
		applied, err := s.closeOut(ctx, tx, payment.SettledBySweeper)
		if err != nil {
			log.Warn().Err(err).Str("transaction_id", tx.ID).Msg("failed to close out expired transaction")
			continue
		}
		if applied {
			swept++
		}
	}
	if swept > 0 {
		log.Info().Int("count", swept).Msg("expired transactions swept")
	}
	return swept, nil
}

// closeOut 到期结算：先向厂商确认二维码下没有已捕获的支付，再写入过期
// 返回是否写入了过期；未配置网关或没有二维码时直接过期
func (s *PaymentService) closeOut(ctx context.Context, tx *payment.Transaction, by string) (bool, error) {
	if s.gateway != nil && tx.VendorRef != "" {
		payments, err := s.gateway.FetchQRPayments(ctx, tx.VendorRef)
		if err != nil {
			return false, fmt.Errorf("final payment check: %w", err)
		}
		if p, ok := razorpay.FirstCaptured(payments); ok {
			_, err := s.Settle(ctx, tx.ID, payment.Settlement{
				Status:    payment.StatusCompleted,
				PaymentID: p.ID,
				By:        by,
			})
			return false, err
		}
	}
	return s.expire(ctx, tx.ID, by)
}

func (s *PaymentService) expire(ctx context.Context, txID, by string) (bool, error) {
	return s.Settle(ctx, txID, payment.Settlement{
		Status: payment.StatusFailed,
		Reason: payment.ReasonExpired,
		By:     by,
	})
}

func (s *PaymentService) pause(ctx context.Context) error {
	if s.opts.ProceedDelay <= 0 {
		return nil
	}
	t := time.NewTimer(s.opts.ProceedDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func statusOf(tx *payment.Transaction, count int) *PaymentStatus {
	return &PaymentStatus{
		TransactionID: tx.ID,
		Paid:          tx.Status == payment.StatusCompleted,
		Status:        tx.Status,
		PaymentID:     tx.PaymentID,
		Reason:        tx.FailureReason,
		PaymentsCount: count,
	}
}

// terminalResult 把终态映射为错误：completed 无错误，expired/其他失败返回对应错误
func terminalResult(res *PaymentStatus) (*PaymentStatus, error) {
	switch {
	case res.Paid:
		return res, nil
	case res.Reason == payment.ReasonExpired:
		return res, ErrPaymentExpired
	default:
		return res, ErrPaymentFailed
	}
}
