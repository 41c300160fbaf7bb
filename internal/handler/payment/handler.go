package payment

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"opentry/internal/handler"
	"opentry/internal/pkg/ctxutil"
	"opentry/internal/service"
)

// webhook 请求体上限
const maxWebhookBody = 1 << 20

// Handler 支付处理器
type Handler struct {
	paymentService *service.PaymentService
}

// NewHandler 创建支付处理器
func NewHandler(paymentService *service.PaymentService) *Handler {
	return &Handler{paymentService: paymentService}
}

// Check 主动查询一次交易状态（前端“我已支付”按钮）
// @Summary      查询支付状态
// @Description  服务端向 Razorpay 查询二维码收款记录，以服务端观察结果为准
// @Tags         支付
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "交易ID"
// @Success      200  {object}  httputil.SuccessResponse{data=service.PaymentStatus}
// @Failure      404  {object}  httputil.ErrorResponse
// @Router       /api/v1/payments/{id}/check [post]
func (h *Handler) Check(c *gin.Context) {
	ctx := c.Request.Context()
	userID, _ := ctxutil.GetUserID(ctx)
	status, err := h.paymentService.Check(ctx, userID, c.Param("id"))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, status)
}

// Verify 校验 Razorpay Checkout 回调：签名、订单归属与支付金额
// @Summary  校验 Checkout 支付
// @Tags     支付
// @Accept   json
// @Produce  json
// @Security BearerAuth
// @Param    request  body      service.CheckoutVerification  true  "Checkout 回调参数"
// @Success  200      {object}  httputil.SuccessResponse{data=service.PaymentStatus}
// @Failure  400      {object}  httputil.ErrorResponse
// @Failure  401      {object}  httputil.ErrorResponse
// @Failure  409      {object}  httputil.ErrorResponse
// @Router   /api/v1/payments/verify [post]
func (h *Handler) Verify(c *gin.Context) {
	var req service.CheckoutVerification
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BadRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	userID, _ := ctxutil.GetUserID(ctx)
	status, err := h.paymentService.VerifyCheckout(ctx, userID, req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, status)
}

// Webhook Razorpay webhook 回调，无需登录
// @Summary      Razorpay webhook
// @Tags         支付
// @Accept       json
// @Produce      json
// @Param        X-Razorpay-Signature  header    string  true   "HMAC-SHA256 签名"
// @Param        X-Razorpay-Event-Id   header    string  false  "事件ID"
// @Success      200  {object}  map[string]bool
// @Failure      400  {object}  httputil.ErrorResponse
// @Failure      401  {object}  httputil.ErrorResponse
// @Router       /api/v1/payments/razorpay/webhook [post]
func (h *Handler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		log.Warn().Err(err).Msg("failed to read razorpay webhook body")
		handler.BadRequest(c, err)
		return
	}

	err = h.paymentService.HandleWebhook(c.Request.Context(), service.WebhookRequest{
		Body:      body,
		Signature: c.GetHeader("X-Razorpay-Signature"),
		EventID:   c.GetHeader("X-Razorpay-Event-Id"),
	})
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
