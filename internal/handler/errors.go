package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"opentry/internal/catalog"
	"opentry/internal/pkg/ark"
	"opentry/internal/pkg/creatomate"
	"opentry/internal/pkg/gateway"
	httputil "opentry/internal/pkg/http"
	"opentry/internal/pkg/httpclient"
	"opentry/internal/pkg/storage"
	"opentry/internal/production"
	"opentry/internal/reel"
	"opentry/internal/service"
)

// Status 把业务错误映射为 HTTP 状态码与业务错误码
func Status(err error) (int, int) {
	var statusErr *httpclient.StatusError

	switch {
	case errors.Is(err, service.ErrProjectNotFound),
		errors.Is(err, service.ErrTransactionNotFound),
		errors.Is(err, service.ErrProductionNotFound),
		errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrImageNotFound),
		errors.Is(err, service.ErrConnectionAbsent),
		errors.Is(err, catalog.ErrTemplateNotFound):
		return http.StatusNotFound, httputil.CodeNotFound

	case errors.Is(err, service.ErrNotEnoughReferenceImages),
		errors.Is(err, service.ErrTooManyReferenceImages),
		errors.Is(err, service.ErrInvalidReferenceImage),
		errors.Is(err, storage.ErrInvalidDataURL),
		errors.Is(err, storage.ErrDataTooLarge),
		errors.Is(err, service.ErrInvalidArchetype),
		errors.Is(err, service.ErrInvalidEmotion),
		errors.Is(err, service.ErrMissingProduct),
		errors.Is(err, service.ErrMissingProductImg),
		errors.Is(err, service.ErrMissingSession),
		errors.Is(err, service.ErrInvalidPlatform),
		errors.Is(err, service.ErrNoPlatforms),
		errors.Is(err, service.ErrWeakPassword),
		errors.Is(err, service.ErrImagesNotReady),
		errors.Is(err, service.ErrCheckoutMismatch),
		errors.Is(err, reel.ErrNothingToCompose),
		errors.Is(err, reel.ErrImageIndex):
		return http.StatusBadRequest, httputil.CodeInvalidRequest

	case errors.Is(err, service.ErrMissingSignature):
		return http.StatusBadRequest, httputil.CodeBadSignature
	case errors.Is(err, service.ErrInvalidSignature):
		return http.StatusUnauthorized, httputil.CodeBadSignature
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, httputil.CodeUnauthorized

	case errors.Is(err, service.ErrPaymentRequired),
		errors.Is(err, service.ErrPaymentExpired),
		errors.Is(err, service.ErrPaymentFailed):
		return http.StatusPaymentRequired, httputil.CodePaymentRequired

	case errors.Is(err, service.ErrUserBanned):
		return http.StatusForbidden, httputil.CodeForbidden

	case errors.Is(err, service.ErrEmailTaken),
		errors.Is(err, service.ErrPhaseBusy),
		errors.Is(err, service.ErrPaymentReused),
		errors.Is(err, service.ErrInvalidPhase),
		errors.Is(err, reel.ErrRegenerateBusy),
		errors.Is(err, production.ErrRunning):
		return http.StatusConflict, httputil.CodeConflict

	case errors.Is(err, gateway.ErrRateLimited):
		return http.StatusTooManyRequests, httputil.CodeRateLimited

	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, creatomate.ErrRenderTimeout),
		errors.Is(err, ark.ErrVideoTimeout):
		return http.StatusGatewayTimeout, httputil.CodeVendorTimeout

	case errors.Is(err, service.ErrPaymentUnavailable),
		errors.Is(err, gateway.ErrCreditsExhausted),
		errors.As(err, &statusErr):
		return http.StatusBadGateway, httputil.CodeVendor
	}
	return http.StatusInternalServerError, httputil.CodeInternal
}

// Fail 写入错误响应；内部错误不向客户端暴露细节
func Fail(c *gin.Context, err error) {
	status, code := Status(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Error().Err(err).
			Str("path", c.Request.URL.Path).
			Str("request_id", c.GetString("request_id")).
			Msg("request failed")
		msg = "Internal server error"
	}
	c.JSON(status, httputil.NewErrorResponse(code, msg))
}

// BadRequest 请求参数错误
func BadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, httputil.NewErrorResponse(httputil.CodeInvalidRequest, "Invalid request body", err.Error()))
}

// OK 成功响应
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, httputil.NewSuccessResponse("success", data))
}

// Accepted 后台任务已受理
func Accepted(c *gin.Context, data interface{}) {
	c.JSON(http.StatusAccepted, httputil.NewSuccessResponse("accepted", data))
}
