package auth

import (
	"github.com/gin-gonic/gin"

	"opentry/internal/handler"
	"opentry/internal/pkg/ctxutil"
)

// GetMe 获取当前用户信息
// @Summary      获取当前用户信息
// @Tags         认证
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  httputil.SuccessResponse{data=auth.User}
// @Failure      401  {object}  httputil.ErrorResponse
// @Router       /api/v1/auth/me [get]
func (h *Handler) GetMe(c *gin.Context) {
	ctx := c.Request.Context()
	userID, _ := ctxutil.GetUserID(ctx)

	user, err := h.authService.Me(ctx, userID)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, user)
}
