package auth

import (
	"github.com/gin-gonic/gin"

	"opentry/internal/handler"
)

// RegisterRequest 用户注册请求
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`           // 邮箱（必填）
	Password string `json:"password" binding:"required,min=8,max=72"` // 密码（8-72位）
	Name     string `json:"name,omitempty"`                           // 显示名称（可选）
}

// Register 用户注册
// @Summary      用户注册
// @Description  注册新用户并直接返回 Access Token
// @Tags         认证
// @Accept       json
// @Produce      json
// @Param        request  body      RegisterRequest  true  "注册请求"
// @Success      200      {object}  httputil.SuccessResponse{data=service.TokenResult}
// @Failure      400      {object}  httputil.ErrorResponse
// @Failure      409      {object}  httputil.ErrorResponse
// @Router       /api/v1/auth/register [post]
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BadRequest(c, err)
		return
	}

	res, err := h.authService.Register(c.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, res)
}
