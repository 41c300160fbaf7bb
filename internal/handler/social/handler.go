package social

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"opentry/internal/handler"
	model "opentry/internal/model/social"
	"opentry/internal/pkg/ctxutil"
	httputil "opentry/internal/pkg/http"
	"opentry/internal/service"
)

// Handler 社交平台处理器，按 X-Session-ID 区分浏览器会话
type Handler struct {
	socialService *service.SocialService
}

// NewHandler 创建处理器
func NewHandler(socialService *service.SocialService) *Handler {
	return &Handler{socialService: socialService}
}

// SaveRequest 保存绑定请求
type SaveRequest struct {
	Platform         model.Platform `json:"platform" binding:"required"`
	PlatformUsername string         `json:"platform_username"`
	PlatformUserID   string         `json:"platform_user_id"`
	AccessToken      string         `json:"access_token" binding:"required"`
	RefreshToken     string         `json:"refresh_token"`
	ExtraData        map[string]any `json:"extra_data"`
}

func sessionID(c *gin.Context) string {
	id, _ := ctxutil.GetSessionID(c.Request.Context())
	return id
}

// List 已绑定的平台
// @Summary  已绑定平台
// @Tags     社交
// @Produce  json
// @Param    X-Session-ID  header    string  true  "浏览器会话ID"
// @Success  200           {object}  httputil.SuccessResponse{data=[]social.Connection}
// @Router   /api/v1/social/connections [get]
func (h *Handler) List(c *gin.Context) {
	conns, err := h.socialService.List(c.Request.Context(), sessionID(c))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, conns)
}

// Save 保存 OAuth 结果
// @Summary  绑定平台
// @Tags     社交
// @Accept   json
// @Produce  json
// @Param    X-Session-ID  header    string       true  "浏览器会话ID"
// @Param    request       body      SaveRequest  true  "绑定信息"
// @Success  200           {object}  httputil.SuccessResponse{data=social.Connection}
// @Failure  400           {object}  httputil.ErrorResponse
// @Router   /api/v1/social/connections [post]
func (h *Handler) Save(c *gin.Context) {
	var req SaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BadRequest(c, err)
		return
	}

	conn := &model.Connection{
		Platform:         req.Platform,
		PlatformUsername: req.PlatformUsername,
		PlatformUserID:   req.PlatformUserID,
		AccessToken:      req.AccessToken,
		RefreshToken:     req.RefreshToken,
		ExtraData:        req.ExtraData,
	}
	if err := h.socialService.Save(c.Request.Context(), sessionID(c), conn); err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, conn)
}

// Disconnect 解除绑定
// @Summary  解除绑定
// @Tags     社交
// @Produce  json
// @Param    X-Session-ID  header    string  true  "浏览器会话ID"
// @Param    platform      path      string  true  "youtube 或 instagram"
// @Success  200           {object}  httputil.SuccessResponse
// @Failure  404           {object}  httputil.ErrorResponse
// @Router   /api/v1/social/connections/{platform} [delete]
func (h *Handler) Disconnect(c *gin.Context) {
	platform := model.Platform(c.Param("platform"))
	if err := h.socialService.Disconnect(c.Request.Context(), sessionID(c), platform); err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httputil.NewSuccessResponse("disconnected", nil))
}

// Post 发布到已绑定平台，每个平台单独返回结果
// @Summary  发布成片
// @Tags     社交
// @Accept   json
// @Produce  json
// @Param    X-Session-ID  header    string               true  "浏览器会话ID"
// @Param    request       body      service.PostRequest  true  "发布内容"
// @Success  200           {object}  httputil.SuccessResponse{data=map[string]service.PostResult}
// @Failure  400           {object}  httputil.ErrorResponse
// @Router   /api/v1/social/post [post]
func (h *Handler) Post(c *gin.Context) {
	var req service.PostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BadRequest(c, err)
		return
	}

	results, err := h.socialService.Post(c.Request.Context(), sessionID(c), req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, results)
}
