package reel

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"opentry/internal/handler"
	"opentry/internal/pkg/ctxutil"
	"opentry/internal/service"
)

// Handler 短视频项目处理器
type Handler struct {
	reelService *service.ReelService
}

// NewHandler 创建处理器
func NewHandler(reelService *service.ReelService) *Handler {
	return &Handler{reelService: reelService}
}

// CreateRequest 创建项目请求
type CreateRequest struct {
	TemplateID      string   `json:"template_id" binding:"required"`
	ReferenceImages []string `json:"reference_images" binding:"required,min=1,max=4"` // data URL 或 http(s) 地址
}

// Create 上传参考图并创建项目
// @Summary      创建短视频项目
// @Description  参考图可以是 data URL（服务端上传到存储）或 http(s) 地址，最多 4 张
// @Tags         短视频
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      CreateRequest  true  "创建请求"
// @Success      200      {object}  httputil.SuccessResponse{data=reel.Project}
// @Failure      400      {object}  httputil.ErrorResponse
// @Failure      404      {object}  httputil.ErrorResponse
// @Router       /api/v1/reels [post]
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BadRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	userID, _ := ctxutil.GetUserID(ctx)
	p, err := h.reelService.CreateProject(ctx, userID, req.TemplateID, req.ReferenceImages)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, p)
}

// Get 项目详情（前端轮询进度）
// @Summary  项目详情
// @Tags     短视频
// @Produce  json
// @Security BearerAuth
// @Param    id   path      string  true  "项目ID"
// @Success  200  {object}  httputil.SuccessResponse{data=reel.Project}
// @Failure  404  {object}  httputil.ErrorResponse
// @Router   /api/v1/reels/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	userID, _ := ctxutil.GetUserID(ctx)
	p, err := h.reelService.GetProject(ctx, userID, c.Param("id"))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, p)
}

// List 我的项目
// @Summary  项目列表
// @Tags     短视频
// @Produce  json
// @Security BearerAuth
// @Param    limit  query     int  false  "数量，默认20，最大100"
// @Success  200    {object}  httputil.SuccessResponse{data=[]reel.Project}
// @Router   /api/v1/reels [get]
func (h *Handler) List(c *gin.Context) {
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "20"), 10, 64)

	ctx := c.Request.Context()
	userID, _ := ctxutil.GetUserID(ctx)
	projects, err := h.reelService.ListProjects(ctx, userID, limit)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, projects)
}

// GenerateImages 开始为每个镜头生成图片
// @Summary  生成图片
// @Tags     短视频
// @Produce  json
// @Security BearerAuth
// @Param    id   path      string  true  "项目ID"
// @Success  202  {object}  httputil.SuccessResponse{data=reel.Project}
// @Failure  409  {object}  httputil.ErrorResponse
// @Router   /api/v1/reels/{id}/images [post]
func (h *Handler) GenerateImages(c *gin.Context) {
	ctx := c.Request.Context()
	userID, _ := ctxutil.GetUserID(ctx)
	p, err := h.reelService.GenerateImages(ctx, userID, c.Param("id"))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Accepted(c, p)
}

// RegenerateImage 重新生成单张图片
// @Summary  重新生成单张图片
// @Tags     短视频
// @Produce  json
// @Security BearerAuth
// @Param    id       path      string  true  "项目ID"
// @Param    imageId  path      string  true  "图片ID（img-N）"
// @Success  200      {object}  httputil.SuccessResponse{data=reel.Project}
// @Failure  409      {object}  httputil.ErrorResponse
// @Router   /api/v1/reels/{id}/images/{imageId}/regenerate [post]
func (h *Handler) RegenerateImage(c *gin.Context) {
	ctx := c.Request.Context()
	userID, _ := ctxutil.GetUserID(ctx)
	p, err := h.reelService.RegenerateImage(ctx, userID, c.Param("id"), c.Param("imageId"))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, p)
}

// StartPayment 发起支付，返回 UPI 二维码
// @Summary  发起支付
// @Tags     短视频
// @Produce  json
// @Security BearerAuth
// @Param    id   path      string  true  "项目ID"
// @Success  200  {object}  httputil.SuccessResponse{data=service.PaymentSession}
// @Failure  502  {object}  httputil.ErrorResponse
// @Router   /api/v1/reels/{id}/payment [post]
func (h *Handler) StartPayment(c *gin.Context) {
	ctx := c.Request.Context()
	userID, _ := ctxutil.GetUserID(ctx)
	session, err := h.reelService.StartPayment(ctx, userID, c.Param("id"))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, session)
}

// PaymentStatus 项目当前交易的支付状态（触发一次服务端查询）
// @Summary  项目支付状态
// @Tags     短视频
// @Produce  json
// @Security BearerAuth
// @Param    id   path      string  true  "项目ID"
// @Success  200  {object}  httputil.SuccessResponse{data=service.PaymentStatus}
// @Router   /api/v1/reels/{id}/payment [get]
func (h *Handler) PaymentStatus(c *gin.Context) {
	ctx := c.Request.Context()
	userID, _ := ctxutil.GetUserID(ctx)
	status, err := h.reelService.CheckPayment(ctx, userID, c.Param("id"))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, status)
}

// GenerateVideos 已支付项目生成视频并合成
// @Summary  生成视频
// @Tags     短视频
// @Produce  json
// @Security BearerAuth
// @Param    id   path      string  true  "项目ID"
// @Success  202  {object}  httputil.SuccessResponse{data=reel.Project}
// @Failure  402  {object}  httputil.ErrorResponse
// @Router   /api/v1/reels/{id}/videos [post]
func (h *Handler) GenerateVideos(c *gin.Context) {
	ctx := c.Request.Context()
	userID, _ := ctxutil.GetUserID(ctx)
	p, err := h.reelService.GenerateVideos(ctx, userID, c.Param("id"))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Accepted(c, p)
}

// Compose 重新合成成片
// @Summary  合成成片
// @Tags     短视频
// @Produce  json
// @Security BearerAuth
// @Param    id   path      string  true  "项目ID"
// @Success  202  {object}  httputil.SuccessResponse{data=reel.Project}
// @Failure  402  {object}  httputil.ErrorResponse
// @Router   /api/v1/reels/{id}/compose [post]
func (h *Handler) Compose(c *gin.Context) {
	ctx := c.Request.Context()
	userID, _ := ctxutil.GetUserID(ctx)
	p, err := h.reelService.Compose(ctx, userID, c.Param("id"))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Accepted(c, p)
}
