package production

import (
	"github.com/gin-gonic/gin"

	"opentry/internal/handler"
	model "opentry/internal/model/production"
	"opentry/internal/pkg/ctxutil"
	"opentry/internal/service"
)

// Handler 广告制作处理器
type Handler struct {
	productionService *service.ProductionService
}

// NewHandler 创建处理器
func NewHandler(productionService *service.ProductionService) *Handler {
	return &Handler{productionService: productionService}
}

// Create 提交简报并启动制作流程
// @Summary      创建广告制作
// @Description  提交品牌简报，后台依次执行简报、脚本、关键帧、视频、配音、母版六个阶段
// @Tags         广告制作
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      production.Inputs  true  "简报"
// @Success      202      {object}  httputil.SuccessResponse{data=production.Production}
// @Failure      400      {object}  httputil.ErrorResponse
// @Router       /api/v1/productions [post]
func (h *Handler) Create(c *gin.Context) {
	var in model.Inputs
	if err := c.ShouldBindJSON(&in); err != nil {
		handler.BadRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	userID, _ := ctxutil.GetUserID(ctx)
	p, err := h.productionService.Create(ctx, userID, in)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Accepted(c, p)
}

// Get 制作详情与阶段进度
// @Summary  制作详情
// @Tags     广告制作
// @Produce  json
// @Security BearerAuth
// @Param    id   path      string  true  "制作ID"
// @Success  200  {object}  httputil.SuccessResponse{data=production.Production}
// @Failure  404  {object}  httputil.ErrorResponse
// @Router   /api/v1/productions/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	userID, _ := ctxutil.GetUserID(ctx)
	p, err := h.productionService.Get(ctx, userID, c.Param("id"))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, p)
}

// Reset 重置为初始状态，运行中返回 409
// @Summary  重置制作
// @Tags     广告制作
// @Produce  json
// @Security BearerAuth
// @Param    id   path      string  true  "制作ID"
// @Success  200  {object}  httputil.SuccessResponse{data=production.Production}
// @Failure  409  {object}  httputil.ErrorResponse
// @Router   /api/v1/productions/{id}/reset [post]
func (h *Handler) Reset(c *gin.Context) {
	ctx := c.Request.Context()
	userID, _ := ctxutil.GetUserID(ctx)
	p, err := h.productionService.Reset(ctx, userID, c.Param("id"))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, p)
}
