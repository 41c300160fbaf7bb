package template

import (
	"github.com/gin-gonic/gin"

	"opentry/internal/catalog"
	"opentry/internal/handler"
)

// Handler 模板目录处理器
type Handler struct {
	catalog *catalog.Catalog
}

// NewHandler 创建模板处理器
func NewHandler(c *catalog.Catalog) *Handler {
	return &Handler{catalog: c}
}

// List 模板列表
// @Summary  模板列表
// @Tags     模板
// @Produce  json
// @Success  200  {object}  httputil.SuccessResponse{data=[]catalog.Template}
// @Router   /api/v1/templates [get]
func (h *Handler) List(c *gin.Context) {
	handler.OK(c, h.catalog.List())
}

// Get 模板详情
// @Summary  模板详情
// @Tags     模板
// @Produce  json
// @Param    id   path      string  true  "模板ID"
// @Success  200  {object}  httputil.SuccessResponse{data=catalog.Template}
// @Failure  404  {object}  httputil.ErrorResponse
// @Router   /api/v1/templates/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	tmpl, err := h.catalog.Get(c.Param("id"))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, tmpl)
}
