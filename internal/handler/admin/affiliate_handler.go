// Package admin 提供管理后台 HTTP Handler
package admin

import (
	"github.com/gin-gonic/gin"

	"github.com/dumeirei/affiliate-backend/internal/common/handler"
	"github.com/dumeirei/affiliate-backend/internal/models"
	affiliateService "github.com/dumeirei/affiliate-backend/internal/service/affiliate"
)

// AffiliateHandler 推广员管理处理器
type AffiliateHandler struct {
	registry  *affiliateService.RegistryService
	ledger    *affiliateService.LedgerService
	dashboard *affiliateService.DashboardService
}

// NewAffiliateHandler 创建推广员管理处理器
func NewAffiliateHandler(svc *affiliateService.Services) *AffiliateHandler {
	return &AffiliateHandler{
		registry:  svc.Registry,
		ledger:    svc.Ledger,
		dashboard: svc.Dashboard,
	}
}

// RegisterRoutes 注册管理路由，rg 须已挂载管理员认证中间件
func (h *AffiliateHandler) RegisterRoutes(rg *gin.RouterGroup) {
	affiliates := rg.Group("/affiliates")
	{
		affiliates.GET("", h.List)
		affiliates.GET("/analytics", h.Analytics)
		affiliates.GET("/:id", h.Get)
		affiliates.POST("/:id/approve", h.Approve)
		affiliates.POST("/:id/reject", h.Reject)
		affiliates.POST("/:id/suspend", h.Suspend)
		affiliates.POST("/:id/reactivate", h.Reactivate)
	}
	rg.POST("/commissions/:id/paid", h.MarkCommissionPaid)
}

// List 推广员列表
// @Summary 推广员列表
// @Tags 管理员-推广员
// @Produce json
// @Security Bearer
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(20)
// @Param status query string false "状态: pending/active/rejected/suspended"
// @Param sort_by query string false "排序列: created_at/updated_at/full_name/status"
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /api/v1/admin/affiliates [get]
func (h *AffiliateHandler) List(c *gin.Context) {
	q := &affiliateService.ListQuery{
		Pagination: handler.BindPagination(c),
		SortBy:     c.Query("sort_by"),
	}
	if s := c.Query("status"); s != "" {
		status := models.AffiliateStatus(s)
		q.Status = &status
	}

	page, err := h.registry.List(c.Request.Context(), q)
	handler.MustSucceed(c, err, page)
}

// Get 推广员详情
// @Summary 推广员详情
// @Tags 管理员-推广员
// @Produce json
// @Security Bearer
// @Param id path string true "推广员ID"
// @Success 200 {object} response.Response{data=models.Affiliate}
// @Router /api/v1/admin/affiliates/{id} [get]
func (h *AffiliateHandler) Get(c *gin.Context) {
	id, ok := handler.ParseUUIDParam(c, "id", "推广员")
	if !ok {
		return
	}

	affiliate, err := h.registry.Get(c.Request.Context(), id)
	handler.MustSucceed(c, err, affiliate)
}

// Approve 审核通过
// @Summary 审核通过推广员申请
// @Tags 管理员-推广员
// @Produce json
// @Security Bearer
// @Param id path string true "推广员ID"
// @Success 200 {object} response.Response{data=affiliate.ApproveResult}
// @Failure 409 {object} response.Response "状态不允许"
// @Router /api/v1/admin/affiliates/{id}/approve [post]
func (h *AffiliateHandler) Approve(c *gin.Context) {
	adminID, ok := handler.RequireSubjectID(c)
	if !ok {
		return
	}
	id, ok := handler.ParseUUIDParam(c, "id", "推广员")
	if !ok {
		return
	}

	result, err := h.registry.Approve(c.Request.Context(), id, adminID)
	handler.MustSucceed(c, err, result)
}

// ReasonRequest 带原因的状态变更
type ReasonRequest struct {
	Reason string `json:"reason"`
}

// Reject 拒绝申请
// @Summary 拒绝推广员申请
// @Tags 管理员-推广员
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path string true "推广员ID"
// @Param request body ReasonRequest true "拒绝原因"
// @Success 200 {object} response.Response{data=models.Affiliate}
// @Router /api/v1/admin/affiliates/{id}/reject [post]
func (h *AffiliateHandler) Reject(c *gin.Context) {
	id, ok := handler.ParseUUIDParam(c, "id", "推广员")
	if !ok {
		return
	}
	var req ReasonRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	affiliate, err := h.registry.Reject(c.Request.Context(), id, req.Reason)
	handler.MustSucceed(c, err, affiliate)
}

// Suspend 暂停推广员
// @Summary 暂停推广员
// @Tags 管理员-推广员
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path string true "推广员ID"
// @Param request body ReasonRequest true "暂停原因"
// @Success 200 {object} response.Response{data=models.Affiliate}
// @Router /api/v1/admin/affiliates/{id}/suspend [post]
func (h *AffiliateHandler) Suspend(c *gin.Context) {
	id, ok := handler.ParseUUIDParam(c, "id", "推广员")
	if !ok {
		return
	}
	var req ReasonRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	affiliate, err := h.registry.Suspend(c.Request.Context(), id, req.Reason)
	handler.MustSucceed(c, err, affiliate)
}

// Reactivate 恢复推广员
// @Summary 恢复已暂停的推广员
// @Tags 管理员-推广员
// @Produce json
// @Security Bearer
// @Param id path string true "推广员ID"
// @Success 200 {object} response.Response{data=models.Affiliate}
// @Router /api/v1/admin/affiliates/{id}/reactivate [post]
func (h *AffiliateHandler) Reactivate(c *gin.Context) {
	id, ok := handler.ParseUUIDParam(c, "id", "推广员")
	if !ok {
		return
	}

	affiliate, err := h.registry.Reactivate(c.Request.Context(), id)
	handler.MustSucceed(c, err, affiliate)
}

// Analytics 推广数据汇总
// @Summary 推广数据汇总
// @Tags 管理员-推广员
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=affiliate.Analytics}
// @Router /api/v1/admin/affiliates/analytics [get]
func (h *AffiliateHandler) Analytics(c *gin.Context) {
	analytics, err := h.dashboard.Analytics(c.Request.Context())
	handler.MustSucceed(c, err, analytics)
}

// MarkCommissionPaid 标记佣金已结算
// @Summary 标记佣金已结算
// @Tags 管理员-佣金
// @Produce json
// @Security Bearer
// @Param id path string true "佣金ID"
// @Success 200 {object} response.Response{data=models.Commission}
// @Failure 409 {object} response.Response "佣金状态不允许"
// @Router /api/v1/admin/commissions/{id}/paid [post]
func (h *AffiliateHandler) MarkCommissionPaid(c *gin.Context) {
	id, ok := handler.ParseUUIDParam(c, "id", "佣金")
	if !ok {
		return
	}

	commission, err := h.ledger.MarkPaid(c.Request.Context(), id)
	handler.MustSucceed(c, err, commission)
}
