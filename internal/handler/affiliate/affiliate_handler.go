// Package affiliate 提供推广员自助与公开申请相关的 HTTP Handler
package affiliate

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/dumeirei/affiliate-backend/internal/common/handler"
	"github.com/dumeirei/affiliate-backend/internal/common/qrcode"
	"github.com/dumeirei/affiliate-backend/internal/common/response"
	"github.com/dumeirei/affiliate-backend/internal/models"
	affiliateService "github.com/dumeirei/affiliate-backend/internal/service/affiliate"
)

// Handler 推广员处理器
type Handler struct {
	registry    *affiliateService.RegistryService
	attribution *affiliateService.AttributionService
	ledger      *affiliateService.LedgerService
	payouts     *affiliateService.PayoutService
	dashboard   *affiliateService.DashboardService
	qr          *qrcode.Generator
}

// NewHandler 创建推广员处理器
func NewHandler(svc *affiliateService.Services, qr *qrcode.Generator) *Handler {
	if qr == nil {
		qr = qrcode.NewGenerator()
	}
	return &Handler{
		registry:    svc.Registry,
		attribution: svc.Attribution,
		ledger:      svc.Ledger,
		payouts:     svc.Payouts,
		dashboard:   svc.Dashboard,
		qr:          qr,
	}
}

// RegisterPublicRoutes 注册无需认证的路由
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.POST("/affiliates/apply", h.Apply)
	rg.GET("/referrals/validate", h.ValidateReferralCode)
}

// RegisterRoutes 注册推广员路由，rg 须已挂载推广员认证中间件
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/dashboard", h.GetDashboard)
	rg.GET("/commissions", h.ListCommissions)
	rg.GET("/payouts", h.ListPayouts)
	rg.POST("/payouts", h.RequestPayout)
	rg.PUT("/payout-details", h.UpdatePayoutDetails)
	rg.POST("/referral-codes", h.CreateReferralCode)
	rg.GET("/referral-codes/:code/qrcode", h.GetReferralQRCode)
	rg.POST("/customer-referrals", h.CreateCustomerReferral)
}

// Apply 提交推广员申请
// @Summary 提交推广员申请
// @Tags 推广员
// @Accept json
// @Produce json
// @Param request body affiliate.ApplicationRequest true "申请信息"
// @Success 201 {object} response.Response{data=models.Affiliate}
// @Router /api/v1/affiliates/apply [post]
func (h *Handler) Apply(c *gin.Context) {
	var req affiliateService.ApplicationRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	affiliate, err := h.registry.Submit(c.Request.Context(), &req)
	handler.MustSucceedCreated(c, err, affiliate)
}

// ValidateCodeResponse 推广码校验结果
type ValidateCodeResponse struct {
	Code  string `json:"code"`
	Valid bool   `json:"valid"`
}

// ValidateReferralCode 校验推广码是否可用
// @Summary 校验推广码
// @Tags 推广员
// @Produce json
// @Param code query string true "推广码"
// @Success 200 {object} response.Response{data=ValidateCodeResponse}
// @Router /api/v1/referrals/validate [get]
func (h *Handler) ValidateReferralCode(c *gin.Context) {
	code := strings.TrimSpace(c.Query("code"))
	if code == "" {
		response.BadRequest(c, "请提供推广码")
		return
	}

	valid, err := h.attribution.ValidateReferralCode(c.Request.Context(), code)
	handler.MustSucceed(c, err, &ValidateCodeResponse{Code: strings.ToUpper(code), Valid: valid})
}

// GetDashboard 获取推广员看板
// @Summary 推广员看板
// @Tags 推广员
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=affiliate.Dashboard}
// @Router /api/v1/affiliate/dashboard [get]
func (h *Handler) GetDashboard(c *gin.Context) {
	affiliateID, ok := handler.RequireSubjectID(c)
	if !ok {
		return
	}

	dashboard, err := h.dashboard.Dashboard(c.Request.Context(), affiliateID)
	handler.MustSucceed(c, err, dashboard)
}

// ListCommissions 佣金明细
// @Summary 佣金明细
// @Tags 推广员
// @Produce json
// @Security Bearer
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(20)
// @Param status query string false "状态: pending/earned/paid"
// @Param sort_by query string false "排序列: earned_at/created_at/order_total/commission_amount"
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /api/v1/affiliate/commissions [get]
func (h *Handler) ListCommissions(c *gin.Context) {
	affiliateID, ok := handler.RequireSubjectID(c)
	if !ok {
		return
	}

	q := &affiliateService.HistoryQuery{
		Pagination: handler.BindPagination(c),
		SortBy:     c.Query("sort_by"),
	}
	if s := c.Query("status"); s != "" {
		status := models.CommissionStatus(s)
		q.Status = &status
	}

	page, err := h.ledger.History(c.Request.Context(), affiliateID, q)
	handler.MustSucceed(c, err, page)
}

// ListPayouts 提现记录
// @Summary 提现记录
// @Tags 推广员
// @Produce json
// @Security Bearer
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(20)
// @Param status query string false "状态: pending/paid/failed"
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /api/v1/affiliate/payouts [get]
func (h *Handler) ListPayouts(c *gin.Context) {
	affiliateID, ok := handler.RequireSubjectID(c)
	if !ok {
		return
	}

	q := &affiliateService.PayoutHistoryQuery{Pagination: handler.BindPagination(c)}
	if s := c.Query("status"); s != "" {
		status := models.PayoutStatus(s)
		q.Status = &status
	}

	page, err := h.payouts.ListPayoutHistory(c.Request.Context(), affiliateID, q)
	handler.MustSucceed(c, err, page)
}

// PayoutRequest 提现申请
type PayoutRequest struct {
	Amount decimal.Decimal     `json:"amount"`
	Method models.PayoutMethod `json:"method"`
}

// RequestPayout 申请提现
// @Summary 申请提现
// @Tags 推广员
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body PayoutRequest true "提现信息"
// @Success 201 {object} response.Response{data=models.Payout}
// @Failure 422 {object} response.Response "可提现余额不足"
// @Router /api/v1/affiliate/payouts [post]
func (h *Handler) RequestPayout(c *gin.Context) {
	affiliateID, ok := handler.RequireSubjectID(c)
	if !ok {
		return
	}

	var req PayoutRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	payout, err := h.payouts.RequestPayout(c.Request.Context(), affiliateID, req.Amount, req.Method)
	handler.MustSucceedCreated(c, err, payout)
}

// UpdatePayoutDetails 更新收款信息
// @Summary 更新收款信息
// @Tags 推广员
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body models.PayoutDetails true "收款信息"
// @Success 200 {object} response.Response{data=models.Affiliate}
// @Router /api/v1/affiliate/payout-details [put]
func (h *Handler) UpdatePayoutDetails(c *gin.Context) {
	affiliateID, ok := handler.RequireSubjectID(c)
	if !ok {
		return
	}

	var details models.PayoutDetails
	if !handler.BindJSON(c, &details) {
		return
	}

	affiliate, err := h.registry.UpdatePayoutDetails(c.Request.Context(), affiliateID, details)
	handler.MustSucceed(c, err, affiliate)
}

// CreateReferralCodeRequest 新建推广码
type CreateReferralCodeRequest struct {
	ExpiresAt *time.Time `json:"expires_at"`
}

// ReferralCodeResponse 推广码与分享链接
type ReferralCodeResponse struct {
	*models.ReferralLink
	ShareLink string `json:"share_link"`
}

// CreateReferralCode 新建推广码
// @Summary 新建推广码
// @Tags 推广员
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body CreateReferralCodeRequest false "过期时间（可选）"
// @Success 201 {object} response.Response{data=ReferralCodeResponse}
// @Router /api/v1/affiliate/referral-codes [post]
func (h *Handler) CreateReferralCode(c *gin.Context) {
	affiliateID, ok := handler.RequireSubjectID(c)
	if !ok {
		return
	}

	var req CreateReferralCodeRequest
	if c.Request.ContentLength > 0 && !handler.BindJSON(c, &req) {
		return
	}

	link, err := h.attribution.CreateReferralCode(c.Request.Context(), affiliateID, req.ExpiresAt)
	if handler.HandleError(c, err) {
		return
	}
	response.Created(c, &ReferralCodeResponse{
		ReferralLink: link,
		ShareLink:    h.attribution.ShareLink(*link.ReferralCode),
	})
}

// GetReferralQRCode 推广码分享二维码
// format=png 时直接返回图片，否则返回 data URL
// @Summary 推广码二维码
// @Tags 推广员
// @Produce json,png
// @Security Bearer
// @Param code path string true "推广码"
// @Param format query string false "png/dataurl" default(dataurl)
// @Success 200 {object} response.Response
// @Router /api/v1/affiliate/referral-codes/{code}/qrcode [get]
func (h *Handler) GetReferralQRCode(c *gin.Context) {
	affiliateID, ok := handler.RequireSubjectID(c)
	if !ok {
		return
	}

	link, err := h.attribution.OwnedCode(c.Request.Context(), affiliateID, c.Param("code"))
	if handler.HandleError(c, err) {
		return
	}
	shareLink := h.attribution.ShareLink(*link.ReferralCode)

	if c.Query("format") == "png" {
		png, err := h.qr.GeneratePNG(shareLink)
		if handler.HandleError(c, err) {
			return
		}
		c.Data(http.StatusOK, "image/png", png)
		return
	}

	dataURL, err := h.qr.GenerateDataURL(shareLink)
	handler.MustSucceed(c, err, gin.H{
		"referral_code": *link.ReferralCode,
		"share_link":    shareLink,
		"qrcode":        dataURL,
	})
}

// CustomerReferralRequest 绑定客户
type CustomerReferralRequest struct {
	CustomerID string `json:"customer_id" binding:"required"`
}

// CreateCustomerReferral 绑定客户为本人推荐
// @Summary 绑定推荐客户
// @Tags 推广员
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body CustomerReferralRequest true "客户"
// @Success 201 {object} response.Response{data=models.ReferralLink}
// @Failure 409 {object} response.Response "客户已绑定"
// @Router /api/v1/affiliate/customer-referrals [post]
func (h *Handler) CreateCustomerReferral(c *gin.Context) {
	affiliateID, ok := handler.RequireSubjectID(c)
	if !ok {
		return
	}

	var req CustomerReferralRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	link, err := h.attribution.CreateCustomerReferral(c.Request.Context(), affiliateID, req.CustomerID)
	handler.MustSucceedCreated(c, err, link)
}
