// Package event 接收订单与支付系统的内部事件回调
package event

import (
	"github.com/gin-gonic/gin"

	"github.com/dumeirei/affiliate-backend/internal/common/handler"
	"github.com/dumeirei/affiliate-backend/internal/common/response"
	"github.com/dumeirei/affiliate-backend/internal/service/order"
)

// Handler 内部事件处理器
type Handler struct {
	events order.OrderEventHandler
}

// NewHandler 创建内部事件处理器
func NewHandler(events order.OrderEventHandler) *Handler {
	return &Handler{events: events}
}

// RegisterRoutes 注册事件路由，rg 须已挂载服务认证中间件
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/order-completed", h.OrderCompleted)
	rg.POST("/payment-confirmed", h.PaymentConfirmed)
}

// OrderCompleted 订单完成事件
// 归因或记账失败不影响订单流程，始终返回 200
// @Summary 订单完成事件
// @Tags 内部事件
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body order.OrderCompletedEvent true "订单事件"
// @Success 200 {object} response.Response{data=order.OrderCompletedResult}
// @Router /api/v1/internal/events/order-completed [post]
func (h *Handler) OrderCompleted(c *gin.Context) {
	var ev order.OrderCompletedEvent
	if !handler.BindJSON(c, &ev) {
		return
	}

	response.Success(c, h.events.OnOrderCompleted(c.Request.Context(), &ev))
}

// PaymentConfirmed 支付确认事件
// @Summary 支付确认事件
// @Tags 内部事件
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body order.PaymentConfirmedEvent true "支付事件"
// @Success 200 {object} response.Response{data=order.PaymentConfirmedResult}
// @Router /api/v1/internal/events/payment-confirmed [post]
func (h *Handler) PaymentConfirmed(c *gin.Context) {
	var ev order.PaymentConfirmedEvent
	if !handler.BindJSON(c, &ev) {
		return
	}

	response.Success(c, h.events.OnPaymentConfirmed(c.Request.Context(), &ev))
}
