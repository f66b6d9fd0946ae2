// Package order 订单事件处理
package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/dumeirei/affiliate-backend/internal/common/logger"
	"github.com/dumeirei/affiliate-backend/internal/models"
	"github.com/dumeirei/affiliate-backend/internal/service/affiliate"
)

// OrderCompleteHook 订单完成与支付确认钩子
// 推广归因与佣金记录均为尽力而为，失败只记日志，不影响订单流程
type OrderCompleteHook struct {
	attributor attributor
	ledger     ledger
	log        *zap.Logger
}

type attributor interface {
	Resolve(ctx context.Context, orderID, referralCode, referredUserID string) (*affiliate.Attribution, error)
}

type ledger interface {
	CreatePending(ctx context.Context, req *affiliate.CreatePendingRequest) (*models.Commission, bool, error)
	ConfirmEarned(ctx context.Context, orderID, transactionID string) ([]*models.Commission, error)
}

// NewOrderCompleteHook 创建订单钩子
func NewOrderCompleteHook(attributor attributor, ledger ledger, log *zap.Logger) *OrderCompleteHook {
	if log == nil {
		log = zap.NewNop()
	}
	return &OrderCompleteHook{
		attributor: attributor,
		ledger:     ledger,
		log:        log,
	}
}

// OrderCompletedEvent 订单完成事件
type OrderCompletedEvent struct {
	OrderID        string          `json:"order_id" binding:"required"`
	OrderTotal     decimal.Decimal `json:"order_total"`
	ReferralCode   string          `json:"referral_code"`
	ReferredUserID string          `json:"customer_id"`
	OrderDate      *time.Time      `json:"order_date"`
}

// OrderCompletedResult 订单完成处理结果
type OrderCompletedResult struct {
	Attributed bool               `json:"attributed"`
	Created    bool               `json:"created"`
	Commission *models.Commission `json:"commission,omitempty"`
}

// OnOrderCompleted 订单完成时触发，解析归属推广员并创建待确认佣金
func (h *OrderCompleteHook) OnOrderCompleted(ctx context.Context, ev *OrderCompletedEvent) *OrderCompletedResult {
	result := &OrderCompletedResult{}
	if ev == nil || h.attributor == nil || h.ledger == nil {
		return result
	}
	if ev.ReferralCode == "" && ev.ReferredUserID == "" {
		return result
	}

	attribution, err := h.attributor.Resolve(ctx, ev.OrderID, ev.ReferralCode, ev.ReferredUserID)
	if err != nil {
		h.log.Error("推广归因失败", logger.OrderID(ev.OrderID), zap.Error(err))
		return result
	}
	if attribution == nil {
		return result
	}
	result.Attributed = true

	commission, created, err := h.ledger.CreatePending(ctx, &affiliate.CreatePendingRequest{
		AffiliateID:    attribution.AffiliateID,
		OrderID:        ev.OrderID,
		OrderTotal:     ev.OrderTotal,
		ReferralType:   attribution.ReferralType,
		ReferralCode:   attribution.ReferralCode,
		ReferredUserID: attribution.ReferredUserID,
		OrderDate:      ev.OrderDate,
	})
	if err != nil {
		// 后续可由订单重放补偿
		h.log.Error("创建推广佣金失败",
			logger.OrderID(ev.OrderID),
			logger.AffiliateID(attribution.AffiliateID),
			zap.Error(err),
		)
		return result
	}

	result.Created = created
	result.Commission = commission
	return result
}

// PaymentConfirmedEvent 支付确认事件
type PaymentConfirmedEvent struct {
	OrderID       string `json:"order_id" binding:"required"`
	TransactionID string `json:"transaction_id" binding:"required"`
}

// PaymentConfirmedResult 支付确认处理结果
type PaymentConfirmedResult struct {
	Confirmed int `json:"confirmed"`
}

// OnPaymentConfirmed 支付确认时触发，待确认佣金转为已到账
// 支付事件可能重复投递，重复调用为空操作
func (h *OrderCompleteHook) OnPaymentConfirmed(ctx context.Context, ev *PaymentConfirmedEvent) *PaymentConfirmedResult {
	result := &PaymentConfirmedResult{}
	if ev == nil || h.ledger == nil {
		return result
	}

	confirmed, err := h.ledger.ConfirmEarned(ctx, ev.OrderID, ev.TransactionID)
	if err != nil {
		h.log.Error("确认推广佣金失败",
			logger.OrderID(ev.OrderID),
			zap.String("transaction_id", ev.TransactionID),
			zap.Error(err),
		)
		return result
	}
	result.Confirmed = len(confirmed)
	return result
}

// OrderEventHandler 订单事件处理器接口
type OrderEventHandler interface {
	OnOrderCompleted(ctx context.Context, ev *OrderCompletedEvent) *OrderCompletedResult
	OnPaymentConfirmed(ctx context.Context, ev *PaymentConfirmedEvent) *PaymentConfirmedResult
}

// Ensure OrderCompleteHook implements OrderEventHandler
var _ OrderEventHandler = (*OrderCompleteHook)(nil)
