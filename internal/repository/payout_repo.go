package repository

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dumeirei/affiliate-backend/internal/models"
)

// PayoutRepository 提现仓储
type PayoutRepository struct {
	db *gorm.DB
}

// NewPayoutRepository 创建提现仓储
func NewPayoutRepository(db *gorm.DB) *PayoutRepository {
	return &PayoutRepository{db: db}
}

// WithTx 返回绑定到事务的仓储
func (r *PayoutRepository) WithTx(tx *gorm.DB) *PayoutRepository {
	return &PayoutRepository{db: tx}
}

// Create 创建提现申请
func (r *PayoutRepository) Create(ctx context.Context, payout *models.Payout) error {
	return r.db.WithContext(ctx).Create(payout).Error
}

// GetByID 根据 ID 获取提现申请
func (r *PayoutRepository) GetByID(ctx context.Context, id string) (*models.Payout, error) {
	var payout models.Payout
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&payout).Error
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

// SumByStatuses 汇总指定状态的提现金额，affiliateID 为空时汇总全部
func (r *PayoutRepository) SumByStatuses(ctx context.Context, affiliateID string, statuses ...models.PayoutStatus) (decimal.Decimal, error) {
	var row sumRow
	query := r.db.WithContext(ctx).Model(&models.Payout{}).
		Select("COALESCE(SUM(amount), 0) AS total").
		Where("status IN ?", statuses)
	if affiliateID != "" {
		query = query.Where("affiliate_id = ?", affiliateID)
	}
	if err := query.Scan(&row).Error; err != nil {
		return decimal.Zero, err
	}
	return row.Total.Round(2), nil
}

// SumCommitted 汇总已占用余额的提现（处理中与已打款）
func (r *PayoutRepository) SumCommitted(ctx context.Context, affiliateID string) (decimal.Decimal, error) {
	return r.SumByStatuses(ctx, affiliateID, models.PayoutStatusPending, models.PayoutStatusPaid)
}

// ListByAffiliate 分页获取提现记录，按申请时间降序
func (r *PayoutRepository) ListByAffiliate(ctx context.Context, affiliateID string, offset, limit int, status *models.PayoutStatus) ([]*models.Payout, int64, error) {
	var payouts []*models.Payout
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Payout{}).Where("affiliate_id = ?", affiliateID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.Order("request_date DESC").Order("id").Offset(offset).Limit(limit).Find(&payouts).Error; err != nil {
		return nil, 0, err
	}

	return payouts, total, nil
}
