package repository

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dumeirei/affiliate-backend/internal/models"
)

// TierRepository 佣金等级仓储
type TierRepository struct {
	db *gorm.DB
}

// NewTierRepository 创建佣金等级仓储
func NewTierRepository(db *gorm.DB) *TierRepository {
	return &TierRepository{db: db}
}

// Create 创建佣金等级
func (r *TierRepository) Create(ctx context.Context, tier *models.CommissionTier) error {
	return r.db.WithContext(ctx).Create(tier).Error
}

// ListActive 获取启用的等级，按起始订单数降序
func (r *TierRepository) ListActive(ctx context.Context) ([]*models.CommissionTier, error) {
	var tiers []*models.CommissionTier
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("min_orders DESC").
		Find(&tiers).Error
	if err != nil {
		return nil, err
	}
	return tiers, nil
}

// DefaultTiers 默认等级：0-9 单 3%，10-29 单 5%，30 单以上 8%
func DefaultTiers() []*models.CommissionTier {
	nine, twentyNine := 9, 29
	return []*models.CommissionTier{
		{Name: "Bronze", MinOrders: 0, MaxOrders: &nine, CommissionPercentage: decimal.NewFromInt(3), IsActive: true},
		{Name: "Silver", MinOrders: 10, MaxOrders: &twentyNine, CommissionPercentage: decimal.NewFromInt(5), IsActive: true},
		{Name: "Gold", MinOrders: 30, CommissionPercentage: decimal.NewFromInt(8), IsActive: true},
	}
}

// SeedDefaults 表为空时写入默认等级
func (r *TierRepository) SeedDefaults(ctx context.Context) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.CommissionTier{}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		return tx.Create(DefaultTiers()).Error
	})
}
