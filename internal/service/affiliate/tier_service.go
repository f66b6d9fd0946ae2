package affiliate

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dumeirei/affiliate-backend/internal/common/config"
	"github.com/dumeirei/affiliate-backend/internal/common/database"
	"github.com/dumeirei/affiliate-backend/internal/models"
	"github.com/dumeirei/affiliate-backend/internal/repository"
)

// TierService 佣金等级计算
// 每次调用都重新统计，不做缓存
type TierService struct {
	commissionRepo *repository.CommissionRepository
	tierRepo       *repository.TierRepository
	cfg            *config.AffiliateConfig
}

// NewTierService 创建佣金等级服务
func NewTierService(commissionRepo *repository.CommissionRepository, tierRepo *repository.TierRepository, cfg *config.AffiliateConfig) *TierService {
	return &TierService{
		commissionRepo: commissionRepo,
		tierRepo:       tierRepo,
		cfg:            defaultConfig(cfg),
	}
}

// ConversionsInWindow 统计 (asOf-窗口, asOf] 内到账的佣金笔数
func (s *TierService) ConversionsInWindow(ctx context.Context, affiliateID string, asOf time.Time) (int64, error) {
	ctx, cancel := withStoreTimeout(ctx, s.cfg)
	defer cancel()

	if asOf.IsZero() {
		asOf = time.Now()
	}
	asOf = asOf.UTC()
	count, err := s.commissionRepo.CountEarnedInWindow(ctx, affiliateID, asOf.Add(-s.cfg.TierWindow()), asOf)
	if err != nil {
		return 0, database.StoreError(err)
	}
	return count, nil
}

// RateFor 计算推广员在 asOf 时刻适用的佣金比例
func (s *TierService) RateFor(ctx context.Context, affiliateID string, asOf time.Time) (decimal.Decimal, error) {
	count, err := s.ConversionsInWindow(ctx, affiliateID, asOf)
	if err != nil {
		return decimal.Zero, err
	}

	ctx, cancel := withStoreTimeout(ctx, s.cfg)
	defer cancel()
	tiers, err := s.tierRepo.ListActive(ctx)
	if err != nil {
		return decimal.Zero, database.StoreError(err)
	}
	return SelectRate(tiers, count, s.cfg.DefaultRateDecimal()), nil
}

// LowestRate 最低等级比例，新申请的推广员从这里起步
func (s *TierService) LowestRate(ctx context.Context) (decimal.Decimal, error) {
	ctx, cancel := withStoreTimeout(ctx, s.cfg)
	defer cancel()

	tiers, err := s.tierRepo.ListActive(ctx)
	if err != nil {
		return decimal.Zero, database.StoreError(err)
	}
	var lowest *models.CommissionTier
	for _, t := range tiers {
		if lowest == nil || t.MinOrders < lowest.MinOrders {
			lowest = t
		}
	}
	if lowest == nil {
		return s.cfg.DefaultRateDecimal(), nil
	}
	return lowest.CommissionPercentage, nil
}

// SelectRate 在匹配的等级中取起始订单数最大者，无匹配时返回 fallback
func SelectRate(tiers []*models.CommissionTier, count int64, fallback decimal.Decimal) decimal.Decimal {
	var best *models.CommissionTier
	for _, t := range tiers {
		if !t.IsActive || !t.Matches(int(count)) {
			continue
		}
		if best == nil || t.MinOrders > best.MinOrders {
			best = t
		}
	}
	if best == nil {
		return fallback
	}
	return best.CommissionPercentage
}
