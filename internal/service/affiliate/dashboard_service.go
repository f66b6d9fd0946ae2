package affiliate

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dumeirei/affiliate-backend/internal/common/config"
	"github.com/dumeirei/affiliate-backend/internal/common/database"
	appErrors "github.com/dumeirei/affiliate-backend/internal/common/errors"
	"github.com/dumeirei/affiliate-backend/internal/models"
	"github.com/dumeirei/affiliate-backend/internal/repository"
)

// DashboardService 推广员看板与后台汇总
type DashboardService struct {
	affiliateRepo  *repository.AffiliateRepository
	commissionRepo *repository.CommissionRepository
	payoutRepo     *repository.PayoutRepository
	attribution    *AttributionService
	tiers          *TierService
	cfg            *config.AffiliateConfig
}

// NewDashboardService 创建看板服务
func NewDashboardService(
	affiliateRepo *repository.AffiliateRepository,
	commissionRepo *repository.CommissionRepository,
	payoutRepo *repository.PayoutRepository,
	attribution *AttributionService,
	tiers *TierService,
	cfg *config.AffiliateConfig,
) *DashboardService {
	return &DashboardService{
		affiliateRepo:  affiliateRepo,
		commissionRepo: commissionRepo,
		payoutRepo:     payoutRepo,
		attribution:    attribution,
		tiers:          tiers,
		cfg:            defaultConfig(cfg),
	}
}

// Performance 近期业绩
type Performance struct {
	Conversions90Days int64           `json:"conversions_90_days"`
	CurrentTier       decimal.Decimal `json:"current_tier"`
	CustomerReferrals int64           `json:"customer_referrals"`
}

// Dashboard 推广员看板
type Dashboard struct {
	Affiliate     *models.Affiliate      `json:"affiliate"`
	Earnings      *Totals                `json:"earnings"`
	ReferralCodes []*models.ReferralLink `json:"referral_codes"`
	Performance   Performance            `json:"performance"`
}

// Dashboard 获取推广员看板
func (s *DashboardService) Dashboard(ctx context.Context, affiliateID string) (*Dashboard, error) {
	ctx, cancel := withStoreTimeout(ctx, s.cfg)
	defer cancel()

	affiliate, err := s.affiliateRepo.GetByID(ctx, affiliateID)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, appErrors.ErrAffiliateNotFound
		}
		return nil, database.StoreError(err)
	}

	sums, err := s.commissionRepo.SumByStatus(ctx, affiliateID)
	if err != nil {
		return nil, database.StoreError(err)
	}

	codes, err := s.attribution.ListActiveCodes(ctx, affiliateID)
	if err != nil {
		return nil, err
	}

	conversions, err := s.tiers.ConversionsInWindow(ctx, affiliateID, time.Now())
	if err != nil {
		return nil, err
	}

	customers, err := s.attribution.CountCustomerReferrals(ctx, affiliateID)
	if err != nil {
		return nil, err
	}

	return &Dashboard{
		Affiliate:     affiliate,
		Earnings:      totalsFrom(sums),
		ReferralCodes: codes,
		Performance: Performance{
			Conversions90Days: conversions,
			CurrentTier:       affiliate.CommissionTier,
			CustomerReferrals: customers,
		},
	}, nil
}

// AffiliateStats 推广员数量统计
type AffiliateStats struct {
	Total     int64 `json:"total"`
	Active    int64 `json:"active"`
	Pending   int64 `json:"pending"`
	Suspended int64 `json:"suspended"`
	Rejected  int64 `json:"rejected"`
}

// Analytics 后台汇总
type Analytics struct {
	AffiliateStats AffiliateStats `json:"affiliate_stats"`
	Commissions    struct {
		TotalEarned  decimal.Decimal `json:"total_earned"`
		TotalPending decimal.Decimal `json:"total_pending"`
	} `json:"commissions"`
	Payouts struct {
		TotalPaid decimal.Decimal `json:"total_paid"`
	} `json:"payouts"`
}

// Analytics 全平台推广汇总，只做简单求和
func (s *DashboardService) Analytics(ctx context.Context) (*Analytics, error) {
	ctx, cancel := withStoreTimeout(ctx, s.cfg)
	defer cancel()

	counts, err := s.affiliateRepo.CountByStatus(ctx)
	if err != nil {
		return nil, database.StoreError(err)
	}
	sums, err := s.commissionRepo.SumByStatus(ctx, "")
	if err != nil {
		return nil, database.StoreError(err)
	}
	paid, err := s.payoutRepo.SumByStatuses(ctx, "", models.PayoutStatusPaid)
	if err != nil {
		return nil, database.StoreError(err)
	}

	a := &Analytics{}
	a.AffiliateStats = AffiliateStats{
		Active:    counts[models.AffiliateStatusActive],
		Pending:   counts[models.AffiliateStatusPending],
		Suspended: counts[models.AffiliateStatusSuspended],
		Rejected:  counts[models.AffiliateStatusRejected],
	}
	for _, n := range counts {
		a.AffiliateStats.Total += n
	}
	totals := totalsFrom(sums)
	a.Commissions.TotalEarned = totals.TotalEarned
	a.Commissions.TotalPending = totals.TotalPending
	a.Payouts.TotalPaid = paid
	return a, nil
}
