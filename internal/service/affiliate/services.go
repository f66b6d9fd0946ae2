package affiliate

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dumeirei/affiliate-backend/internal/common/config"
	"github.com/dumeirei/affiliate-backend/internal/common/metrics"
	"github.com/dumeirei/affiliate-backend/internal/repository"
)

// Services 推广业务服务集合
type Services struct {
	Tiers       *TierService
	Registry    *RegistryService
	Attribution *AttributionService
	Ledger      *LedgerService
	Payouts     *PayoutService
	Dashboard   *DashboardService
}

// NewServices 组装推广业务服务，m 可为 nil
func NewServices(db *gorm.DB, notifier Notifier, cfg *config.AffiliateConfig, m *metrics.Metrics, log *zap.Logger) *Services {
	affiliateRepo := repository.NewAffiliateRepository(db)
	referralRepo := repository.NewReferralRepository(db)
	commissionRepo := repository.NewCommissionRepository(db)
	payoutRepo := repository.NewPayoutRepository(db)
	tierRepo := repository.NewTierRepository(db)

	tiers := NewTierService(commissionRepo, tierRepo, cfg)
	attribution := NewAttributionService(affiliateRepo, referralRepo, cfg, log)

	svc := &Services{
		Tiers:       tiers,
		Registry:    NewRegistryService(db, affiliateRepo, referralRepo, tiers, notifier, cfg, log),
		Attribution: attribution,
		Ledger:      NewLedgerService(db, commissionRepo, affiliateRepo, tiers, cfg, log),
		Payouts:     NewPayoutService(db, affiliateRepo, commissionRepo, payoutRepo, cfg, log),
		Dashboard:   NewDashboardService(affiliateRepo, commissionRepo, payoutRepo, attribution, tiers, cfg),
	}
	if m != nil {
		svc.Registry.SetMetrics(m)
		svc.Ledger.SetMetrics(m)
		svc.Payouts.SetMetrics(m)
	}
	return svc
}
