package affiliate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"

	"github.com/dumeirei/affiliate-backend/internal/common/config"
	"github.com/dumeirei/affiliate-backend/internal/repository"
	"github.com/dumeirei/affiliate-backend/internal/testutil"
)

// mockNotifier 通知 mock
type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) SendApprovalEmail(ctx context.Context, email, fullName, referralCode string) error {
	args := m.Called(ctx, email, fullName, referralCode)
	return args.Error(0)
}

func (m *mockNotifier) SendRejectionEmail(ctx context.Context, email, fullName, reason string) error {
	args := m.Called(ctx, email, fullName, reason)
	return args.Error(0)
}

type testEnv struct {
	db          *gorm.DB
	cfg         *config.AffiliateConfig
	notifier    *mockNotifier
	tiers       *TierService
	registry    *RegistryService
	attribution *AttributionService
	ledger      *LedgerService
	payouts     *PayoutService
	dashboard   *DashboardService
}

// newTestEnv 创建带默认等级的完整服务环境
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewTestDB(t)
	testutil.SeedTiers(t, db)

	cfg := &config.Default().Business.Affiliate
	notifier := &mockNotifier{}

	affiliateRepo := repository.NewAffiliateRepository(db)
	referralRepo := repository.NewReferralRepository(db)
	commissionRepo := repository.NewCommissionRepository(db)
	payoutRepo := repository.NewPayoutRepository(db)
	tierRepo := repository.NewTierRepository(db)

	tiers := NewTierService(commissionRepo, tierRepo, cfg)
	attribution := NewAttributionService(affiliateRepo, referralRepo, cfg, nil)
	env := &testEnv{
		db:          db,
		cfg:         cfg,
		notifier:    notifier,
		tiers:       tiers,
		registry:    NewRegistryService(db, affiliateRepo, referralRepo, tiers, notifier, cfg, nil),
		attribution: attribution,
		ledger:      NewLedgerService(db, commissionRepo, affiliateRepo, tiers, cfg, nil),
		payouts:     NewPayoutService(db, affiliateRepo, commissionRepo, payoutRepo, cfg, nil),
		dashboard:   NewDashboardService(affiliateRepo, commissionRepo, payoutRepo, attribution, tiers, cfg),
	}
	t.Cleanup(env.registry.WaitNotifications)
	return env
}

func validApplication() *ApplicationRequest {
	return &ApplicationRequest{
		FullName:         "Jane Doe",
		Email:            "Jane@Example.com",
		Phone:            "+234 801 234 5678",
		Type:             "individual",
		PromotionChannel: "instagram",
		PlatformLink:     "https://instagram.com/jane",
		Country:          "NG",
		AudienceSize:     "10k-50k",
		Reason:           "I review gadgets",
		TermsAccepted:    true,
	}
}
