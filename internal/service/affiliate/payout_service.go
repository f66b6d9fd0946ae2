package affiliate

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dumeirei/affiliate-backend/internal/common/config"
	"github.com/dumeirei/affiliate-backend/internal/common/database"
	appErrors "github.com/dumeirei/affiliate-backend/internal/common/errors"
	"github.com/dumeirei/affiliate-backend/internal/common/logger"
	"github.com/dumeirei/affiliate-backend/internal/common/metrics"
	"github.com/dumeirei/affiliate-backend/internal/common/tracing"
	"github.com/dumeirei/affiliate-backend/internal/common/utils"
	"github.com/dumeirei/affiliate-backend/internal/models"
	"github.com/dumeirei/affiliate-backend/internal/repository"
)

// PayoutService 提现服务
type PayoutService struct {
	db             *gorm.DB
	affiliateRepo  *repository.AffiliateRepository
	commissionRepo *repository.CommissionRepository
	payoutRepo     *repository.PayoutRepository
	metrics        *metrics.Metrics
	cfg            *config.AffiliateConfig
	log            *zap.Logger
}

// NewPayoutService 创建提现服务
func NewPayoutService(
	db *gorm.DB,
	affiliateRepo *repository.AffiliateRepository,
	commissionRepo *repository.CommissionRepository,
	payoutRepo *repository.PayoutRepository,
	cfg *config.AffiliateConfig,
	log *zap.Logger,
) *PayoutService {
	return &PayoutService{
		db:             db,
		affiliateRepo:  affiliateRepo,
		commissionRepo: commissionRepo,
		payoutRepo:     payoutRepo,
		cfg:            defaultConfig(cfg),
		log:            nopIfNil(log),
	}
}

// SetMetrics 设置业务指标
func (s *PayoutService) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// RequestPayout 申请提现
// 可提现余额 = earned 与 paid 佣金 − 处理中与已打款的提现，事务内先锁推广员行再实时计算
func (s *PayoutService) RequestPayout(ctx context.Context, affiliateID string, amount decimal.Decimal, method models.PayoutMethod) (payout *models.Payout, err error) {
	if !amount.IsPositive() || !amount.Equal(amount.Round(2)) {
		return nil, appErrors.ErrPayoutAmountInvalid.WithMessage("提现金额必须为正数且最多两位小数")
	}
	if !method.Valid() {
		return nil, appErrors.ErrPayoutMethodUnsupported
	}

	ctx, span := tracing.Start(ctx, "affiliate.payout.request", tracing.WithAffiliateID(affiliateID))
	defer func() { tracing.End(span, err) }()

	ctx, cancel := withStoreTimeout(ctx, s.cfg)
	defer cancel()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		affiliateRepo := s.affiliateRepo.WithTx(tx)
		now := time.Now().UTC()

		locked, err := affiliateRepo.LockForUpdate(ctx, affiliateID, now)
		if err != nil {
			return err
		}
		if !locked {
			return appErrors.ErrAffiliateNotFound
		}

		affiliate, err := affiliateRepo.GetByID(ctx, affiliateID)
		if err != nil {
			return err
		}
		if affiliate.Status != models.AffiliateStatusActive {
			return appErrors.ErrAffiliateNotActive
		}
		if !affiliate.HasPayoutDetails() {
			return appErrors.ErrPayoutDetailsMissing
		}

		available, err := s.availableBalance(ctx, tx, affiliateID)
		if err != nil {
			return err
		}
		if amount.GreaterThan(available) {
			return appErrors.ErrBalanceInsufficient.WithMessagef("可提现余额不足，当前可提现: %s", available.StringFixed(2))
		}

		payout = &models.Payout{
			AffiliateID:  affiliateID,
			Amount:       amount,
			PayoutMethod: method,
			Status:       models.PayoutStatusPending,
			RequestDate:  now,
		}
		return s.payoutRepo.WithTx(tx).Create(ctx, payout)
	})
	if err != nil {
		s.metrics.RecordPayoutRequest(payoutResult(err))
		return nil, database.StoreError(err)
	}

	s.metrics.RecordPayoutRequest("accepted")
	s.log.Info("提现申请已创建",
		logger.AffiliateID(affiliateID),
		logger.Amount(amount),
		zap.String("method", string(method)),
	)
	return payout, nil
}

// AvailableBalance 查询当前可提现余额
func (s *PayoutService) AvailableBalance(ctx context.Context, affiliateID string) (decimal.Decimal, error) {
	ctx, cancel := withStoreTimeout(ctx, s.cfg)
	defer cancel()

	available, err := s.availableBalance(ctx, s.db, affiliateID)
	if err != nil {
		return decimal.Zero, database.StoreError(err)
	}
	return available, nil
}

func (s *PayoutService) availableBalance(ctx context.Context, tx *gorm.DB, affiliateID string) (decimal.Decimal, error) {
	settled, err := s.commissionRepo.WithTx(tx).SumSettled(ctx, affiliateID)
	if err != nil {
		return decimal.Zero, err
	}
	committed, err := s.payoutRepo.WithTx(tx).SumCommitted(ctx, affiliateID)
	if err != nil {
		return decimal.Zero, err
	}
	return settled.Sub(committed), nil
}

func payoutResult(err error) string {
	switch appErrors.KindOf(err) {
	case appErrors.KindInsufficientBalance:
		return "insufficient_balance"
	case appErrors.KindStore, appErrors.KindUnknown:
		return "error"
	default:
		return "rejected"
	}
}

// PayoutHistoryQuery 提现记录查询
type PayoutHistoryQuery struct {
	utils.Pagination
	Status *models.PayoutStatus
}

// ListPayoutHistory 分页查询提现记录，按申请时间降序
func (s *PayoutService) ListPayoutHistory(ctx context.Context, affiliateID string, q *PayoutHistoryQuery) (*PageResult[*models.Payout], error) {
	if q == nil {
		q = &PayoutHistoryQuery{}
	}
	q.Normalize()
	if q.Status != nil && !q.Status.Valid() {
		return nil, appErrors.ErrInvalidParams.WithMessage("无效的提现状态")
	}

	ctx, cancel := withStoreTimeout(ctx, s.cfg)
	defer cancel()

	list, total, err := s.payoutRepo.ListByAffiliate(ctx, affiliateID, q.Offset(), q.Limit, q.Status)
	if err != nil {
		return nil, database.StoreError(err)
	}
	return newPageResult(list, total, q.Pagination), nil
}
