package affiliate

import (
	"context"
	"strings"
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

// LedgerService 佣金台账
// 佣金状态只能 pending→earned→paid 向前推进
type LedgerService struct {
	db             *gorm.DB
	commissionRepo *repository.CommissionRepository
	affiliateRepo  *repository.AffiliateRepository
	tiers          *TierService
	metrics        *metrics.Metrics
	cfg            *config.AffiliateConfig
	log            *zap.Logger
}

// NewLedgerService 创建佣金台账服务
func NewLedgerService(
	db *gorm.DB,
	commissionRepo *repository.CommissionRepository,
	affiliateRepo *repository.AffiliateRepository,
	tiers *TierService,
	cfg *config.AffiliateConfig,
	log *zap.Logger,
) *LedgerService {
	return &LedgerService{
		db:             db,
		commissionRepo: commissionRepo,
		affiliateRepo:  affiliateRepo,
		tiers:          tiers,
		cfg:            defaultConfig(cfg),
		log:            nopIfNil(log),
	}
}

// SetMetrics 设置业务指标
func (s *LedgerService) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// CreatePendingRequest 创建待确认佣金请求
type CreatePendingRequest struct {
	AffiliateID    string
	OrderID        string
	OrderTotal     decimal.Decimal
	ReferralType   models.ReferralType
	ReferralCode   *string
	ReferredUserID *string
	OrderDate      *time.Time
}

// CreatePending 为订单创建待确认佣金，按订单幂等
// 订单已有佣金时返回已有记录且 created 为 false
func (s *LedgerService) CreatePending(ctx context.Context, req *CreatePendingRequest) (commission *models.Commission, created bool, err error) {
	if req == nil || strings.TrimSpace(req.AffiliateID) == "" || strings.TrimSpace(req.OrderID) == "" {
		return nil, false, appErrors.ErrInvalidParams.WithMessage("推广员与订单不能为空")
	}
	if !req.OrderTotal.IsPositive() {
		return nil, false, appErrors.ErrOrderAmountInvalid
	}
	if req.ReferralType == "" {
		req.ReferralType = models.ReferralTypeCode
	}

	ctx, span := tracing.Start(ctx, "affiliate.ledger.create_pending",
		tracing.WithAffiliateID(req.AffiliateID), tracing.WithOrderID(req.OrderID))
	defer func() { tracing.End(span, err) }()

	ctx, cancel := withStoreTimeout(ctx, s.cfg)
	defer cancel()

	existing, err := s.commissionRepo.GetByOrderID(ctx, req.OrderID)
	if err == nil {
		return existing, false, nil
	}
	if !database.IsNotFound(err) {
		return nil, false, database.StoreError(err)
	}

	affiliate, err := s.affiliateRepo.GetByID(ctx, req.AffiliateID)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, false, appErrors.ErrAffiliateNotFound
		}
		return nil, false, database.StoreError(err)
	}
	if affiliate.Status != models.AffiliateStatusActive {
		return nil, false, appErrors.ErrAffiliateNotActive
	}

	now := time.Now().UTC()
	rate, err := s.tiers.RateFor(ctx, req.AffiliateID, now)
	if err != nil {
		return nil, false, err
	}

	orderTotal := req.OrderTotal.Round(2)
	commission = &models.Commission{
		AffiliateID:      req.AffiliateID,
		OrderID:          req.OrderID,
		OrderTotal:       orderTotal,
		CommissionRate:   rate,
		CommissionAmount: models.CommissionAmountFor(orderTotal, rate),
		ReferralType:     req.ReferralType,
		ReferralCode:     req.ReferralCode,
		ReferredUserID:   req.ReferredUserID,
		Status:           models.CommissionStatusPending,
		OrderDate:        req.OrderDate,
	}
	inserted, err := s.commissionRepo.CreateIfAbsent(ctx, commission)
	if err != nil {
		return nil, false, database.StoreError(err)
	}
	if !inserted {
		// 并发请求已先行写入
		existing, err = s.commissionRepo.GetByOrderID(ctx, req.OrderID)
		if err != nil {
			return nil, false, database.StoreError(err)
		}
		return existing, false, nil
	}

	if err := s.affiliateRepo.UpdateCommissionTier(ctx, req.AffiliateID, rate); err != nil {
		s.log.Warn("更新推广员当前等级失败", logger.AffiliateID(req.AffiliateID), zap.Error(err))
	}

	s.metrics.RecordCommissionCreated(string(req.ReferralType), commission.CommissionAmount.InexactFloat64())
	s.log.Info("待确认佣金已创建",
		logger.AffiliateID(req.AffiliateID),
		logger.OrderID(req.OrderID),
		zap.String("rate", rate.String()),
		logger.Amount(commission.CommissionAmount),
	)
	return commission, true, nil
}

// ConfirmEarned 支付确认后将订单的 pending 佣金置为 earned
// 只返回本次推进的记录，重复调用返回空结果
func (s *LedgerService) ConfirmEarned(ctx context.Context, orderID, transactionID string) (confirmed []*models.Commission, err error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, appErrors.ErrInvalidParams.WithMessage("订单不能为空")
	}

	ctx, span := tracing.Start(ctx, "affiliate.ledger.confirm_earned", tracing.WithOrderID(orderID))
	defer func() { tracing.End(span, err) }()

	ctx, cancel := withStoreTimeout(ctx, s.cfg)
	defer cancel()

	confirmed, err = s.commissionRepo.ConfirmEarned(ctx, orderID, transactionID, time.Now().UTC())
	if err != nil {
		return nil, database.StoreError(err)
	}
	for _, c := range confirmed {
		s.metrics.RecordCommissionEarned(c.CommissionAmount.InexactFloat64())
		s.log.Info("佣金已到账",
			logger.AffiliateID(c.AffiliateID),
			logger.OrderID(orderID),
			logger.Amount(c.CommissionAmount),
		)
	}
	return confirmed, nil
}

// MarkPaid 佣金结清，仅 earned 状态可操作
func (s *LedgerService) MarkPaid(ctx context.Context, commissionID string) (*models.Commission, error) {
	ctx, cancel := withStoreTimeout(ctx, s.cfg)
	defer cancel()

	commission, err := s.commissionRepo.GetByID(ctx, commissionID)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, appErrors.ErrCommissionNotFound
		}
		return nil, database.StoreError(err)
	}
	if commission.Status != models.CommissionStatusEarned {
		return nil, appErrors.ErrCommissionStatus.WithMessagef("佣金当前状态为 %s，无法结清", commission.Status)
	}

	now := time.Now().UTC()
	updated, err := s.commissionRepo.MarkPaid(ctx, commissionID, now)
	if err != nil {
		return nil, database.StoreError(err)
	}
	if !updated {
		return nil, appErrors.ErrCommissionStatus.WithMessage("佣金状态已被修改")
	}
	commission.Status = models.CommissionStatusPaid
	commission.PaidAt = &now

	s.metrics.RecordCommissionPaid(commission.CommissionAmount.InexactFloat64())
	return commission, nil
}

// Totals 佣金汇总，三项互不重叠
type Totals struct {
	TotalEarned  decimal.Decimal `json:"total_earned"`  // earned + paid
	TotalPending decimal.Decimal `json:"total_pending"` // pending
	TotalPaid    decimal.Decimal `json:"total_paid"`    // paid
}

// DashboardTotals 推广员佣金汇总
func (s *LedgerService) DashboardTotals(ctx context.Context, affiliateID string) (*Totals, error) {
	ctx, cancel := withStoreTimeout(ctx, s.cfg)
	defer cancel()

	sums, err := s.commissionRepo.SumByStatus(ctx, affiliateID)
	if err != nil {
		return nil, database.StoreError(err)
	}
	return totalsFrom(sums), nil
}

func totalsFrom(sums map[models.CommissionStatus]decimal.Decimal) *Totals {
	return &Totals{
		TotalEarned:  sums[models.CommissionStatusEarned].Add(sums[models.CommissionStatusPaid]),
		TotalPending: sums[models.CommissionStatusPending],
		TotalPaid:    sums[models.CommissionStatusPaid],
	}
}

// HistoryQuery 佣金明细查询
type HistoryQuery struct {
	utils.Pagination
	Status *models.CommissionStatus
	SortBy string
}

// History 分页查询佣金明细，按指定列降序
func (s *LedgerService) History(ctx context.Context, affiliateID string, q *HistoryQuery) (*PageResult[*models.Commission], error) {
	if q == nil {
		q = &HistoryQuery{}
	}
	q.Normalize()
	if q.SortBy == "" {
		q.SortBy = repository.DefaultCommissionSort
	}
	if _, ok := repository.CommissionSortColumns[q.SortBy]; !ok {
		return nil, appErrors.ErrInvalidParams.WithMessagef("不支持的排序字段: %s", q.SortBy)
	}
	if q.Status != nil && !q.Status.Valid() {
		return nil, appErrors.ErrInvalidParams.WithMessage("无效的佣金状态")
	}

	ctx, cancel := withStoreTimeout(ctx, s.cfg)
	defer cancel()

	list, total, err := s.commissionRepo.ListByAffiliate(ctx, affiliateID, q.Offset(), q.Limit, &repository.CommissionListFilter{
		Status: q.Status,
		SortBy: q.SortBy,
	})
	if err != nil {
		return nil, database.StoreError(err)
	}
	return newPageResult(list, total, q.Pagination), nil
}

// RefreshDisplayedTiers 按滚动窗口重算活跃推广员的展示比例
// 窗口内订单过期后比例会回落，只更新有变化的推广员，返回更新数
func (s *LedgerService) RefreshDisplayedTiers(ctx context.Context) (int, error) {
	listCtx, cancel := withStoreTimeout(ctx, s.cfg)
	snapshots, err := s.affiliateRepo.ListTierSnapshots(listCtx, models.AffiliateStatusActive)
	cancel()
	if err != nil {
		return 0, database.StoreError(err)
	}

	now := time.Now().UTC()
	updated := 0
	for _, snap := range snapshots {
		if err := ctx.Err(); err != nil {
			return updated, err
		}
		rate, err := s.tiers.RateFor(ctx, snap.ID, now)
		if err != nil {
			return updated, err
		}
		if rate.Equal(snap.CommissionTier) {
			continue
		}
		if err := s.affiliateRepo.UpdateCommissionTier(ctx, snap.ID, rate); err != nil {
			return updated, database.StoreError(err)
		}
		updated++
	}

	if updated > 0 {
		s.log.Info("推广员展示等级已刷新", zap.Int("updated", updated), zap.Int("active", len(snapshots)))
	}
	return updated, nil
}
