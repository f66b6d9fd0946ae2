package affiliate

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dumeirei/affiliate-backend/internal/common/config"
	"github.com/dumeirei/affiliate-backend/internal/common/database"
	appErrors "github.com/dumeirei/affiliate-backend/internal/common/errors"
	"github.com/dumeirei/affiliate-backend/internal/common/logger"
	"github.com/dumeirei/affiliate-backend/internal/common/metrics"
	"github.com/dumeirei/affiliate-backend/internal/common/utils"
	"github.com/dumeirei/affiliate-backend/internal/models"
	"github.com/dumeirei/affiliate-backend/internal/repository"
)

const defaultNotifyTimeout = 10 * time.Second

// RegistryService 推广员账户生命周期
// pending→active/rejected，active↔suspended
type RegistryService struct {
	db            *gorm.DB
	affiliateRepo *repository.AffiliateRepository
	referralRepo  *repository.ReferralRepository
	tiers         *TierService
	codes         *codeIssuer
	notifier      Notifier
	metrics       *metrics.Metrics
	cfg           *config.AffiliateConfig
	log           *zap.Logger

	notifyWG sync.WaitGroup
}

// NewRegistryService 创建推广员账户服务
func NewRegistryService(
	db *gorm.DB,
	affiliateRepo *repository.AffiliateRepository,
	referralRepo *repository.ReferralRepository,
	tiers *TierService,
	notifier Notifier,
	cfg *config.AffiliateConfig,
	log *zap.Logger,
) *RegistryService {
	cfg = defaultConfig(cfg)
	return &RegistryService{
		db:            db,
		affiliateRepo: affiliateRepo,
		referralRepo:  referralRepo,
		tiers:         tiers,
		codes:         newCodeIssuer(cfg),
		notifier:      notifier,
		cfg:           cfg,
		log:           nopIfNil(log),
	}
}

// SetMetrics 设置业务指标
func (s *RegistryService) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// ApplicationRequest 推广员申请
type ApplicationRequest struct {
	FullName         string `json:"full_name"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	CompanyName      string `json:"company_name"`
	Type             string `json:"type"`
	PromotionChannel string `json:"promotion_channel"`
	PlatformLink     string `json:"platform_link"`
	Country          string `json:"country"`
	AudienceSize     string `json:"audience_size"`
	Reason           string `json:"reason"`
	TermsAccepted    bool   `json:"terms_accepted"`
}

func (r *ApplicationRequest) normalize() {
	r.FullName = strings.TrimSpace(r.FullName)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Phone = strings.TrimSpace(r.Phone)
	r.CompanyName = strings.TrimSpace(r.CompanyName)
	r.Type = strings.ToLower(strings.TrimSpace(r.Type))
	r.PromotionChannel = strings.TrimSpace(r.PromotionChannel)
	r.PlatformLink = strings.TrimSpace(r.PlatformLink)
	r.Country = strings.TrimSpace(r.Country)
	r.AudienceSize = strings.TrimSpace(r.AudienceSize)
	r.Reason = strings.TrimSpace(r.Reason)
}

// validate 校验必填项与格式
func (r *ApplicationRequest) validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"full_name", r.FullName},
		{"email", r.Email},
		{"phone", r.Phone},
		{"country", r.Country},
		{"promotion_channel", r.PromotionChannel},
		{"platform_link", r.PlatformLink},
		{"type", r.Type},
	}
	for _, f := range required {
		if f.value == "" {
			return appErrors.ErrInvalidParams.WithMessagef("缺少必填字段: %s", f.name)
		}
	}
	if !utils.ValidateEmail(r.Email) {
		return appErrors.ErrInvalidParams.WithMessage("邮箱格式不正确")
	}
	if !utils.ValidatePhone(r.Phone) {
		return appErrors.ErrInvalidParams.WithMessage("手机号格式不正确")
	}
	if !utils.ValidateURL(r.PlatformLink) {
		return appErrors.ErrInvalidParams.WithMessage("推广平台链接格式不正确")
	}
	if !models.AffiliateType(r.Type).Valid() {
		return appErrors.ErrInvalidParams.WithMessage("推广员类型必须为 individual 或 company")
	}
	if !r.TermsAccepted {
		return appErrors.ErrInvalidParams.WithMessage("请先同意推广协议")
	}
	return nil
}

// Submit 提交推广员申请，创建 pending 状态账户
func (s *RegistryService) Submit(ctx context.Context, req *ApplicationRequest) (*models.Affiliate, error) {
	if req == nil {
		return nil, appErrors.ErrInvalidParams
	}
	req.normalize()
	if err := req.validate(); err != nil {
		return nil, err
	}

	ctx, cancel := withStoreTimeout(ctx, s.cfg)
	defer cancel()

	rate, err := s.tiers.LowestRate(ctx)
	if err != nil {
		return nil, err
	}

	affiliate := &models.Affiliate{
		FullName:         req.FullName,
		Email:            req.Email,
		Phone:            req.Phone,
		CompanyName:      utils.NilIfEmpty(req.CompanyName),
		Type:             models.AffiliateType(req.Type),
		PromotionChannel: req.PromotionChannel,
		PlatformLink:     req.PlatformLink,
		Country:          req.Country,
		AudienceSize:     utils.NilIfEmpty(req.AudienceSize),
		Motivation:       utils.NilIfEmpty(req.Reason),
		TermsAccepted:    req.TermsAccepted,
		Status:           models.AffiliateStatusPending,
		CommissionTier:   rate,
	}
	if err := s.affiliateRepo.Create(ctx, affiliate); err != nil {
		return nil, database.StoreError(err)
	}

	s.metrics.RecordAffiliateTransition("submit")
	s.log.Info("推广员申请已提交", logger.AffiliateID(affiliate.ID), logger.Action("submit"))
	return affiliate, nil
}

// ApproveResult 审核通过结果
type ApproveResult struct {
	Affiliate    *models.Affiliate    `json:"affiliate"`
	ReferralLink *models.ReferralLink `json:"referral"`
}

// Approve 审核通过并发放首个推广码
func (s *RegistryService) Approve(ctx context.Context, affiliateID, approverID string) (*ApproveResult, error) {
	ctx, cancel := withStoreTimeout(ctx, s.cfg)
	defer cancel()

	var result ApproveResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		affiliate, err := s.transition(ctx, s.affiliateRepo.WithTx(tx), affiliateID,
			models.AffiliateStatusPending, models.AffiliateStatusActive,
			map[string]interface{}{
				"approved_at":   now,
				"approved_by":   approverID,
				"status_reason": nil,
			})
		if err != nil {
			return err
		}
		affiliate.ApprovedAt = &now
		affiliate.ApprovedBy = &approverID
		affiliate.StatusReason = nil

		link, err := s.codes.issue(ctx, s.referralRepo.WithTx(tx), affiliate.ID, nil)
		if err != nil {
			return err
		}
		result.Affiliate = affiliate
		result.ReferralLink = link
		return nil
	})
	if err != nil {
		return nil, database.StoreError(err)
	}

	s.metrics.RecordAffiliateTransition("approve")
	s.log.Info("推广员审核通过",
		logger.AffiliateID(affiliateID),
		zap.String("approver_id", approverID),
		zap.String("referral_code", *result.ReferralLink.ReferralCode),
	)

	a := result.Affiliate
	code := *result.ReferralLink.ReferralCode
	s.notify("approval", a.ID, func(ctx context.Context) error {
		return s.notifier.SendApprovalEmail(ctx, a.Email, a.FullName, code)
	})
	return &result, nil
}

// Reject 拒绝申请，拒绝为终态
func (s *RegistryService) Reject(ctx context.Context, affiliateID, reason string) (*models.Affiliate, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, appErrors.ErrInvalidParams.WithMessage("拒绝原因不能为空")
	}

	affiliate, err := s.change(ctx, affiliateID, models.AffiliateStatusPending, models.AffiliateStatusRejected,
		map[string]interface{}{"status_reason": reason})
	if err != nil {
		return nil, err
	}
	affiliate.StatusReason = &reason

	s.metrics.RecordAffiliateTransition("reject")
	s.log.Info("推广员申请被拒绝", logger.AffiliateID(affiliateID))
	s.notify("rejection", affiliate.ID, func(ctx context.Context) error {
		return s.notifier.SendRejectionEmail(ctx, affiliate.Email, affiliate.FullName, reason)
	})
	return affiliate, nil
}

// Suspend 暂停推广员
func (s *RegistryService) Suspend(ctx context.Context, affiliateID, reason string) (*models.Affiliate, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, appErrors.ErrInvalidParams.WithMessage("暂停原因不能为空")
	}

	affiliate, err := s.change(ctx, affiliateID, models.AffiliateStatusActive, models.AffiliateStatusSuspended,
		map[string]interface{}{"status_reason": reason})
	if err != nil {
		return nil, err
	}
	affiliate.StatusReason = &reason

	s.metrics.RecordAffiliateTransition("suspend")
	s.log.Info("推广员已暂停", logger.AffiliateID(affiliateID))
	return affiliate, nil
}

// Reactivate 恢复已暂停的推广员，清除暂停原因
func (s *RegistryService) Reactivate(ctx context.Context, affiliateID string) (*models.Affiliate, error) {
	affiliate, err := s.change(ctx, affiliateID, models.AffiliateStatusSuspended, models.AffiliateStatusActive,
		map[string]interface{}{"status_reason": nil})
	if err != nil {
		return nil, err
	}
	affiliate.StatusReason = nil

	s.metrics.RecordAffiliateTransition("reactivate")
	s.log.Info("推广员已恢复", logger.AffiliateID(affiliateID))
	return affiliate, nil
}

// Get 获取推广员
func (s *RegistryService) Get(ctx context.Context, affiliateID string) (*models.Affiliate, error) {
	ctx, cancel := withStoreTimeout(ctx, s.cfg)
	defer cancel()

	affiliate, err := s.affiliateRepo.GetByID(ctx, affiliateID)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, appErrors.ErrAffiliateNotFound
		}
		return nil, database.StoreError(err)
	}
	return affiliate, nil
}

// ListQuery 推广员列表查询
type ListQuery struct {
	utils.Pagination
	Status *models.AffiliateStatus
	SortBy string
}

// List 分页查询推广员
func (s *RegistryService) List(ctx context.Context, q *ListQuery) (*PageResult[*models.Affiliate], error) {
	if q == nil {
		q = &ListQuery{}
	}
	q.Normalize()
	if q.Status != nil && !q.Status.Valid() {
		return nil, appErrors.ErrInvalidParams.WithMessage("无效的推广员状态")
	}

	ctx, cancel := withStoreTimeout(ctx, s.cfg)
	defer cancel()

	list, total, err := s.affiliateRepo.List(ctx, q.Offset(), q.Limit, &repository.AffiliateListFilter{
		Status: q.Status,
		SortBy: q.SortBy,
	})
	if err != nil {
		return nil, database.StoreError(err)
	}
	return newPageResult(list, total, q.Pagination), nil
}

// UpdatePayoutDetails 更新收款信息
func (s *RegistryService) UpdatePayoutDetails(ctx context.Context, affiliateID string, details models.PayoutDetails) (*models.Affiliate, error) {
	if details.IsZero() {
		return nil, appErrors.ErrInvalidParams.WithMessage("收款信息不能为空")
	}

	ctx, cancel := withStoreTimeout(ctx, s.cfg)
	defer cancel()

	updated, err := s.affiliateRepo.UpdatePayoutDetails(ctx, affiliateID, details)
	if err != nil {
		return nil, database.StoreError(err)
	}
	if !updated {
		return nil, appErrors.ErrAffiliateNotFound
	}
	affiliate, err := s.affiliateRepo.GetByID(ctx, affiliateID)
	if err != nil {
		return nil, database.StoreError(err)
	}
	return affiliate, nil
}

// WaitNotifications 等待已发出的通知结束，用于优雅退出
func (s *RegistryService) WaitNotifications() {
	s.notifyWG.Wait()
}

// change 在超时与事务之外执行单步状态变更
func (s *RegistryService) change(ctx context.Context, affiliateID string, from, to models.AffiliateStatus, fields map[string]interface{}) (*models.Affiliate, error) {
	ctx, cancel := withStoreTimeout(ctx, s.cfg)
	defer cancel()

	affiliate, err := s.transition(ctx, s.affiliateRepo, affiliateID, from, to, fields)
	if err != nil {
		return nil, database.StoreError(err)
	}
	return affiliate, nil
}

// transition 校验状态机后条件更新 from→to
func (s *RegistryService) transition(
	ctx context.Context,
	repo *repository.AffiliateRepository,
	affiliateID string,
	from, to models.AffiliateStatus,
	fields map[string]interface{},
) (*models.Affiliate, error) {
	affiliate, err := repo.GetByID(ctx, affiliateID)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, appErrors.ErrAffiliateNotFound
		}
		return nil, err
	}
	if affiliate.Status != from || !from.CanTransitionTo(to) {
		return nil, appErrors.ErrAffiliateStatus.WithMessagef("推广员当前状态为 %s，无法变更为 %s", affiliate.Status, to)
	}

	updated, err := repo.TransitionStatus(ctx, affiliateID, from, to, fields)
	if err != nil {
		return nil, err
	}
	if !updated {
		// 并发请求已先行变更
		return nil, appErrors.ErrAffiliateStatus.WithMessagef("推广员状态已被修改，无法变更为 %s", to)
	}
	affiliate.Status = to
	return affiliate, nil
}

// notify 异步发送通知，脱离请求取消但受通知超时约束
func (s *RegistryService) notify(kind, affiliateID string, send func(ctx context.Context) error) {
	if s.notifier == nil {
		return
	}
	s.notifyWG.Add(1)
	go func() {
		defer s.notifyWG.Done()
		timeout := s.cfg.NotifyTimeout()
		if timeout <= 0 {
			timeout = defaultNotifyTimeout
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		err := send(ctx)
		s.metrics.RecordNotification(kind, err)
		if err != nil {
			s.log.Warn("推广员通知发送失败",
				logger.AffiliateID(affiliateID),
				zap.String("kind", kind),
				zap.Error(err),
			)
		}
	}()
}
