package affiliate

import (
	"context"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dumeirei/affiliate-backend/internal/common/config"
	"github.com/dumeirei/affiliate-backend/internal/common/database"
	appErrors "github.com/dumeirei/affiliate-backend/internal/common/errors"
	"github.com/dumeirei/affiliate-backend/internal/common/logger"
	"github.com/dumeirei/affiliate-backend/internal/models"
	"github.com/dumeirei/affiliate-backend/internal/repository"
)

// AttributionService 推广归因与推广关系管理
type AttributionService struct {
	affiliateRepo *repository.AffiliateRepository
	referralRepo  *repository.ReferralRepository
	codes         *codeIssuer
	cfg           *config.AffiliateConfig
	log           *zap.Logger
}

// NewAttributionService 创建推广归因服务
func NewAttributionService(
	affiliateRepo *repository.AffiliateRepository,
	referralRepo *repository.ReferralRepository,
	cfg *config.AffiliateConfig,
	log *zap.Logger,
) *AttributionService {
	cfg = defaultConfig(cfg)
	return &AttributionService{
		affiliateRepo: affiliateRepo,
		referralRepo:  referralRepo,
		codes:         newCodeIssuer(cfg),
		cfg:           cfg,
		log:           nopIfNil(log),
	}
}

// Attribution 归因结果
type Attribution struct {
	AffiliateID    string              `json:"affiliate_id"`
	ReferralType   models.ReferralType `json:"referral_type"`
	ReferralCode   *string             `json:"referral_code,omitempty"`
	ReferredUserID *string             `json:"referred_user_id,omitempty"`
}

// Resolve 解析订单归属的推广员，无归属时返回 nil
// 推广码优先于客户绑定，只取第一个命中；推广员非 active 时放弃归因
func (s *AttributionService) Resolve(ctx context.Context, orderID, referralCode, referredUserID string) (*Attribution, error) {
	ctx, cancel := withStoreTimeout(ctx, s.cfg)
	defer cancel()

	referralCode = repository.NormalizeCode(referralCode)
	referredUserID = strings.TrimSpace(referredUserID)
	now := time.Now().UTC()

	var attribution *Attribution
	if referralCode != "" {
		link, err := s.referralRepo.GetByCode(ctx, referralCode)
		switch {
		case err == nil && !link.IsExpired(now):
			attribution = &Attribution{
				AffiliateID:  link.AffiliateID,
				ReferralType: models.ReferralTypeCode,
				ReferralCode: link.ReferralCode,
			}
		case err != nil && !database.IsNotFound(err):
			return nil, database.StoreError(err)
		}
	}

	if attribution == nil && referredUserID != "" {
		link, err := s.referralRepo.GetByReferredUser(ctx, referredUserID)
		switch {
		case err == nil:
			attribution = &Attribution{
				AffiliateID:    link.AffiliateID,
				ReferralType:   models.ReferralTypeCustomerReferral,
				ReferredUserID: link.ReferredUserID,
			}
		case !database.IsNotFound(err):
			return nil, database.StoreError(err)
		}
	}

	if attribution == nil {
		return nil, nil
	}

	affiliate, err := s.affiliateRepo.GetByID(ctx, attribution.AffiliateID)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, nil
		}
		return nil, database.StoreError(err)
	}
	if affiliate.Status != models.AffiliateStatusActive {
		s.log.Info("推广员未激活，放弃归因",
			logger.OrderID(orderID),
			logger.AffiliateID(affiliate.ID),
			zap.String("status", string(affiliate.Status)),
		)
		return nil, nil
	}
	return attribution, nil
}

// CreateReferralCode 为 active 推广员新增推广码
func (s *AttributionService) CreateReferralCode(ctx context.Context, affiliateID string, expiresAt *time.Time) (*models.ReferralLink, error) {
	if expiresAt != nil {
		utc := expiresAt.UTC()
		if !utc.After(time.Now().UTC()) {
			return nil, appErrors.ErrInvalidParams.WithMessage("过期时间必须晚于当前时间")
		}
		expiresAt = &utc
	}

	ctx, cancel := withStoreTimeout(ctx, s.cfg)
	defer cancel()

	if err := s.requireActive(ctx, affiliateID); err != nil {
		return nil, err
	}
	link, err := s.codes.issue(ctx, s.referralRepo, affiliateID, expiresAt)
	if err != nil {
		return nil, database.StoreError(err)
	}
	s.log.Info("推广码已创建", logger.AffiliateID(affiliateID), zap.String("referral_code", *link.ReferralCode))
	return link, nil
}

// CreateCustomerReferral 绑定客户，一个客户只能绑定一个推广员
func (s *AttributionService) CreateCustomerReferral(ctx context.Context, affiliateID, referredUserID string) (*models.ReferralLink, error) {
	referredUserID = strings.TrimSpace(referredUserID)
	if referredUserID == "" {
		return nil, appErrors.ErrInvalidParams.WithMessage("被推荐用户不能为空")
	}

	ctx, cancel := withStoreTimeout(ctx, s.cfg)
	defer cancel()

	if err := s.requireActive(ctx, affiliateID); err != nil {
		return nil, err
	}
	link := &models.ReferralLink{
		AffiliateID:    affiliateID,
		ReferralType:   models.ReferralTypeCustomerReferral,
		ReferredUserID: &referredUserID,
	}
	inserted, err := s.referralRepo.CreateIfAbsent(ctx, link)
	if err != nil {
		return nil, database.StoreError(err)
	}
	if !inserted {
		return nil, appErrors.ErrCustomerReferred
	}
	return link, nil
}

// ValidateReferralCode 推广码是否存在且未过期
func (s *AttributionService) ValidateReferralCode(ctx context.Context, code string) (bool, error) {
	code = repository.NormalizeCode(code)
	if code == "" {
		return false, nil
	}

	ctx, cancel := withStoreTimeout(ctx, s.cfg)
	defer cancel()

	link, err := s.referralRepo.GetByCode(ctx, code)
	if err != nil {
		if database.IsNotFound(err) {
			return false, nil
		}
		return false, database.StoreError(err)
	}
	return !link.IsExpired(time.Now().UTC()), nil
}

// ListActiveCodes 推广员未过期的推广码
func (s *AttributionService) ListActiveCodes(ctx context.Context, affiliateID string) ([]*models.ReferralLink, error) {
	ctx, cancel := withStoreTimeout(ctx, s.cfg)
	defer cancel()

	links, err := s.referralRepo.ListActiveCodes(ctx, affiliateID, time.Now().UTC())
	if err != nil {
		return nil, database.StoreError(err)
	}
	return links, nil
}

// CountCustomerReferrals 推广员绑定的客户数
func (s *AttributionService) CountCustomerReferrals(ctx context.Context, affiliateID string) (int64, error) {
	ctx, cancel := withStoreTimeout(ctx, s.cfg)
	defer cancel()

	count, err := s.referralRepo.CountByAffiliate(ctx, affiliateID, models.ReferralTypeCustomerReferral)
	if err != nil {
		return 0, database.StoreError(err)
	}
	return count, nil
}

// OwnedCode 获取属于推广员的推广码
func (s *AttributionService) OwnedCode(ctx context.Context, affiliateID, code string) (*models.ReferralLink, error) {
	ctx, cancel := withStoreTimeout(ctx, s.cfg)
	defer cancel()

	link, err := s.referralRepo.GetByCode(ctx, code)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, appErrors.ErrReferralNotFound
		}
		return nil, database.StoreError(err)
	}
	if link.AffiliateID != affiliateID {
		return nil, appErrors.ErrReferralNotFound
	}
	return link, nil
}

// ShareLink 推广码分享链接
func (s *AttributionService) ShareLink(code string) string {
	u, err := url.Parse(s.cfg.ShareBaseURL)
	if err != nil || s.cfg.ShareBaseURL == "" {
		return code
	}
	q := u.Query()
	q.Set("ref", code)
	u.RawQuery = q.Encode()
	return u.String()
}

func (s *AttributionService) requireActive(ctx context.Context, affiliateID string) error {
	affiliate, err := s.affiliateRepo.GetByID(ctx, affiliateID)
	if err != nil {
		if database.IsNotFound(err) {
			return appErrors.ErrAffiliateNotFound
		}
		return database.StoreError(err)
	}
	if affiliate.Status != models.AffiliateStatusActive {
		return appErrors.ErrAffiliateNotActive
	}
	return nil
}
