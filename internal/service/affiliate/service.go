// Package affiliate 推广员服务
// 包含申请审核、推广归因、佣金等级、佣金台账与提现
package affiliate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dumeirei/affiliate-backend/internal/common/config"
	appErrors "github.com/dumeirei/affiliate-backend/internal/common/errors"
	"github.com/dumeirei/affiliate-backend/internal/common/utils"
	"github.com/dumeirei/affiliate-backend/internal/models"
	"github.com/dumeirei/affiliate-backend/internal/repository"
)

// Notifier 推广员邮件通知
// 调用方异步发送，失败只记录日志
type Notifier interface {
	SendApprovalEmail(ctx context.Context, email, fullName, referralCode string) error
	SendRejectionEmail(ctx context.Context, email, fullName, reason string) error
}

// PageResult 分页结果
type PageResult[T any] struct {
	List       []T   `json:"list"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"total_pages"`
}

func newPageResult[T any](list []T, total int64, p utils.Pagination) *PageResult[T] {
	if list == nil {
		list = []T{}
	}
	return &PageResult[T]{
		List:       list,
		Total:      total,
		Page:       p.Page,
		Limit:      p.Limit,
		TotalPages: utils.TotalPages(total, p.Limit),
	}
}

// withStoreTimeout 为单次业务操作设置存储超时
func withStoreTimeout(ctx context.Context, cfg *config.AffiliateConfig) (context.Context, context.CancelFunc) {
	if d := cfg.StoreTimeout(); d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}

func nopIfNil(log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}

func defaultConfig(cfg *config.AffiliateConfig) *config.AffiliateConfig {
	if cfg == nil {
		return &config.Default().Business.Affiliate
	}
	return cfg
}

// GenerateReferralCode 生成推广码：<前缀>-<推广员 ID 前 8 位>-<6 位随机>
func GenerateReferralCode(prefix, affiliateID string) (string, error) {
	short := strings.ReplaceAll(affiliateID, "-", "")
	if len(short) > 8 {
		short = short[:8]
	}
	suffix, err := utils.GenerateCode(6)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s-%s", strings.ToUpper(prefix), strings.ToUpper(short), suffix), nil
}

// codeIssuer 生成并持久化推广码，冲突时重新生成
type codeIssuer struct {
	prefix     string
	maxRetries int
	generate   func(prefix, affiliateID string) (string, error)
}

func newCodeIssuer(cfg *config.AffiliateConfig) *codeIssuer {
	retries := cfg.CodeMaxRetries
	if retries < 1 {
		retries = 1
	}
	return &codeIssuer{
		prefix:     cfg.ReferralCodePrefix,
		maxRetries: retries,
		generate:   GenerateReferralCode,
	}
}

func (c *codeIssuer) issue(ctx context.Context, repo *repository.ReferralRepository, affiliateID string, expiresAt *time.Time) (*models.ReferralLink, error) {
	for i := 0; i < c.maxRetries; i++ {
		code, err := c.generate(c.prefix, affiliateID)
		if err != nil {
			return nil, appErrors.ErrInternalError.WithError(err)
		}
		link := &models.ReferralLink{
			AffiliateID:  affiliateID,
			ReferralType: models.ReferralTypeCode,
			ReferralCode: &code,
			ExpiresAt:    expiresAt,
		}
		inserted, err := repo.CreateIfAbsent(ctx, link)
		if err != nil {
			return nil, err
		}
		if inserted {
			return link, nil
		}
	}
	return nil, appErrors.ErrReferralCodeExhausted
}
