// Package testutil 提供测试用数据库与数据构造函数
package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dumeirei/affiliate-backend/internal/models"
)

// NewTestDB 创建按测试名隔离的内存数据库
// 单连接，写操作天然串行
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.AllModels()...))
	return db
}

// SeedTiers 写入默认等级：0-9 3%，10-29 5%，30+ 8%
func SeedTiers(t *testing.T, db *gorm.DB) {
	t.Helper()
	nine, twentyNine := 9, 29
	tiers := []*models.CommissionTier{
		{Name: "Bronze", MinOrders: 0, MaxOrders: &nine, CommissionPercentage: decimal.NewFromInt(3), IsActive: true},
		{Name: "Silver", MinOrders: 10, MaxOrders: &twentyNine, CommissionPercentage: decimal.NewFromInt(5), IsActive: true},
		{Name: "Gold", MinOrders: 30, CommissionPercentage: decimal.NewFromInt(8), IsActive: true},
	}
	require.NoError(t, db.Create(tiers).Error)
}

// AffiliateOption 推广员构造选项
type AffiliateOption func(*models.Affiliate)

// WithPayoutDetails 设置收款信息
func WithPayoutDetails() AffiliateOption {
	return func(a *models.Affiliate) {
		a.PayoutDetails = &models.PayoutDetails{AccountName: "Jane Doe", BankName: "First Bank", AccountNumber: "0123456789"}
	}
}

// WithEmail 设置邮箱
func WithEmail(email string) AffiliateOption {
	return func(a *models.Affiliate) {
		a.Email = email
	}
}

// CreateAffiliate 写入一个指定状态的推广员
func CreateAffiliate(t *testing.T, db *gorm.DB, status models.AffiliateStatus, opts ...AffiliateOption) *models.Affiliate {
	t.Helper()
	a := &models.Affiliate{
		FullName:         "Jane Doe",
		Email:            "jane@example.com",
		Phone:            "+2348012345678",
		Type:             models.AffiliateTypeIndividual,
		PromotionChannel: "instagram",
		PlatformLink:     "https://instagram.com/jane",
		Country:          "NG",
		TermsAccepted:    true,
		Status:           status,
		CommissionTier:   decimal.NewFromInt(3),
	}
	for _, opt := range opts {
		opt(a)
	}
	require.NoError(t, db.Create(a).Error)
	return a
}

// CreateCodeLink 写入一个推广码
func CreateCodeLink(t *testing.T, db *gorm.DB, affiliateID, code string, expiresAt *time.Time) *models.ReferralLink {
	t.Helper()
	link := &models.ReferralLink{
		AffiliateID:  affiliateID,
		ReferralType: models.ReferralTypeCode,
		ReferralCode: &code,
		ExpiresAt:    expiresAt,
	}
	require.NoError(t, db.Create(link).Error)
	return link
}

// CreateCustomerLink 写入一个客户绑定
func CreateCustomerLink(t *testing.T, db *gorm.DB, affiliateID, userID string) *models.ReferralLink {
	t.Helper()
	link := &models.ReferralLink{
		AffiliateID:    affiliateID,
		ReferralType:   models.ReferralTypeCustomerReferral,
		ReferredUserID: &userID,
	}
	require.NoError(t, db.Create(link).Error)
	return link
}

// CreateCommission 写入一条佣金记录，earned/paid 状态自动补齐时间
func CreateCommission(t *testing.T, db *gorm.DB, affiliateID, orderID string, amount string, status models.CommissionStatus, earnedAt *time.Time) *models.Commission {
	t.Helper()
	amt := decimal.RequireFromString(amount)
	c := &models.Commission{
		AffiliateID:      affiliateID,
		OrderID:          orderID,
		OrderTotal:       amt.Mul(decimal.NewFromInt(100)).Div(decimal.NewFromInt(3)).Round(2),
		CommissionRate:   decimal.NewFromInt(3),
		CommissionAmount: amt,
		ReferralType:     models.ReferralTypeCode,
		Status:           status,
		EarnedAt:         earnedAt,
	}
	if status != models.CommissionStatusPending && c.EarnedAt == nil {
		now := time.Now().UTC()
		c.EarnedAt = &now
	}
	if status == models.CommissionStatusPaid {
		now := time.Now().UTC()
		c.PaidAt = &now
	}
	require.NoError(t, db.Create(c).Error)
	return c
}

// CreatePayout 写入一条提现记录
func CreatePayout(t *testing.T, db *gorm.DB, affiliateID, amount string, status models.PayoutStatus, requestDate time.Time) *models.Payout {
	t.Helper()
	p := &models.Payout{
		AffiliateID:  affiliateID,
		Amount:       decimal.RequireFromString(amount),
		PayoutMethod: models.PayoutMethodBankTransfer,
		Status:       status,
		RequestDate:  requestDate.UTC(),
	}
	require.NoError(t, db.Create(p).Error)
	return p
}
