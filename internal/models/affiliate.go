package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ==================== 枚举 ====================

// enumValue 校验枚举值，非法值不能写入数据库
func enumValue(kind, v string, allowed ...string) (driver.Value, error) {
	for _, a := range allowed {
		if v == a {
			return v, nil
		}
	}
	return nil, fmt.Errorf("invalid %s %q", kind, v)
}

func enumScan(kind string, src interface{}, allowed ...string) (string, error) {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return "", fmt.Errorf("cannot scan %T into %s", src, kind)
	}
	if _, err := enumValue(kind, s, allowed...); err != nil {
		return "", err
	}
	return s, nil
}

// AffiliateStatus 推广员状态
type AffiliateStatus string

const (
	AffiliateStatusPending   AffiliateStatus = "pending"   // 待审核
	AffiliateStatusActive    AffiliateStatus = "active"    // 正常
	AffiliateStatusRejected  AffiliateStatus = "rejected"  // 已拒绝，终态
	AffiliateStatusSuspended AffiliateStatus = "suspended" // 已暂停
)

var affiliateStatuses = []string{"pending", "active", "rejected", "suspended"}

// Valid 是否为合法状态
func (s AffiliateStatus) Valid() bool {
	_, err := enumValue("affiliate status", string(s), affiliateStatuses...)
	return err == nil
}

// CanTransitionTo 状态机：pending→active/rejected, active→suspended, suspended→active
func (s AffiliateStatus) CanTransitionTo(to AffiliateStatus) bool {
	switch s {
	case AffiliateStatusPending:
		return to == AffiliateStatusActive || to == AffiliateStatusRejected
	case AffiliateStatusActive:
		return to == AffiliateStatusSuspended
	case AffiliateStatusSuspended:
		return to == AffiliateStatusActive
	}
	return false
}

// Value 实现 driver.Valuer 接口
func (s AffiliateStatus) Value() (driver.Value, error) {
	return enumValue("affiliate status", string(s), affiliateStatuses...)
}

// Scan 实现 sql.Scanner 接口
func (s *AffiliateStatus) Scan(src interface{}) error {
	v, err := enumScan("affiliate status", src, affiliateStatuses...)
	*s = AffiliateStatus(v)
	return err
}

// AffiliateType 推广员类型
type AffiliateType string

const (
	AffiliateTypeIndividual AffiliateType = "individual"
	AffiliateTypeCompany    AffiliateType = "company"
)

var affiliateTypes = []string{"individual", "company"}

// Valid 是否为合法类型
func (t AffiliateType) Valid() bool {
	_, err := enumValue("affiliate type", string(t), affiliateTypes...)
	return err == nil
}

// Value 实现 driver.Valuer 接口
func (t AffiliateType) Value() (driver.Value, error) {
	return enumValue("affiliate type", string(t), affiliateTypes...)
}

// Scan 实现 sql.Scanner 接口
func (t *AffiliateType) Scan(src interface{}) error {
	v, err := enumScan("affiliate type", src, affiliateTypes...)
	*t = AffiliateType(v)
	return err
}

// ReferralType 推广方式
type ReferralType string

const (
	ReferralTypeCode             ReferralType = "code"              // 推广码
	ReferralTypeCustomerReferral ReferralType = "customer_referral" // 客户绑定
)

var referralTypes = []string{"code", "customer_referral"}

// Value 实现 driver.Valuer 接口
func (t ReferralType) Value() (driver.Value, error) {
	return enumValue("referral type", string(t), referralTypes...)
}

// Scan 实现 sql.Scanner 接口
func (t *ReferralType) Scan(src interface{}) error {
	v, err := enumScan("referral type", src, referralTypes...)
	*t = ReferralType(v)
	return err
}

// CommissionStatus 佣金状态，只能向前推进
type CommissionStatus string

const (
	CommissionStatusPending CommissionStatus = "pending" // 待确认
	CommissionStatusEarned  CommissionStatus = "earned"  // 已到账
	CommissionStatusPaid    CommissionStatus = "paid"    // 已结清
)

var commissionStatuses = []string{"pending", "earned", "paid"}

// Valid 是否为合法状态
func (s CommissionStatus) Valid() bool {
	_, err := enumValue("commission status", string(s), commissionStatuses...)
	return err == nil
}

// Value 实现 driver.Valuer 接口
func (s CommissionStatus) Value() (driver.Value, error) {
	return enumValue("commission status", string(s), commissionStatuses...)
}

// Scan 实现 sql.Scanner 接口
func (s *CommissionStatus) Scan(src interface{}) error {
	v, err := enumScan("commission status", src, commissionStatuses...)
	*s = CommissionStatus(v)
	return err
}

// PayoutMethod 提现方式
type PayoutMethod string

const (
	PayoutMethodGateway      PayoutMethod = "gateway"       // 支付网关
	PayoutMethodBankTransfer PayoutMethod = "bank_transfer" // 银行转账
	PayoutMethodMobileMoney  PayoutMethod = "mobile_money"  // 移动钱包
)

var payoutMethods = []string{"gateway", "bank_transfer", "mobile_money"}

// Valid 是否为合法提现方式
func (m PayoutMethod) Valid() bool {
	_, err := enumValue("payout method", string(m), payoutMethods...)
	return err == nil
}

// Value 实现 driver.Valuer 接口
func (m PayoutMethod) Value() (driver.Value, error) {
	return enumValue("payout method", string(m), payoutMethods...)
}

// Scan 实现 sql.Scanner 接口
func (m *PayoutMethod) Scan(src interface{}) error {
	v, err := enumScan("payout method", src, payoutMethods...)
	*m = PayoutMethod(v)
	return err
}

// PayoutStatus 提现状态
type PayoutStatus string

const (
	PayoutStatusPending PayoutStatus = "pending" // 处理中
	PayoutStatusPaid    PayoutStatus = "paid"    // 已打款
	PayoutStatusFailed  PayoutStatus = "failed"  // 失败
)

var payoutStatuses = []string{"pending", "paid", "failed"}

// Valid 是否为合法状态
func (s PayoutStatus) Valid() bool {
	_, err := enumValue("payout status", string(s), payoutStatuses...)
	return err == nil
}

// Value 实现 driver.Valuer 接口
func (s PayoutStatus) Value() (driver.Value, error) {
	return enumValue("payout status", string(s), payoutStatuses...)
}

// Scan 实现 sql.Scanner 接口
func (s *PayoutStatus) Scan(src interface{}) error {
	v, err := enumScan("payout status", src, payoutStatuses...)
	*s = PayoutStatus(v)
	return err
}

// ==================== 收款信息 ====================

// PayoutDetails 收款信息，以 JSON 存储
type PayoutDetails struct {
	AccountName    string `json:"account_name,omitempty"`
	BankName       string `json:"bank_name,omitempty"`
	AccountNumber  string `json:"account_number,omitempty"`
	MobileNumber   string `json:"mobile_number,omitempty"`
	MobileProvider string `json:"mobile_provider,omitempty"`
	GatewayEmail   string `json:"gateway_email,omitempty"`
}

// IsZero 是否未填写任何收款信息
func (d PayoutDetails) IsZero() bool {
	return d == PayoutDetails{}
}

// Value 实现 driver.Valuer 接口
func (d PayoutDetails) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan 实现 sql.Scanner 接口
func (d *PayoutDetails) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*d = PayoutDetails{}
		return nil
	case []byte:
		return json.Unmarshal(v, d)
	case string:
		return json.Unmarshal([]byte(v), d)
	default:
		return fmt.Errorf("cannot scan %T into payout details", src)
	}
}

// ==================== 模型 ====================

// Affiliate 推广员
type Affiliate struct {
	ID               string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	FullName         string          `gorm:"type:varchar(128);not null" json:"full_name"`
	Email            string          `gorm:"type:varchar(255);not null;index" json:"email"`
	Phone            string          `gorm:"type:varchar(32);not null" json:"phone"`
	CompanyName      *string         `gorm:"type:varchar(255)" json:"company_name,omitempty"`
	Type             AffiliateType   `gorm:"type:varchar(16);not null" json:"type"`
	PromotionChannel string          `gorm:"type:varchar(64);not null" json:"promotion_channel"`
	PlatformLink     string          `gorm:"type:varchar(512);not null" json:"platform_link"`
	Country          string          `gorm:"type:varchar(64);not null" json:"country"`
	AudienceSize     *string         `gorm:"type:varchar(64)" json:"audience_size,omitempty"`
	Motivation       *string         `gorm:"type:text" json:"motivation,omitempty"`
	TermsAccepted    bool            `gorm:"not null;default:false" json:"terms_accepted"`
	Status           AffiliateStatus `gorm:"type:varchar(16);not null;default:pending;index" json:"status"`
	CommissionTier   decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"commission_tier"`
	PayoutDetails    *PayoutDetails  `gorm:"type:text" json:"payout_details,omitempty"`
	StatusReason     *string         `gorm:"type:text" json:"status_reason,omitempty"`
	ApprovedAt       *time.Time      `json:"approved_at,omitempty"`
	ApprovedBy       *string         `gorm:"type:varchar(64)" json:"approved_by,omitempty"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 表名
func (Affiliate) TableName() string {
	return "affiliates"
}

// BeforeCreate 生成 UUID
func (a *Affiliate) BeforeCreate(*gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// HasPayoutDetails 是否已配置收款信息
func (a *Affiliate) HasPayoutDetails() bool {
	return a.PayoutDetails != nil && !a.PayoutDetails.IsZero()
}

// ReferralLink 推广关系：推广码或客户绑定，二者必居其一
type ReferralLink struct {
	ID             string       `gorm:"type:varchar(36);primaryKey" json:"id"`
	AffiliateID    string       `gorm:"type:varchar(36);not null;index" json:"affiliate_id"`
	ReferralType   ReferralType `gorm:"type:varchar(32);not null" json:"referral_type"`
	ReferralCode   *string      `gorm:"type:varchar(64);uniqueIndex" json:"referral_code,omitempty"`
	ReferredUserID *string      `gorm:"type:varchar(64);uniqueIndex" json:"referred_user_id,omitempty"`
	ExpiresAt      *time.Time   `json:"expires_at,omitempty"`
	CreatedAt      time.Time    `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 表名
func (ReferralLink) TableName() string {
	return "affiliate_referrals"
}

// BeforeCreate 生成 UUID
func (r *ReferralLink) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// IsExpired 推广码是否已过期
func (r *ReferralLink) IsExpired(now time.Time) bool {
	return r.ExpiresAt != nil && !r.ExpiresAt.After(now)
}

// Commission 佣金记录，每个订单至多一条
// 比例与金额在创建时冻结
type Commission struct {
	ID               string           `gorm:"type:varchar(36);primaryKey" json:"id"`
	AffiliateID      string           `gorm:"type:varchar(36);not null;index" json:"affiliate_id"`
	OrderID          string           `gorm:"type:varchar(64);not null;uniqueIndex" json:"order_id"`
	OrderTotal       decimal.Decimal  `gorm:"type:decimal(12,2);not null" json:"order_total"`
	CommissionRate   decimal.Decimal  `gorm:"type:decimal(5,2);not null" json:"commission_rate"`
	CommissionAmount decimal.Decimal  `gorm:"type:decimal(12,2);not null" json:"commission_amount"`
	ReferralType     ReferralType     `gorm:"type:varchar(32);not null" json:"referral_type"`
	ReferralCode     *string          `gorm:"type:varchar(64)" json:"referral_code,omitempty"`
	ReferredUserID   *string          `gorm:"type:varchar(64)" json:"referred_user_id,omitempty"`
	Status           CommissionStatus `gorm:"type:varchar(16);not null;default:pending;index" json:"status"`
	OrderDate        *time.Time       `json:"order_date,omitempty"`
	CreatedAt        time.Time        `gorm:"autoCreateTime" json:"created_at"`
	EarnedAt         *time.Time       `gorm:"index" json:"earned_at,omitempty"`
	PaidAt           *time.Time       `json:"paid_at,omitempty"`
	TransactionID    *string          `gorm:"type:varchar(128)" json:"transaction_id,omitempty"`
}

// TableName 表名
func (Commission) TableName() string {
	return "affiliate_commissions"
}

// BeforeCreate 生成 UUID
func (c *Commission) BeforeCreate(*gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// CommissionAmountFor 佣金 = 订单金额 × 比例 / 100，保留两位小数
func CommissionAmountFor(orderTotal, rate decimal.Decimal) decimal.Decimal {
	return orderTotal.Mul(rate).Div(decimal.NewFromInt(100)).Round(2)
}

// Payout 提现申请
type Payout struct {
	ID           string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	AffiliateID  string          `gorm:"type:varchar(36);not null;index" json:"affiliate_id"`
	Amount       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	PayoutMethod PayoutMethod    `gorm:"type:varchar(32);not null" json:"payout_method"`
	Status       PayoutStatus    `gorm:"type:varchar(16);not null;default:pending;index" json:"status"`
	RequestDate  time.Time       `gorm:"not null" json:"request_date"`
	ProcessedAt  *time.Time      `json:"processed_at,omitempty"`
}

// TableName 表名
func (Payout) TableName() string {
	return "affiliate_payouts"
}

// BeforeCreate 生成 UUID
func (p *Payout) BeforeCreate(*gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// CommissionTier 佣金等级，按 90 天内到账订单数匹配
type CommissionTier struct {
	ID                   string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name                 string          `gorm:"type:varchar(64);not null" json:"name"`
	MinOrders            int             `gorm:"not null" json:"min_orders"`
	MaxOrders            *int            `json:"max_orders,omitempty"`
	CommissionPercentage decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"commission_percentage"`
	IsActive             bool            `gorm:"not null;default:true" json:"is_active"`
}

// TableName 表名
func (CommissionTier) TableName() string {
	return "affiliate_commission_tiers"
}

// BeforeCreate 生成 UUID
func (t *CommissionTier) BeforeCreate(*gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// Matches 订单数是否落在区间内，上限为空表示不封顶
func (t *CommissionTier) Matches(count int) bool {
	if count < t.MinOrders {
		return false
	}
	return t.MaxOrders == nil || count <= *t.MaxOrders
}

// AllModels 全部业务模型，供测试建表使用
func AllModels() []interface{} {
	return []interface{}{
		&Affiliate{},
		&ReferralLink{},
		&Commission{},
		&Payout{},
		&CommissionTier{},
	}
}
