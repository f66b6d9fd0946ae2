package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dumeirei/affiliate-backend/internal/models"
)

// ReferralRepository 推广关系仓储
type ReferralRepository struct {
	db *gorm.DB
}

// NewReferralRepository 创建推广关系仓储
func NewReferralRepository(db *gorm.DB) *ReferralRepository {
	return &ReferralRepository{db: db}
}

// WithTx 返回绑定到事务的仓储
func (r *ReferralRepository) WithTx(tx *gorm.DB) *ReferralRepository {
	return &ReferralRepository{db: tx}
}

// NormalizeCode 推广码统一大写存储与匹配
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CreateIfAbsent 插入推广关系，唯一键冲突时不插入
// 返回是否插入成功；推广码会被规范化
func (r *ReferralRepository) CreateIfAbsent(ctx context.Context, link *models.ReferralLink) (bool, error) {
	if link.ReferralCode != nil {
		code := NormalizeCode(*link.ReferralCode)
		link.ReferralCode = &code
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(link)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// GetByCode 根据推广码获取推广关系，大小写不敏感
func (r *ReferralRepository) GetByCode(ctx context.Context, code string) (*models.ReferralLink, error) {
	var link models.ReferralLink
	err := r.db.WithContext(ctx).
		Where("referral_code = ? AND referral_type = ?", NormalizeCode(code), models.ReferralTypeCode).
		First(&link).Error
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// GetByReferredUser 根据被推荐用户获取客户绑定关系
func (r *ReferralRepository) GetByReferredUser(ctx context.Context, userID string) (*models.ReferralLink, error) {
	var link models.ReferralLink
	err := r.db.WithContext(ctx).
		Where("referred_user_id = ? AND referral_type = ?", userID, models.ReferralTypeCustomerReferral).
		First(&link).Error
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// ListActiveCodes 获取推广员未过期的推广码
func (r *ReferralRepository) ListActiveCodes(ctx context.Context, affiliateID string, now time.Time) ([]*models.ReferralLink, error) {
	var links []*models.ReferralLink
	err := r.db.WithContext(ctx).
		Where("affiliate_id = ? AND referral_type = ?", affiliateID, models.ReferralTypeCode).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Order("created_at DESC").
		Find(&links).Error
	if err != nil {
		return nil, err
	}
	return links, nil
}

// CountByAffiliate 统计推广员的推广关系数量
func (r *ReferralRepository) CountByAffiliate(ctx context.Context, affiliateID string, referralType models.ReferralType) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ReferralLink{}).
		Where("affiliate_id = ? AND referral_type = ?", affiliateID, referralType).
		Count(&count).Error
	return count, err
}
