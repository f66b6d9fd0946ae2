// Package repository 提供数据访问层
package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dumeirei/affiliate-backend/internal/models"
)

// AffiliateRepository 推广员仓储
type AffiliateRepository struct {
	db *gorm.DB
}

// NewAffiliateRepository 创建推广员仓储
func NewAffiliateRepository(db *gorm.DB) *AffiliateRepository {
	return &AffiliateRepository{db: db}
}

// WithTx 返回绑定到事务的仓储
func (r *AffiliateRepository) WithTx(tx *gorm.DB) *AffiliateRepository {
	return &AffiliateRepository{db: tx}
}

// Create 创建推广员
func (r *AffiliateRepository) Create(ctx context.Context, affiliate *models.Affiliate) error {
	return r.db.WithContext(ctx).Create(affiliate).Error
}

// GetByID 根据 ID 获取推广员
func (r *AffiliateRepository) GetByID(ctx context.Context, id string) (*models.Affiliate, error) {
	var affiliate models.Affiliate
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&affiliate).Error
	if err != nil {
		return nil, err
	}
	return &affiliate, nil
}

// AffiliateListFilter 推广员列表过滤条件
type AffiliateListFilter struct {
	Status *models.AffiliateStatus
	SortBy string
}

// affiliateSortColumns 允许排序的列
var affiliateSortColumns = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"full_name":  "full_name",
	"status":     "status",
}

// List 分页获取推广员列表，按指定列降序
func (r *AffiliateRepository) List(ctx context.Context, offset, limit int, filter *AffiliateListFilter) ([]*models.Affiliate, int64, error) {
	var affiliates []*models.Affiliate
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Affiliate{})
	sortColumn := "created_at"
	if filter != nil {
		if filter.Status != nil {
			query = query.Where("status = ?", *filter.Status)
		}
		if col, ok := affiliateSortColumns[filter.SortBy]; ok {
			sortColumn = col
		}
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.Order(sortColumn + " DESC").Order("id").Offset(offset).Limit(limit).Find(&affiliates).Error; err != nil {
		return nil, 0, err
	}

	return affiliates, total, nil
}

// TransitionStatus 条件更新状态，仅当当前状态为 from 时生效
// 返回是否有行被更新
func (r *AffiliateRepository) TransitionStatus(ctx context.Context, id string, from, to models.AffiliateStatus, fields map[string]interface{}) (bool, error) {
	updates := map[string]interface{}{"status": to}
	for k, v := range fields {
		updates[k] = v
	}
	result := r.db.WithContext(ctx).Model(&models.Affiliate{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// UpdatePayoutDetails 更新收款信息
func (r *AffiliateRepository) UpdatePayoutDetails(ctx context.Context, id string, details models.PayoutDetails) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Affiliate{}).
		Where("id = ?", id).
		Update("payout_details", details)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// UpdateCommissionTier 更新当前佣金比例（仅展示用）
func (r *AffiliateRepository) UpdateCommissionTier(ctx context.Context, id string, rate decimal.Decimal) error {
	return r.db.WithContext(ctx).Model(&models.Affiliate{}).
		Where("id = ?", id).
		Update("commission_tier", rate).Error
}

// TierSnapshot 推广员当前展示比例
type TierSnapshot struct {
	ID             string
	CommissionTier decimal.Decimal
}

// ListTierSnapshots 获取指定状态推广员的当前展示比例
func (r *AffiliateRepository) ListTierSnapshots(ctx context.Context, status models.AffiliateStatus) ([]TierSnapshot, error) {
	var rows []TierSnapshot
	err := r.db.WithContext(ctx).Model(&models.Affiliate{}).
		Select("id, commission_tier").
		Where("status = ?", status).
		Order("id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// LockForUpdate 通过更新时间戳获取推广员行写锁，须在事务内调用
// 行锁持有到事务结束，同一推广员的并发提现因此串行
func (r *AffiliateRepository) LockForUpdate(ctx context.Context, id string, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Exec("UPDATE affiliates SET updated_at = ? WHERE id = ?", now, id)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// StatusCount 状态计数
type StatusCount struct {
	Status models.AffiliateStatus
	Count  int64
}

// CountByStatus 按状态统计推广员数量
func (r *AffiliateRepository) CountByStatus(ctx context.Context) (map[models.AffiliateStatus]int64, error) {
	var rows []StatusCount
	err := r.db.WithContext(ctx).Model(&models.Affiliate{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[models.AffiliateStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
