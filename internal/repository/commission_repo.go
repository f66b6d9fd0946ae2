package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dumeirei/affiliate-backend/internal/models"
)

// CommissionRepository 佣金仓储
type CommissionRepository struct {
	db *gorm.DB
}

// NewCommissionRepository 创建佣金仓储
func NewCommissionRepository(db *gorm.DB) *CommissionRepository {
	return &CommissionRepository{db: db}
}

// WithTx 返回绑定到事务的仓储
func (r *CommissionRepository) WithTx(tx *gorm.DB) *CommissionRepository {
	return &CommissionRepository{db: tx}
}

// CreateIfAbsent 按订单幂等插入佣金，order_id 冲突时不插入
// 返回是否插入成功
func (r *CommissionRepository) CreateIfAbsent(ctx context.Context, commission *models.Commission) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "order_id"}}, DoNothing: true}).
		Create(commission)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// GetByID 根据 ID 获取佣金记录
func (r *CommissionRepository) GetByID(ctx context.Context, id string) (*models.Commission, error) {
	var commission models.Commission
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&commission).Error
	if err != nil {
		return nil, err
	}
	return &commission, nil
}

// GetByOrderID 根据订单 ID 获取佣金记录
func (r *CommissionRepository) GetByOrderID(ctx context.Context, orderID string) (*models.Commission, error) {
	var commission models.Commission
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&commission).Error
	if err != nil {
		return nil, err
	}
	return &commission, nil
}

// ConfirmEarned 将订单下 pending 佣金置为 earned
// 逐行条件更新，只返回本次调用实际推进的记录
func (r *CommissionRepository) ConfirmEarned(ctx context.Context, orderID, transactionID string, now time.Time) ([]*models.Commission, error) {
	var pending []*models.Commission
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, models.CommissionStatusPending).
		Find(&pending).Error
	if err != nil {
		return nil, err
	}

	transitioned := make([]*models.Commission, 0, len(pending))
	for _, c := range pending {
		result := r.db.WithContext(ctx).Model(&models.Commission{}).
			Where("id = ? AND status = ?", c.ID, models.CommissionStatusPending).
			Updates(map[string]interface{}{
				"status":         models.CommissionStatusEarned,
				"earned_at":      now,
				"transaction_id": transactionID,
			})
		if result.Error != nil {
			return transitioned, result.Error
		}
		if result.RowsAffected == 0 {
			// 被并发调用抢先推进
			continue
		}
		c.Status = models.CommissionStatusEarned
		c.EarnedAt = &now
		c.TransactionID = &transactionID
		transitioned = append(transitioned, c)
	}
	return transitioned, nil
}

// MarkPaid 条件更新 earned→paid，返回是否推进
func (r *CommissionRepository) MarkPaid(ctx context.Context, id string, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Commission{}).
		Where("id = ? AND status = ?", id, models.CommissionStatusEarned).
		Updates(map[string]interface{}{
			"status":  models.CommissionStatusPaid,
			"paid_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// CountEarnedInWindow 统计 (from, to] 内到账的 earned 佣金数
func (r *CommissionRepository) CountEarnedInWindow(ctx context.Context, affiliateID string, from, to time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Commission{}).
		Where("affiliate_id = ? AND status = ?", affiliateID, models.CommissionStatusEarned).
		Where("earned_at > ? AND earned_at <= ?", from, to).
		Count(&count).Error
	return count, err
}

type sumRow struct {
	Total decimal.Decimal
}

type statusSum struct {
	Status models.CommissionStatus
	Total  decimal.Decimal
}

// SumByStatus 按状态汇总佣金金额，affiliateID 为空时汇总全部
func (r *CommissionRepository) SumByStatus(ctx context.Context, affiliateID string) (map[models.CommissionStatus]decimal.Decimal, error) {
	var rows []statusSum
	query := r.db.WithContext(ctx).Model(&models.Commission{}).
		Select("status, COALESCE(SUM(commission_amount), 0) AS total")
	if affiliateID != "" {
		query = query.Where("affiliate_id = ?", affiliateID)
	}
	if err := query.Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}

	sums := map[models.CommissionStatus]decimal.Decimal{
		models.CommissionStatusPending: decimal.Zero,
		models.CommissionStatusEarned:  decimal.Zero,
		models.CommissionStatusPaid:    decimal.Zero,
	}
	for _, row := range rows {
		sums[row.Status] = row.Total.Round(2)
	}
	return sums, nil
}

// SumSettled 汇总推广员 earned 与 paid 状态佣金，用于计算可提现余额
// paid 佣金对应的提现仍计入已占用提现，两侧同时计入才不会重复扣减
func (r *CommissionRepository) SumSettled(ctx context.Context, affiliateID string) (decimal.Decimal, error) {
	var row sumRow
	err := r.db.WithContext(ctx).Model(&models.Commission{}).
		Select("COALESCE(SUM(commission_amount), 0) AS total").
		Where("affiliate_id = ? AND status IN ?", affiliateID,
			[]models.CommissionStatus{models.CommissionStatusEarned, models.CommissionStatusPaid}).
		Scan(&row).Error
	if err != nil {
		return decimal.Zero, err
	}
	return row.Total.Round(2), nil
}

// CommissionListFilter 佣金列表过滤条件
type CommissionListFilter struct {
	Status *models.CommissionStatus
	SortBy string
}

// CommissionSortColumns 允许排序的列
var CommissionSortColumns = map[string]string{
	"created_at":        "created_at",
	"earned_at":         "earned_at",
	"order_total":       "order_total",
	"commission_amount": "commission_amount",
}

// DefaultCommissionSort 默认排序列
const DefaultCommissionSort = "earned_at"

// ListByAffiliate 分页获取推广员佣金记录，按指定列降序，空值排最后
func (r *CommissionRepository) ListByAffiliate(ctx context.Context, affiliateID string, offset, limit int, filter *CommissionListFilter) ([]*models.Commission, int64, error) {
	var commissions []*models.Commission
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Commission{}).Where("affiliate_id = ?", affiliateID)
	sortColumn := DefaultCommissionSort
	if filter != nil {
		if filter.Status != nil {
			query = query.Where("status = ?", *filter.Status)
		}
		if col, ok := CommissionSortColumns[filter.SortBy]; ok {
			sortColumn = col
		}
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("CASE WHEN " + sortColumn + " IS NULL THEN 1 ELSE 0 END").
		Order(sortColumn + " DESC").
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&commissions).Error
	if err != nil {
		return nil, 0, err
	}

	return commissions, total, nil
}
