package affiliate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/dumeirei/affiliate-backend/internal/common/errors"
	"github.com/dumeirei/affiliate-backend/internal/common/utils"
	"github.com/dumeirei/affiliate-backend/internal/models"
	"github.com/dumeirei/affiliate-backend/internal/testutil"
)

func pendingRequest(affiliateID, orderID, total string) *CreatePendingRequest {
	return &CreatePendingRequest{
		AffiliateID:  affiliateID,
		OrderID:      orderID,
		OrderTotal:   decimal.RequireFromString(total),
		ReferralType: models.ReferralTypeCode,
		ReferralCode: utils.StringPtr("AFFY-TEST"),
	}
}

func TestLedgerService_CreatePending(t *testing.T) {
	ctx := context.Background()

	t.Run("按当前等级计算佣金", func(t *testing.T) {
		env := newTestEnv(t)
		a := testutil.CreateAffiliate(t, env.db, models.AffiliateStatusActive)

		c, created, err := env.ledger.CreatePending(ctx, pendingRequest(a.ID, "order-1", "1000"))
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, models.CommissionStatusPending, c.Status)
		assert.True(t, decimal.NewFromInt(3).Equal(c.CommissionRate))
		assert.Equal(t, "30.00", c.CommissionAmount.StringFixed(2))
	})

	t.Run("同一订单重复调用只产生一条", func(t *testing.T) {
		env := newTestEnv(t)
		a := testutil.CreateAffiliate(t, env.db, models.AffiliateStatusActive)

		first, created, err := env.ledger.CreatePending(ctx, pendingRequest(a.ID, "order-1", "1000"))
		require.NoError(t, err)
		assert.True(t, created)

		second, created, err := env.ledger.CreatePending(ctx, pendingRequest(a.ID, "order-1", "2000"))
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, first.ID, second.ID)
		assert.True(t, first.CommissionAmount.Equal(second.CommissionAmount))

		var count int64
		require.NoError(t, env.db.Model(&models.Commission{}).Where("order_id = ?", "order-1").Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})

	t.Run("并发重复调用只产生一条", func(t *testing.T) {
		env := newTestEnv(t)
		a := testutil.CreateAffiliate(t, env.db, models.AffiliateStatusActive)

		var wg sync.WaitGroup
		ids := make([]string, 8)
		errs := make([]error, 8)
		for i := range ids {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				c, _, err := env.ledger.CreatePending(ctx, pendingRequest(a.ID, "order-race", "100"))
				errs[i] = err
				if c != nil {
					ids[i] = c.ID
				}
			}(i)
		}
		wg.Wait()

		for i := range ids {
			require.NoError(t, errs[i])
			assert.Equal(t, ids[0], ids[i])
		}
		var count int64
		require.NoError(t, env.db.Model(&models.Commission{}).Where("order_id = ?", "order-race").Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})

	t.Run("等级变化后已有佣金金额不变", func(t *testing.T) {
		env := newTestEnv(t)
		a := testutil.CreateAffiliate(t, env.db, models.AffiliateStatusActive)

		before, _, err := env.ledger.CreatePending(ctx, pendingRequest(a.ID, "order-1", "1000"))
		require.NoError(t, err)

		// 全部等级改为 10%
		require.NoError(t, env.db.Model(&models.CommissionTier{}).Where("1 = 1").
			Update("commission_percentage", decimal.NewFromInt(10)).Error)

		after, _, err := env.ledger.CreatePending(ctx, pendingRequest(a.ID, "order-2", "1000"))
		require.NoError(t, err)
		assert.Equal(t, "100.00", after.CommissionAmount.StringFixed(2))

		var stored models.Commission
		require.NoError(t, env.db.Where("id = ?", before.ID).First(&stored).Error)
		assert.Equal(t, "30.00", stored.CommissionAmount.StringFixed(2))
		assert.True(t, decimal.NewFromInt(3).Equal(stored.CommissionRate))
	})

	t.Run("更新推广员当前等级", func(t *testing.T) {
		env := newTestEnv(t)
		a := testutil.CreateAffiliate(t, env.db, models.AffiliateStatusActive)
		earnedAt := time.Now().UTC().Add(-time.Hour)
		for i := 0; i < 10; i++ {
			testutil.CreateCommission(t, env.db, a.ID, fmt.Sprintf("old-%d", i), "1.00", models.CommissionStatusEarned, &earnedAt)
		}

		c, _, err := env.ledger.CreatePending(ctx, pendingRequest(a.ID, "order-new", "200"))
		require.NoError(t, err)
		assert.Equal(t, "10.00", c.CommissionAmount.StringFixed(2))

		got, err := env.registry.Get(ctx, a.ID)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(5).Equal(got.CommissionTier))
	})

	t.Run("参数校验", func(t *testing.T) {
		env := newTestEnv(t)
		a := testutil.CreateAffiliate(t, env.db, models.AffiliateStatusActive)

		_, _, err := env.ledger.CreatePending(ctx, pendingRequest(a.ID, "order-1", "0"))
		assert.True(t, errors.Is(err, appErrors.ErrOrderAmountInvalid))

		_, _, err = env.ledger.CreatePending(ctx, pendingRequest(a.ID, "", "10"))
		assert.True(t, appErrors.IsKind(err, appErrors.KindValidation))

		_, _, err = env.ledger.CreatePending(ctx, pendingRequest("missing", "order-1", "10"))
		assert.True(t, errors.Is(err, appErrors.ErrAffiliateNotFound))
	})

	t.Run("非激活推广员不产生佣金", func(t *testing.T) {
		env := newTestEnv(t)
		for _, status := range []models.AffiliateStatus{
			models.AffiliateStatusPending,
			models.AffiliateStatusSuspended,
			models.AffiliateStatusRejected,
		} {
			a := testutil.CreateAffiliate(t, env.db, status)
			c, created, err := env.ledger.CreatePending(ctx, pendingRequest(a.ID, "order-"+string(status), "100"))
			assert.True(t, errors.Is(err, appErrors.ErrAffiliateNotActive), "status %s: %v", status, err)
			assert.False(t, created)
			assert.Nil(t, c)
		}

		var count int64
		require.NoError(t, env.db.Model(&models.Commission{}).Count(&count).Error)
		assert.Equal(t, int64(0), count)
	})
}

func TestLedgerService_ConfirmEarned(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a := testutil.CreateAffiliate(t, env.db, models.AffiliateStatusActive)
	_, _, err := env.ledger.CreatePending(ctx, pendingRequest(a.ID, "order-1", "1000"))
	require.NoError(t, err)

	first, err := env.ledger.ConfirmEarned(ctx, "order-1", "txn-1")
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, models.CommissionStatusEarned, first[0].Status)
	require.NotNil(t, first[0].EarnedAt)

	var snapshot models.Commission
	require.NoError(t, env.db.Where("order_id = ?", "order-1").First(&snapshot).Error)

	second, err := env.ledger.ConfirmEarned(ctx, "order-1", "txn-retry")
	require.NoError(t, err)
	assert.Empty(t, second)

	var after models.Commission
	require.NoError(t, env.db.Where("order_id = ?", "order-1").First(&after).Error)
	assert.Equal(t, snapshot.Status, after.Status)
	assert.Equal(t, *snapshot.TransactionID, *after.TransactionID)
	assert.True(t, snapshot.EarnedAt.Equal(*after.EarnedAt))

	none, err := env.ledger.ConfirmEarned(ctx, "order-unknown", "txn-2")
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = env.ledger.ConfirmEarned(ctx, " ", "txn-3")
	assert.True(t, appErrors.IsKind(err, appErrors.KindValidation))
}

func TestLedgerService_MarkPaid(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a := testutil.CreateAffiliate(t, env.db, models.AffiliateStatusActive)
	pending := testutil.CreateCommission(t, env.db, a.ID, "order-1", "10.00", models.CommissionStatusPending, nil)
	earned := testutil.CreateCommission(t, env.db, a.ID, "order-2", "20.00", models.CommissionStatusEarned, nil)

	_, err := env.ledger.MarkPaid(ctx, pending.ID)
	assert.True(t, appErrors.IsKind(err, appErrors.KindInvalidState))

	paid, err := env.ledger.MarkPaid(ctx, earned.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CommissionStatusPaid, paid.Status)
	assert.NotNil(t, paid.PaidAt)

	_, err = env.ledger.MarkPaid(ctx, earned.ID)
	assert.True(t, errors.Is(err, appErrors.ErrCommissionStatus))

	_, err = env.ledger.MarkPaid(ctx, "missing")
	assert.True(t, errors.Is(err, appErrors.ErrCommissionNotFound))
}

func TestLedgerService_DashboardTotals(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a := testutil.CreateAffiliate(t, env.db, models.AffiliateStatusActive)

	amounts := map[string]models.CommissionStatus{
		"12.34": models.CommissionStatusPending,
		"0.66":  models.CommissionStatusPending,
		"45.00": models.CommissionStatusEarned,
		"5.10":  models.CommissionStatusEarned,
		"19.99": models.CommissionStatusPaid,
	}
	sum := decimal.Zero
	i := 0
	for amount, status := range amounts {
		testutil.CreateCommission(t, env.db, a.ID, fmt.Sprintf("order-%d", i), amount, status, nil)
		sum = sum.Add(decimal.RequireFromString(amount))
		i++
	}

	totals, err := env.ledger.DashboardTotals(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "70.09", totals.TotalEarned.StringFixed(2))
	assert.Equal(t, "13.00", totals.TotalPending.StringFixed(2))
	assert.Equal(t, "19.99", totals.TotalPaid.StringFixed(2))

	// earned 部分 + pending + paid 恰好覆盖全部佣金各一次
	earnedOnly := totals.TotalEarned.Sub(totals.TotalPaid)
	assert.Equal(t, sum.StringFixed(2), earnedOnly.Add(totals.TotalPending).Add(totals.TotalPaid).StringFixed(2))

	empty, err := env.ledger.DashboardTotals(ctx, "nobody")
	require.NoError(t, err)
	assert.True(t, empty.TotalEarned.IsZero())
}

func TestLedgerService_History(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a := testutil.CreateAffiliate(t, env.db, models.AffiliateStatusActive)
	for i := 0; i < 25; i++ {
		earnedAt := time.Now().UTC().Add(-time.Duration(i) * time.Hour)
		testutil.CreateCommission(t, env.db, a.ID, fmt.Sprintf("order-%02d", i), "1.00", models.CommissionStatusEarned, &earnedAt)
	}

	t.Run("默认分页", func(t *testing.T) {
		page, err := env.ledger.History(ctx, a.ID, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(25), page.Total)
		assert.Equal(t, 2, page.TotalPages)
		assert.Len(t, page.List, 20)
		assert.Equal(t, "order-00", page.List[0].OrderID)
	})

	t.Run("第二页", func(t *testing.T) {
		page, err := env.ledger.History(ctx, a.ID, &HistoryQuery{Pagination: utils.Pagination{Page: 2, Limit: 10}})
		require.NoError(t, err)
		assert.Len(t, page.List, 10)
		assert.Equal(t, "order-10", page.List[0].OrderID)
	})

	t.Run("不支持的排序字段", func(t *testing.T) {
		_, err := env.ledger.History(ctx, a.ID, &HistoryQuery{SortBy: "affiliate_id"})
		assert.True(t, appErrors.IsKind(err, appErrors.KindValidation))
	})

	t.Run("状态过滤无结果", func(t *testing.T) {
		status := models.CommissionStatusPaid
		page, err := env.ledger.History(ctx, a.ID, &HistoryQuery{Status: &status})
		require.NoError(t, err)
		assert.Equal(t, int64(0), page.Total)
		assert.NotNil(t, page.List)
	})
}

func TestLedgerService_RefreshDisplayedTiers(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	stale := testutil.CreateAffiliate(t, env.db, models.AffiliateStatusActive)
	require.NoError(t, env.db.Model(stale).Update("commission_tier", decimal.NewFromInt(8)).Error)

	growing := testutil.CreateAffiliate(t, env.db, models.AffiliateStatusActive)
	recent := time.Now().UTC().Add(-24 * time.Hour)
	for i := 0; i < 10; i++ {
		testutil.CreateCommission(t, env.db, growing.ID, fmt.Sprintf("order-%d", i), "10.00", models.CommissionStatusEarned, &recent)
	}

	pending := testutil.CreateAffiliate(t, env.db, models.AffiliateStatusPending)
	require.NoError(t, env.db.Model(pending).Update("commission_tier", decimal.NewFromInt(8)).Error)

	updated, err := env.ledger.RefreshDisplayedTiers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, updated)

	reload := func(id string) decimal.Decimal {
		var a models.Affiliate
		require.NoError(t, env.db.First(&a, "id = ?", id).Error)
		return a.CommissionTier
	}
	assert.True(t, decimal.NewFromInt(3).Equal(reload(stale.ID)))
	assert.True(t, decimal.NewFromInt(5).Equal(reload(growing.ID)))
	assert.True(t, decimal.NewFromInt(8).Equal(reload(pending.ID)), "非活跃推广员不刷新")

	t.Run("无变化时不更新", func(t *testing.T) {
		updated, err := env.ledger.RefreshDisplayedTiers(ctx)
		require.NoError(t, err)
		assert.Zero(t, updated)
	})

	t.Run("取消的 context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := env.ledger.RefreshDisplayedTiers(cancelled)
		assert.Error(t, err)
	})
}
