package affiliate

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dumeirei/affiliate-backend/internal/models"
	"github.com/dumeirei/affiliate-backend/internal/repository"
	"github.com/dumeirei/affiliate-backend/internal/testutil"
)

func TestSelectRate(t *testing.T) {
	tiers := repository.DefaultTiers()
	fallback := decimal.NewFromInt(3)

	cases := []struct {
		count int64
		want  int64
	}{
		{0, 3},
		{9, 3},
		{10, 5},
		{29, 5},
		{30, 8},
		{500, 8},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%d单", tc.count), func(t *testing.T) {
			got := SelectRate(tiers, tc.count, fallback)
			assert.True(t, decimal.NewFromInt(tc.want).Equal(got), "got %s", got)
		})
	}

	t.Run("无匹配等级使用默认比例", func(t *testing.T) {
		got := SelectRate(tiers[:1], 3, fallback)
		assert.True(t, fallback.Equal(got))
	})

	t.Run("区间重叠取起始订单数最大者", func(t *testing.T) {
		overlapping := append(repository.DefaultTiers(), &models.CommissionTier{
			MinOrders: 20, CommissionPercentage: decimal.NewFromInt(6), IsActive: true,
		})
		got := SelectRate(overlapping, 25, fallback)
		assert.True(t, decimal.NewFromInt(6).Equal(got))
	})
}

func TestTierService_RateFor(t *testing.T) {
	ctx := context.Background()
	asOf := time.Now().UTC()

	seed := func(t *testing.T, env *testEnv, affiliateID string, n int, earnedAt time.Time, prefix string) {
		for i := 0; i < n; i++ {
			at := earnedAt
			testutil.CreateCommission(t, env.db, affiliateID, fmt.Sprintf("%s-%d", prefix, i), "1.00", models.CommissionStatusEarned, &at)
		}
	}

	cases := []struct {
		earned int
		want   int64
	}{
		{0, 3},
		{9, 3},
		{10, 5},
		{29, 5},
		{30, 8},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("窗口内%d单", tc.earned), func(t *testing.T) {
			env := newTestEnv(t)
			a := testutil.CreateAffiliate(t, env.db, models.AffiliateStatusActive)
			seed(t, env, a.ID, tc.earned, asOf.AddDate(0, 0, -1), "in")
			// 窗口外与未到账的佣金不计入
			seed(t, env, a.ID, 40, asOf.AddDate(0, 0, -91), "out")
			testutil.CreateCommission(t, env.db, a.ID, "pending-1", "1.00", models.CommissionStatusPending, nil)

			rate, err := env.tiers.RateFor(ctx, a.ID, asOf)
			require.NoError(t, err)
			assert.True(t, decimal.NewFromInt(tc.want).Equal(rate), "got %s", rate)
		})
	}

	t.Run("无启用等级时使用默认比例", func(t *testing.T) {
		env := newTestEnv(t)
		require.NoError(t, env.db.Model(&models.CommissionTier{}).Where("1 = 1").Update("is_active", false).Error)
		a := testutil.CreateAffiliate(t, env.db, models.AffiliateStatusActive)

		rate, err := env.tiers.RateFor(ctx, a.ID, time.Time{})
		require.NoError(t, err)
		assert.True(t, env.cfg.DefaultRateDecimal().Equal(rate))

		lowest, err := env.tiers.LowestRate(ctx)
		require.NoError(t, err)
		assert.True(t, env.cfg.DefaultRateDecimal().Equal(lowest))
	})
}
