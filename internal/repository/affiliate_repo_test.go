package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dumeirei/affiliate-backend/internal/models"
	"github.com/dumeirei/affiliate-backend/internal/testutil"
)

func TestAffiliateRepository_TransitionStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("状态匹配时更新", func(t *testing.T) {
		db := testutil.NewTestDB(t)
		repo := NewAffiliateRepository(db)
		a := testutil.CreateAffiliate(t, db, models.AffiliateStatusPending)

		now := time.Now().UTC()
		ok, err := repo.TransitionStatus(ctx, a.ID, models.AffiliateStatusPending, models.AffiliateStatusActive,
			map[string]interface{}{"approved_at": now, "approved_by": "admin-1"})
		require.NoError(t, err)
		assert.True(t, ok)

		got, err := repo.GetByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, models.AffiliateStatusActive, got.Status)
		require.NotNil(t, got.ApprovedBy)
		assert.Equal(t, "admin-1", *got.ApprovedBy)
	})

	t.Run("状态不匹配时不更新", func(t *testing.T) {
		db := testutil.NewTestDB(t)
		repo := NewAffiliateRepository(db)
		a := testutil.CreateAffiliate(t, db, models.AffiliateStatusRejected)

		ok, err := repo.TransitionStatus(ctx, a.ID, models.AffiliateStatusPending, models.AffiliateStatusActive, nil)
		require.NoError(t, err)
		assert.False(t, ok)

		got, err := repo.GetByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, models.AffiliateStatusRejected, got.Status)
	})
}

func TestAffiliateRepository_List(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	repo := NewAffiliateRepository(db)

	testutil.CreateAffiliate(t, db, models.AffiliateStatusPending, testutil.WithEmail("a@example.com"))
	testutil.CreateAffiliate(t, db, models.AffiliateStatusActive, testutil.WithEmail("b@example.com"))
	testutil.CreateAffiliate(t, db, models.AffiliateStatusActive, testutil.WithEmail("c@example.com"))

	t.Run("全部", func(t *testing.T) {
		list, total, err := repo.List(ctx, 0, 10, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, list, 3)
	})

	t.Run("按状态过滤并分页", func(t *testing.T) {
		status := models.AffiliateStatusActive
		list, total, err := repo.List(ctx, 0, 1, &AffiliateListFilter{Status: &status, SortBy: "full_name"})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Len(t, list, 1)
		assert.Equal(t, models.AffiliateStatusActive, list[0].Status)
	})

	t.Run("非法排序列回退默认", func(t *testing.T) {
		_, total, err := repo.List(ctx, 0, 10, &AffiliateListFilter{SortBy: "id; DROP TABLE affiliates"})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
	})
}

func TestAffiliateRepository_PayoutDetailsAndTier(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	repo := NewAffiliateRepository(db)
	a := testutil.CreateAffiliate(t, db, models.AffiliateStatusActive)
	assert.False(t, a.HasPayoutDetails())

	ok, err := repo.UpdatePayoutDetails(ctx, a.ID, models.PayoutDetails{MobileNumber: "+254700000000", MobileProvider: "mpesa"})
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, repo.UpdateCommissionTier(ctx, a.ID, decimal.NewFromInt(5)))

	got, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.HasPayoutDetails())
	assert.Equal(t, "mpesa", got.PayoutDetails.MobileProvider)
	assert.True(t, decimal.NewFromInt(5).Equal(got.CommissionTier))

	ok, err = repo.UpdatePayoutDetails(ctx, "missing", models.PayoutDetails{GatewayEmail: "x@example.com"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAffiliateRepository_LockForUpdate(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	repo := NewAffiliateRepository(db)
	a := testutil.CreateAffiliate(t, db, models.AffiliateStatusActive)

	ok, err := repo.LockForUpdate(ctx, a.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.LockForUpdate(ctx, "missing", time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAffiliateRepository_CountByStatus(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	repo := NewAffiliateRepository(db)

	testutil.CreateAffiliate(t, db, models.AffiliateStatusPending)
	testutil.CreateAffiliate(t, db, models.AffiliateStatusActive)
	testutil.CreateAffiliate(t, db, models.AffiliateStatusActive)
	testutil.CreateAffiliate(t, db, models.AffiliateStatusSuspended)

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[models.AffiliateStatusPending])
	assert.Equal(t, int64(2), counts[models.AffiliateStatusActive])
	assert.Equal(t, int64(1), counts[models.AffiliateStatusSuspended])
	assert.Equal(t, int64(0), counts[models.AffiliateStatusRejected])
}
