package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAffiliateStatus_CanTransitionTo(t *testing.T) {
	all := []AffiliateStatus{AffiliateStatusPending, AffiliateStatusActive, AffiliateStatusRejected, AffiliateStatusSuspended}
	allowed := map[[2]AffiliateStatus]bool{
		{AffiliateStatusPending, AffiliateStatusActive}:     true,
		{AffiliateStatusPending, AffiliateStatusRejected}:   true,
		{AffiliateStatusActive, AffiliateStatusSuspended}:   true,
		{AffiliateStatusSuspended, AffiliateStatusActive}:   true,
	}

	for _, from := range all {
		for _, to := range all {
			t.Run(string(from)+"->"+string(to), func(t *testing.T) {
				assert.Equal(t, allowed[[2]AffiliateStatus{from, to}], from.CanTransitionTo(to))
			})
		}
	}
}

func TestEnums_ValueRejectsUnknown(t *testing.T) {
	t.Run("合法值", func(t *testing.T) {
		v, err := AffiliateStatusActive.Value()
		require.NoError(t, err)
		assert.Equal(t, "active", v)

		v, err = PayoutMethodMobileMoney.Value()
		require.NoError(t, err)
		assert.Equal(t, "mobile_money", v)
	})

	t.Run("非法值", func(t *testing.T) {
		_, err := AffiliateStatus("deleted").Value()
		assert.Error(t, err)
		_, err = CommissionStatus("cancelled").Value()
		assert.Error(t, err)
		_, err = PayoutMethod("paypal").Value()
		assert.Error(t, err)
		_, err = PayoutStatus("").Value()
		assert.Error(t, err)
		_, err = ReferralType("link").Value()
		assert.Error(t, err)
		_, err = AffiliateType("agency").Value()
		assert.Error(t, err)
	})

	t.Run("Scan", func(t *testing.T) {
		var s CommissionStatus
		require.NoError(t, s.Scan([]byte("earned")))
		assert.Equal(t, CommissionStatusEarned, s)

		assert.Error(t, s.Scan("refunded"))
		assert.Error(t, s.Scan(42))
	})

	t.Run("Valid", func(t *testing.T) {
		assert.True(t, AffiliateTypeCompany.Valid())
		assert.False(t, AffiliateType("").Valid())
		assert.True(t, PayoutStatusFailed.Valid())
		assert.False(t, CommissionStatus("x").Valid())
	})
}

func TestPayoutDetails_ValueScan(t *testing.T) {
	d := PayoutDetails{AccountName: "Jane Doe", BankName: "First Bank", AccountNumber: "0123456789"}

	v, err := d.Value()
	require.NoError(t, err)

	var got PayoutDetails
	require.NoError(t, got.Scan(v))
	assert.Equal(t, d, got)

	var fromBytes PayoutDetails
	require.NoError(t, fromBytes.Scan([]byte(v.(string))))
	assert.Equal(t, d, fromBytes)

	empty, err := PayoutDetails{}.Value()
	require.NoError(t, err)
	assert.Nil(t, empty)

	var fromNull PayoutDetails
	require.NoError(t, fromNull.Scan(nil))
	assert.True(t, fromNull.IsZero())
}

func TestAffiliate_HasPayoutDetails(t *testing.T) {
	a := &Affiliate{}
	assert.False(t, a.HasPayoutDetails())

	a.PayoutDetails = &PayoutDetails{}
	assert.False(t, a.HasPayoutDetails())

	a.PayoutDetails = &PayoutDetails{MobileNumber: "+2348000000000"}
	assert.True(t, a.HasPayoutDetails())
}

func TestCommissionAmountFor(t *testing.T) {
	tests := []struct {
		total, rate, want string
	}{
		{"1000", "3", "30"},
		{"1000.00", "5", "50"},
		{"99.99", "8", "8"},
		{"19.95", "3", "0.6"},
		{"0.10", "3", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.total+"x"+tt.rate, func(t *testing.T) {
			got := CommissionAmountFor(decimal.RequireFromString(tt.total), decimal.RequireFromString(tt.rate))
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s", got)
		})
	}
}

func TestCommissionTier_Matches(t *testing.T) {
	nine := 9
	low := CommissionTier{MinOrders: 0, MaxOrders: &nine}
	top := CommissionTier{MinOrders: 30}

	assert.True(t, low.Matches(0))
	assert.True(t, low.Matches(9))
	assert.False(t, low.Matches(10))
	assert.False(t, top.Matches(29))
	assert.True(t, top.Matches(1000))
}

func TestReferralLink_IsExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	assert.False(t, (&ReferralLink{}).IsExpired(now))
	assert.True(t, (&ReferralLink{ExpiresAt: &past}).IsExpired(now))
	assert.False(t, (&ReferralLink{ExpiresAt: &future}).IsExpired(now))
}

func TestBeforeCreate_AssignsUUID(t *testing.T) {
	a := &Affiliate{}
	require.NoError(t, a.BeforeCreate(nil))
	assert.Len(t, a.ID, 36)

	c := &Commission{ID: "fixed"}
	require.NoError(t, c.BeforeCreate(nil))
	assert.Equal(t, "fixed", c.ID)
}
