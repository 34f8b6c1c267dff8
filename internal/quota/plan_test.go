package quota

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/neuragate-ai/neuragate/internal/accounts"
)

func TestLimitsFor(t *testing.T) {
	tests := []struct {
		plan    accounts.Plan
		daily   Limit
		monthly Limit
	}{
		{accounts.PlanFree, LimitOf(50), LimitOf(1000)},
		{accounts.PlanBasic, LimitOf(500), LimitOf(10000)},
		{accounts.PlanPremium, LimitOf(2000), LimitOf(50000)},
		{accounts.PlanEnterprise, NoLimit(), NoLimit()},
		// Unknown plans fall back to free limits.
		{accounts.Plan("mystery"), LimitOf(50), LimitOf(1000)},
	}

	for _, tt := range tests {
		t.Run(string(tt.plan), func(t *testing.T) {
			limits := LimitsFor(tt.plan)
			assert.Equal(t, tt.daily, limits.Daily)
			assert.Equal(t, tt.monthly, limits.Monthly)
		})
	}
}

func TestLimit(t *testing.T) {
	l := LimitOf(10)
	assert.False(t, l.Exceeded(9))
	assert.True(t, l.Exceeded(10))
	assert.True(t, l.Exceeded(11))
	assert.Equal(t, int64(1), l.Remaining(9).N)
	assert.Equal(t, int64(0), l.Remaining(15).N)

	u := NoLimit()
	assert.False(t, u.Exceeded(1<<50))
	assert.True(t, u.Remaining(1<<50).Unlimited)
}
