package quota

import "github.com/neuragate-ai/neuragate/internal/accounts"

// Limit is a window cap with an explicit unlimited variant, so no arithmetic
// is ever done on a magic sentinel.
type Limit struct {
	N         int64
	Unlimited bool
}

func LimitOf(n int64) Limit {
	return Limit{N: n}
}

func NoLimit() Limit {
	return Limit{Unlimited: true}
}

// Exceeded reports whether used has consumed the whole limit.
func (l Limit) Exceeded(used int64) bool {
	return !l.Unlimited && used >= l.N
}

// Remaining returns the headroom under this limit; unlimited stays unlimited.
func (l Limit) Remaining(used int64) Limit {
	if l.Unlimited {
		return l
	}
	rem := l.N - used
	if rem < 0 {
		rem = 0
	}
	return Limit{N: rem}
}

// PlanLimits caps the daily and monthly call windows for one subscription plan.
type PlanLimits struct {
	Daily   Limit
	Monthly Limit
}

// planTable is immutable at runtime; looked up by plan on every quota check.
var planTable = map[accounts.Plan]PlanLimits{
	accounts.PlanFree:       {Daily: LimitOf(50), Monthly: LimitOf(1000)},
	accounts.PlanBasic:      {Daily: LimitOf(500), Monthly: LimitOf(10000)},
	accounts.PlanPremium:    {Daily: LimitOf(2000), Monthly: LimitOf(50000)},
	accounts.PlanEnterprise: {Daily: NoLimit(), Monthly: NoLimit()},
}

// LimitsFor returns the plan's limits, defaulting unknown plans to free.
func LimitsFor(plan accounts.Plan) PlanLimits {
	limits, ok := planTable[plan]
	if !ok {
		return planTable[accounts.PlanFree]
	}
	return limits
}
