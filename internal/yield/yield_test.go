package yield

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/domain"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/partition"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/ports"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newDecomposer(t *testing.T, seed int64) *Decomposer {
	t.Helper()
	d, err := NewDecomposer(DefaultPayoutConfig(), rand.New(rand.NewSource(seed)))
	require.NoError(t, err)
	return d
}

func sumOf(amounts []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

func TestRateSelector_Bands(t *testing.T) {
	selector, err := NewRateSelector(DefaultRateBands(), partition.NewSource(99))
	require.NoError(t, err)

	tests := []struct {
		name       string
		monthIndex int
		lo, hi     string
	}{
		{"first month", 1, "0.20", "0.22"},
		{"second month", 2, "0.15", "0.17"},
		{"much later month", 14, "0.15", "0.17"},
		{"index below one", 0, "0.20", "0.22"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lo, hi := dec(tt.lo), dec(tt.hi)
			for i := 0; i < 10000; i++ {
				rate := selector.SelectRate(tt.monthIndex)
				require.True(t, rate.GreaterThanOrEqual(lo) && rate.LessThanOrEqual(hi),
					"rate %s outside [%s, %s]", rate, lo, hi)
				require.True(t, rate.Equal(rate.Round(4)))
			}
		})
	}
}

func TestRateSelector_SeededIsReproducible(t *testing.T) {
	a, err := NewRateSelector(DefaultRateBands(), rand.New(rand.NewSource(5)))
	require.NoError(t, err)
	b, err := NewRateSelector(DefaultRateBands(), rand.New(rand.NewSource(5)))
	require.NoError(t, err)

	for k := 1; k <= 12; k++ {
		assert.True(t, a.SelectRate(k).Equal(b.SelectRate(k)))
	}
}

func TestRateBands_Validate(t *testing.T) {
	bands := DefaultRateBands()
	bands.Subsequent = Band{Min: dec("0.17"), Max: dec("0.15")}
	assert.ErrorIs(t, bands.Validate(), ports.ErrConfigurationError)

	bands = DefaultRateBands()
	bands.FirstMonth.Max = dec("0.22005")
	assert.ErrorIs(t, bands.Validate(), ports.ErrConfigurationError)
}

func TestDecompose_ScenarioA(t *testing.T) {
	d := newDecomposer(t, 1)
	start, end := MonthWindow(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), 1)
	days := CalendarDays(start, end)
	require.Len(t, days, 30)

	amounts, err := d.Decompose(dec("10000"), dec("0.20"), days)
	require.NoError(t, err)
	require.Len(t, amounts, 30)

	assert.Equal(t, "2000", sumOf(amounts).String())
	even := dec("2000").Div(decimal.NewFromInt(30))
	for i, a := range amounts[:29] {
		assert.False(t, a.IsNegative(), "day %d negative", i)
		assert.True(t, a.LessThanOrEqual(even.Mul(dec("1.5"))), "day %d amount %s far above even split", i, a)
	}
}

func TestDecompose_ExactSumForAnyLength(t *testing.T) {
	d := newDecomposer(t, 3)
	rng := rand.New(rand.NewSource(11))
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for n := 1; n <= 31; n++ {
		balance := decimal.NewFromInt(int64(2500 + rng.Intn(200000))).Add(dec("0.37"))
		rate := dec("0.1537")
		amounts, err := d.Decompose(balance, rate, CalendarDays(base, base.AddDate(0, 0, n)))
		require.NoError(t, err)
		assert.True(t, d.ProjectedInterest(balance, rate).Equal(sumOf(amounts)), "n=%d", n)
	}
}

func TestDecompose_EdgeCases(t *testing.T) {
	d := newDecomposer(t, 2)
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	amounts, err := d.Decompose(decimal.Zero, dec("0.2"), nil)
	require.NoError(t, err)
	assert.Empty(t, amounts)

	_, err = d.Decompose(dec("100"), dec("0.2"), nil)
	assert.ErrorIs(t, err, ports.ErrInvalidSchedule)

	_, err = d.Decompose(dec("100"), dec("0.2"), []time.Time{day, day})
	assert.ErrorIs(t, err, ports.ErrInvalidSchedule)

	_, err = d.Decompose(dec("100"), dec("0.2"), []time.Time{day.AddDate(0, 0, 1), day})
	assert.ErrorIs(t, err, ports.ErrInvalidSchedule)

	_, err = d.Distribute(dec("-1"), []time.Time{day})
	assert.ErrorIs(t, err, ports.ErrInvalidSchedule)
}

func TestNewDecomposer_RejectsBadConfig(t *testing.T) {
	_, err := NewDecomposer(PayoutConfig{Variance: 1.2, Places: 2}, partition.NewSource(1))
	assert.ErrorIs(t, err, ports.ErrConfigurationError)

	_, err = NewDecomposer(DefaultPayoutConfig(), nil)
	assert.Error(t, err)
}

// buildPlan returns a 30-day plan whose first paidDays rows are paid and sum to paidTotal.
func buildPlan(t *testing.T, paidDays int, paidTotal decimal.Decimal) (*domain.MonthlyPlan, []*domain.DailyPayout) {
	t.Helper()
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	plan := &domain.MonthlyPlan{
		ID:                7,
		UserID:            "u1",
		MonthIndex:        1,
		LockedRate:        dec("0.20"),
		StartingBalance:   dec("10000"),
		ProjectedInterest: dec("2000"),
		Status:            domain.PlanActive,
		PeriodStart:       start,
		PeriodEnd:         start.AddDate(0, 0, 30),
	}

	perPaid := paidTotal.Div(decimal.NewFromInt(int64(paidDays))).Round(2)
	rest := dec("2000").Sub(paidTotal).Div(decimal.NewFromInt(int64(30 - paidDays))).Round(2)
	payouts := make([]*domain.DailyPayout, 30)
	for i := range payouts {
		day := start.AddDate(0, 0, i)
		payouts[i] = &domain.DailyPayout{ID: int64(i + 1), PlanID: plan.ID, MonthIndex: 1, Day: day, Amount: rest, Status: domain.PayoutPending}
		if i < paidDays {
			paidAt := day.Add(24 * time.Hour)
			payouts[i].Amount = perPaid
			payouts[i].Status = domain.PayoutPaid
			payouts[i].PaidAt = &paidAt
		}
	}
	return plan, payouts
}

func TestRecalculate_ScenarioB(t *testing.T) {
	d := newDecomposer(t, 4)
	r, err := NewRecalculator(d)
	require.NoError(t, err)

	plan, payouts := buildPlan(t, 10, dec("700"))
	asOf := plan.PeriodStart.AddDate(0, 0, 10).Add(3 * time.Hour)

	res, err := r.Recalculate(plan, payouts, dec("5000"), asOf)
	require.NoError(t, err)

	assert.Equal(t, "15000", res.Plan.StartingBalance.String())
	assert.Equal(t, "3000", res.Plan.ProjectedInterest.String())
	assert.True(t, res.Plan.LockedRate.Equal(dec("0.20")))
	assert.Equal(t, "700", res.Frozen.String())
	assert.Equal(t, "2300", res.Remaining.String())
	assert.Equal(t, 20, res.Redistributed)

	pending := decimal.Zero
	for i, row := range res.Payouts {
		if i < 10 {
			assert.True(t, row.Amount.Equal(payouts[i].Amount))
			assert.Equal(t, payouts[i].PaidAt, row.PaidAt)
			assert.Equal(t, domain.PayoutPaid, row.Status)
			continue
		}
		assert.Equal(t, domain.PayoutPending, row.Status)
		pending = pending.Add(row.Amount)
	}
	assert.Equal(t, "2300", pending.String())
	assert.Equal(t, "3000", domain.SumAmounts(res.Payouts).String())

	// Input is untouched.
	assert.Equal(t, "10000", plan.StartingBalance.String())
	assert.Equal(t, "2000", domain.SumAmounts(payouts).String())
}

func TestRecalculate_PendingBeforeAsOfIsFrozen(t *testing.T) {
	d := newDecomposer(t, 8)
	r, err := NewRecalculator(d)
	require.NoError(t, err)

	plan, payouts := buildPlan(t, 5, dec("350"))
	asOf := plan.PeriodStart.AddDate(0, 0, 8)

	res, err := r.Recalculate(plan, payouts, dec("1000"), asOf)
	require.NoError(t, err)

	for i := 0; i < 8; i++ {
		assert.True(t, res.Payouts[i].Amount.Equal(payouts[i].Amount), "row %d changed", i)
	}
	assert.Equal(t, 22, res.Redistributed)
	assert.True(t, res.Plan.ProjectedInterest.Equal(domain.SumAmounts(res.Payouts)))
}

func TestRecalculate_Errors(t *testing.T) {
	d := newDecomposer(t, 9)
	r, err := NewRecalculator(d)
	require.NoError(t, err)

	plan, payouts := buildPlan(t, 10, dec("700"))
	asOf := plan.PeriodStart.AddDate(0, 0, 10)

	tests := []struct {
		name  string
		delta string
		asOf  time.Time
	}{
		{"withdrawal below paid history", "-7000", asOf},
		{"negative balance", "-20000", asOf},
		{"no pending days left", "500", plan.PeriodEnd},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := r.Recalculate(plan, payouts, dec(tt.delta), tt.asOf)
			assert.ErrorIs(t, err, ports.ErrInvalidRecalculation)
			assert.Nil(t, res)
		})
	}

	// A zero delta at month end is a no-op rather than an error.
	res, err := r.Recalculate(plan, payouts, decimal.Zero, plan.PeriodEnd)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Redistributed)
}

func TestMonthIndexFor(t *testing.T) {
	anchor := time.Date(2024, 1, 31, 15, 0, 0, 0, time.UTC)
	tests := []struct {
		at   time.Time
		want int
	}{
		{time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC), 1},
		{time.Date(2024, 1, 31, 23, 0, 0, 0, time.UTC), 1},
		{time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), 1},
		{time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), 2},
		{time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), 3},
		{time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), 13},
	}
	for _, tt := range tests {
		got := MonthIndexFor(anchor, tt.at)
		assert.Equal(t, tt.want, got, "at %s", tt.at)
		start, end := MonthWindow(anchor, got)
		if !tt.at.Before(anchor) {
			assert.True(t, !tt.at.Before(start) && tt.at.Before(end))
		}
	}
}
