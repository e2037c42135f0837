package reveal

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/domain"
)

var april1 = time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

func payoutsFor(days int, amount string) []*domain.DailyPayout {
	rows := make([]*domain.DailyPayout, days)
	for i := range rows {
		rows[i] = &domain.DailyPayout{
			ID:         int64(i + 1),
			PlanID:     1,
			MonthIndex: 1,
			Day:        april1.AddDate(0, 0, i),
			Amount:     decimal.RequireFromString(amount),
			Status:     domain.PayoutPending,
		}
	}
	return rows
}

func tradesFor(start time.Time, n int, tick time.Duration) []*domain.TradeEvent {
	trades := make([]*domain.TradeEvent, n)
	for i := range trades {
		trades[i] = &domain.TradeEvent{
			ID:        fmt.Sprintf("t%d", i+1),
			Sequence:  i + 1,
			Profit:    decimal.NewFromInt(int64(10 * (i + 1))),
			Timestamp: start.Add(time.Duration(i+1) * tick),
		}
	}
	return trades
}

func TestRevealPayouts(t *testing.T) {
	clock := NewClock(0)
	payouts := payoutsFor(30, "66.67")

	tests := []struct {
		name      string
		now       time.Time
		wantNew   int
		wantTotal int
	}{
		{"before first settle", april1.Add(23 * time.Hour), 0, 0},
		{"first day settles at midnight", april1.Add(24 * time.Hour), 1, 1},
		{"same instant again", april1.Add(24 * time.Hour), 0, 1},
		{"mid month", april1.AddDate(0, 0, 10).Add(6 * time.Hour), 9, 10},
		{"clock moved back", april1.AddDate(0, 0, 2), 0, 10},
		{"month over", april1.AddDate(0, 2, 0), 20, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			revealed := clock.RevealPayouts(payouts, tt.now)
			assert.Len(t, revealed, tt.wantNew)

			paid := 0
			for _, p := range payouts {
				if p.IsPaid() {
					paid++
					require.NotNil(t, p.PaidAt)
					assert.Equal(t, p.Day.Add(24*time.Hour), *p.PaidAt)
				}
			}
			assert.Equal(t, tt.wantTotal, paid)
		})
	}
}

func TestRevealPayouts_PaidAtIsStableAcrossReruns(t *testing.T) {
	clock := NewClock(0)
	a := payoutsFor(5, "10")
	b := payoutsFor(5, "10")

	clock.RevealPayouts(a, april1.AddDate(0, 0, 3))
	clock.RevealPayouts(b, april1.AddDate(0, 0, 2))
	clock.RevealPayouts(b, april1.AddDate(0, 0, 3))

	for i := range a {
		assert.Equal(t, a[i].Status, b[i].Status)
		if a[i].PaidAt != nil {
			assert.Equal(t, *a[i].PaidAt, *b[i].PaidAt)
		}
	}
}

func TestNewClock_CustomSettle(t *testing.T) {
	clock := NewClock(2 * time.Hour)
	payouts := payoutsFor(1, "5")
	assert.Empty(t, clock.RevealPayouts(payouts, april1.Add(time.Hour)))
	assert.Len(t, clock.RevealPayouts(payouts, april1.Add(2*time.Hour)), 1)
}

func TestRevealTrades_MonotonicAndIdempotent(t *testing.T) {
	clock := NewClock(0)
	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	trades := tradesFor(start, 20, 12*time.Second)
	sess := &domain.SimulationSession{StartTime: start, Duration: 240 * time.Second, StartAmount: decimal.NewFromInt(5000)}

	prev := 0
	for s := 0; s <= 260; s += 5 {
		now := start.Add(time.Duration(s) * time.Second)
		visible := clock.RevealTrades(sess, trades, now)
		again := clock.RevealTrades(sess, trades, now)

		assert.Equal(t, visible, again)
		assert.GreaterOrEqual(t, len(visible), prev)
		for _, e := range visible {
			assert.False(t, e.Timestamp.After(now))
		}
		prev = len(visible)
	}
	assert.Equal(t, 20, prev)
}

func TestVisibleCount_StoredPointerIsFloor(t *testing.T) {
	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	trades := tradesFor(start, 10, time.Second)

	sess := &domain.SimulationSession{RevealedCount: 6}
	assert.Equal(t, 6, VisibleCount(sess, trades, start))
	assert.Equal(t, 8, VisibleCount(sess, trades, start.Add(8*time.Second)))

	sess.RevealedCount = 50
	assert.Equal(t, 10, VisibleCount(sess, trades, start))
	assert.Equal(t, 0, VisibleCount(nil, nil, start))
}

func TestSessionState(t *testing.T) {
	clock := NewClock(0)
	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	trades := tradesFor(start, 4, 10*time.Second)
	sess := &domain.SimulationSession{StartTime: start, Duration: 40 * time.Second, StartAmount: decimal.NewFromInt(1000)}

	view := clock.SessionState(sess, trades, start.Add(25*time.Second))
	assert.Len(t, view.Visible, 2)
	assert.Equal(t, "30", view.CumulativeProfit.String())
	assert.Equal(t, "1030", view.Balance.String())
	assert.Equal(t, 0.5, view.Progress)
	assert.False(t, view.Complete)

	view = clock.SessionState(sess, trades, start.Add(time.Minute))
	assert.True(t, view.Complete)
	assert.Equal(t, "1100", view.Balance.String())
}

func TestPlanState(t *testing.T) {
	clock := NewClock(0)
	plan := &domain.MonthlyPlan{ID: 1, StartingBalance: decimal.NewFromInt(10000)}
	payouts := payoutsFor(30, "66.67")
	now := april1.AddDate(0, 0, 4).Add(3 * time.Hour)
	clock.RevealPayouts(payouts, now)

	view := clock.PlanState(plan, payouts, now)
	assert.Len(t, view.Paid, 4)
	assert.Len(t, view.Pending, 26)
	assert.Equal(t, "266.68", view.PaidTotal.String())
	assert.Equal(t, "10266.68", view.Balance.String())
	require.NotNil(t, view.Today)
	assert.Equal(t, april1.AddDate(0, 0, 4), view.Today.Day)
	assert.False(t, view.Today.IsPaid())
	require.NotNil(t, view.LastPaid)
	assert.Equal(t, april1.AddDate(0, 0, 3), view.LastPaid.Day)
}
