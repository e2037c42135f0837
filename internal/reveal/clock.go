// Package reveal derives what should be visible at a given time. Every
// function here is a pure function of stored state and the current time, so
// a tick can be re-run or skipped without changing the outcome.
package reveal

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/domain"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/yield"
)

// DefaultSettleAfter is the delay between a payout's calendar day and its reveal.
const DefaultSettleAfter = 24 * time.Hour

// Clock reveals payouts and trades whose scheduled time has elapsed.
type Clock struct {
	SettleAfter time.Duration
}

// NewClock creates a Clock. A non-positive settleAfter selects DefaultSettleAfter.
func NewClock(settleAfter time.Duration) *Clock {
	if settleAfter <= 0 {
		settleAfter = DefaultSettleAfter
	}
	return &Clock{SettleAfter: settleAfter}
}

// SettleTime returns when p becomes visible.
func (c *Clock) SettleTime(p *domain.DailyPayout) time.Time {
	return yield.TruncateDay(p.Day).Add(c.SettleAfter)
}

// RevealPayouts marks every pending payout whose settle time is not after now
// as paid and returns the rows it changed. PaidAt is the settle time, not now,
// so re-running the reveal later stamps the same value.
func (c *Clock) RevealPayouts(payouts []*domain.DailyPayout, now time.Time) []*domain.DailyPayout {
	var revealed []*domain.DailyPayout
	for _, p := range payouts {
		if p.IsPaid() {
			continue
		}
		settle := c.SettleTime(p)
		if settle.After(now) {
			continue
		}
		p.Status = domain.PayoutPaid
		p.PaidAt = &settle
		revealed = append(revealed, p)
	}
	return revealed
}

// VisibleCount returns how many of the session's trades are visible at now.
// The stored pointer is a floor: the count never moves backwards.
func VisibleCount(sess *domain.SimulationSession, trades []*domain.TradeEvent, now time.Time) int {
	n := sort.Search(len(trades), func(i int) bool {
		return trades[i].Timestamp.After(now)
	})
	if sess != nil && sess.RevealedCount > n {
		n = sess.RevealedCount
	}
	if n > len(trades) {
		n = len(trades)
	}
	return n
}

// RevealTrades returns the visible prefix of trades, which must be ordered by
// sequence.
func (c *Clock) RevealTrades(sess *domain.SimulationSession, trades []*domain.TradeEvent, now time.Time) []*domain.TradeEvent {
	return trades[:VisibleCount(sess, trades, now)]
}

// SessionView is the presentation state of a session at one instant.
type SessionView struct {
	Session          *domain.SimulationSession
	Visible          []*domain.TradeEvent
	CumulativeProfit decimal.Decimal
	Balance          decimal.Decimal
	Progress         float64 // Share of trades revealed, 0..1
	Complete         bool
}

// SessionState builds the view of sess at now.
func (c *Clock) SessionState(sess *domain.SimulationSession, trades []*domain.TradeEvent, now time.Time) SessionView {
	visible := c.RevealTrades(sess, trades, now)
	profit := domain.SumProfits(visible)

	view := SessionView{
		Session:          sess,
		Visible:          visible,
		CumulativeProfit: profit,
		Balance:          sess.StartAmount.Add(profit),
		Complete:         len(trades) > 0 && len(visible) == len(trades),
	}
	if len(trades) > 0 {
		view.Progress = float64(len(visible)) / float64(len(trades))
	}
	return view
}

// PlanView is the presentation state of a monthly plan at one instant.
type PlanView struct {
	Plan      *domain.MonthlyPlan
	Paid      []*domain.DailyPayout
	Pending   []*domain.DailyPayout
	PaidTotal decimal.Decimal
	Balance   decimal.Decimal     // Starting balance plus revealed interest
	Today     *domain.DailyPayout // Row for now's calendar day, if the plan covers it
	LastPaid  *domain.DailyPayout // Most recently revealed row
}

// PlanState builds the view of a plan at now from rows that have already been
// passed through RevealPayouts.
func (c *Clock) PlanState(plan *domain.MonthlyPlan, payouts []*domain.DailyPayout, now time.Time) PlanView {
	view := PlanView{Plan: plan, PaidTotal: decimal.Zero}
	today := yield.TruncateDay(now)

	for _, p := range payouts {
		if p.IsPaid() {
			view.Paid = append(view.Paid, p)
			view.PaidTotal = view.PaidTotal.Add(p.Amount)
			if view.LastPaid == nil || p.Day.After(view.LastPaid.Day) {
				view.LastPaid = p
			}
		} else {
			view.Pending = append(view.Pending, p)
		}
		if yield.TruncateDay(p.Day).Equal(today) {
			view.Today = p
		}
	}
	view.Balance = plan.StartingBalance.Add(view.PaidTotal)
	return view
}
