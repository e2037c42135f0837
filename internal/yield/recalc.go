package yield

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/domain"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/ports"
)

// Recalculation is the full replacement state of a plan after a principal change.
type Recalculation struct {
	Plan          *domain.MonthlyPlan   // Copy of the plan with the new balance and interest
	Payouts       []*domain.DailyPayout // Every payout row of the plan, ordered by day
	Frozen        decimal.Decimal       // Sum of rows that kept their amount
	Remaining     decimal.Decimal       // Interest redistributed over the eligible rows
	Redistributed int                   // Number of rows that received a new amount
}

// Recalculator re-derives the unpaid part of a schedule when principal changes
// mid-month. The locked rate and all paid rows are left as they are.
type Recalculator struct {
	decomposer *Decomposer
}

// NewRecalculator creates a Recalculator that redistributes with decomposer.
func NewRecalculator(decomposer *Decomposer) (*Recalculator, error) {
	if decomposer == nil {
		return nil, fmt.Errorf("decomposer is required for recalculator")
	}
	return &Recalculator{decomposer: decomposer}, nil
}

// Recalculate applies delta to the plan's starting balance and redistributes
// the interest that is not yet paid over the pending days on or after asOf.
//
// Paid rows, and pending rows dated before asOf, keep their amounts. The input
// plan and payouts are not modified; on error nothing is returned, so callers
// either store the whole result or nothing.
func (r *Recalculator) Recalculate(plan *domain.MonthlyPlan, payouts []*domain.DailyPayout, delta decimal.Decimal, asOf time.Time) (*Recalculation, error) {
	if plan == nil {
		return nil, fmt.Errorf("plan is required: %w", ports.ErrInvalidRecalculation)
	}

	newBalance := plan.StartingBalance.Add(delta)
	if newBalance.IsNegative() {
		return nil, fmt.Errorf("plan %d balance would drop to %s: %w", plan.ID, newBalance, ports.ErrInvalidRecalculation)
	}
	newTotal := r.decomposer.ProjectedInterest(newBalance, plan.LockedRate)

	rows := make([]*domain.DailyPayout, len(payouts))
	for i, p := range payouts {
		rows[i] = p.Clone()
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Day.Before(rows[j].Day) })

	cutoff := TruncateDay(asOf)
	frozen := decimal.Zero
	var eligible []*domain.DailyPayout
	for _, row := range rows {
		if row.IsPaid() || row.Day.Before(cutoff) {
			frozen = frozen.Add(row.Amount)
			continue
		}
		eligible = append(eligible, row)
	}

	remaining := newTotal.Sub(frozen)
	if remaining.IsNegative() {
		return nil, fmt.Errorf("plan %d: settled interest %s exceeds new entitlement %s: %w",
			plan.ID, frozen, newTotal, ports.ErrInvalidRecalculation)
	}
	if len(eligible) == 0 && !remaining.IsZero() {
		return nil, fmt.Errorf("plan %d: no pending days left to absorb %s: %w", plan.ID, remaining, ports.ErrInvalidRecalculation)
	}

	days := make([]time.Time, len(eligible))
	for i, row := range eligible {
		days[i] = row.Day
	}
	amounts, err := r.decomposer.Distribute(remaining, days)
	if err != nil {
		return nil, fmt.Errorf("plan %d: %v: %w", plan.ID, err, ports.ErrInvalidRecalculation)
	}
	for i, row := range eligible {
		row.Amount = amounts[i]
	}

	updated := *plan
	updated.StartingBalance = newBalance
	updated.ProjectedInterest = newTotal

	return &Recalculation{
		Plan:          &updated,
		Payouts:       rows,
		Frozen:        frozen,
		Remaining:     remaining,
		Redistributed: len(eligible),
	}, nil
}
