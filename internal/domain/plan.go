package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MonthlyPlan holds the locked rate and projected interest for one month of a
// user's schedule. LockedRate is set once when the plan is created.
type MonthlyPlan struct {
	ID                int64           // Unique identifier (usually from DB)
	UserID            string          // Owner of the plan
	MonthIndex        int             // 1-based, relative to the user's first deposit
	LockedRate        decimal.Decimal // Fraction of principal paid over the month
	StartingBalance   decimal.Decimal // Balance the month's interest is computed on
	ProjectedInterest decimal.Decimal // StartingBalance * LockedRate, rounded
	Status            PlanStatus      // scheduled, active or completed
	PeriodStart       time.Time       // First calendar day of the month (UTC midnight)
	PeriodEnd         time.Time       // Exclusive end of the month (UTC midnight)
	Version           int64           // Incremented on every schedule rewrite
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Covers reports whether t falls inside the plan's period.
func (p *MonthlyPlan) Covers(t time.Time) bool {
	return !t.Before(p.PeriodStart) && t.Before(p.PeriodEnd)
}

// DailyPayout is one calendar day's share of a plan's projected interest.
type DailyPayout struct {
	ID         int64           // Unique identifier (usually from DB)
	PlanID     int64           // Owning MonthlyPlan
	MonthIndex int             // Copied from the plan for presentation
	Day        time.Time       // Calendar day (UTC midnight)
	Amount     decimal.Decimal // Payout amount
	Status     PayoutStatus    // pending or paid
	PaidAt     *time.Time      // Set when the payout is revealed
}

// IsPaid checks if the payout has been revealed.
func (d *DailyPayout) IsPaid() bool {
	return d.Status == PayoutPaid
}

// Clone returns a deep copy of the payout.
func (d *DailyPayout) Clone() *DailyPayout {
	c := *d
	if d.PaidAt != nil {
		t := *d.PaidAt
		c.PaidAt = &t
	}
	return &c
}

// SumAmounts totals the amounts of the given payouts.
func SumAmounts(payouts []*DailyPayout) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payouts {
		total = total.Add(p.Amount)
	}
	return total
}
