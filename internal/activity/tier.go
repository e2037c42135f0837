// Package activity maps account size to synthetic trade density.
package activity

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/domain"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/partition"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/ports"
)

// Table is a versioned, ordered set of activity tiers.
type Table struct {
	Version string
	Tiers   []domain.ActivityTier
}

// DefaultTable returns the standard account-size brackets.
func DefaultTable() Table {
	return Table{
		Version: "2024-01",
		Tiers: []domain.ActivityTier{
			{Name: "starter", LowerBound: decimal.NewFromInt(2500), MinTrades: 20, MaxTrades: 30, MinTradesPerDay: 3, MaxTradesPerDay: 6},
			{Name: "growth", LowerBound: decimal.NewFromInt(15000), MinTrades: 30, MaxTrades: 60, MinTradesPerDay: 5, MaxTradesPerDay: 10},
			{Name: "professional", LowerBound: decimal.NewFromInt(50000), MinTrades: 60, MaxTrades: 75, MinTradesPerDay: 8, MaxTradesPerDay: 14},
			{Name: "institutional", LowerBound: decimal.NewFromInt(100000), MinTrades: 75, MaxTrades: 100, MinTradesPerDay: 12, MaxTradesPerDay: 20},
		},
	}
}

// Validate checks that the table is non-empty, sorted by distinct lower
// bounds and that every trade range is positive.
func (t Table) Validate() error {
	if len(t.Tiers) == 0 {
		return fmt.Errorf("tier table %q has no tiers: %w", t.Version, ports.ErrConfigurationError)
	}
	for i, tier := range t.Tiers {
		if tier.LowerBound.IsNegative() {
			return fmt.Errorf("tier %q has a negative lower bound: %w", tier.Name, ports.ErrConfigurationError)
		}
		if i > 0 && !tier.LowerBound.GreaterThan(t.Tiers[i-1].LowerBound) {
			return fmt.Errorf("tier %q lower bound must exceed %q's: %w", tier.Name, t.Tiers[i-1].Name, ports.ErrConfigurationError)
		}
		if tier.MinTrades <= 0 || tier.MaxTrades < tier.MinTrades {
			return fmt.Errorf("tier %q trade range %d-%d is invalid: %w", tier.Name, tier.MinTrades, tier.MaxTrades, ports.ErrConfigurationError)
		}
		if tier.MinTradesPerDay <= 0 || tier.MaxTradesPerDay < tier.MinTradesPerDay {
			return fmt.Errorf("tier %q daily range %d-%d is invalid: %w", tier.Name, tier.MinTradesPerDay, tier.MaxTradesPerDay, ports.ErrConfigurationError)
		}
	}
	return nil
}

// Resolver looks up the activity tier for an account size.
type Resolver struct {
	table Table
}

// NewResolver creates a Resolver over a validated copy of table.
func NewResolver(table Table) (*Resolver, error) {
	tiers := make([]domain.ActivityTier, len(table.Tiers))
	copy(tiers, table.Tiers)
	sort.SliceStable(tiers, func(i, j int) bool { return tiers[i].LowerBound.LessThan(tiers[j].LowerBound) })
	table.Tiers = tiers
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return &Resolver{table: table}, nil
}

// Version returns the version of the table in use.
func (r *Resolver) Version() string {
	return r.table.Version
}

// Resolve returns the highest tier whose lower bound is at most accountSize.
// Sizes below the smallest bound fall into the lowest tier.
func (r *Resolver) Resolve(accountSize decimal.Decimal) (domain.ActivityTier, error) {
	if accountSize.IsNegative() {
		return domain.ActivityTier{}, fmt.Errorf("account size %s is negative: %w", accountSize, ports.ErrInvalidInput)
	}
	i := sort.Search(len(r.table.Tiers), func(i int) bool {
		return r.table.Tiers[i].LowerBound.GreaterThan(accountSize)
	})
	if i == 0 {
		return r.table.Tiers[0], nil
	}
	return r.table.Tiers[i-1], nil
}

// DrawTradeCount picks a session trade count uniformly from the tier's range.
func DrawTradeCount(src partition.Source, tier domain.ActivityTier) int {
	return tier.MinTrades + src.Intn(tier.MaxTrades-tier.MinTrades+1)
}

// DrawDailyTradeCount picks a trade count for one day of the live feed.
func DrawDailyTradeCount(src partition.Source, tier domain.ActivityTier) int {
	return tier.MinTradesPerDay + src.Intn(tier.MaxTradesPerDay-tier.MinTradesPerDay+1)
}
