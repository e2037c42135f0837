package yield

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/partition"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/ports"
)

// PayoutConfig controls how a month's interest is spread over its days.
type PayoutConfig struct {
	Variance float64 // Max relative deviation of a day's weight from an even split
	Places   int32   // Currency precision of payout amounts
}

// DefaultPayoutConfig returns ±30% daily variance at cent precision.
func DefaultPayoutConfig() PayoutConfig {
	return PayoutConfig{Variance: 0.30, Places: 2}
}

// Decomposer splits monthly interest into daily payouts.
type Decomposer struct {
	cfg PayoutConfig
	src partition.Source
}

// NewDecomposer creates a Decomposer.
func NewDecomposer(cfg PayoutConfig, src partition.Source) (*Decomposer, error) {
	if src == nil {
		return nil, fmt.Errorf("random source is required for payout decomposer")
	}
	if cfg.Variance < 0 || cfg.Variance >= 1 {
		return nil, fmt.Errorf("payout variance %.2f must be in [0, 1): %w", cfg.Variance, ports.ErrConfigurationError)
	}
	if cfg.Places < 0 {
		return nil, fmt.Errorf("payout places cannot be negative: %w", ports.ErrConfigurationError)
	}
	return &Decomposer{cfg: cfg, src: src}, nil
}

// Places returns the currency precision used for amounts.
func (d *Decomposer) Places() int32 {
	return d.cfg.Places
}

// ProjectedInterest returns balance * rate at currency precision.
func (d *Decomposer) ProjectedInterest(balance, rate decimal.Decimal) decimal.Decimal {
	return balance.Mul(rate).Round(d.cfg.Places)
}

// Decompose computes the month's interest for balance at rate and distributes
// it over days. The returned amounts line up with days and sum exactly to
// ProjectedInterest(balance, rate).
func (d *Decomposer) Decompose(balance, rate decimal.Decimal, days []time.Time) ([]decimal.Decimal, error) {
	return d.Distribute(d.ProjectedInterest(balance, rate), days)
}

// Distribute spreads total over days using bounded random weights.
func (d *Decomposer) Distribute(total decimal.Decimal, days []time.Time) ([]decimal.Decimal, error) {
	if err := ValidateDays(days); err != nil {
		return nil, err
	}
	if total.IsNegative() {
		return nil, fmt.Errorf("cannot distribute negative interest %s: %w", total, ports.ErrInvalidSchedule)
	}
	if len(days) == 0 {
		if !total.IsZero() {
			return nil, fmt.Errorf("interest %s with no calendar days: %w", total, ports.ErrInvalidSchedule)
		}
		return []decimal.Decimal{}, nil
	}

	amounts, err := partition.Split(total.Round(d.cfg.Places), partition.Weights(d.src, len(days), d.cfg.Variance), d.cfg.Places)
	if err != nil {
		return nil, fmt.Errorf("failed to split interest over %d days: %v: %w", len(days), err, ports.ErrInvalidSchedule)
	}
	return amounts, nil
}

// ValidateDays checks that days are distinct and strictly ascending.
func ValidateDays(days []time.Time) error {
	for i := 1; i < len(days); i++ {
		if !days[i].After(days[i-1]) {
			return fmt.Errorf("day %s does not follow %s: %w",
				days[i].Format(time.DateOnly), days[i-1].Format(time.DateOnly), ports.ErrInvalidSchedule)
		}
	}
	return nil
}
