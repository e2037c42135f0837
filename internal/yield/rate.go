// Package yield assigns locked monthly rates and turns a month's interest into
// a daily payout schedule.
package yield

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/partition"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/ports"
)

// Band is an inclusive range a monthly rate is drawn from.
type Band struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// Contains reports whether rate lies inside the band.
func (b Band) Contains(rate decimal.Decimal) bool {
	return rate.GreaterThanOrEqual(b.Min) && rate.LessThanOrEqual(b.Max)
}

// RateBands holds the rate bands for the first and the following months.
type RateBands struct {
	FirstMonth Band
	Subsequent Band
	Places     int32 // Decimal places a drawn rate is rounded to
}

// DefaultRateBands returns 20-22% for the first month and 15-17% afterwards.
func DefaultRateBands() RateBands {
	return RateBands{
		FirstMonth: Band{Min: decimal.RequireFromString("0.20"), Max: decimal.RequireFromString("0.22")},
		Subsequent: Band{Min: decimal.RequireFromString("0.15"), Max: decimal.RequireFromString("0.17")},
		Places:     4,
	}
}

// Validate checks that both bands are well formed and representable at Places.
func (b RateBands) Validate() error {
	for name, band := range map[string]Band{"first month": b.FirstMonth, "subsequent": b.Subsequent} {
		if band.Min.IsNegative() || band.Min.GreaterThan(band.Max) {
			return fmt.Errorf("%s rate band [%s, %s] is invalid: %w", name, band.Min, band.Max, ports.ErrConfigurationError)
		}
		if !band.Min.Equal(band.Min.Round(b.Places)) || !band.Max.Equal(band.Max.Round(b.Places)) {
			return fmt.Errorf("%s rate band bounds need more than %d places: %w", name, b.Places, ports.ErrConfigurationError)
		}
	}
	return nil
}

// RateSelector draws a monthly rate from the band that applies to a month.
// It never looks at stored plans: callers check for an already locked rate
// before selecting and persist the result immediately.
type RateSelector struct {
	bands RateBands
	src   partition.Source
}

// NewRateSelector creates a RateSelector.
func NewRateSelector(bands RateBands, src partition.Source) (*RateSelector, error) {
	if src == nil {
		return nil, fmt.Errorf("random source is required for rate selector")
	}
	if err := bands.Validate(); err != nil {
		return nil, err
	}
	return &RateSelector{bands: bands, src: src}, nil
}

// Band returns the band that applies to monthIndex. Indices below 1 are
// treated as the first month.
func (s *RateSelector) Band(monthIndex int) Band {
	if monthIndex <= 1 {
		return s.bands.FirstMonth
	}
	return s.bands.Subsequent
}

// SelectRate draws a rate uniformly from the band of monthIndex.
func (s *RateSelector) SelectRate(monthIndex int) decimal.Decimal {
	band := s.Band(monthIndex)
	u := decimal.NewFromFloat(s.src.Float64())
	return band.Min.Add(band.Max.Sub(band.Min).Mul(u)).Round(s.bands.Places)
}
