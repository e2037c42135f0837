// Package policy loads the versioned engine policy: rate bands, variance
// bands, loss policy, instruments and the activity tier table.
package policy

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/activity"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/domain"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/simulation"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/yield"
)

// Band is an inclusive [min, max] range in the policy file.
type Band struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Tier is one row of the activity tier table.
type Tier struct {
	Name            string  `yaml:"name"`
	LowerBound      float64 `yaml:"lower_bound"`
	MinTrades       int     `yaml:"min_trades"`
	MaxTrades       int     `yaml:"max_trades"`
	MinTradesPerDay int     `yaml:"min_trades_per_day"`
	MaxTradesPerDay int     `yaml:"max_trades_per_day"`
}

// Policy is the document stored in the policy file. Zero values take defaults.
type Policy struct {
	Version string `yaml:"version"`
	Rates   struct {
		FirstMonth Band  `yaml:"first_month"`
		Subsequent Band  `yaml:"subsequent"`
		Places     int32 `yaml:"places"`
	} `yaml:"rates"`
	Payouts struct {
		Variance float64 `yaml:"variance"`
		Places   int32   `yaml:"places"`
	} `yaml:"payouts"`
	Trades struct {
		Variance        float64  `yaml:"variance"`
		LossRate        Band     `yaml:"loss_rate"`
		LossMagnitude   Band     `yaml:"loss_magnitude"`
		MaxLossMultiple float64  `yaml:"max_loss_multiple"`
		Notional        Band     `yaml:"notional"`
		Instruments     []string `yaml:"instruments"`
		Places          int32    `yaml:"places"`
	} `yaml:"trades"`
	Tiers []Tier `yaml:"tiers"`
}

// Default returns the built-in policy.
func Default() *Policy {
	p := &Policy{}
	p.applyDefaults()
	return p
}

// Load reads the policy from a YAML file. A missing file or an empty path
// yields the defaults. The result is validated.
func Load(path string) (*Policy, error) {
	p := &Policy{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read policy: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, p); err != nil {
				return nil, fmt.Errorf("parse policy: %w", err)
			}
		}
	}

	p.applyDefaults()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Policy) applyDefaults() {
	table := activity.DefaultTable()
	if p.Version == "" {
		p.Version = table.Version
	}

	bands := yield.DefaultRateBands()
	if p.Rates.FirstMonth == (Band{}) {
		p.Rates.FirstMonth = Band{Min: bands.FirstMonth.Min.InexactFloat64(), Max: bands.FirstMonth.Max.InexactFloat64()}
	}
	if p.Rates.Subsequent == (Band{}) {
		p.Rates.Subsequent = Band{Min: bands.Subsequent.Min.InexactFloat64(), Max: bands.Subsequent.Max.InexactFloat64()}
	}
	if p.Rates.Places == 0 {
		p.Rates.Places = bands.Places
	}

	payouts := yield.DefaultPayoutConfig()
	if p.Payouts.Variance == 0 {
		p.Payouts.Variance = payouts.Variance
	}
	if p.Payouts.Places == 0 {
		p.Payouts.Places = payouts.Places
	}

	gen := simulation.DefaultConfig()
	if p.Trades.Variance == 0 {
		p.Trades.Variance = gen.Variance
	}
	if p.Trades.LossRate == (Band{}) {
		p.Trades.LossRate = Band{Min: gen.LossRateMin, Max: gen.LossRateMax}
	}
	if p.Trades.LossMagnitude == (Band{}) {
		p.Trades.LossMagnitude = Band{Min: gen.LossMin, Max: gen.LossMax}
	}
	if p.Trades.MaxLossMultiple == 0 {
		p.Trades.MaxLossMultiple = gen.MaxLossMultiple
	}
	if p.Trades.Notional == (Band{}) {
		p.Trades.Notional = Band{Min: gen.NotionalMin, Max: gen.NotionalMax}
	}
	if len(p.Trades.Instruments) == 0 {
		p.Trades.Instruments = gen.Instruments
	}
	if p.Trades.Places == 0 {
		p.Trades.Places = gen.Places
	}

	if len(p.Tiers) == 0 {
		for _, t := range table.Tiers {
			p.Tiers = append(p.Tiers, Tier{
				Name:            t.Name,
				LowerBound:      t.LowerBound.InexactFloat64(),
				MinTrades:       t.MinTrades,
				MaxTrades:       t.MaxTrades,
				MinTradesPerDay: t.MinTradesPerDay,
				MaxTradesPerDay: t.MaxTradesPerDay,
			})
		}
	}
}

// SetAmountPlaces overrides the currency precision of payouts and trades.
func (p *Policy) SetAmountPlaces(places int32) {
	p.Payouts.Places = places
	p.Trades.Places = places
}

// Validate checks every section of the policy.
func (p *Policy) Validate() error {
	if err := p.RateBands().Validate(); err != nil {
		return fmt.Errorf("rates: %w", err)
	}
	if p.Payouts.Variance < 0 || p.Payouts.Variance >= 1 {
		return fmt.Errorf("payouts.variance %.2f must be in [0, 1)", p.Payouts.Variance)
	}
	if p.Payouts.Places < 0 {
		return fmt.Errorf("payouts.places cannot be negative")
	}
	if err := p.GeneratorConfig().Validate(); err != nil {
		return fmt.Errorf("trades: %w", err)
	}
	if err := p.TierTable().Validate(); err != nil {
		return fmt.Errorf("tiers: %w", err)
	}
	return nil
}

// RateBands converts the rates section.
func (p *Policy) RateBands() yield.RateBands {
	return yield.RateBands{
		FirstMonth: yield.Band{Min: decimal.NewFromFloat(p.Rates.FirstMonth.Min), Max: decimal.NewFromFloat(p.Rates.FirstMonth.Max)},
		Subsequent: yield.Band{Min: decimal.NewFromFloat(p.Rates.Subsequent.Min), Max: decimal.NewFromFloat(p.Rates.Subsequent.Max)},
		Places:     p.Rates.Places,
	}
}

// PayoutConfig converts the payouts section.
func (p *Policy) PayoutConfig() yield.PayoutConfig {
	return yield.PayoutConfig{Variance: p.Payouts.Variance, Places: p.Payouts.Places}
}

// GeneratorConfig converts the trades section.
func (p *Policy) GeneratorConfig() simulation.Config {
	instruments := make([]string, len(p.Trades.Instruments))
	copy(instruments, p.Trades.Instruments)
	return simulation.Config{
		Variance:        p.Trades.Variance,
		LossRateMin:     p.Trades.LossRate.Min,
		LossRateMax:     p.Trades.LossRate.Max,
		LossMin:         p.Trades.LossMagnitude.Min,
		LossMax:         p.Trades.LossMagnitude.Max,
		MaxLossMultiple: p.Trades.MaxLossMultiple,
		NotionalMin:     p.Trades.Notional.Min,
		NotionalMax:     p.Trades.Notional.Max,
		Instruments:     instruments,
		Places:          p.Trades.Places,
	}
}

// TierTable converts the tier section into a versioned table.
func (p *Policy) TierTable() activity.Table {
	table := activity.Table{Version: p.Version}
	for _, t := range p.Tiers {
		table.Tiers = append(table.Tiers, domain.ActivityTier{
			Name:            t.Name,
			LowerBound:      decimal.NewFromFloat(t.LowerBound),
			MinTrades:       t.MinTrades,
			MaxTrades:       t.MaxTrades,
			MinTradesPerDay: t.MinTradesPerDay,
			MaxTradesPerDay: t.MaxTradesPerDay,
		})
	}
	return table
}
