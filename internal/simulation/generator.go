// Package simulation generates the synthetic trade stream of an accelerated
// session. Profits of a session always add up to its target gain.
package simulation

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/domain"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/partition"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/ports"
)

// Config holds the variance and loss policy of the generator.
type Config struct {
	Variance        float64  // Win ticks pay base * U[1-Variance, 1+Variance]
	LossRateMin     float64  // Per-session loss rate is drawn from [LossRateMin, LossRateMax]
	LossRateMax     float64  //
	LossMin         float64  // Loss magnitude as a fraction of base
	LossMax         float64  //
	MaxLossMultiple float64  // Hard cap of a loss relative to base
	NotionalMin     float64  // Notional as a fraction of the start amount
	NotionalMax     float64  //
	Instruments     []string // Symbols trades are drawn from
	Places          int32    // Currency precision of profits and notionals
}

// DefaultConfig returns ±15% win variance and a 25-35% loss rate, which puts
// the long-run win rate around 0.65-0.75.
func DefaultConfig() Config {
	return Config{
		Variance:        0.15,
		LossRateMin:     0.25,
		LossRateMax:     0.35,
		LossMin:         0.30,
		LossMax:         0.90,
		MaxLossMultiple: 1.0,
		NotionalMin:     0.05,
		NotionalMax:     0.15,
		Instruments:     []string{"BTC/USD", "ETH/USD", "SOL/USD", "XRP/USD", "EUR/USD", "GBP/USD", "USD/JPY", "XAU/USD", "NVDA", "TSLA"},
		Places:          2,
	}
}

// Validate checks that all bands are ordered and within sensible limits.
func (c Config) Validate() error {
	switch {
	case c.Variance < 0 || c.Variance >= 1:
		return fmt.Errorf("trade variance %.2f must be in [0, 1): %w", c.Variance, ports.ErrConfigurationError)
	case c.LossRateMin < 0 || c.LossRateMax >= 1 || c.LossRateMin > c.LossRateMax:
		return fmt.Errorf("loss rate band [%.2f, %.2f] is invalid: %w", c.LossRateMin, c.LossRateMax, ports.ErrConfigurationError)
	case c.LossMin < 0 || c.LossMin > c.LossMax:
		return fmt.Errorf("loss magnitude band [%.2f, %.2f] is invalid: %w", c.LossMin, c.LossMax, ports.ErrConfigurationError)
	case c.MaxLossMultiple <= 0:
		return fmt.Errorf("max loss multiple must be positive: %w", ports.ErrConfigurationError)
	case c.NotionalMin <= 0 || c.NotionalMin > c.NotionalMax:
		return fmt.Errorf("notional band [%.2f, %.2f] is invalid: %w", c.NotionalMin, c.NotionalMax, ports.ErrConfigurationError)
	case len(c.Instruments) == 0:
		return fmt.Errorf("at least one instrument is required: %w", ports.ErrConfigurationError)
	case c.Places < 0:
		return fmt.Errorf("places cannot be negative: %w", ports.ErrConfigurationError)
	}
	return nil
}

// Request describes one generation run.
type Request struct {
	SessionID    string
	Start        time.Time
	StartAmount  decimal.Decimal
	TargetAmount decimal.Decimal
	Duration     time.Duration
	TradeCount   int
	Seed         int64 // Non-zero seeds make the run and its event IDs reproducible
}

// Generator produces synthetic trade events.
type Generator struct {
	cfg Config
	src partition.Source
}

// NewGenerator creates a Generator. src is used for requests without a seed.
func NewGenerator(cfg Config, src partition.Source) (*Generator, error) {
	if src == nil {
		return nil, fmt.Errorf("random source is required for trade generator")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Generator{cfg: cfg, src: src}, nil
}

// Validate checks a request before any event is produced.
func (r Request) Validate() error {
	switch {
	case r.Duration <= 0:
		return fmt.Errorf("duration %s must be positive: %w", r.Duration, ports.ErrInvalidSession)
	case r.TradeCount <= 0:
		return fmt.Errorf("trade count %d must be positive: %w", r.TradeCount, ports.ErrInvalidSession)
	case r.StartAmount.IsNegative():
		return fmt.Errorf("start amount %s is negative: %w", r.StartAmount, ports.ErrInvalidSession)
	case r.TargetAmount.LessThan(r.StartAmount):
		return fmt.Errorf("target %s is below start %s: %w", r.TargetAmount, r.StartAmount, ports.ErrInvalidSession)
	}
	return nil
}

// Generate produces req.TradeCount events spaced evenly over req.Duration.
//
// Each tick aims at an even share of the gain still outstanding. Win ticks
// vary that share by the configured variance; loss ticks are sampled at the
// session's loss rate and are capped so later ticks can still absorb them
// with positive profits. The final tick takes the exact residual.
func (g *Generator) Generate(req Request) ([]*domain.TradeEvent, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var src partition.Source = g.src
	if req.Seed != 0 {
		src = partition.Derive(req.Seed)
	}

	places := g.cfg.Places
	if !req.StartAmount.Equal(req.StartAmount.Round(places)) || !req.TargetAmount.Equal(req.TargetAmount.Round(places)) {
		return nil, fmt.Errorf("start %s and target %s must have at most %d decimal places: %w",
			req.StartAmount, req.TargetAmount, places, ports.ErrInvalidSession)
	}
	unit := decimal.New(1, -places)
	gain := req.TargetAmount.Sub(req.StartAmount)
	tick := req.Duration / time.Duration(req.TradeCount)
	lossRate := partition.Uniform(src, g.cfg.LossRateMin, g.cfg.LossRateMax)

	events := make([]*domain.TradeEvent, 0, req.TradeCount)
	profits := make([]decimal.Decimal, req.TradeCount)
	cumulative := decimal.Zero

	for k := 1; k <= req.TradeCount; k++ {
		remainingCount := req.TradeCount - k + 1
		remaining := gain.Sub(cumulative)

		var profit decimal.Decimal
		if remainingCount > 1 {
			base := remaining.Div(decimal.NewFromInt(int64(remainingCount)))
			profit = g.tickProfit(src, base, remaining, unit, lossRate)
		}
		profits[k-1] = profit
		if remainingCount == 1 {
			partition.CloseResidual(gain, profits)
			profit = profits[k-1]
		}
		cumulative = cumulative.Add(profit)

		events = append(events, &domain.TradeEvent{
			ID:        eventID(req, k),
			SessionID: req.SessionID,
			Sequence:  k,
			Symbol:    g.cfg.Instruments[src.Intn(len(g.cfg.Instruments))],
			Side:      drawSide(src),
			Notional:  req.StartAmount.Mul(decimal.NewFromFloat(partition.Uniform(src, g.cfg.NotionalMin, g.cfg.NotionalMax))).Round(places),
			Profit:    profit,
			Timestamp: req.Start.Add(time.Duration(k) * tick),
		})
	}
	return events, nil
}

// tickProfit returns the profit of a tick that is not the last one.
func (g *Generator) tickProfit(src partition.Source, base, remaining, unit decimal.Decimal, lossRate float64) decimal.Decimal {
	places := g.cfg.Places
	if base.IsPositive() && src.Float64() < lossRate {
		loss := base.Mul(decimal.NewFromFloat(partition.Uniform(src, g.cfg.LossMin, g.cfg.LossMax)))
		loss = decimal.Min(loss, base.Mul(decimal.NewFromFloat(g.cfg.MaxLossMultiple))).Round(places)
		if loss.IsPositive() {
			return loss.Neg()
		}
	}

	profit := base.Mul(decimal.NewFromFloat(partition.Uniform(src, 1-g.cfg.Variance, 1+g.cfg.Variance))).Round(places)
	if !profit.IsPositive() && remaining.GreaterThanOrEqual(unit) {
		profit = unit
	}
	return profit
}

// eventID returns a random ID, or a name-based one for seeded runs so a
// replayed batch carries the same IDs.
func eventID(req Request, k int) string {
	if req.Seed == 0 {
		return uuid.NewString()
	}
	name := fmt.Sprintf("%s/%d/%d", req.SessionID, req.Seed, k)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

func drawSide(src partition.Source) domain.Side {
	if src.Intn(2) == 0 {
		return domain.Long
	}
	return domain.Short
}
