package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeEvent is a synthetic trade produced by the trade generator.
// Trade events are immutable once created and are replayed in Sequence order.
type TradeEvent struct {
	ID        string          // Unique identifier
	SessionID string          // Generating session
	Sequence  int             // 1-based position within the session
	Symbol    string          // Instrument from the configured set
	Side      Side            // long or short
	Notional  decimal.Decimal // Position size shown to the user
	Profit    decimal.Decimal // Signed profit contribution
	Timestamp time.Time       // Scheduled reveal time
}

// IsWin reports whether the trade made money.
func (t *TradeEvent) IsWin() bool {
	return t.Profit.IsPositive()
}

// SumProfits totals the profits of the given trades.
func SumProfits(trades []*TradeEvent) decimal.Decimal {
	total := decimal.Zero
	for _, t := range trades {
		total = total.Add(t.Profit)
	}
	return total
}
