package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SimulationSession is one bounded run of the accelerated trade generator.
// The session owns its TradeEvent batch exclusively.
type SimulationSession struct {
	ID            string          // Unique identifier
	UserID        string          // Owner of the session
	StartTime     time.Time       // Wall-clock start of the session
	Duration      time.Duration   // Total length of the session
	StartAmount   decimal.Decimal // Balance at the start
	TargetAmount  decimal.Decimal // Balance once every trade is revealed
	TradeCount    int             // Number of generated trades
	TierName      string          // Activity tier the trade count came from
	RevealedCount int             // Monotonic pointer into the trade sequence
	Status        SessionStatus   // running or completed
	Seed          int64           // Seed the trade batch was generated from
	CreatedAt     time.Time
}

// TargetGain returns the total profit the session converges to.
func (s *SimulationSession) TargetGain() decimal.Decimal {
	return s.TargetAmount.Sub(s.StartAmount)
}

// EndTime returns when the last trade is revealed.
func (s *SimulationSession) EndTime() time.Time {
	return s.StartTime.Add(s.Duration)
}
