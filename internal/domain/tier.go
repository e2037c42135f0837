package domain

import "github.com/shopspring/decimal"

// ActivityTier maps an account-size bracket to synthetic trade density.
type ActivityTier struct {
	Name            string          // Display name, e.g. "starter"
	LowerBound      decimal.Decimal // Smallest account size in the tier
	MinTrades       int             // Minimum trades per accelerated session
	MaxTrades       int             // Maximum trades per accelerated session
	MinTradesPerDay int             // Minimum trades in the live daily feed
	MaxTradesPerDay int             // Maximum trades in the live daily feed
}
