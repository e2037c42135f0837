package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Deposit is a single principal contribution. Deposits are never mutated;
// every new contribution is recorded as a new Deposit.
type Deposit struct {
	ID        int64           // Unique identifier (usually from DB)
	UserID    string          // Owner of the deposit
	Amount    decimal.Decimal // Principal amount, 2-place currency units
	CreatedAt time.Time       // When the deposit was recorded
}
