package domain

// Side represents the direction of a synthetic trade.
type Side string

const (
	Long  Side = "long"
	Short Side = "short"
)

// PlanStatus represents the lifecycle state of a monthly plan.
type PlanStatus string

const (
	PlanScheduled PlanStatus = "scheduled"
	PlanActive    PlanStatus = "active"
	PlanCompleted PlanStatus = "completed"
)

// PayoutStatus represents whether a daily payout has been revealed to the user.
type PayoutStatus string

const (
	PayoutPending PayoutStatus = "pending"
	PayoutPaid    PayoutStatus = "paid"
)

// SessionStatus represents the state of an accelerated trade session.
type SessionStatus string

const (
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
)
