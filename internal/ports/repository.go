package ports

import (
	"context"

	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/domain"
)

// DepositRepository stores immutable deposit records.
type DepositRepository interface {
	// CreateDeposit saves a new deposit and returns its assigned ID.
	CreateDeposit(ctx context.Context, dep *domain.Deposit) (int64, error)
	// FindDepositsByUser retrieves all deposits of a user, oldest first.
	FindDepositsByUser(ctx context.Context, userID string) ([]*domain.Deposit, error)
	// DeleteUserDeposits removes every deposit of a user (full account reset).
	DeleteUserDeposits(ctx context.Context, userID string) error
}

// PlanRepository stores monthly plans and their daily payout rows.
type PlanRepository interface {
	// CreatePlan saves a plan together with its payout batch in one transaction.
	CreatePlan(ctx context.Context, plan *domain.MonthlyPlan, payouts []*domain.DailyPayout) (int64, error)
	// FindPlan retrieves the plan for a user and month index.
	// Returns nil, nil if no plan exists.
	FindPlan(ctx context.Context, userID string, monthIndex int) (*domain.MonthlyPlan, error)
	// FindPlansByUser retrieves all plans of a user ordered by month index.
	FindPlansByUser(ctx context.Context, userID string) ([]*domain.MonthlyPlan, error)
	// FindPlansByStatus retrieves all plans in any of the given statuses.
	FindPlansByStatus(ctx context.Context, statuses ...domain.PlanStatus) ([]*domain.MonthlyPlan, error)
	// FindPayouts retrieves the payout rows of a plan ordered by day.
	FindPayouts(ctx context.Context, planID int64) ([]*domain.DailyPayout, error)
	// UpdateSchedule replaces the plan's mutable fields and payout rows when the
	// stored version equals plan.Version, then increments the version.
	// Returns ErrConflict if the plan was modified concurrently.
	// Pending rows are only rewritten while still pending in storage.
	UpdateSchedule(ctx context.Context, plan *domain.MonthlyPlan, payouts []*domain.DailyPayout) error
	// RecordDepositWithPlan stores a deposit together with the plan it opens,
	// in one transaction. Neither is kept if the plan cannot be stored.
	RecordDepositWithPlan(ctx context.Context, dep *domain.Deposit, plan *domain.MonthlyPlan, payouts []*domain.DailyPayout) (int64, error)
	// RecordDepositWithSchedule stores a deposit and applies UpdateSchedule in
	// one transaction. On ErrConflict the deposit is not stored.
	RecordDepositWithSchedule(ctx context.Context, dep *domain.Deposit, plan *domain.MonthlyPlan, payouts []*domain.DailyPayout) error
	// MarkPayoutsPaid stores the reveal of the given rows. Rows that are
	// already paid are left untouched, so the call is idempotent.
	MarkPayoutsPaid(ctx context.Context, payouts []*domain.DailyPayout) error
	// UpdatePlanStatus changes the lifecycle status of a plan.
	UpdatePlanStatus(ctx context.Context, planID int64, status domain.PlanStatus) error
	// DeleteUserPlans removes every plan and payout of a user (full account reset).
	DeleteUserPlans(ctx context.Context, userID string) error
}

// SessionRepository stores simulation sessions and their trade batches.
type SessionRepository interface {
	// CreateSession saves a session together with its trade batch.
	CreateSession(ctx context.Context, sess *domain.SimulationSession, trades []*domain.TradeEvent) error
	// FindSession retrieves a session by ID. Returns nil, nil if not found.
	FindSession(ctx context.Context, id string) (*domain.SimulationSession, error)
	// FindSessionsByStatus retrieves all sessions in the given status.
	FindSessionsByStatus(ctx context.Context, status domain.SessionStatus) ([]*domain.SimulationSession, error)
	// FindSessionsByUser retrieves a user's sessions, newest first.
	FindSessionsByUser(ctx context.Context, userID string) ([]*domain.SimulationSession, error)
	// FindTrades retrieves a session's trades ordered by sequence.
	FindTrades(ctx context.Context, sessionID string) ([]*domain.TradeEvent, error)
	// UpdateProgress stores the reveal pointer and status of a session.
	// The pointer never moves backwards.
	UpdateProgress(ctx context.Context, id string, revealed int, status domain.SessionStatus) error
	// ReplaceSession atomically discards the session's trades and stores a
	// fresh batch with the updated session row.
	ReplaceSession(ctx context.Context, sess *domain.SimulationSession, trades []*domain.TradeEvent) error
	// DeleteSession removes a session and all of its trades.
	DeleteSession(ctx context.Context, id string) error
	// DeleteUserSessions removes every session of a user.
	DeleteUserSessions(ctx context.Context, userID string) error
}
