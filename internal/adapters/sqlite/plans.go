package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/domain"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/ports"
)

const planColumns = `id, user_id, month_index, locked_rate, starting_balance, projected_interest,
	       status, period_start, period_end, version, created_at, updated_at`

const payoutColumns = `id, plan_id, month_index, day, amount, status, paid_at`

// --- PlanRepository Implementation ---

// CreatePlan saves a plan together with its payout batch in one transaction.
func (r *Repository) CreatePlan(ctx context.Context, plan *domain.MonthlyPlan, payouts []*domain.DailyPayout) (int64, error) {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		return insertPlan(ctx, tx, plan, payouts)
	})
	if err != nil {
		plan.ID = 0
		return 0, err
	}

	r.logger.Debug(ctx, "Plan created", map[string]interface{}{
		"planID": plan.ID, "userID": plan.UserID, "monthIndex": plan.MonthIndex, "payouts": len(payouts),
	})
	return plan.ID, nil
}

// RecordDepositWithPlan stores dep and the plan it opens in one transaction.
func (r *Repository) RecordDepositWithPlan(ctx context.Context, dep *domain.Deposit, plan *domain.MonthlyPlan, payouts []*domain.DailyPayout) (int64, error) {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if err := insertDeposit(ctx, tx, dep); err != nil {
			return err
		}
		return insertPlan(ctx, tx, plan, payouts)
	})
	if err != nil {
		dep.ID = 0
		plan.ID = 0
		return 0, err
	}

	r.logger.Debug(ctx, "Deposit and plan created", map[string]interface{}{
		"depositID": dep.ID, "planID": plan.ID, "userID": plan.UserID, "monthIndex": plan.MonthIndex,
	})
	return plan.ID, nil
}

func insertPlan(ctx context.Context, tx *sql.Tx, plan *domain.MonthlyPlan, payouts []*domain.DailyPayout) error {
	const query = `
	INSERT INTO monthly_plans (user_id, month_index, locked_rate, starting_balance, projected_interest,
	                           status, period_start, period_end, version, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`

	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = time.Now().UTC()
	}
	plan.UpdatedAt = plan.CreatedAt

	result, err := tx.ExecContext(ctx, query,
		plan.UserID, plan.MonthIndex, plan.LockedRate, plan.StartingBalance, plan.ProjectedInterest,
		plan.Status, plan.PeriodStart.UTC(), plan.PeriodEnd.UTC(), plan.CreatedAt.UTC(), plan.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert plan month %d for user %s: %w", plan.MonthIndex, plan.UserID, mapWriteError(err))
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID for plan of user %s: %w", plan.UserID, err)
	}
	plan.ID = id
	plan.Version = 1

	for _, p := range payouts {
		p.PlanID = id
		p.MonthIndex = plan.MonthIndex
		if err := insertPayout(ctx, tx, p); err != nil {
			return err
		}
	}
	return nil
}

func insertPayout(ctx context.Context, tx *sql.Tx, p *domain.DailyPayout) error {
	const query = `
	INSERT INTO daily_payouts (plan_id, month_index, day, amount, status, paid_at)
	VALUES (?, ?, ?, ?, ?, ?)`

	result, err := tx.ExecContext(ctx, query, p.PlanID, p.MonthIndex, p.Day.UTC(), p.Amount, p.Status, nullTime(p.PaidAt))
	if err != nil {
		return fmt.Errorf("failed to insert payout for plan %d day %s: %w", p.PlanID, p.Day.Format("2006-01-02"), mapWriteError(err))
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID for payout of plan %d: %w", p.PlanID, err)
	}
	p.ID = id
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// FindPlan retrieves the plan for a user and month index.
func (r *Repository) FindPlan(ctx context.Context, userID string, monthIndex int) (*domain.MonthlyPlan, error) {
	query := `SELECT ` + planColumns + ` FROM monthly_plans WHERE user_id = ? AND month_index = ?`

	plan, err := scanPlan(r.db.QueryRowContext(ctx, query, userID, monthIndex))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Debug(ctx, "No plan found", map[string]interface{}{"userID": userID, "monthIndex": monthIndex})
			return nil, nil // Not an error, just not found
		}
		return nil, fmt.Errorf("failed to query plan month %d for user %s: %w", monthIndex, userID, err)
	}
	return plan, nil
}

// FindPlansByUser retrieves all plans of a user ordered by month index.
func (r *Repository) FindPlansByUser(ctx context.Context, userID string) ([]*domain.MonthlyPlan, error) {
	query := `SELECT ` + planColumns + ` FROM monthly_plans WHERE user_id = ? ORDER BY month_index ASC`
	return r.queryPlans(ctx, query, userID)
}

// FindPlansByStatus retrieves all plans in any of the given statuses.
func (r *Repository) FindPlansByStatus(ctx context.Context, statuses ...domain.PlanStatus) ([]*domain.MonthlyPlan, error) {
	if len(statuses) == 0 {
		return []*domain.MonthlyPlan{}, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(statuses)), ", ")
	args := make([]interface{}, len(statuses))
	for i, s := range statuses {
		args[i] = s
	}
	query := `SELECT ` + planColumns + ` FROM monthly_plans WHERE status IN (` + placeholders + `) ORDER BY user_id, month_index`
	return r.queryPlans(ctx, query, args...)
}

func (r *Repository) queryPlans(ctx context.Context, query string, args ...interface{}) ([]*domain.MonthlyPlan, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query plans: %w", err)
	}
	defer rows.Close()

	plans := make([]*domain.MonthlyPlan, 0)
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		plans = append(plans, plan)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating plan rows: %w", err)
	}
	return plans, nil
}

// FindPayouts retrieves the payout rows of a plan ordered by day.
func (r *Repository) FindPayouts(ctx context.Context, planID int64) ([]*domain.DailyPayout, error) {
	query := `SELECT ` + payoutColumns + ` FROM daily_payouts WHERE plan_id = ? ORDER BY day ASC`

	rows, err := r.db.QueryContext(ctx, query, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to query payouts for plan %d: %w", planID, err)
	}
	defer rows.Close()

	payouts := make([]*domain.DailyPayout, 0)
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payout during FindPayouts: %w", err)
		}
		payouts = append(payouts, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payout rows: %w", err)
	}
	return payouts, nil
}

// UpdateSchedule writes a recalculated schedule if the stored version still
// matches plan.Version. On success plan.Version holds the new version.
func (r *Repository) UpdateSchedule(ctx context.Context, plan *domain.MonthlyPlan, payouts []*domain.DailyPayout) error {
	updatedAt := time.Now().UTC()
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		return updateSchedule(ctx, tx, plan, payouts, updatedAt)
	})
	if err != nil {
		return err
	}

	plan.Version++
	plan.UpdatedAt = updatedAt
	r.logger.Debug(ctx, "Plan schedule updated", map[string]interface{}{
		"planID": plan.ID, "version": plan.Version, "projectedInterest": plan.ProjectedInterest.String(),
	})
	return nil
}

// RecordDepositWithSchedule stores dep and the recalculated schedule in one
// transaction. A stale version rolls back the deposit too.
func (r *Repository) RecordDepositWithSchedule(ctx context.Context, dep *domain.Deposit, plan *domain.MonthlyPlan, payouts []*domain.DailyPayout) error {
	updatedAt := time.Now().UTC()
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if err := insertDeposit(ctx, tx, dep); err != nil {
			return err
		}
		return updateSchedule(ctx, tx, plan, payouts, updatedAt)
	})
	if err != nil {
		dep.ID = 0
		return err
	}

	plan.Version++
	plan.UpdatedAt = updatedAt
	r.logger.Debug(ctx, "Deposit stored with schedule", map[string]interface{}{
		"depositID": dep.ID, "planID": plan.ID, "version": plan.Version, "projectedInterest": plan.ProjectedInterest.String(),
	})
	return nil
}

func updateSchedule(ctx context.Context, tx *sql.Tx, plan *domain.MonthlyPlan, payouts []*domain.DailyPayout, updatedAt time.Time) error {
	const updatePlan = `
	UPDATE monthly_plans
	SET starting_balance = ?, projected_interest = ?, status = ?, version = version + 1, updated_at = ?
	WHERE id = ? AND version = ?`
	const updatePayout = `
	UPDATE daily_payouts SET amount = ?
	WHERE id = ? AND plan_id = ? AND status = ?`

	result, err := tx.ExecContext(ctx, updatePlan,
		plan.StartingBalance, plan.ProjectedInterest, plan.Status, updatedAt, plan.ID, plan.Version)
	if err != nil {
		return fmt.Errorf("failed to update plan ID %d: %w", plan.ID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for plan ID %d: %w", plan.ID, err)
	}
	if rowsAffected == 0 {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM monthly_plans WHERE id = ?`, plan.ID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check plan ID %d: %w", plan.ID, err)
		}
		if exists == 0 {
			return fmt.Errorf("plan ID %d not found for update: %w", plan.ID, ports.ErrNotFound)
		}
		return fmt.Errorf("plan ID %d version %d is stale: %w", plan.ID, plan.Version, ports.ErrConflict)
	}

	for _, p := range payouts {
		if p.IsPaid() {
			continue
		}
		if p.ID == 0 {
			p.PlanID = plan.ID
			p.MonthIndex = plan.MonthIndex
			if err := insertPayout(ctx, tx, p); err != nil {
				return err
			}
			continue
		}
		result, err := tx.ExecContext(ctx, updatePayout, p.Amount, p.ID, plan.ID, domain.PayoutPending)
		if err != nil {
			return fmt.Errorf("failed to update payout ID %d: %w", p.ID, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected for payout ID %d: %w", p.ID, err)
		}
		if n == 0 {
			// Revealed since the schedule was read.
			return fmt.Errorf("payout ID %d is no longer pending: %w", p.ID, ports.ErrConflict)
		}
	}
	return nil
}

// MarkPayoutsPaid stores the reveal of the given rows.
func (r *Repository) MarkPayoutsPaid(ctx context.Context, payouts []*domain.DailyPayout) error {
	const query = `UPDATE daily_payouts SET status = ?, paid_at = ? WHERE id = ? AND status = ?`

	if len(payouts) == 0 {
		return nil
	}
	return r.withTx(ctx, func(tx *sql.Tx) error {
		for _, p := range payouts {
			if p.PaidAt == nil {
				return fmt.Errorf("payout ID %d has no paid_at: %w", p.ID, ports.ErrInvalidRequest)
			}
			if _, err := tx.ExecContext(ctx, query, domain.PayoutPaid, p.PaidAt.UTC(), p.ID, domain.PayoutPending); err != nil {
				return fmt.Errorf("failed to mark payout ID %d paid: %w", p.ID, err)
			}
		}
		return nil
	})
}

// UpdatePlanStatus changes the lifecycle status of a plan.
func (r *Repository) UpdatePlanStatus(ctx context.Context, planID int64, status domain.PlanStatus) error {
	const query = `UPDATE monthly_plans SET status = ?, updated_at = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, status, time.Now().UTC(), planID)
	if err != nil {
		return fmt.Errorf("failed to update status of plan ID %d: %w", planID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for plan ID %d: %w", planID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("plan ID %d not found for status update: %w", planID, ports.ErrNotFound)
	}
	r.logger.Debug(ctx, "Plan status updated", map[string]interface{}{"planID": planID, "status": status})
	return nil
}

// DeleteUserPlans removes every plan and payout of a user.
func (r *Repository) DeleteUserPlans(ctx context.Context, userID string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM daily_payouts WHERE plan_id IN (SELECT id FROM monthly_plans WHERE user_id = ?)`, userID); err != nil {
			return fmt.Errorf("failed to delete payouts of user %s: %w", userID, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM monthly_plans WHERE user_id = ?`, userID); err != nil {
			return fmt.Errorf("failed to delete plans of user %s: %w", userID, err)
		}
		return nil
	})
}
