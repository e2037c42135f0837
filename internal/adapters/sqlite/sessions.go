package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/domain"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/ports"
)

const sessionColumns = `id, user_id, start_time, duration_ns, start_amount, target_amount,
	       trade_count, tier_name, revealed_count, status, seed, created_at`

// --- SessionRepository Implementation ---

// CreateSession saves a session together with its trade batch.
func (r *Repository) CreateSession(ctx context.Context, sess *domain.SimulationSession, trades []*domain.TradeEvent) error {
	const query = `
	INSERT INTO simulation_sessions (id, user_id, start_time, duration_ns, start_amount, target_amount,
	                                 trade_count, tier_name, revealed_count, status, seed, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now().UTC()
	}
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, query,
			sess.ID, sess.UserID, sess.StartTime.UTC(), int64(sess.Duration), sess.StartAmount, sess.TargetAmount,
			sess.TradeCount, sess.TierName, sess.RevealedCount, sess.Status, sess.Seed, sess.CreatedAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to insert session %s: %w", sess.ID, mapWriteError(err))
		}
		return insertTrades(ctx, tx, trades)
	})
	if err != nil {
		return err
	}
	r.logger.Debug(ctx, "Session created", map[string]interface{}{"sessionID": sess.ID, "userID": sess.UserID, "trades": len(trades)})
	return nil
}

func insertTrades(ctx context.Context, tx *sql.Tx, trades []*domain.TradeEvent) error {
	const query = `
	INSERT INTO trade_events (id, session_id, sequence, symbol, side, notional, profit, timestamp)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare trade insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range trades {
		if _, err := stmt.ExecContext(ctx, e.ID, e.SessionID, e.Sequence, e.Symbol, e.Side, e.Notional, e.Profit, e.Timestamp.UTC()); err != nil {
			return fmt.Errorf("failed to insert trade %d of session %s: %w", e.Sequence, e.SessionID, mapWriteError(err))
		}
	}
	return nil
}

// FindSession retrieves a session by ID.
func (r *Repository) FindSession(ctx context.Context, id string) (*domain.SimulationSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM simulation_sessions WHERE id = ?`

	sess, err := scanSession(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Debug(ctx, "Session not found by ID", map[string]interface{}{"sessionID": id})
			return nil, nil // Not an error, just not found
		}
		return nil, fmt.Errorf("failed to query session %s: %w", id, err)
	}
	return sess, nil
}

// FindSessionsByStatus retrieves all sessions in the given status.
func (r *Repository) FindSessionsByStatus(ctx context.Context, status domain.SessionStatus) ([]*domain.SimulationSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM simulation_sessions WHERE status = ? ORDER BY start_time ASC`
	return r.querySessions(ctx, query, status)
}

// FindSessionsByUser retrieves a user's sessions, newest first.
func (r *Repository) FindSessionsByUser(ctx context.Context, userID string) ([]*domain.SimulationSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM simulation_sessions WHERE user_id = ? ORDER BY created_at DESC`
	return r.querySessions(ctx, query, userID)
}

func (r *Repository) querySessions(ctx context.Context, query string, args ...interface{}) ([]*domain.SimulationSession, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]*domain.SimulationSession, 0)
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating session rows: %w", err)
	}
	return sessions, nil
}

// FindTrades retrieves a session's trades ordered by sequence.
func (r *Repository) FindTrades(ctx context.Context, sessionID string) ([]*domain.TradeEvent, error) {
	const query = `
	SELECT id, session_id, sequence, symbol, side, notional, profit, timestamp
	FROM trade_events
	WHERE session_id = ?
	ORDER BY sequence ASC`

	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	trades := make([]*domain.TradeEvent, 0)
	for rows.Next() {
		e, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade during FindTrades: %w", err)
		}
		trades = append(trades, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade rows: %w", err)
	}
	return trades, nil
}

// UpdateProgress stores the reveal pointer and status of a session. A
// smaller pointer than the stored one is ignored and a completed session
// stays completed.
func (r *Repository) UpdateProgress(ctx context.Context, id string, revealed int, status domain.SessionStatus) error {
	const query = `
	UPDATE simulation_sessions
	SET revealed_count = MAX(revealed_count, ?),
	    status = CASE WHEN status = ? THEN status ELSE ? END
	WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, revealed, domain.SessionCompleted, status, id)
	if err != nil {
		return fmt.Errorf("failed to update progress of session %s: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for session %s: %w", id, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("session %s not found for progress update: %w", id, ports.ErrNotFound)
	}
	return nil
}

// ReplaceSession atomically discards the session's trades and stores a fresh
// batch together with the updated session row.
func (r *Repository) ReplaceSession(ctx context.Context, sess *domain.SimulationSession, trades []*domain.TradeEvent) error {
	const query = `
	UPDATE simulation_sessions
	SET start_time = ?, duration_ns = ?, start_amount = ?, target_amount = ?, trade_count = ?,
	    tier_name = ?, revealed_count = ?, status = ?, seed = ?
	WHERE id = ?`

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM trade_events WHERE session_id = ?`, sess.ID); err != nil {
			return fmt.Errorf("failed to clear trades of session %s: %w", sess.ID, err)
		}
		result, err := tx.ExecContext(ctx, query,
			sess.StartTime.UTC(), int64(sess.Duration), sess.StartAmount, sess.TargetAmount, sess.TradeCount,
			sess.TierName, sess.RevealedCount, sess.Status, sess.Seed, sess.ID)
		if err != nil {
			return fmt.Errorf("failed to update session %s: %w", sess.ID, err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected for session %s: %w", sess.ID, err)
		}
		if rowsAffected == 0 {
			return fmt.Errorf("session %s not found for replace: %w", sess.ID, ports.ErrNotFound)
		}
		return insertTrades(ctx, tx, trades)
	})
	if err != nil {
		return err
	}
	r.logger.Debug(ctx, "Session replaced", map[string]interface{}{"sessionID": sess.ID, "trades": len(trades)})
	return nil
}

// DeleteSession removes a session and all of its trades.
func (r *Repository) DeleteSession(ctx context.Context, id string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM trade_events WHERE session_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete trades of session %s: %w", id, err)
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM simulation_sessions WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete session %s: %w", id, err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected for session %s: %w", id, err)
		}
		if rowsAffected == 0 {
			return fmt.Errorf("session %s not found for delete: %w", id, ports.ErrNotFound)
		}
		return nil
	})
}

// DeleteUserSessions removes every session of a user.
func (r *Repository) DeleteUserSessions(ctx context.Context, userID string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM trade_events WHERE session_id IN (SELECT id FROM simulation_sessions WHERE user_id = ?)`, userID); err != nil {
			return fmt.Errorf("failed to delete trades of user %s: %w", userID, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM simulation_sessions WHERE user_id = ?`, userID); err != nil {
			return fmt.Errorf("failed to delete sessions of user %s: %w", userID, err)
		}
		return nil
	})
}
