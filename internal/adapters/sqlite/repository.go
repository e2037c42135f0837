package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/domain"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/ports"
)

// Repository implements the ports.DepositRepository, ports.PlanRepository and
// ports.SessionRepository interfaces using SQLite. Amounts are stored as TEXT
// so decimals round-trip exactly.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/yield_engine.db" // Default path
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "Data directory checked/created", map[string]interface{}{"path": filepath.Dir(dbPath)})

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// A single connection serializes writers; transactions below rely on it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cfg.Logger.Info(context.Background(), "SQLite database connection established", map[string]interface{}{"path": dbPath})

	repo := &Repository{db: db, logger: cfg.Logger}

	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "Database schema initialized/verified")

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS deposits (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS monthly_plans (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		month_index INTEGER NOT NULL,
		locked_rate TEXT NOT NULL,
		starting_balance TEXT NOT NULL,
		projected_interest TEXT NOT NULL,
		status TEXT NOT NULL,
		period_start TIMESTAMP NOT NULL,
		period_end TIMESTAMP NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE (user_id, month_index)
	);

	CREATE TABLE IF NOT EXISTS daily_payouts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		plan_id INTEGER NOT NULL REFERENCES monthly_plans (id) ON DELETE CASCADE,
		month_index INTEGER NOT NULL,
		day TIMESTAMP NOT NULL,
		amount TEXT NOT NULL,
		status TEXT NOT NULL,
		paid_at TIMESTAMP NULL,
		UNIQUE (plan_id, day)
	);

	CREATE TABLE IF NOT EXISTS simulation_sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		start_time TIMESTAMP NOT NULL,
		duration_ns INTEGER NOT NULL,
		start_amount TEXT NOT NULL,
		target_amount TEXT NOT NULL,
		trade_count INTEGER NOT NULL,
		tier_name TEXT NOT NULL,
		revealed_count INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		seed INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS trade_events (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES simulation_sessions (id) ON DELETE CASCADE,
		sequence INTEGER NOT NULL,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		notional TEXT NOT NULL,
		profit TEXT NOT NULL,
		timestamp TIMESTAMP NOT NULL,
		UNIQUE (session_id, sequence)
	);
	-- Add indexes for common lookups
	CREATE INDEX IF NOT EXISTS idx_deposits_user ON deposits (user_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_monthly_plans_status ON monthly_plans (status);
	CREATE INDEX IF NOT EXISTS idx_daily_payouts_plan_day ON daily_payouts (plan_id, day);
	CREATE INDEX IF NOT EXISTS idx_sessions_user ON simulation_sessions (user_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_sessions_status ON simulation_sessions (status);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// withTx runs fn in a transaction, rolling back on error.
func (r *Repository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// mapWriteError converts driver constraint violations to ports errors.
func mapWriteError(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%v: %w", err, ports.ErrDuplicateEntry)
	}
	return err
}

// --- DepositRepository Implementation ---

// CreateDeposit saves a new deposit and returns its assigned ID.
func (r *Repository) CreateDeposit(ctx context.Context, dep *domain.Deposit) (int64, error) {
	if err := insertDeposit(ctx, r.db, dep); err != nil {
		return 0, err
	}
	r.logger.Debug(ctx, "Deposit created", map[string]interface{}{"depositID": dep.ID, "userID": dep.UserID, "amount": dep.Amount.String()})
	return dep.ID, nil
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func insertDeposit(ctx context.Context, ex execer, dep *domain.Deposit) error {
	const query = `INSERT INTO deposits (user_id, amount, created_at) VALUES (?, ?, ?)`

	result, err := ex.ExecContext(ctx, query, dep.UserID, dep.Amount, dep.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert deposit for user %s: %w", dep.UserID, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID for deposit of user %s: %w", dep.UserID, err)
	}
	dep.ID = id
	return nil
}

// FindDepositsByUser retrieves all deposits of a user, oldest first.
func (r *Repository) FindDepositsByUser(ctx context.Context, userID string) ([]*domain.Deposit, error) {
	const query = `
	SELECT id, user_id, amount, created_at
	FROM deposits
	WHERE user_id = ?
	ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query deposits for user %s: %w", userID, err)
	}
	defer rows.Close()

	deposits := make([]*domain.Deposit, 0)
	for rows.Next() {
		d := &domain.Deposit{}
		if err := rows.Scan(&d.ID, &d.UserID, &d.Amount, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan deposit during FindDepositsByUser: %w", err)
		}
		d.CreatedAt = d.CreatedAt.UTC()
		deposits = append(deposits, d)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deposit rows: %w", err)
	}
	return deposits, nil
}

// DeleteUserDeposits removes every deposit of a user.
func (r *Repository) DeleteUserDeposits(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM deposits WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to delete deposits of user %s: %w", userID, err)
	}
	r.logger.Debug(ctx, "Deposits deleted", map[string]interface{}{"userID": userID})
	return nil
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanPlan scans a row into a domain.MonthlyPlan struct.
func scanPlan(s scanner) (*domain.MonthlyPlan, error) {
	p := &domain.MonthlyPlan{}
	var status string
	err := s.Scan(
		&p.ID, &p.UserID, &p.MonthIndex, &p.LockedRate, &p.StartingBalance, &p.ProjectedInterest,
		&status, &p.PeriodStart, &p.PeriodEnd, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	p.Status = domain.PlanStatus(status)
	p.PeriodStart = p.PeriodStart.UTC()
	p.PeriodEnd = p.PeriodEnd.UTC()
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

// scanPayout scans a row into a domain.DailyPayout struct.
func scanPayout(s scanner) (*domain.DailyPayout, error) {
	p := &domain.DailyPayout{}
	var status string
	var paidAt sql.NullTime
	err := s.Scan(&p.ID, &p.PlanID, &p.MonthIndex, &p.Day, &p.Amount, &status, &paidAt)
	if err != nil {
		return nil, err
	}
	p.Status = domain.PayoutStatus(status)
	p.Day = p.Day.UTC()
	if paidAt.Valid {
		t := paidAt.Time.UTC()
		p.PaidAt = &t
	}
	return p, nil
}

// scanSession scans a row into a domain.SimulationSession struct.
func scanSession(s scanner) (*domain.SimulationSession, error) {
	sess := &domain.SimulationSession{}
	var status string
	var durationNs int64
	err := s.Scan(
		&sess.ID, &sess.UserID, &sess.StartTime, &durationNs, &sess.StartAmount, &sess.TargetAmount,
		&sess.TradeCount, &sess.TierName, &sess.RevealedCount, &status, &sess.Seed, &sess.CreatedAt)
	if err != nil {
		return nil, err
	}
	sess.Duration = time.Duration(durationNs)
	sess.Status = domain.SessionStatus(status)
	sess.StartTime = sess.StartTime.UTC()
	sess.CreatedAt = sess.CreatedAt.UTC()
	return sess, nil
}

// scanTrade scans a row into a domain.TradeEvent struct.
func scanTrade(s scanner) (*domain.TradeEvent, error) {
	e := &domain.TradeEvent{}
	var side string
	err := s.Scan(&e.ID, &e.SessionID, &e.Sequence, &e.Symbol, &side, &e.Notional, &e.Profit, &e.Timestamp)
	if err != nil {
		return nil, err
	}
	e.Side = domain.Side(side)
	e.Timestamp = e.Timestamp.UTC()
	return e, nil
}
