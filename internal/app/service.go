package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/activity"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/analytics"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/domain"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/partition"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/ports"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/reveal"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/simulation"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/yield"
)

// Settings holds the defaults applied to demo sessions.
type Settings struct {
	SessionDuration time.Duration   // Length of a session when the request leaves it out
	TargetGain      decimal.Decimal // Gain as a fraction of the start amount when no target is given
}

// Dependencies groups everything EngineService needs.
type Dependencies struct {
	Logger     ports.Logger
	Clock      ports.TimeSource
	Deposits   ports.DepositRepository
	Plans      ports.PlanRepository
	Sessions   ports.SessionRepository
	Rates      *yield.RateSelector
	Decomposer *yield.Decomposer
	Tiers      *activity.Resolver
	Generator  *simulation.Generator
	Reveal     *reveal.Clock
	Source     partition.Source
}

// EngineService orchestrates deposits, monthly schedules, reveals and demo
// sessions on top of the repositories.
type EngineService struct {
	logger     ports.Logger
	clock      ports.TimeSource
	deposits   ports.DepositRepository
	plans      ports.PlanRepository
	sessions   ports.SessionRepository
	rates      *yield.RateSelector
	decomposer *yield.Decomposer
	recalc     *yield.Recalculator
	tiers      *activity.Resolver
	generator  *simulation.Generator
	reveal     *reveal.Clock
	src        partition.Source
	settings   Settings

	locks *keyedLocker // Serializes writers per user and per session
}

// NewEngineService creates a new application service instance.
func NewEngineService(deps Dependencies, settings Settings) (*EngineService, error) {
	if deps.Logger == nil || deps.Clock == nil || deps.Deposits == nil || deps.Plans == nil || deps.Sessions == nil ||
		deps.Rates == nil || deps.Decomposer == nil || deps.Tiers == nil || deps.Generator == nil ||
		deps.Reveal == nil || deps.Source == nil {
		return nil, fmt.Errorf("missing required dependencies for EngineService")
	}
	if settings.SessionDuration <= 0 {
		return nil, fmt.Errorf("configuration SessionDuration must be positive")
	}
	if settings.TargetGain.IsNegative() {
		return nil, fmt.Errorf("configuration TargetGain cannot be negative")
	}

	recalc, err := yield.NewRecalculator(deps.Decomposer)
	if err != nil {
		return nil, err
	}

	return &EngineService{
		logger:     deps.Logger,
		clock:      deps.Clock,
		deposits:   deps.Deposits,
		plans:      deps.Plans,
		sessions:   deps.Sessions,
		rates:      deps.Rates,
		decomposer: deps.Decomposer,
		recalc:     recalc,
		tiers:      deps.Tiers,
		generator:  deps.Generator,
		reveal:     deps.Reveal,
		src:        deps.Source,
		settings:   settings,
		locks:      newKeyedLocker(),
	}, nil
}

// PlanSnapshot is the revealed state of a user's current month.
type PlanSnapshot struct {
	reveal.PlanView
	UserID    string
	Principal decimal.Decimal // Sum of all deposits
	AsOf      time.Time
}

// SessionSnapshot is the revealed state of a demo session.
type SessionSnapshot struct {
	reveal.SessionView
	Stats *analytics.PerformanceMetrics // Computed over the visible trades
	AsOf  time.Time
}

// TickReport summarizes one reveal pass.
type TickReport struct {
	AsOf              time.Time
	PayoutsRevealed   int
	PlansCompleted    int
	PlansCreated      int
	TradesRevealed    int
	SessionsCompleted int
}

// --- Deposits and monthly plans ---

// RecordDeposit stores a deposit and brings the user's current month in line
// with it: the month's plan is created on the first deposit of the month, and
// otherwise the unpaid remainder of its schedule is recalculated. The deposit
// is stored in the same transaction as the plan or schedule it changes, so a
// failed call records nothing.
func (s *EngineService) RecordDeposit(ctx context.Context, userID string, amount decimal.Decimal) (*PlanSnapshot, error) {
	op := "RecordDeposit"
	if userID == "" {
		return nil, fmt.Errorf("user id is required: %w", ports.ErrInvalidInput)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("deposit amount %s must be positive: %w", amount, ports.ErrInvalidInput)
	}
	amount = amount.Round(s.decomposer.Places())

	unlock := s.locks.Lock(userKey(userID))
	defer unlock()

	now := s.clock.Now().UTC()
	deposits, err := s.deposits.FindDepositsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load deposits: %w", err)
	}
	anchor := now
	if len(deposits) > 0 {
		anchor = deposits[0].CreatedAt
	}
	monthIndex := yield.MonthIndexFor(anchor, now)

	plan, err := s.plans.FindPlan(ctx, userID, monthIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}

	dep := &domain.Deposit{UserID: userID, Amount: amount, CreatedAt: now}

	if plan == nil {
		if _, err := s.rollover(ctx, userID, append(deposits, dep), dep, now); err != nil {
			return nil, err
		}
		return s.planSnapshot(ctx, userID, now)
	}

	payouts, err := s.plans.FindPayouts(ctx, plan.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load payouts of plan %d: %w", plan.ID, err)
	}
	if _, err := s.settle(ctx, payouts, now); err != nil {
		return nil, err
	}

	result, err := s.recalc.Recalculate(plan, payouts, amount, now)
	if err != nil {
		s.logger.Warn(ctx, op+": Recalculation rejected", map[string]interface{}{
			"userID": userID, "planID": plan.ID, "amount": amount.String(), "error": err.Error(),
		})
		return nil, err
	}

	if err := s.plans.RecordDepositWithSchedule(ctx, dep, result.Plan, result.Payouts); err != nil {
		s.logger.Error(ctx, err, op+": Failed to store recalculated schedule", map[string]interface{}{
			"userID": userID, "planID": plan.ID, "version": plan.Version,
		})
		return nil, fmt.Errorf("failed to store recalculated schedule: %w", err)
	}

	s.logger.Info(ctx, op+": Schedule recalculated", map[string]interface{}{
		"userID":            userID,
		"planID":            plan.ID,
		"amount":            amount.String(),
		"projectedInterest": result.Plan.ProjectedInterest.String(),
		"frozen":            result.Frozen.String(),
		"remaining":         result.Remaining.String(),
		"redistributedDays": result.Redistributed,
	})
	return s.planSnapshot(ctx, userID, now)
}

// EnsureCurrentMonth returns the plan for the month that contains the current
// time, creating it (and completing earlier months) if the month just began.
func (s *EngineService) EnsureCurrentMonth(ctx context.Context, userID string) (*domain.MonthlyPlan, error) {
	unlock := s.locks.Lock(userKey(userID))
	defer unlock()

	now := s.clock.Now().UTC()
	deposits, err := s.deposits.FindDepositsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load deposits: %w", err)
	}
	if len(deposits) == 0 {
		return nil, fmt.Errorf("user %s has no deposits: %w", userID, ports.ErrNotFound)
	}
	res, err := s.rollover(ctx, userID, deposits, nil, now)
	if err != nil {
		return nil, err
	}
	return res.plan, nil
}

type rolloverResult struct {
	plan      *domain.MonthlyPlan
	created   int
	completed int
	revealed  int
}

// rollover makes sure the month containing now has a plan. Earlier months are
// settled and marked completed first. Months that passed without a plan, such
// as while the scheduler was down, are created, settled and completed in order
// so their interest compounds into the next month. A non-nil dep is stored
// with the current month's plan. Callers hold the user's lock.
func (s *EngineService) rollover(ctx context.Context, userID string, deposits []*domain.Deposit, dep *domain.Deposit, now time.Time) (*rolloverResult, error) {
	op := "rollover"
	anchor := deposits[0].CreatedAt
	monthIndex := yield.MonthIndexFor(anchor, now)

	plan, err := s.plans.FindPlan(ctx, userID, monthIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}
	if plan != nil {
		return &rolloverResult{plan: plan}, nil
	}

	res := &rolloverResult{}
	history, err := s.plans.FindPlansByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load plans of user %s: %w", userID, err)
	}
	earned := decimal.Zero
	last := 0
	for _, p := range history {
		if p.MonthIndex >= monthIndex {
			continue
		}
		earned = earned.Add(p.ProjectedInterest)
		if p.MonthIndex > last {
			last = p.MonthIndex
		}
		if p.Status == domain.PlanCompleted {
			continue
		}
		if err := s.completePlan(ctx, p.ID, now, res); err != nil {
			return nil, err
		}
	}

	for m := last + 1; m < monthIndex; m++ {
		missed, payouts, err := s.buildPlan(userID, m, anchor, deposits, earned, now)
		if err != nil {
			return nil, err
		}
		if _, err := s.plans.CreatePlan(ctx, missed, payouts); err != nil {
			s.logger.Error(ctx, err, op+": Failed to store missed plan", map[string]interface{}{"userID": userID, "monthIndex": m})
			return nil, fmt.Errorf("failed to store plan for month %d: %w", m, err)
		}
		res.created++
		if err := s.completePlan(ctx, missed.ID, now, res); err != nil {
			return nil, err
		}
		earned = earned.Add(missed.ProjectedInterest)
		s.logger.Info(ctx, op+": Missed month caught up", map[string]interface{}{
			"userID":            userID,
			"planID":            missed.ID,
			"monthIndex":        m,
			"startingBalance":   missed.StartingBalance.String(),
			"projectedInterest": missed.ProjectedInterest.String(),
		})
	}

	plan, payouts, err := s.buildPlan(userID, monthIndex, anchor, deposits, earned, now)
	if err != nil {
		return nil, err
	}
	if dep != nil {
		_, err = s.plans.RecordDepositWithPlan(ctx, dep, plan, payouts)
	} else {
		_, err = s.plans.CreatePlan(ctx, plan, payouts)
	}
	if err != nil {
		s.logger.Error(ctx, err, op+": Failed to store plan", map[string]interface{}{"userID": userID, "monthIndex": monthIndex})
		return nil, fmt.Errorf("failed to store plan for month %d: %w", monthIndex, err)
	}

	s.logger.Info(ctx, op+": Plan created", map[string]interface{}{
		"userID":            userID,
		"planID":            plan.ID,
		"monthIndex":        monthIndex,
		"rate":              plan.LockedRate.String(),
		"startingBalance":   plan.StartingBalance.String(),
		"projectedInterest": plan.ProjectedInterest.String(),
		"days":              len(payouts),
	})
	res.plan = plan
	res.created++
	return res, nil
}

// buildPlan locks a rate for month monthIndex and decomposes its interest.
// The starting balance is every deposit made before the month ends plus the
// interest of earlier months.
func (s *EngineService) buildPlan(userID string, monthIndex int, anchor time.Time, deposits []*domain.Deposit, earned decimal.Decimal, now time.Time) (*domain.MonthlyPlan, []*domain.DailyPayout, error) {
	start, end := yield.MonthWindow(anchor, monthIndex)
	principal := decimal.Zero
	for _, d := range deposits {
		if d.CreatedAt.Before(end) {
			principal = principal.Add(d.Amount)
		}
	}
	balance := principal.Add(earned)

	rate := s.rates.SelectRate(monthIndex)
	days := yield.CalendarDays(start, end)
	amounts, err := s.decomposer.Decompose(balance, rate, days)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build schedule for month %d: %w", monthIndex, err)
	}

	plan := &domain.MonthlyPlan{
		UserID:            userID,
		MonthIndex:        monthIndex,
		LockedRate:        rate,
		StartingBalance:   balance,
		ProjectedInterest: s.decomposer.ProjectedInterest(balance, rate),
		Status:            domain.PlanActive,
		PeriodStart:       start,
		PeriodEnd:         end,
		CreatedAt:         now,
	}
	payouts := make([]*domain.DailyPayout, len(days))
	for i, day := range days {
		payouts[i] = &domain.DailyPayout{
			MonthIndex: monthIndex,
			Day:        day,
			Amount:     amounts[i],
			Status:     domain.PayoutPending,
		}
	}
	return plan, payouts, nil
}

// completePlan settles what is due on a past month and marks it completed.
func (s *EngineService) completePlan(ctx context.Context, planID int64, now time.Time, res *rolloverResult) error {
	payouts, err := s.plans.FindPayouts(ctx, planID)
	if err != nil {
		return fmt.Errorf("failed to load payouts of plan %d: %w", planID, err)
	}
	n, err := s.settle(ctx, payouts, now)
	if err != nil {
		return err
	}
	res.revealed += n
	if err := s.plans.UpdatePlanStatus(ctx, planID, domain.PlanCompleted); err != nil {
		return fmt.Errorf("failed to complete plan %d: %w", planID, err)
	}
	res.completed++
	return nil
}

// settle reveals due payouts and stores them. It returns the number revealed.
func (s *EngineService) settle(ctx context.Context, payouts []*domain.DailyPayout, now time.Time) (int, error) {
	revealed := s.reveal.RevealPayouts(payouts, now)
	if len(revealed) == 0 {
		return 0, nil
	}
	if err := s.plans.MarkPayoutsPaid(ctx, revealed); err != nil {
		return 0, fmt.Errorf("failed to store revealed payouts: %w", err)
	}
	return len(revealed), nil
}

// PlanState returns the user's current month as visible now. Nothing is
// written; the scheduler persists reveals.
func (s *EngineService) PlanState(ctx context.Context, userID string) (*PlanSnapshot, error) {
	return s.planSnapshot(ctx, userID, s.clock.Now().UTC())
}

func (s *EngineService) planSnapshot(ctx context.Context, userID string, now time.Time) (*PlanSnapshot, error) {
	deposits, err := s.deposits.FindDepositsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load deposits: %w", err)
	}
	if len(deposits) == 0 {
		return nil, fmt.Errorf("user %s has no deposits: %w", userID, ports.ErrNotFound)
	}

	plan, err := s.plans.FindPlan(ctx, userID, yield.MonthIndexFor(deposits[0].CreatedAt, now))
	if err != nil {
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}
	if plan == nil {
		// The month has started but the scheduler has not rolled over yet.
		plans, err := s.plans.FindPlansByUser(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to load plans of user %s: %w", userID, err)
		}
		if len(plans) == 0 {
			return nil, fmt.Errorf("user %s has no plan: %w", userID, ports.ErrNotFound)
		}
		plan = plans[len(plans)-1]
	}

	payouts, err := s.plans.FindPayouts(ctx, plan.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load payouts of plan %d: %w", plan.ID, err)
	}
	s.reveal.RevealPayouts(payouts, now)

	principal := decimal.Zero
	for _, d := range deposits {
		principal = principal.Add(d.Amount)
	}
	return &PlanSnapshot{
		PlanView:  s.reveal.PlanState(plan, payouts, now),
		UserID:    userID,
		Principal: principal,
		AsOf:      now,
	}, nil
}

// --- Reveal tick ---

// Tick reveals everything that is due: payouts of active plans, month
// rollovers and trades of running sessions. It is safe to run repeatedly or
// after downtime. Failures of one plan or session do not stop the others.
func (s *EngineService) Tick(ctx context.Context) (*TickReport, error) {
	op := "Tick"
	now := s.clock.Now().UTC()
	report := &TickReport{AsOf: now}
	var errs []error

	plans, err := s.plans.FindPlansByStatus(ctx, domain.PlanActive)
	if err != nil {
		return report, fmt.Errorf("failed to load active plans: %w", err)
	}
	for _, plan := range plans {
		if err := s.tickPlan(ctx, plan, now, report); err != nil {
			s.logger.Error(ctx, err, op+": Plan reveal failed", map[string]interface{}{"planID": plan.ID, "userID": plan.UserID})
			errs = append(errs, err)
		}
	}

	sessions, err := s.sessions.FindSessionsByStatus(ctx, domain.SessionRunning)
	if err != nil {
		return report, errors.Join(append(errs, fmt.Errorf("failed to load running sessions: %w", err))...)
	}
	for _, sess := range sessions {
		if err := s.tickSession(ctx, sess.ID, now, report); err != nil {
			s.logger.Error(ctx, err, op+": Session reveal failed", map[string]interface{}{"sessionID": sess.ID})
			errs = append(errs, err)
		}
	}

	if report.PayoutsRevealed+report.TradesRevealed+report.PlansCreated > 0 {
		s.logger.Debug(ctx, op+": Revealed", map[string]interface{}{
			"payouts":           report.PayoutsRevealed,
			"trades":            report.TradesRevealed,
			"plansCompleted":    report.PlansCompleted,
			"plansCreated":      report.PlansCreated,
			"sessionsCompleted": report.SessionsCompleted,
		})
	}
	return report, errors.Join(errs...)
}

func (s *EngineService) tickPlan(ctx context.Context, plan *domain.MonthlyPlan, now time.Time, report *TickReport) error {
	unlock := s.locks.Lock(userKey(plan.UserID))
	defer unlock()

	payouts, err := s.plans.FindPayouts(ctx, plan.ID)
	if err != nil {
		return fmt.Errorf("failed to load payouts of plan %d: %w", plan.ID, err)
	}
	n, err := s.settle(ctx, payouts, now)
	if err != nil {
		return err
	}
	report.PayoutsRevealed += n

	if now.Before(plan.PeriodEnd) {
		return nil
	}
	deposits, err := s.deposits.FindDepositsByUser(ctx, plan.UserID)
	if err != nil {
		return fmt.Errorf("failed to load deposits: %w", err)
	}
	if len(deposits) == 0 {
		return nil
	}
	res, err := s.rollover(ctx, plan.UserID, deposits, nil, now)
	if err != nil {
		return err
	}
	report.PayoutsRevealed += res.revealed
	report.PlansCompleted += res.completed
	report.PlansCreated += res.created
	return nil
}

func (s *EngineService) tickSession(ctx context.Context, id string, now time.Time, report *TickReport) error {
	unlock := s.locks.Lock(sessionKey(id))
	defer unlock()

	sess, err := s.sessions.FindSession(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load session %s: %w", id, err)
	}
	if sess == nil || sess.Status != domain.SessionRunning {
		return nil // Reset or completed since the listing
	}
	trades, err := s.sessions.FindTrades(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load trades of session %s: %w", id, err)
	}

	visible := reveal.VisibleCount(sess, trades, now)
	status := domain.SessionRunning
	if visible == len(trades) {
		status = domain.SessionCompleted
	}
	if visible == sess.RevealedCount && status == sess.Status {
		return nil
	}
	if err := s.sessions.UpdateProgress(ctx, id, visible, status); err != nil {
		return fmt.Errorf("failed to store progress of session %s: %w", id, err)
	}
	report.TradesRevealed += visible - sess.RevealedCount
	if status == domain.SessionCompleted {
		report.SessionsCompleted++
	}
	return nil
}

// --- Demo sessions ---

// SessionRequest describes a demo session to start.
type SessionRequest struct {
	UserID       string
	StartAmount  decimal.Decimal
	TargetAmount decimal.Decimal // Zero selects StartAmount * (1 + Settings.TargetGain)
	Duration     time.Duration   // Zero selects Settings.SessionDuration
}

// StartSession generates and stores a new accelerated session.
func (s *EngineService) StartSession(ctx context.Context, req SessionRequest) (*SessionSnapshot, error) {
	op := "StartSession"
	if req.UserID == "" {
		return nil, fmt.Errorf("user id is required: %w", ports.ErrInvalidInput)
	}

	now := s.clock.Now().UTC()
	sess, trades, err := s.buildSession(uuid.NewString(), req, now)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.CreateSession(ctx, sess, trades); err != nil {
		s.logger.Error(ctx, err, op+": Failed to store session", map[string]interface{}{"userID": req.UserID})
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	s.logger.Info(ctx, op+": Session started", map[string]interface{}{
		"sessionID":    sess.ID,
		"userID":       sess.UserID,
		"tier":         sess.TierName,
		"trades":       sess.TradeCount,
		"startAmount":  sess.StartAmount.String(),
		"targetAmount": sess.TargetAmount.String(),
		"duration":     sess.Duration.String(),
	})
	return s.sessionSnapshot(sess, trades, now), nil
}

// buildSession resolves defaults, the activity tier and a fresh seed, and
// generates the trade batch.
func (s *EngineService) buildSession(id string, req SessionRequest, now time.Time) (*domain.SimulationSession, []*domain.TradeEvent, error) {
	places := s.decomposer.Places()
	if req.StartAmount.IsNegative() {
		return nil, nil, fmt.Errorf("start amount %s is negative: %w", req.StartAmount, ports.ErrInvalidSession)
	}
	start := req.StartAmount.Round(places)
	target := req.TargetAmount.Round(places)
	if target.IsZero() {
		target = start.Mul(decimal.NewFromInt(1).Add(s.settings.TargetGain)).Round(places)
	}
	duration := req.Duration
	if duration == 0 {
		duration = s.settings.SessionDuration
	}

	tier, err := s.tiers.Resolve(start)
	if err != nil {
		return nil, nil, err
	}
	seed := s.src.Int63()
	if seed == 0 {
		seed = 1
	}

	genReq := simulation.Request{
		SessionID:    id,
		Start:        now,
		StartAmount:  start,
		TargetAmount: target,
		Duration:     duration,
		TradeCount:   activity.DrawTradeCount(s.src, tier),
		Seed:         seed,
	}
	trades, err := s.generator.Generate(genReq)
	if err != nil {
		return nil, nil, err
	}

	sess := &domain.SimulationSession{
		ID:           id,
		UserID:       req.UserID,
		StartTime:    now,
		Duration:     duration,
		StartAmount:  start,
		TargetAmount: target,
		TradeCount:   len(trades),
		TierName:     tier.Name,
		Status:       domain.SessionRunning,
		Seed:         seed,
		CreatedAt:    now,
	}
	return sess, trades, nil
}

// SessionState returns the session as visible now.
func (s *EngineService) SessionState(ctx context.Context, id string) (*SessionSnapshot, error) {
	sess, err := s.sessions.FindSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	if sess == nil {
		return nil, fmt.Errorf("session %s: %w", id, ports.ErrNotFound)
	}
	trades, err := s.sessions.FindTrades(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load trades of session %s: %w", id, err)
	}
	return s.sessionSnapshot(sess, trades, s.clock.Now().UTC()), nil
}

func (s *EngineService) sessionSnapshot(sess *domain.SimulationSession, trades []*domain.TradeEvent, now time.Time) *SessionSnapshot {
	view := s.reveal.SessionState(sess, trades, now)
	return &SessionSnapshot{
		SessionView: view,
		Stats:       analytics.AnalyzePerformance(view.Visible, sess.StartAmount),
		AsOf:        now,
	}
}

// RestartSession discards the session's trades and regenerates a fresh batch
// starting now, keeping its amounts and duration.
func (s *EngineService) RestartSession(ctx context.Context, id string) (*SessionSnapshot, error) {
	op := "RestartSession"
	unlock := s.locks.Lock(sessionKey(id))
	defer unlock()

	old, err := s.sessions.FindSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	if old == nil {
		return nil, fmt.Errorf("session %s: %w", id, ports.ErrNotFound)
	}

	now := s.clock.Now().UTC()
	sess, trades, err := s.buildSession(old.ID, SessionRequest{
		UserID:       old.UserID,
		StartAmount:  old.StartAmount,
		TargetAmount: old.TargetAmount,
		Duration:     old.Duration,
	}, now)
	if err != nil {
		return nil, err
	}
	sess.CreatedAt = old.CreatedAt
	if err := s.sessions.ReplaceSession(ctx, sess, trades); err != nil {
		s.logger.Error(ctx, err, op+": Failed to replace session", map[string]interface{}{"sessionID": id})
		return nil, fmt.Errorf("failed to replace session %s: %w", id, err)
	}

	s.logger.Info(ctx, op+": Session restarted", map[string]interface{}{"sessionID": id, "trades": sess.TradeCount, "previousRevealed": old.RevealedCount})
	return s.sessionSnapshot(sess, trades, now), nil
}

// ResetSession deletes a session and its trades.
func (s *EngineService) ResetSession(ctx context.Context, id string) error {
	unlock := s.locks.Lock(sessionKey(id))
	defer unlock()

	if err := s.sessions.DeleteSession(ctx, id); err != nil {
		return fmt.Errorf("failed to reset session %s: %w", id, err)
	}
	s.logger.Info(ctx, "ResetSession: Session deleted", map[string]interface{}{"sessionID": id})
	return nil
}

// ResetAccount removes every deposit, plan and session of a user.
func (s *EngineService) ResetAccount(ctx context.Context, userID string) error {
	op := "ResetAccount"
	if userID == "" {
		return fmt.Errorf("user id is required: %w", ports.ErrInvalidInput)
	}
	unlock := s.locks.Lock(userKey(userID))
	defer unlock()

	if err := s.sessions.DeleteUserSessions(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete sessions: %w", err)
	}
	if err := s.plans.DeleteUserPlans(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete plans: %w", err)
	}
	if err := s.deposits.DeleteUserDeposits(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete deposits: %w", err)
	}
	s.logger.Info(ctx, op+": Account reset", map[string]interface{}{"userID": userID})
	return nil
}

// --- Live daily feed ---

// DailyTrades returns the visible part of the synthetic trades behind one
// day's payout. The batch is derived from the plan and the day, so repeated
// calls return the same events; its profits add up to the day's amount and
// the last trade lands when the payout settles.
func (s *EngineService) DailyTrades(ctx context.Context, userID string, day time.Time) ([]*domain.TradeEvent, error) {
	day = yield.TruncateDay(day)

	deposits, err := s.deposits.FindDepositsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load deposits: %w", err)
	}
	if len(deposits) == 0 {
		return nil, fmt.Errorf("user %s has no deposits: %w", userID, ports.ErrNotFound)
	}
	plan, err := s.plans.FindPlan(ctx, userID, yield.MonthIndexFor(deposits[0].CreatedAt, day))
	if err != nil {
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}
	if plan == nil || !plan.Covers(day) {
		return nil, fmt.Errorf("no plan covers %s: %w", day.Format(time.DateOnly), ports.ErrNotFound)
	}

	payouts, err := s.plans.FindPayouts(ctx, plan.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load payouts of plan %d: %w", plan.ID, err)
	}
	var row *domain.DailyPayout
	for _, p := range payouts {
		if p.Day.Equal(day) {
			row = p
			break
		}
	}
	if row == nil {
		return nil, fmt.Errorf("no payout on %s: %w", day.Format(time.DateOnly), ports.ErrNotFound)
	}

	tier, err := s.tiers.Resolve(plan.StartingBalance)
	if err != nil {
		return nil, err
	}
	seed := dailySeed(plan.ID, day)
	trades, err := s.generator.Generate(simulation.Request{
		SessionID:    fmt.Sprintf("plan-%d-%s", plan.ID, day.Format(time.DateOnly)),
		Start:        day,
		StartAmount:  plan.StartingBalance,
		TargetAmount: plan.StartingBalance.Add(row.Amount),
		Duration:     s.reveal.SettleAfter,
		TradeCount:   activity.DrawDailyTradeCount(partition.Derive(seed), tier),
		Seed:         seed,
	})
	if err != nil {
		return nil, err
	}
	return s.reveal.RevealTrades(nil, trades, s.clock.Now().UTC()), nil
}

func dailySeed(planID int64, day time.Time) int64 {
	seed := planID<<24 ^ day.Unix()/86400
	if seed == 0 {
		seed = 1
	}
	return seed
}
