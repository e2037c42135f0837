package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/domain"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/ports"
)

// Mock implementations
type mockLogger struct {
	mu        sync.Mutex
	debugMsgs []string
	infoMsgs  []string
	warnMsgs  []string
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.debugMsgs = append(m.debugMsgs, msg)
}

func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infoMsgs = append(m.infoMsgs, msg)
}

func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warnMsgs = append(m.warnMsgs, msg)
}

func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorMsgs = append(m.errorMsgs, msg)
}

type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// memRepo is an in-memory implementation of the three repositories with the
// same versioning rules as the SQLite adapter.
type memRepo struct {
	mu       sync.Mutex
	nextID   int64
	deposits []*domain.Deposit
	plans    map[int64]*domain.MonthlyPlan
	payouts  map[int64][]*domain.DailyPayout
	sessions map[string]*domain.SimulationSession
	trades   map[string][]*domain.TradeEvent

	updateScheduleErr error // Returned by every schedule update when set
}

var (
	_ ports.DepositRepository = (*memRepo)(nil)
	_ ports.PlanRepository    = (*memRepo)(nil)
	_ ports.SessionRepository = (*memRepo)(nil)
)

func newMemRepo() *memRepo {
	return &memRepo{
		plans:    make(map[int64]*domain.MonthlyPlan),
		payouts:  make(map[int64][]*domain.DailyPayout),
		sessions: make(map[string]*domain.SimulationSession),
		trades:   make(map[string][]*domain.TradeEvent),
	}
}

func (m *memRepo) id() int64 {
	m.nextID++
	return m.nextID
}

func clonePlan(p *domain.MonthlyPlan) *domain.MonthlyPlan {
	c := *p
	return &c
}

func clonePayouts(rows []*domain.DailyPayout) []*domain.DailyPayout {
	out := make([]*domain.DailyPayout, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}

func cloneSession(s *domain.SimulationSession) *domain.SimulationSession {
	c := *s
	return &c
}

func (m *memRepo) CreateDeposit(ctx context.Context, dep *domain.Deposit) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertDeposit(dep)
	return dep.ID, nil
}

func (m *memRepo) FindDepositsByUser(ctx context.Context, userID string) ([]*domain.Deposit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Deposit, 0)
	for _, d := range m.deposits {
		if d.UserID == userID {
			c := *d
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *memRepo) DeleteUserDeposits(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.deposits[:0]
	for _, d := range m.deposits {
		if d.UserID != userID {
			kept = append(kept, d)
		}
	}
	m.deposits = kept
	return nil
}

func (m *memRepo) CreatePlan(ctx context.Context, plan *domain.MonthlyPlan, payouts []*domain.DailyPayout) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.insertPlan(plan, payouts); err != nil {
		return 0, err
	}
	return plan.ID, nil
}

func (m *memRepo) insertPlan(plan *domain.MonthlyPlan, payouts []*domain.DailyPayout) error {
	for _, p := range m.plans {
		if p.UserID == plan.UserID && p.MonthIndex == plan.MonthIndex {
			return fmt.Errorf("plan exists: %w", ports.ErrDuplicateEntry)
		}
	}
	plan.ID = m.id()
	plan.Version = 1
	for _, p := range payouts {
		p.ID = m.id()
		p.PlanID = plan.ID
		p.MonthIndex = plan.MonthIndex
	}
	m.plans[plan.ID] = clonePlan(plan)
	m.payouts[plan.ID] = clonePayouts(payouts)
	return nil
}

func (m *memRepo) RecordDepositWithPlan(ctx context.Context, dep *domain.Deposit, plan *domain.MonthlyPlan, payouts []*domain.DailyPayout) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.insertPlan(plan, payouts); err != nil {
		return 0, err
	}
	m.insertDeposit(dep)
	return plan.ID, nil
}

func (m *memRepo) insertDeposit(dep *domain.Deposit) {
	dep.ID = m.id()
	c := *dep
	m.deposits = append(m.deposits, &c)
}

func (m *memRepo) FindPlan(ctx context.Context, userID string, monthIndex int) (*domain.MonthlyPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.plans {
		if p.UserID == userID && p.MonthIndex == monthIndex {
			return clonePlan(p), nil
		}
	}
	return nil, nil
}

func (m *memRepo) FindPlansByUser(ctx context.Context, userID string) ([]*domain.MonthlyPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.MonthlyPlan, 0)
	for _, p := range m.plans {
		if p.UserID == userID {
			out = append(out, clonePlan(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MonthIndex < out[j].MonthIndex })
	return out, nil
}

func (m *memRepo) FindPlansByStatus(ctx context.Context, statuses ...domain.PlanStatus) ([]*domain.MonthlyPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.MonthlyPlan, 0)
	for _, p := range m.plans {
		for _, s := range statuses {
			if p.Status == s {
				out = append(out, clonePlan(p))
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memRepo) FindPayouts(ctx context.Context, planID int64) ([]*domain.DailyPayout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clonePayouts(m.payouts[planID]), nil
}

func (m *memRepo) UpdateSchedule(ctx context.Context, plan *domain.MonthlyPlan, payouts []*domain.DailyPayout) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateSchedule(plan, payouts)
}

func (m *memRepo) RecordDepositWithSchedule(ctx context.Context, dep *domain.Deposit, plan *domain.MonthlyPlan, payouts []*domain.DailyPayout) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.updateSchedule(plan, payouts); err != nil {
		return err
	}
	m.insertDeposit(dep)
	return nil
}

func (m *memRepo) updateSchedule(plan *domain.MonthlyPlan, payouts []*domain.DailyPayout) error {
	if m.updateScheduleErr != nil {
		return m.updateScheduleErr
	}
	stored, ok := m.plans[plan.ID]
	if !ok {
		return ports.ErrNotFound
	}
	if stored.Version != plan.Version {
		return ports.ErrConflict
	}
	rows := m.payouts[plan.ID]
	byID := make(map[int64]*domain.DailyPayout, len(rows))
	for _, r := range rows {
		byID[r.ID] = r
	}
	for _, p := range payouts {
		if p.IsPaid() {
			continue
		}
		if r := byID[p.ID]; r == nil || r.IsPaid() {
			return ports.ErrConflict
		}
	}
	for _, p := range payouts {
		if !p.IsPaid() {
			byID[p.ID].Amount = p.Amount
		}
	}
	plan.Version++
	m.plans[plan.ID] = clonePlan(plan)
	return nil
}

func (m *memRepo) MarkPayoutsPaid(ctx context.Context, payouts []*domain.DailyPayout) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range payouts {
		for _, r := range m.payouts[p.PlanID] {
			if r.ID == p.ID && !r.IsPaid() {
				r.Status = domain.PayoutPaid
				t := *p.PaidAt
				r.PaidAt = &t
			}
		}
	}
	return nil
}

func (m *memRepo) UpdatePlanStatus(ctx context.Context, planID int64, status domain.PlanStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[planID]
	if !ok {
		return ports.ErrNotFound
	}
	p.Status = status
	return nil
}

func (m *memRepo) DeleteUserPlans(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, p := range m.plans {
		if p.UserID == userID {
			delete(m.plans, id)
			delete(m.payouts, id)
		}
	}
	return nil
}

func (m *memRepo) CreateSession(ctx context.Context, sess *domain.SimulationSession, trades []*domain.TradeEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sess.ID]; ok {
		return ports.ErrDuplicateEntry
	}
	m.sessions[sess.ID] = cloneSession(sess)
	m.trades[sess.ID] = append([]*domain.TradeEvent(nil), trades...)
	return nil
}

func (m *memRepo) FindSession(ctx context.Context, id string) (*domain.SimulationSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return cloneSession(s), nil
}

func (m *memRepo) FindSessionsByStatus(ctx context.Context, status domain.SessionStatus) ([]*domain.SimulationSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.SimulationSession, 0)
	for _, s := range m.sessions {
		if s.Status == status {
			out = append(out, cloneSession(s))
		}
	}
	return out, nil
}

func (m *memRepo) FindSessionsByUser(ctx context.Context, userID string) ([]*domain.SimulationSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.SimulationSession, 0)
	for _, s := range m.sessions {
		if s.UserID == userID {
			out = append(out, cloneSession(s))
		}
	}
	return out, nil
}

func (m *memRepo) FindTrades(ctx context.Context, sessionID string) ([]*domain.TradeEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.TradeEvent(nil), m.trades[sessionID]...), nil
}

func (m *memRepo) UpdateProgress(ctx context.Context, id string, revealed int, status domain.SessionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ports.ErrNotFound
	}
	if revealed > s.RevealedCount {
		s.RevealedCount = revealed
	}
	if s.Status != domain.SessionCompleted {
		s.Status = status
	}
	return nil
}

func (m *memRepo) ReplaceSession(ctx context.Context, sess *domain.SimulationSession, trades []*domain.TradeEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sess.ID]; !ok {
		return ports.ErrNotFound
	}
	m.sessions[sess.ID] = cloneSession(sess)
	m.trades[sess.ID] = append([]*domain.TradeEvent(nil), trades...)
	return nil
}

func (m *memRepo) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return ports.ErrNotFound
	}
	delete(m.sessions, id)
	delete(m.trades, id)
	return nil
}

func (m *memRepo) DeleteUserSessions(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessions, id)
			delete(m.trades, id)
		}
	}
	return nil
}
