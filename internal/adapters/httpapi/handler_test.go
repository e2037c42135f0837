package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/activity"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/analytics"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/app"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/domain"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/ports"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/reveal"
)

var now = time.Date(2024, time.April, 11, 10, 0, 0, 0, time.UTC)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// mockEngine records calls and returns canned results.
type mockEngine struct {
	mu        sync.Mutex
	err       error
	lastUser  string
	lastAmt   decimal.Decimal
	lastReq   app.SessionRequest
	lastDay   time.Time
	sessions  []*app.SessionSnapshot // Returned by SessionState in order; the last one repeats
	stateCall int
}

func (m *mockEngine) plan(userID string) *app.PlanSnapshot {
	paidAt := time.Date(2024, time.April, 2, 0, 0, 0, 0, time.UTC)
	paid := &domain.DailyPayout{MonthIndex: 1, Day: time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC), Amount: decimal.RequireFromString("70.12"), Status: domain.PayoutPaid, PaidAt: &paidAt}
	pending := &domain.DailyPayout{MonthIndex: 1, Day: time.Date(2024, time.April, 11, 0, 0, 0, 0, time.UTC), Amount: decimal.RequireFromString("65.40"), Status: domain.PayoutPending}
	return &app.PlanSnapshot{
		PlanView: reveal.PlanView{
			Plan: &domain.MonthlyPlan{
				MonthIndex: 1, LockedRate: decimal.RequireFromString("0.21"),
				StartingBalance: decimal.RequireFromString("10000"), ProjectedInterest: decimal.RequireFromString("2100"),
				Status: domain.PlanActive, PeriodStart: time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC),
				PeriodEnd: time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC),
			},
			Paid:      []*domain.DailyPayout{paid},
			Pending:   []*domain.DailyPayout{pending},
			PaidTotal: paid.Amount,
			Balance:   decimal.RequireFromString("10070.12"),
			Today:     pending,
		},
		UserID:    userID,
		Principal: decimal.RequireFromString("10000"),
		AsOf:      now,
	}
}

func sessionSnapshot(visible, total int) *app.SessionSnapshot {
	sess := &domain.SimulationSession{
		ID: "s1", UserID: "u1", StartTime: now, Duration: 4 * time.Minute,
		StartAmount: decimal.RequireFromString("5000"), TargetAmount: decimal.RequireFromString("6250"),
		TradeCount: total, TierName: "starter", Status: domain.SessionRunning,
	}
	trades := make([]*domain.TradeEvent, visible)
	for i := range trades {
		trades[i] = &domain.TradeEvent{
			SessionID: "s1", Sequence: i + 1, Symbol: "BTC/USDT", Side: domain.Long,
			Notional: decimal.RequireFromString("1500"), Profit: decimal.RequireFromString("50"),
			Timestamp: now.Add(time.Duration(i+1) * 10 * time.Second),
		}
	}
	profit := domain.SumProfits(trades)
	complete := visible == total
	if complete {
		sess.Status = domain.SessionCompleted
	}
	return &app.SessionSnapshot{
		SessionView: reveal.SessionView{
			Session: sess, Visible: trades, CumulativeProfit: profit,
			Balance: sess.StartAmount.Add(profit), Progress: float64(visible) / float64(total), Complete: complete,
		},
		Stats: analytics.AnalyzePerformance(trades, sess.StartAmount),
		AsOf:  now,
	}
}

func (m *mockEngine) RecordDeposit(ctx context.Context, userID string, amount decimal.Decimal) (*app.PlanSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastUser, m.lastAmt = userID, amount
	if m.err != nil {
		return nil, m.err
	}
	return m.plan(userID), nil
}

func (m *mockEngine) PlanState(ctx context.Context, userID string) (*app.PlanSnapshot, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.plan(userID), nil
}

func (m *mockEngine) ResetAccount(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastUser = userID
	return m.err
}

func (m *mockEngine) DailyTrades(ctx context.Context, userID string, day time.Time) ([]*domain.TradeEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastUser, m.lastDay = userID, day
	if m.err != nil {
		return nil, m.err
	}
	return sessionSnapshot(3, 5).Visible, nil
}

func (m *mockEngine) StartSession(ctx context.Context, req app.SessionRequest) (*app.SessionSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return sessionSnapshot(0, 20), nil
}

func (m *mockEngine) SessionState(ctx context.Context, id string) (*app.SessionSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if len(m.sessions) == 0 {
		return sessionSnapshot(2, 20), nil
	}
	i := m.stateCall
	if i >= len(m.sessions) {
		i = len(m.sessions) - 1
	}
	m.stateCall++
	return m.sessions[i], nil
}

func (m *mockEngine) RestartSession(ctx context.Context, id string) (*app.SessionSnapshot, error) {
	if m.err != nil {
		return nil, m.err
	}
	return sessionSnapshot(0, 20), nil
}

func (m *mockEngine) ResetSession(ctx context.Context, id string) error {
	return m.err
}

func setupRouter(t *testing.T, engine *mockEngine) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	tiers, err := activity.NewResolver(activity.DefaultTable())
	require.NoError(t, err)
	h, err := NewHandler(Config{
		Engine: engine, Tiers: tiers, Clock: fixedClock{now}, Logger: &mockLogger{},
		StreamInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	return h.Router()
}

func doRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestNewHandler_Validation(t *testing.T) {
	_, err := NewHandler(Config{})
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	router := setupRouter(t, &mockEngine{})
	w := doRequest(router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}

func TestCreateDeposit(t *testing.T) {
	engine := &mockEngine{}
	router := setupRouter(t, engine)

	w := doRequest(router, http.MethodPost, "/api/deposits", `{"user_id":"u1","amount":"5000.50"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "u1", engine.lastUser)
	assert.True(t, engine.lastAmt.Equal(decimal.RequireFromString("5000.50")))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "2100", body["projected_interest"])
	assert.Equal(t, "2024-04-01", body["period_start"])

	paid := body["paid"].([]interface{})
	require.Len(t, paid, 1)
	row := paid[0].(map[string]interface{})
	assert.Equal(t, float64(1), row["month_index"])
	assert.Equal(t, "2024-04-01", row["day"])
	assert.Equal(t, "70.12", row["amount"])
	assert.Equal(t, "paid", row["status"])
	assert.Equal(t, "2024-04-02T00:00:00Z", row["paid_at"])

	today := body["today"].(map[string]interface{})
	assert.Equal(t, "pending", today["status"])
	assert.Nil(t, today["paid_at"])

	// Numeric JSON amounts are accepted too.
	w = doRequest(router, http.MethodPost, "/api/deposits", `{"user_id":"u1","amount":250}`)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, engine.lastAmt.Equal(decimal.NewFromInt(250)))
}

func TestCreateDeposit_BadRequest(t *testing.T) {
	router := setupRouter(t, &mockEngine{})

	w := doRequest(router, http.MethodPost, "/api/deposits", `{"amount":"10"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(router, http.MethodPost, "/api/deposits", `{"user_id":"u1","amount":"ten"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", fmt.Errorf("user u1: %w", ports.ErrNotFound), http.StatusNotFound},
		{"conflict", fmt.Errorf("plan 1: %w", ports.ErrConflict), http.StatusConflict},
		{"invalid input", fmt.Errorf("amount: %w", ports.ErrInvalidInput), http.StatusBadRequest},
		{"invalid recalculation", ports.ErrInvalidRecalculation, http.StatusBadRequest},
		{"invalid session", ports.ErrInvalidSession, http.StatusBadRequest},
		{"unexpected", errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupRouter(t, &mockEngine{err: tt.err})
			w := doRequest(router, http.MethodPost, "/api/deposits", `{"user_id":"u1","amount":"10"}`)
			assert.Equal(t, tt.want, w.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			if tt.want == http.StatusInternalServerError {
				assert.Equal(t, "internal error", body["error"])
			} else {
				assert.Contains(t, body["error"], tt.err.Error())
			}
		})
	}
}

func TestGetPlanAndReset(t *testing.T) {
	engine := &mockEngine{}
	router := setupRouter(t, engine)

	w := doRequest(router, http.MethodGet, "/api/users/u9/plan", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":"u9"`)

	w = doRequest(router, http.MethodDelete, "/api/users/u9", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "u9", engine.lastUser)

	engine.err = ports.ErrNotFound
	w = doRequest(router, http.MethodGet, "/api/users/u9/plan", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetDailyTrades(t *testing.T) {
	engine := &mockEngine{}
	router := setupRouter(t, engine)

	w := doRequest(router, http.MethodGet, "/api/users/u1/trades?day=2024-04-05", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, time.Date(2024, time.April, 5, 0, 0, 0, 0, time.UTC), engine.lastDay)

	var body struct {
		Day    string                   `json:"day"`
		Profit string                   `json:"profit"`
		Trades []map[string]interface{} `json:"trades"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "2024-04-05", body.Day)
	assert.Equal(t, "150", body.Profit)
	require.Len(t, body.Trades, 3)
	for _, key := range []string{"session_id", "sequence", "symbol", "side", "notional", "profit", "timestamp"} {
		assert.Contains(t, body.Trades[0], key)
	}

	// Without a day the current day is used.
	w = doRequest(router, http.MethodGet, "/api/users/u1/trades", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, now, engine.lastDay)

	w = doRequest(router, http.MethodGet, "/api/users/u1/trades?day=05/04/2024", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionRoutes(t *testing.T) {
	engine := &mockEngine{}
	router := setupRouter(t, engine)

	w := doRequest(router, http.MethodPost, "/api/sessions", `{"user_id":"u1","start_amount":"5000","duration_seconds":240}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, 240*time.Second, engine.lastReq.Duration)
	assert.True(t, engine.lastReq.TargetAmount.IsZero())

	w = doRequest(router, http.MethodPost, "/api/sessions", `{"user_id":"u1","start_amount":"5000","duration_seconds":-1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(router, http.MethodGet, "/api/sessions/s1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var view map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, float64(2), view["revealed"])
	assert.Equal(t, "5100", view["balance"])
	assert.Equal(t, "starter", view["tier"])
	assert.NotNil(t, view["stats"])

	w = doRequest(router, http.MethodPost, "/api/sessions/s1/restart", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodDelete, "/api/sessions/s1", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	engine.err = fmt.Errorf("session s2: %w", ports.ErrNotFound)
	w = doRequest(router, http.MethodDelete, "/api/sessions/s2", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetTier(t *testing.T) {
	router := setupRouter(t, &mockEngine{})

	tests := []struct {
		size string
		want string
		code int
	}{
		{"1000", "starter", http.StatusOK},
		{"20000", "growth", http.StatusOK},
		{"100000", "institutional", http.StatusOK},
		{"-5", "", http.StatusBadRequest},
		{"lots", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.size, func(t *testing.T) {
			w := doRequest(router, http.MethodGet, "/api/tiers?account_size="+tt.size, "")
			assert.Equal(t, tt.code, w.Code)
			if tt.code == http.StatusOK {
				var tier tierJSON
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tier))
				assert.Equal(t, tt.want, tier.Name)
				assert.Equal(t, "2024-01", tier.TableVersion)
			}
		})
	}
}

func TestStreamSession(t *testing.T) {
	engine := &mockEngine{sessions: []*app.SessionSnapshot{
		sessionSnapshot(1, 3),
		sessionSnapshot(1, 3),
		sessionSnapshot(2, 3),
		sessionSnapshot(3, 3),
	}}
	server := httptest.NewServer(setupRouter(t, engine))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/sessions/s1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var revealed []int
	for {
		var view sessionJSON
		if err := conn.ReadJSON(&view); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)
			break
		}
		revealed = append(revealed, view.Revealed)
	}
	// Unchanged views are not re-sent.
	assert.Equal(t, []int{1, 2, 3}, revealed)
}

func TestStreamSession_NotFound(t *testing.T) {
	router := setupRouter(t, &mockEngine{err: ports.ErrNotFound})
	w := doRequest(router, http.MethodGet, "/ws/sessions/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
