package httpapi

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/app"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/domain"
)

// depositRequest is the body of POST /api/deposits.
type depositRequest struct {
	UserID string          `json:"user_id" binding:"required"`
	Amount decimal.Decimal `json:"amount"`
}

// sessionRequest is the body of POST /api/sessions.
type sessionRequest struct {
	UserID          string          `json:"user_id" binding:"required"`
	StartAmount     decimal.Decimal `json:"start_amount"`
	TargetAmount    decimal.Decimal `json:"target_amount"`    // Optional
	DurationSeconds int             `json:"duration_seconds"` // Optional
}

type payoutJSON struct {
	MonthIndex int             `json:"month_index"`
	Day        string          `json:"day"`
	Amount     decimal.Decimal `json:"amount"`
	Status     string          `json:"status"`
	PaidAt     *time.Time      `json:"paid_at"`
}

type tradeJSON struct {
	SessionID string          `json:"session_id"`
	Sequence  int             `json:"sequence"`
	Symbol    string          `json:"symbol"`
	Side      string          `json:"side"`
	Notional  decimal.Decimal `json:"notional"`
	Profit    decimal.Decimal `json:"profit"`
	Timestamp time.Time       `json:"timestamp"`
}

type planJSON struct {
	UserID            string          `json:"user_id"`
	MonthIndex        int             `json:"month_index"`
	LockedRate        decimal.Decimal `json:"locked_rate"`
	StartingBalance   decimal.Decimal `json:"starting_balance"`
	ProjectedInterest decimal.Decimal `json:"projected_interest"`
	Status            string          `json:"status"`
	PeriodStart       string          `json:"period_start"`
	PeriodEnd         string          `json:"period_end"`
	Principal         decimal.Decimal `json:"principal"`
	PaidTotal         decimal.Decimal `json:"paid_total"`
	Balance           decimal.Decimal `json:"balance"`
	Today             *payoutJSON     `json:"today"`
	Paid              []payoutJSON    `json:"paid"`
	Pending           []payoutJSON    `json:"pending"`
	AsOf              time.Time       `json:"as_of"`
}

type statsJSON struct {
	TotalTrades          int             `json:"total_trades"`
	WinRate              float64         `json:"win_rate"`
	MaxDrawdown          float64         `json:"max_drawdown"`
	MaxConsecutiveWins   int             `json:"max_consecutive_wins"`
	MaxConsecutiveLosses int             `json:"max_consecutive_losses"`
	AverageWin           decimal.Decimal `json:"average_win"`
	AverageLoss          decimal.Decimal `json:"average_loss"`
}

type sessionJSON struct {
	ID               string          `json:"id"`
	UserID           string          `json:"user_id"`
	Tier             string          `json:"tier"`
	Status           string          `json:"status"`
	StartAmount      decimal.Decimal `json:"start_amount"`
	TargetAmount     decimal.Decimal `json:"target_amount"`
	StartTime        time.Time       `json:"start_time"`
	EndTime          time.Time       `json:"end_time"`
	TradeCount       int             `json:"trade_count"`
	Revealed         int             `json:"revealed"`
	Progress         float64         `json:"progress"`
	CumulativeProfit decimal.Decimal `json:"cumulative_profit"`
	Balance          decimal.Decimal `json:"balance"`
	Complete         bool            `json:"complete"`
	Trades           []tradeJSON     `json:"trades"`
	Stats            *statsJSON      `json:"stats,omitempty"`
	AsOf             time.Time       `json:"as_of"`
}

type tierJSON struct {
	Name            string          `json:"name"`
	LowerBound      decimal.Decimal `json:"lower_bound"`
	MinTrades       int             `json:"min_trades"`
	MaxTrades       int             `json:"max_trades"`
	MinTradesPerDay int             `json:"min_trades_per_day"`
	MaxTradesPerDay int             `json:"max_trades_per_day"`
	TableVersion    string          `json:"table_version"`
}

func toPayout(p *domain.DailyPayout) payoutJSON {
	return payoutJSON{
		MonthIndex: p.MonthIndex,
		Day:        p.Day.Format(time.DateOnly),
		Amount:     p.Amount,
		Status:     string(p.Status),
		PaidAt:     p.PaidAt,
	}
}

func toPayouts(rows []*domain.DailyPayout) []payoutJSON {
	out := make([]payoutJSON, 0, len(rows))
	for _, p := range rows {
		out = append(out, toPayout(p))
	}
	return out
}

func toTrades(trades []*domain.TradeEvent) []tradeJSON {
	out := make([]tradeJSON, 0, len(trades))
	for _, t := range trades {
		out = append(out, tradeJSON{
			SessionID: t.SessionID,
			Sequence:  t.Sequence,
			Symbol:    t.Symbol,
			Side:      string(t.Side),
			Notional:  t.Notional,
			Profit:    t.Profit,
			Timestamp: t.Timestamp,
		})
	}
	return out
}

func toPlan(s *app.PlanSnapshot) planJSON {
	plan := s.Plan
	out := planJSON{
		UserID:            s.UserID,
		MonthIndex:        plan.MonthIndex,
		LockedRate:        plan.LockedRate,
		StartingBalance:   plan.StartingBalance,
		ProjectedInterest: plan.ProjectedInterest,
		Status:            string(plan.Status),
		PeriodStart:       plan.PeriodStart.Format(time.DateOnly),
		PeriodEnd:         plan.PeriodEnd.Format(time.DateOnly),
		Principal:         s.Principal,
		PaidTotal:         s.PaidTotal,
		Balance:           s.Balance,
		Paid:              toPayouts(s.Paid),
		Pending:           toPayouts(s.Pending),
		AsOf:              s.AsOf,
	}
	if s.Today != nil {
		today := toPayout(s.Today)
		out.Today = &today
	}
	return out
}

func toSession(s *app.SessionSnapshot) sessionJSON {
	sess := s.Session
	out := sessionJSON{
		ID:               sess.ID,
		UserID:           sess.UserID,
		Tier:             sess.TierName,
		Status:           string(sess.Status),
		StartAmount:      sess.StartAmount,
		TargetAmount:     sess.TargetAmount,
		StartTime:        sess.StartTime,
		EndTime:          sess.EndTime(),
		TradeCount:       sess.TradeCount,
		Revealed:         len(s.Visible),
		Progress:         s.Progress,
		CumulativeProfit: s.CumulativeProfit,
		Balance:          s.Balance,
		Complete:         s.Complete,
		Trades:           toTrades(s.Visible),
		AsOf:             s.AsOf,
	}
	if m := s.Stats; m != nil {
		out.Stats = &statsJSON{
			TotalTrades:          m.TotalTrades,
			WinRate:              m.WinRate,
			MaxDrawdown:          m.MaxDrawdown,
			MaxConsecutiveWins:   m.MaxConsecutiveWins,
			MaxConsecutiveLosses: m.MaxConsecutiveLosses,
			AverageWin:           m.AverageWin,
			AverageLoss:          m.AverageLoss,
		}
	}
	return out
}

func toTier(t domain.ActivityTier, version string) tierJSON {
	return tierJSON{
		Name:            t.Name,
		LowerBound:      t.LowerBound,
		MinTrades:       t.MinTrades,
		MaxTrades:       t.MaxTrades,
		MinTradesPerDay: t.MinTradesPerDay,
		MaxTradesPerDay: t.MaxTradesPerDay,
		TableVersion:    version,
	}
}
