package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/domain"
)

// PerformanceMetrics summarizes a sequence of trade events
type PerformanceMetrics struct {
	// Basic Metrics
	TotalTrades        int
	WinningTrades      int
	LosingTrades       int
	FlatTrades         int
	WinRate            float64
	TotalProfit        decimal.Decimal
	GrossProfit        decimal.Decimal
	GrossLoss          decimal.Decimal
	MaxDrawdown        float64
	ProfitFactor       float64
	AverageWin         decimal.Decimal
	AverageLoss        decimal.Decimal
	FinalBalance       decimal.Decimal
	ReturnOnInvestment float64

	// Advanced Metrics
	MaxConsecutiveWins   int
	MaxConsecutiveLosses int
	Expectancy           decimal.Decimal
	TradesBySymbol       map[string]int
	DailyReturns         map[string]decimal.Decimal
	Drawdowns            []Drawdown
	EquityCurve          []EquityPoint
}

// Drawdown represents a drawdown period
type Drawdown struct {
	StartTime  time.Time
	EndTime    time.Time
	StartValue decimal.Decimal
	EndValue   decimal.Decimal
	Depth      float64
	Duration   time.Duration
}

// EquityPoint represents a point on the equity curve
type EquityPoint struct {
	Time     time.Time
	Sequence int
	Value    decimal.Decimal
	Drawdown float64
}

// AnalyzePerformance calculates performance metrics from trade events. The
// input slice is not reordered.
func AnalyzePerformance(trades []*domain.TradeEvent, initialBalance decimal.Decimal) *PerformanceMetrics {
	metrics := &PerformanceMetrics{
		TotalProfit:    decimal.Zero,
		GrossProfit:    decimal.Zero,
		GrossLoss:      decimal.Zero,
		AverageWin:     decimal.Zero,
		AverageLoss:    decimal.Zero,
		FinalBalance:   initialBalance,
		Expectancy:     decimal.Zero,
		TradesBySymbol: make(map[string]int),
		DailyReturns:   make(map[string]decimal.Decimal),
		Drawdowns:      make([]Drawdown, 0),
		EquityCurve:    make([]EquityPoint, 0),
	}

	if len(trades) == 0 {
		return metrics
	}

	ordered := make([]*domain.TradeEvent, len(trades))
	copy(ordered, trades)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].Timestamp.Equal(ordered[j].Timestamp) {
			return ordered[i].Timestamp.Before(ordered[j].Timestamp)
		}
		return ordered[i].Sequence < ordered[j].Sequence
	})

	currentBalance := initialBalance
	peakBalance := initialBalance
	var currentDrawdown *Drawdown
	var consecutiveWins, consecutiveLosses int

	for _, trade := range ordered {
		metrics.TotalTrades++
		metrics.TradesBySymbol[trade.Symbol]++

		switch {
		case trade.Profit.IsPositive():
			metrics.WinningTrades++
			metrics.GrossProfit = metrics.GrossProfit.Add(trade.Profit)
			consecutiveWins++
			consecutiveLosses = 0
		case trade.Profit.IsNegative():
			metrics.LosingTrades++
			metrics.GrossLoss = metrics.GrossLoss.Add(trade.Profit)
			consecutiveLosses++
			consecutiveWins = 0
		default:
			metrics.FlatTrades++
		}

		if consecutiveWins > metrics.MaxConsecutiveWins {
			metrics.MaxConsecutiveWins = consecutiveWins
		}
		if consecutiveLosses > metrics.MaxConsecutiveLosses {
			metrics.MaxConsecutiveLosses = consecutiveLosses
		}

		// Update balance and equity curve
		currentBalance = currentBalance.Add(trade.Profit)
		metrics.TotalProfit = metrics.TotalProfit.Add(trade.Profit)
		metrics.FinalBalance = currentBalance

		dayKey := trade.Timestamp.UTC().Format("2006-01-02")
		metrics.DailyReturns[dayKey] = metrics.DailyReturns[dayKey].Add(trade.Profit)

		// Update drawdown tracking
		drawdown := 0.0
		if currentBalance.GreaterThanOrEqual(peakBalance) {
			peakBalance = currentBalance
			if currentDrawdown != nil {
				currentDrawdown.EndTime = trade.Timestamp
				currentDrawdown.EndValue = currentBalance
				currentDrawdown.Duration = currentDrawdown.EndTime.Sub(currentDrawdown.StartTime)
				metrics.Drawdowns = append(metrics.Drawdowns, *currentDrawdown)
				currentDrawdown = nil
			}
		} else {
			drawdown = relativeDrop(peakBalance, currentBalance)
			if currentDrawdown == nil {
				currentDrawdown = &Drawdown{
					StartTime:  trade.Timestamp,
					StartValue: peakBalance,
					Depth:      drawdown,
				}
			} else {
				currentDrawdown.Depth = math.Max(currentDrawdown.Depth, drawdown)
			}
			if drawdown > metrics.MaxDrawdown {
				metrics.MaxDrawdown = drawdown
			}
		}

		metrics.EquityCurve = append(metrics.EquityCurve, EquityPoint{
			Time:     trade.Timestamp,
			Sequence: trade.Sequence,
			Value:    currentBalance,
			Drawdown: drawdown,
		})
	}

	// Close any open drawdown
	if currentDrawdown != nil {
		currentDrawdown.EndTime = ordered[len(ordered)-1].Timestamp
		currentDrawdown.EndValue = currentBalance
		currentDrawdown.Duration = currentDrawdown.EndTime.Sub(currentDrawdown.StartTime)
		metrics.Drawdowns = append(metrics.Drawdowns, *currentDrawdown)
	}

	metrics.WinRate = float64(metrics.WinningTrades) / float64(metrics.TotalTrades)
	if metrics.WinningTrades > 0 {
		metrics.AverageWin = metrics.GrossProfit.Div(decimal.NewFromInt(int64(metrics.WinningTrades)))
	}
	if metrics.LosingTrades > 0 {
		metrics.AverageLoss = metrics.GrossLoss.Div(decimal.NewFromInt(int64(metrics.LosingTrades)))
	}
	if metrics.GrossLoss.IsNegative() {
		metrics.ProfitFactor = metrics.GrossProfit.Div(metrics.GrossLoss.Neg()).InexactFloat64()
	}
	if initialBalance.IsPositive() {
		metrics.ReturnOnInvestment = metrics.TotalProfit.Div(initialBalance).InexactFloat64()
	}
	metrics.Expectancy = metrics.TotalProfit.Div(decimal.NewFromInt(int64(metrics.TotalTrades)))

	return metrics
}

func relativeDrop(peak, current decimal.Decimal) float64 {
	if !peak.IsPositive() {
		return 0
	}
	return peak.Sub(current).Div(peak).InexactFloat64()
}

// GetDailyReturns returns the daily returns as a sorted slice
func (m *PerformanceMetrics) GetDailyReturns() []DailyReturn {
	returns := make([]DailyReturn, 0, len(m.DailyReturns))
	for day, profit := range m.DailyReturns {
		date, _ := time.Parse("2006-01-02", day)
		returns = append(returns, DailyReturn{
			Day:    date,
			Return: profit,
		})
	}
	sort.Slice(returns, func(i, j int) bool {
		return returns[i].Day.Before(returns[j].Day)
	})
	return returns
}

// DailyReturn represents the profit booked on one calendar day
type DailyReturn struct {
	Day    time.Time
	Return decimal.Decimal
}
