package utils

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"

	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/domain"
)

// WriteTradesToCSV writes a session's trade events to filename.
func WriteTradesToCSV(trades []*domain.TradeEvent, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	writer.Write([]string{"session_id", "sequence", "timestamp", "symbol", "side", "notional", "profit"})

	for _, e := range trades {
		writer.Write([]string{
			e.SessionID,
			strconv.Itoa(e.Sequence),
			e.Timestamp.UTC().Format(time.RFC3339),
			e.Symbol,
			string(e.Side),
			e.Notional.StringFixed(2),
			e.Profit.StringFixed(2),
		})
	}
	writer.Flush()
	return writer.Error()
}

// WritePayoutsToCSV writes a daily payout schedule to filename.
func WritePayoutsToCSV(payouts []*domain.DailyPayout, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	writer.Write([]string{"month_index", "day", "amount", "status", "paid_at"})

	for _, p := range payouts {
		paidAt := ""
		if p.PaidAt != nil {
			paidAt = p.PaidAt.UTC().Format(time.RFC3339)
		}
		writer.Write([]string{
			strconv.Itoa(p.MonthIndex),
			p.Day.UTC().Format("2006-01-02"),
			p.Amount.StringFixed(2),
			string(p.Status),
			paidAt,
		})
	}
	writer.Flush()
	return writer.Error()
}
