package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/config"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/adapters/logger"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/app"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/domain"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/partition"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/policy"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/utils"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/yield"
)

var (
	balance  = flag.String("balance", "10000", "starting balance of the month")
	month    = flag.Int("month", 1, "1-based month index; selects the rate band")
	anchor   = flag.String("anchor", "", "day of the first deposit, YYYY-MM-DD (default today)")
	topUp    = flag.String("topup", "", "optional mid-month deposit to apply")
	topUpDay = flag.String("topup-day", "", "day of the mid-month deposit, YYYY-MM-DD")
	seed     = flag.Int64("seed", 0, "random seed (0 seeds from the clock)")
	out      = flag.String("out", "", "CSV file (default data/schedule_<anchor>_m<month>.csv)")
)

func main() {
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.NewLogrusLogger(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	ctx := context.Background()

	// 3. Build the engine parts from the policy
	pol, err := policy.Load(cfg.PolicyFile)
	if err == nil {
		pol.SetAmountPlaces(cfg.DecimalPlaces)
		err = pol.Validate()
	}
	if err != nil {
		log.Fatalf("Failed to load engine policy: %v", err)
	}
	s := *seed
	if s == 0 {
		s = time.Now().UnixNano()
	}
	c, err := app.NewComponents(pol, partition.NewSource(s), cfg.SettleAfter)
	if err != nil {
		log.Fatalf("Failed to initialize engine components: %v", err)
	}

	startBalance, err := decimal.NewFromString(*balance)
	if err != nil || !startBalance.IsPositive() {
		log.Fatalf("Invalid -balance %q", *balance)
	}
	anchorDay := yield.TruncateDay(time.Now())
	if *anchor != "" {
		if anchorDay, err = time.Parse(time.DateOnly, *anchor); err != nil {
			log.Fatalf("Invalid -anchor %q: %v", *anchor, err)
		}
	}

	// 4. Build the month
	rate := c.Rates.SelectRate(*month)
	start, end := yield.MonthWindow(anchorDay, *month)
	days := yield.CalendarDays(start, end)
	amounts, err := c.Decomposer.Decompose(startBalance, rate, days)
	if err != nil {
		appLogger.Error(ctx, err, "Error building schedule")
		log.Fatalf("Error building schedule: %v", err)
	}
	plan := &domain.MonthlyPlan{
		MonthIndex:        *month,
		LockedRate:        rate,
		StartingBalance:   startBalance,
		ProjectedInterest: c.Decomposer.ProjectedInterest(startBalance, rate),
		Status:            domain.PlanActive,
		PeriodStart:       start,
		PeriodEnd:         end,
	}
	payouts := make([]*domain.DailyPayout, len(days))
	for i, day := range days {
		payouts[i] = &domain.DailyPayout{MonthIndex: *month, Day: day, Amount: amounts[i], Status: domain.PayoutPending}
	}
	appLogger.Info(ctx, "Schedule built", map[string]interface{}{
		"month": *month, "rate": rate.String(), "projectedInterest": plan.ProjectedInterest.String(),
		"days": len(days), "from": start.Format(time.DateOnly), "to": end.Format(time.DateOnly),
	})

	// 5. Optionally apply a mid-month deposit
	if *topUp != "" {
		plan, payouts = applyTopUp(ctx, appLogger, c, plan, payouts)
	}

	// 6. Write CSV
	filename := *out
	if filename == "" {
		filename = fmt.Sprintf("data/schedule_%s_m%d.csv", anchorDay.Format("20060102"), *month)
	}
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}
	if err := utils.WritePayoutsToCSV(payouts, filename); err != nil {
		appLogger.Error(ctx, err, "Error writing CSV")
		log.Fatalf("Error writing CSV: %v", err)
	}
	appLogger.Info(ctx, "Saved to", map[string]interface{}{
		"filename": filename, "total": domain.SumAmounts(payouts).String(), "projectedInterest": plan.ProjectedInterest.String(),
	})
}

// applyTopUp reveals the days settled before the deposit and redistributes
// the rest of the month over the remaining days.
func applyTopUp(ctx context.Context, appLogger *logger.LogrusLogger, c *app.Components, plan *domain.MonthlyPlan, payouts []*domain.DailyPayout) (*domain.MonthlyPlan, []*domain.DailyPayout) {
	amount, err := decimal.NewFromString(*topUp)
	if err != nil || !amount.IsPositive() {
		log.Fatalf("Invalid -topup %q", *topUp)
	}
	at, err := time.Parse(time.DateOnly, *topUpDay)
	if err != nil {
		log.Fatalf("Invalid -topup-day %q: %v", *topUpDay, err)
	}
	if !plan.Covers(at) {
		log.Fatalf("-topup-day %s is outside the month %s to %s", *topUpDay, plan.PeriodStart.Format(time.DateOnly), plan.PeriodEnd.Format(time.DateOnly))
	}

	revealed := c.Reveal.RevealPayouts(payouts, at)
	recalc, err := yield.NewRecalculator(c.Decomposer)
	if err != nil {
		log.Fatalf("Failed to create recalculator: %v", err)
	}
	result, err := recalc.Recalculate(plan, payouts, amount, at)
	if err != nil {
		appLogger.Error(ctx, err, "Recalculation rejected")
		log.Fatalf("Recalculation rejected: %v", err)
	}
	appLogger.Info(ctx, "Mid-month deposit applied", map[string]interface{}{
		"amount":            amount.String(),
		"day":               at.Format(time.DateOnly),
		"paidDays":          len(revealed),
		"frozen":            result.Frozen.String(),
		"remaining":         result.Remaining.String(),
		"redistributedDays": result.Redistributed,
		"projectedInterest": result.Plan.ProjectedInterest.String(),
	})
	return result.Plan, result.Payouts
}
