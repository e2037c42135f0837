package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/config"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/activity"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/adapters/logger"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/analytics"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/app"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/domain"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/partition"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/policy"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/simulation"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/utils"
)

var (
	runs     = flag.Int("runs", 200, "sessions to generate per tier")
	duration = flag.Duration("duration", 240*time.Second, "length of each session")
	gain     = flag.String("gain", "0.25", "target gain as a fraction of the account size")
	seed     = flag.Int64("seed", 1, "master seed; the same seed reproduces every session")
	outDir   = flag.String("out", "data", "directory for the sample trade CSVs")
)

// tierReport aggregates the analytics of all sessions of one tier.
type tierReport struct {
	Tier           string
	AccountSize    decimal.Decimal
	Sessions       int
	MinTrades      int
	MaxTrades      int
	MeanWinRate    float64
	MeanDrawdown   float64
	WorstDrawdown  float64
	MaxLossStreak  int
	SumMismatches  int // Sessions whose profits missed the target gain
	SampleTrades   []*domain.TradeEvent
	SampleAnalysis *analytics.PerformanceMetrics
}

func main() {
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	appLogger := logger.NewLogrusLogger(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	ctx := context.Background()

	// 2. Load Engine Policy
	pol, err := policy.Load(cfg.PolicyFile)
	if err == nil {
		pol.SetAmountPlaces(cfg.DecimalPlaces)
		err = pol.Validate()
	}
	if err != nil {
		appLogger.Error(ctx, err, "Failed to load engine policy")
		log.Fatalf("Failed to load engine policy: %v", err)
	}

	gainFraction, err := decimal.NewFromString(*gain)
	if err != nil || gainFraction.IsNegative() {
		log.Fatalf("Invalid -gain %q", *gain)
	}
	if *runs <= 0 || *duration <= 0 {
		log.Fatalf("-runs and -duration must be positive")
	}

	// 3. Build the generator
	components, err := app.NewComponents(pol, partition.NewSource(*seed), cfg.SettleAfter)
	if err != nil {
		appLogger.Error(ctx, err, "Failed to initialize engine components")
		log.Fatalf("Failed to initialize engine components: %v", err)
	}

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	// 4. Run every tier
	table := pol.TierTable()
	appLogger.Info(ctx, "Running sessions", map[string]interface{}{
		"tiers": len(table.Tiers), "runsPerTier": *runs, "duration": duration.String(), "tableVersion": table.Version,
	})

	for _, tier := range table.Tiers {
		report := runTier(components, tier, gainFraction, pol.Trades.Places)

		appLogger.Info(ctx, "Tier result", map[string]interface{}{
			"Tier":          report.Tier,
			"AccountSize":   report.AccountSize.String(),
			"Sessions":      report.Sessions,
			"Trades":        fmt.Sprintf("%d-%d", report.MinTrades, report.MaxTrades),
			"WinRate":       report.MeanWinRate * 100,
			"MeanDD":        report.MeanDrawdown * 100,
			"WorstDD":       report.WorstDrawdown * 100,
			"MaxLossStreak": report.MaxLossStreak,
			"SumMismatches": report.SumMismatches,
		})
		if report.SumMismatches > 0 {
			appLogger.Warn(ctx, "Sessions missed the target gain", map[string]interface{}{"tier": report.Tier, "count": report.SumMismatches})
		}

		if report.SampleAnalysis == nil {
			continue
		}
		tradesFile := filepath.Join(*outDir, fmt.Sprintf("session_sample_%s.csv", report.Tier))
		if err := utils.WriteTradesToCSV(report.SampleTrades, tradesFile); err != nil {
			appLogger.Error(ctx, err, "Error writing trades CSV")
			continue
		}
		appLogger.Info(ctx, "Sample trades saved to", map[string]interface{}{
			"filename": tradesFile, "finalBalance": report.SampleAnalysis.FinalBalance.String(),
		})
	}
}

// runTier generates *runs sessions for an account at the tier's lower bound
// in parallel and aggregates their analytics.
func runTier(c *app.Components, tier domain.ActivityTier, gainFraction decimal.Decimal, places int32) *tierReport {
	start := tier.LowerBound
	target := start.Mul(decimal.NewFromInt(1).Add(gainFraction)).Round(places)
	wantGain := target.Sub(start)
	begin := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

	report := &tierReport{Tier: tier.Name, AccountSize: start, MinTrades: tier.MaxTrades}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var winRateSum, drawdownSum float64

	for i := 0; i < *runs; i++ {
		count := activity.DrawTradeCount(c.Source, tier)
		runSeed := c.Source.Int63() | 1

		wg.Add(1)
		go func(i, count int, runSeed int64) {
			defer wg.Done()

			trades, err := c.Generator.Generate(simulation.Request{
				SessionID:    fmt.Sprintf("%s-%04d", tier.Name, i),
				Start:        begin,
				StartAmount:  start,
				TargetAmount: target,
				Duration:     *duration,
				TradeCount:   count,
				Seed:         runSeed,
			})
			if err != nil {
				log.Printf("session %s-%04d failed: %v", tier.Name, i, err)
				return
			}
			metrics := analytics.AnalyzePerformance(trades, start)

			mu.Lock()
			defer mu.Unlock()
			report.Sessions++
			winRateSum += metrics.WinRate
			drawdownSum += metrics.MaxDrawdown
			if metrics.MaxDrawdown > report.WorstDrawdown {
				report.WorstDrawdown = metrics.MaxDrawdown
			}
			if metrics.MaxConsecutiveLosses > report.MaxLossStreak {
				report.MaxLossStreak = metrics.MaxConsecutiveLosses
			}
			if len(trades) < report.MinTrades {
				report.MinTrades = len(trades)
			}
			if len(trades) > report.MaxTrades {
				report.MaxTrades = len(trades)
			}
			if !metrics.TotalProfit.Equal(wantGain) {
				report.SumMismatches++
			}
			if i == 0 {
				report.SampleTrades = trades
				report.SampleAnalysis = metrics
			}
		}(i, count, runSeed)
	}
	wg.Wait()

	if report.Sessions > 0 {
		report.MeanWinRate = winRateSum / float64(report.Sessions)
		report.MeanDrawdown = drawdownSum / float64(report.Sessions)
	}
	return report
}
