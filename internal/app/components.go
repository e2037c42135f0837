package app

import (
	"fmt"
	"time"

	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/activity"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/partition"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/policy"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/reveal"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/simulation"
	"github.com/DavidSuperwave/crypto-trading-simulator-sub000/internal/yield"
)

// Components are the engine parts built from one policy and random source.
type Components struct {
	Rates      *yield.RateSelector
	Decomposer *yield.Decomposer
	Tiers      *activity.Resolver
	Generator  *simulation.Generator
	Reveal     *reveal.Clock
	Source     partition.Source
}

// NewComponents builds the engine parts from a validated policy.
func NewComponents(p *policy.Policy, src partition.Source, settleAfter time.Duration) (*Components, error) {
	if p == nil || src == nil {
		return nil, fmt.Errorf("policy and random source are required")
	}
	rates, err := yield.NewRateSelector(p.RateBands(), src)
	if err != nil {
		return nil, fmt.Errorf("rate selector: %w", err)
	}
	decomposer, err := yield.NewDecomposer(p.PayoutConfig(), src)
	if err != nil {
		return nil, fmt.Errorf("payout decomposer: %w", err)
	}
	tiers, err := activity.NewResolver(p.TierTable())
	if err != nil {
		return nil, fmt.Errorf("tier resolver: %w", err)
	}
	generator, err := simulation.NewGenerator(p.GeneratorConfig(), src)
	if err != nil {
		return nil, fmt.Errorf("trade generator: %w", err)
	}
	return &Components{
		Rates:      rates,
		Decomposer: decomposer,
		Tiers:      tiers,
		Generator:  generator,
		Reveal:     reveal.NewClock(settleAfter),
		Source:     src,
	}, nil
}

// Dependencies returns the service dependencies with the engine parts filled in.
func (c *Components) Dependencies() Dependencies {
	return Dependencies{
		Rates:      c.Rates,
		Decomposer: c.Decomposer,
		Tiers:      c.Tiers,
		Generator:  c.Generator,
		Reveal:     c.Reveal,
		Source:     c.Source,
	}
}
