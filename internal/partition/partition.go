// Package partition splits an exact total into randomly weighted shares whose
// rounded values still add up to the total.
package partition

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidWeights is returned when weights cannot be normalized.
var ErrInvalidWeights = errors.New("weights must be non-negative with a positive sum")

// Weights draws n weights uniformly from [1-variance, 1+variance].
// A variance of 0.3 keeps every share within ±30% of an even split.
func Weights(src Source, n int, variance float64) []decimal.Decimal {
	weights := make([]decimal.Decimal, n)
	for i := range weights {
		w := Uniform(src, 1-variance, 1+variance)
		weights[i] = decimal.NewFromFloat(w)
	}
	return weights
}

// Split distributes total across len(weights) shares proportionally to the
// weights. Every share but the last is rounded to places; the last takes the
// exact residual, so the shares always sum to total.
//
// For a non-negative total no share is negative: a negative residual is
// clamped to zero and the deficit is taken from the preceding shares, walking
// backwards from the second-to-last.
func Split(total decimal.Decimal, weights []decimal.Decimal, places int32) ([]decimal.Decimal, error) {
	n := len(weights)
	if n == 0 {
		return nil, nil
	}

	sum := decimal.Zero
	for i, w := range weights {
		if w.IsNegative() {
			return nil, fmt.Errorf("weight %d is negative (%s): %w", i, w, ErrInvalidWeights)
		}
		sum = sum.Add(w)
	}
	if !sum.IsPositive() {
		return nil, ErrInvalidWeights
	}

	shares := make([]decimal.Decimal, n)
	for i := 0; i < n-1; i++ {
		shares[i] = total.Mul(weights[i]).Div(sum).Round(places)
	}
	CloseResidual(total, shares)

	if !total.IsNegative() && shares[n-1].IsNegative() {
		absorbDeficit(shares)
	}
	return shares, nil
}

// CloseResidual assigns the last share so that all shares sum to total.
func CloseResidual(total decimal.Decimal, shares []decimal.Decimal) {
	if len(shares) == 0 {
		return
	}
	last := len(shares) - 1
	rest := decimal.Zero
	for _, s := range shares[:last] {
		rest = rest.Add(s)
	}
	shares[last] = total.Sub(rest)
}

// absorbDeficit zeroes a negative last share and removes the same amount from
// earlier shares, second-to-last first. The walk order is fixed, so the result
// depends only on the drawn weights.
func absorbDeficit(shares []decimal.Decimal) {
	last := len(shares) - 1
	deficit := shares[last].Neg()
	shares[last] = decimal.Zero
	for j := last - 1; j >= 0 && deficit.IsPositive(); j-- {
		take := decimal.Min(shares[j], deficit)
		if !take.IsPositive() {
			continue
		}
		shares[j] = shares[j].Sub(take)
		deficit = deficit.Sub(take)
	}
}
