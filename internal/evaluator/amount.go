package evaluator

import (
	"fmt"

	"patron/internal/config"

	"github.com/shopspring/decimal"
)

// Grant amounts never carry more precision than wei
const amountPrecision = 18

// Amounts maps a score total to a grant amount. It is the only place a score
// turns into currency.
type Amounts struct {
	MinScore int
	Min      decimal.Decimal
	Max      decimal.Decimal
}

// NewAmounts parses the grant bounds from configuration
func NewAmounts(cfg config.GrantConfig) (Amounts, error) {
	minAmount, maxAmount, err := cfg.Amounts()
	if err != nil {
		return Amounts{}, err
	}
	if minAmount.GreaterThan(maxAmount) {
		return Amounts{}, fmt.Errorf("grant min amount %s exceeds max amount %s", minAmount, maxAmount)
	}
	return Amounts{MinScore: cfg.MinScore, Min: minAmount, Max: maxAmount}, nil
}

// For returns min + (max-min) * clamp((total-minScore)/(100-minScore), 0, 1).
// The result is non-decreasing in total and always within [Min, Max].
func (a Amounts) For(total int) decimal.Decimal {
	span := decimal.NewFromInt(int64(100 - a.MinScore))
	if !span.IsPositive() {
		return a.Min
	}

	ratio := decimal.NewFromInt(int64(total - a.MinScore)).DivRound(span, amountPrecision)
	if ratio.IsNegative() {
		ratio = decimal.Zero
	}
	if ratio.GreaterThan(decimal.NewFromInt(1)) {
		ratio = decimal.NewFromInt(1)
	}

	amount := a.Min.Add(a.Max.Sub(a.Min).Mul(ratio)).Truncate(amountPrecision)
	if amount.LessThan(a.Min) {
		return a.Min
	}
	if amount.GreaterThan(a.Max) {
		return a.Max
	}
	return amount
}
