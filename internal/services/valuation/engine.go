// Package valuation implements the discounted-cash-flow engine. It is pure
// and deterministic: no I/O, no clocks, and all monetary math is fixed-point
// decimal rounded to two places at each step so rounding error cannot
// compound. Rates are whole-number percentages (10.0 means 10%).
package valuation

import (
	"github.com/shopspring/decimal"

	"github.com/sirvig/wheel-analyzer-sub001/internal/models"
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// ProjectSeries grows current at growthRatePct for the given number of
// years. Element i (0-based) holds current×(1+g/100)^(i+1), rounded to the
// cent.
func ProjectSeries(current, growthRatePct decimal.Decimal, years int) []decimal.Decimal {
	if years < 1 {
		return nil
	}

	factor := one.Add(growthRatePct.Div(hundred))
	series := make([]decimal.Decimal, 0, years)
	for i := 1; i <= years; i++ {
		value := current.Mul(factor.Pow(decimal.NewFromInt(int64(i))))
		series = append(series, value.Round(2))
	}
	return series
}

// TerminalValue approximates the value of all cash flows beyond the
// projection horizon as a multiple of the final projected year.
func TerminalValue(finalYearValue, multiple decimal.Decimal) decimal.Decimal {
	return finalYearValue.Mul(multiple).Round(2)
}

// PresentValue discounts a future value back yearsOut years at
// discountRatePct.
func PresentValue(future, discountRatePct decimal.Decimal, yearsOut int) decimal.Decimal {
	if yearsOut < 1 {
		return future.Round(2)
	}
	divisor := one.Add(discountRatePct.Div(hundred)).Pow(decimal.NewFromInt(int64(yearsOut)))
	return future.Div(divisor).Round(2)
}

// DiscountSeries present-values each element at its 1-based position.
func DiscountSeries(series []decimal.Decimal, discountRatePct decimal.Decimal) []decimal.Decimal {
	discounted := make([]decimal.Decimal, 0, len(series))
	for i, value := range series {
		discounted = append(discounted, PresentValue(value, discountRatePct, i+1))
	}
	return discounted
}

// IntrinsicValue runs the full DCF: project the current per-share figure,
// derive a terminal value from the final projected year, discount the
// series and the terminal value, and sum. Returns InvalidInputError when
// current is not positive or the horizon is under one year.
func IntrinsicValue(current, growthRatePct, multiple, discountRatePct decimal.Decimal, years int) (*models.ValuationResult, error) {
	if current.LessThanOrEqual(decimal.Zero) {
		return nil, &InvalidInputError{Field: "current", Reason: "must be positive"}
	}
	if years < 1 {
		return nil, &InvalidInputError{Field: "years", Reason: "projection horizon must be at least one year"}
	}

	projected := ProjectSeries(current, growthRatePct, years)
	terminal := TerminalValue(projected[len(projected)-1], multiple)
	discounted := DiscountSeries(projected, discountRatePct)
	discountedTerminal := PresentValue(terminal, discountRatePct, years)

	total := discountedTerminal
	for _, v := range discounted {
		total = total.Add(v)
	}

	return &models.ValuationResult{
		IntrinsicValue:     total.Round(2),
		ProjectedSeries:    projected,
		TerminalValue:      terminal,
		DiscountedSeries:   discounted,
		DiscountedTerminal: discountedTerminal,
	}, nil
}

// IntrinsicValueWith runs the DCF using an entity's stored assumptions.
func IntrinsicValueWith(current decimal.Decimal, a models.Assumptions) (*models.ValuationResult, error) {
	return IntrinsicValue(current, a.GrowthRatePct, a.TerminalMultiple, a.DiscountRatePct, a.Years)
}
