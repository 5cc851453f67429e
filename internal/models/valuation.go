package models

import (
	"github.com/shopspring/decimal"
)

// ValuationResult is the transient output of one DCF computation.
// Only IntrinsicValue (plus a timestamp) is ever persisted; the series are
// kept for reporting and diagnostics within the run.
type ValuationResult struct {
	IntrinsicValue     decimal.Decimal
	ProjectedSeries    []decimal.Decimal
	TerminalValue      decimal.Decimal
	DiscountedSeries   []decimal.Decimal
	DiscountedTerminal decimal.Decimal
}

// OutcomeKind classifies the result of one method pipeline for one entity.
type OutcomeKind string

const (
	OutcomeSuccess OutcomeKind = "success"
	OutcomeSkipped OutcomeKind = "skipped"
	OutcomeError   OutcomeKind = "error"
)

// MethodOutcome is the per-entity, per-method result of a refresh run.
// Exactly one of the three kinds applies; Reason carries the skip or error
// context. Before/After/Delta follow the stored intrinsic values: a nil
// Before with a successful outcome means the entity was valued for the
// first time and the delta is reported as "new" rather than a number.
type MethodOutcome struct {
	Symbol string
	Method Method
	Kind   OutcomeKind
	Reason string

	Before   *decimal.Decimal
	After    *decimal.Decimal
	Delta    *decimal.Decimal
	DeltaPct *decimal.Decimal
	IsNew    bool
}
