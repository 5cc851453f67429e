package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Method identifies a valuation method.
type Method string

const (
	// MethodEPS values the entity on trailing earnings per share.
	MethodEPS Method = "eps"
	// MethodFCF values the entity on free cash flow per share.
	MethodFCF Method = "fcf"
)

// Methods lists every valuation method in execution order.
func Methods() []Method {
	return []Method{MethodEPS, MethodFCF}
}

// Assumptions holds the DCF parameters for one valuation method.
// Rates are whole-number percentages (10.0 means 10%).
type Assumptions struct {
	GrowthRatePct    decimal.Decimal `toml:"growth_rate_pct"`
	TerminalMultiple decimal.Decimal `toml:"terminal_multiple"`
	DiscountRatePct  decimal.Decimal `toml:"discount_rate_pct"`
	Years            int             `toml:"years"`
}

// DefaultAssumptions returns the baseline DCF parameters applied to
// entities that have no method-specific overrides.
func DefaultAssumptions() Assumptions {
	return Assumptions{
		GrowthRatePct:    decimal.NewFromFloat(10.0),
		TerminalMultiple: decimal.NewFromFloat(20.0),
		DiscountRatePct:  decimal.NewFromFloat(15.0),
		Years:            5,
	}
}

// CuratedEntity is one symbol in the curated valuation universe.
// Symbol is the unique storage key. The refresh pipeline mutates only the
// intrinsic value fields and LastRefreshedAt; everything else is owned by
// whoever maintains the universe.
type CuratedEntity struct {
	Symbol          string `badgerhold:"key"`
	Active          bool
	LastRefreshedAt *time.Time

	EPSIntrinsicValue *decimal.Decimal
	FCFIntrinsicValue *decimal.Decimal
	PreferredMethod   Method

	EPSAssumptions Assumptions
	FCFAssumptions Assumptions

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewCuratedEntity creates an active entity with baseline assumptions.
func NewCuratedEntity(symbol string) *CuratedEntity {
	now := time.Now().UTC()
	return &CuratedEntity{
		Symbol:          NormalizeSymbol(symbol),
		Active:          true,
		PreferredMethod: MethodEPS,
		EPSAssumptions:  DefaultAssumptions(),
		FCFAssumptions:  DefaultAssumptions(),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// AssumptionsFor returns the DCF parameters for the given method.
func (e *CuratedEntity) AssumptionsFor(method Method) Assumptions {
	if method == MethodFCF {
		return e.FCFAssumptions
	}
	return e.EPSAssumptions
}

// IntrinsicValueFor returns the stored intrinsic value for the given method,
// or nil if the method has never produced one.
func (e *CuratedEntity) IntrinsicValueFor(method Method) *decimal.Decimal {
	if method == MethodFCF {
		return e.FCFIntrinsicValue
	}
	return e.EPSIntrinsicValue
}

// SetIntrinsicValue records a new intrinsic value for the given method.
func (e *CuratedEntity) SetIntrinsicValue(method Method, value decimal.Decimal) {
	v := value
	if method == MethodFCF {
		e.FCFIntrinsicValue = &v
		return
	}
	e.EPSIntrinsicValue = &v
}

// NormalizeSymbol canonicalizes a ticker symbol for storage and cache keys.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// NormalizeSymbols canonicalizes a list of symbols, dropping empties.
func NormalizeSymbols(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if n := NormalizeSymbol(s); n != "" {
			out = append(out, n)
		}
	}
	return out
}
