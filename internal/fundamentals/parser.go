// Package fundamentals decodes raw provider payloads into the decimal
// inputs the valuation engine works on. The provider serializes every
// numeric field as a string and reports absent figures as "None" or "-".
package fundamentals

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/sirvig/wheel-analyzer-sub001/internal/services/valuation"
)

// Provider dataset names used by the refresh pipeline.
const (
	FunctionOverview = "OVERVIEW"
	FunctionCashFlow = "CASH_FLOW"
)

// Overview carries the company-level figures the pipeline needs from the
// provider's overview dataset. Each figure parses independently and carries
// its own error, so a missing EPS never blocks a method that only reads
// shares outstanding.
type Overview struct {
	Symbol string

	EPS    decimal.Decimal
	EPSErr error

	SharesOutstanding decimal.Decimal
	SharesErr         error
}

type rawOverview struct {
	Symbol            string `json:"Symbol"`
	EPS               string `json:"EPS"`
	SharesOutstanding string `json:"SharesOutstanding"`
}

type rawCashFlow struct {
	Symbol           string `json:"symbol"`
	QuarterlyReports []struct {
		FiscalDateEnding    string `json:"fiscalDateEnding"`
		OperatingCashflow   string `json:"operatingCashflow"`
		CapitalExpenditures string `json:"capitalExpenditures"`
	} `json:"quarterlyReports"`
}

// ParseOverview decodes an overview payload. The returned error covers only
// an undecodable payload; a missing EPS or shares-outstanding figure is
// recorded per field as InsufficientDataError so each method pipeline can
// fail on the fields it actually reads.
func ParseOverview(payload json.RawMessage) (*Overview, error) {
	var raw rawOverview
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode overview payload: %w", err)
	}

	overview := &Overview{Symbol: raw.Symbol}

	if eps, err := parseDecimal(raw.EPS); err != nil {
		overview.EPSErr = &valuation.InsufficientDataError{Reason: fmt.Sprintf("EPS unavailable: %v", err)}
	} else {
		overview.EPS = eps
	}

	if shares, err := parseDecimal(raw.SharesOutstanding); err != nil {
		overview.SharesErr = &valuation.InsufficientDataError{Reason: fmt.Sprintf("shares outstanding unavailable: %v", err)}
	} else {
		overview.SharesOutstanding = shares
	}

	return overview, nil
}

// ParseQuarterlyCashFlows decodes a cash-flow payload into quarters ordered
// most recent first, as the provider reports them. Quarters missing either
// figure are dropped; the caller enforces the four-quarter requirement.
func ParseQuarterlyCashFlows(payload json.RawMessage) ([]valuation.Quarter, error) {
	var raw rawCashFlow
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode cash-flow payload: %w", err)
	}

	quarters := make([]valuation.Quarter, 0, len(raw.QuarterlyReports))
	for _, report := range raw.QuarterlyReports {
		ocf, err := parseDecimal(report.OperatingCashflow)
		if err != nil {
			continue
		}
		capex, err := parseDecimal(report.CapitalExpenditures)
		if err != nil {
			continue
		}
		quarters = append(quarters, valuation.Quarter{
			FiscalDateEnding:    report.FiscalDateEnding,
			OperatingCashFlow:   ocf,
			CapitalExpenditures: capex,
		})
	}

	return quarters, nil
}

// parseDecimal converts a provider numeric string, rejecting the provider's
// null markers.
func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" || s == "None" || s == "-" {
		return decimal.Zero, fmt.Errorf("value is %q", s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unparseable value %q: %w", s, err)
	}
	return d, nil
}
