package valuation

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// RequiredQuarters is the number of quarterly reports the TTM aggregation
// needs.
const RequiredQuarters = 4

// Quarter holds one quarterly cash-flow report. Figures carry the sign the
// provider reports them with.
type Quarter struct {
	FiscalDateEnding    string
	OperatingCashFlow   decimal.Decimal
	CapitalExpenditures decimal.Decimal
}

// TTMFreeCashFlow sums operatingCashFlow minus capitalExpenditures over the
// four most recent quarters. quarters must be ordered most recent first;
// extra history beyond four quarters is ignored. Returns
// InsufficientDataError when fewer than four quarters are available.
func TTMFreeCashFlow(quarters []Quarter) (decimal.Decimal, error) {
	if len(quarters) < RequiredQuarters {
		return decimal.Zero, &InsufficientDataError{
			Reason: fmt.Sprintf("need %d quarterly cash-flow reports, have %d", RequiredQuarters, len(quarters)),
		}
	}

	total := decimal.Zero
	for _, q := range quarters[:RequiredQuarters] {
		total = total.Add(q.OperatingCashFlow.Sub(q.CapitalExpenditures))
	}
	return total, nil
}

// FCFPerShare divides trailing-twelve-month free cash flow by shares
// outstanding, rounded to the cent. A negative result is numerically valid;
// the caller decides whether to proceed with it.
func FCFPerShare(quarters []Quarter, sharesOutstanding decimal.Decimal) (decimal.Decimal, error) {
	ttm, err := TTMFreeCashFlow(quarters)
	if err != nil {
		return decimal.Zero, err
	}

	if sharesOutstanding.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, &InsufficientDataError{Reason: "shares outstanding missing or non-positive"}
	}

	return ttm.Div(sharesOutstanding).Round(2), nil
}
