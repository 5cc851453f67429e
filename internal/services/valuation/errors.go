package valuation

import (
	"fmt"
)

// InvalidInputError reports inputs the DCF formulas cannot operate on, such
// as a non-positive current value or a projection horizon under one year.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid valuation input %s: %s", e.Field, e.Reason)
}

// InsufficientDataError reports that the provider data is not complete
// enough to value the entity: fewer than four quarters of cash flows, or a
// missing shares-outstanding figure.
type InsufficientDataError struct {
	Reason string
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: %s", e.Reason)
}
