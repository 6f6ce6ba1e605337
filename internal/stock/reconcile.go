package stock

import (
	"milkrun/internal/apperr"

	"github.com/shopspring/decimal"
)

// Result is the outcome of reconciling an area's stock for one day.
type Result struct {
	Dispatched decimal.Decimal `json:"dispatched"`
	Returned   decimal.Decimal `json:"returned"`
	Delivered  decimal.Decimal `json:"delivered"`
	Balance    decimal.Decimal `json:"balance"`
}

// Balanced reports whether the result permits submission.
func (r Result) Balanced() bool {
	return r.Balance.IsZero()
}

// Check returns a StockMismatchError when the balance is not zero.
func (r Result) Check() error {
	if r.Balanced() {
		return nil
	}
	return &apperr.StockMismatchError{
		Dispatched: r.Dispatched,
		Returned:   r.Returned,
		Delivered:  r.Delivered,
		Balance:    r.Balance,
	}
}

// Reconcile evaluates both expressions and compares them against what the
// sheet marks as delivered: balance = (dispatched + returned) - delivered.
func Reconcile(dispatchedExpr, returnedExpr string, sheet Sheet) Result {
	dispatched := Evaluate(dispatchedExpr)
	returned := Evaluate(returnedExpr)
	delivered := sheet.TotalDelivered()
	return Result{
		Dispatched: dispatched,
		Returned:   returned,
		Delivered:  delivered,
		Balance:    dispatched.Add(returned).Sub(delivered),
	}
}
