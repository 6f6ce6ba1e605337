package stock

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Evaluate computes a free-text stock expression such as "120+5-3".
//
// The expression is split on '+'. Inside each segment the first '-'
// delimited token is added and every following token is subtracted, so
// "-5" evaluates to -5 and "+3" to 3. Tokens that are not numbers count
// as zero; an empty or unparseable expression is zero.
func Evaluate(expr string) decimal.Decimal {
	total := decimal.Zero
	for _, segment := range strings.Split(expr, "+") {
		for i, token := range strings.Split(segment, "-") {
			value := parseToken(token)
			if i == 0 {
				total = total.Add(value)
			} else {
				total = total.Sub(value)
			}
		}
	}
	return total
}

func parseToken(token string) decimal.Decimal {
	token = strings.TrimSpace(token)
	if token == "" {
		return decimal.Zero
	}
	value, err := decimal.NewFromString(token)
	if err != nil {
		return decimal.Zero
	}
	return value
}

// Expression is a stock expression in a request body. Clients send either
// the typed text ("120+5-3") or a plain JSON number.
type Expression string

func (e *Expression) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*e = Expression(s)
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		*e = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*e = Expression(n.String())
	return nil
}

// Value evaluates the expression.
func (e Expression) Value() decimal.Decimal {
	return Evaluate(string(e))
}
