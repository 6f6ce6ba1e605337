package stock

import (
	"encoding/json"
	"testing"

	"milkrun/internal/apperr"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"", "0"},
		{"100", "100"},
		{"100+5-3", "102"},
		{"-5", "-5"},
		{"+3", "3"},
		{"abc", "0"},
		{"120+12-3", "129"},
		{" 10 + 2 ", "12"},
		{"10-2-3", "5"},
		{"10+x-2", "8"},
		{"2.5+0.5", "3"},
		{"++", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got := Evaluate(tt.expr)
			assert.True(t, d(tt.want).Equal(got), "Evaluate(%q) = %s, want %s", tt.expr, got, tt.want)
		})
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	first := Evaluate("100+5-3")
	for i := 0; i < 10; i++ {
		assert.True(t, first.Equal(Evaluate("100+5-3")))
	}
}

func TestExpressionAcceptsTextAndNumbers(t *testing.T) {
	var body struct {
		Dispatched Expression `json:"dispatched"`
		Returned   Expression `json:"returned"`
		Missing    Expression `json:"missing"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"dispatched":"120+5","returned":-3,"missing":null}`), &body))

	assert.Equal(t, Expression("120+5"), body.Dispatched)
	assert.Equal(t, Expression("-3"), body.Returned)
	assert.True(t, d("125").Equal(body.Dispatched.Value()))
	assert.True(t, d("-3").Equal(body.Returned.Value()))
	assert.True(t, body.Missing.Value().IsZero())
}

func sampleSheet(t *testing.T) Sheet {
	t.Helper()
	s := NewSheet()
	require.NoError(t, s.AddProduct("c1", "milk", d("60")))
	require.NoError(t, s.AddProduct("c2", "milk", d("50")))
	require.NoError(t, s.AddProduct("c2", "curd", d("7")))
	return s
}

func TestReconcileBalanced(t *testing.T) {
	s := sampleSheet(t)

	result := Reconcile("120", "-3", s)

	assert.True(t, d("117").Equal(result.Delivered))
	assert.True(t, result.Balanced())
	assert.NoError(t, result.Check())
}

func TestReconcileBalanceTracksDeliveredQuantity(t *testing.T) {
	s := sampleSheet(t)
	before := Reconcile("120", "-3", s)

	require.NoError(t, s.SetQuantity("c1", "milk", d("61")))
	after := Reconcile("120", "-3", s)

	assert.True(t, before.Balance.Sub(decimal.NewFromInt(1)).Equal(after.Balance))
	assert.False(t, after.Balanced())

	err := after.Check()
	var mismatch *apperr.StockMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.True(t, d("120").Equal(mismatch.Dispatched))
	assert.True(t, d("-3").Equal(mismatch.Returned))
	assert.True(t, d("118").Equal(mismatch.Delivered))
	assert.True(t, d("-1").Equal(mismatch.Balance))
}

func TestSetStatusZeroesQuantity(t *testing.T) {
	for _, status := range []Status{StatusNotDelivered, StatusSkipped, StatusOutOfStock} {
		t.Run(string(status), func(t *testing.T) {
			s := sampleSheet(t)

			require.NoError(t, s.SetStatus("c1", "milk", status, true))

			entry, ok := s.Get("c1", "milk")
			require.True(t, ok)
			assert.Equal(t, status, entry.Status)
			assert.True(t, entry.Quantity.IsZero())
		})
	}
}

func TestSetStatusRequiresConfirmation(t *testing.T) {
	s := sampleSheet(t)

	err := s.SetStatus("c1", "milk", StatusSkipped, false)
	assert.ErrorIs(t, err, ErrConfirmationRequired)

	entry, _ := s.Get("c1", "milk")
	assert.Equal(t, StatusDelivered, entry.Status)
	assert.True(t, d("60").Equal(entry.Quantity))
}

func TestSetStatusWithoutQuantityNeedsNoConfirmation(t *testing.T) {
	s := NewSheet()
	require.NoError(t, s.AddProduct("c1", "milk", decimal.Zero))

	assert.NoError(t, s.SetStatus("c1", "milk", StatusSkipped, false))
	assert.NoError(t, s.SetStatus("c1", "milk", StatusDelivered, false))
}

func TestSheetRejectsBadInput(t *testing.T) {
	s := sampleSheet(t)

	assert.ErrorIs(t, s.SetStatus("c1", "milk", Status("lost"), true), ErrInvalidStatus)
	assert.ErrorIs(t, s.SetStatus("nobody", "milk", StatusSkipped, true), ErrUnknownEntry)
	assert.ErrorIs(t, s.SetQuantity("c1", "milk", d("-1")), ErrNegativeQuantity)
	assert.ErrorIs(t, s.AddProduct("c3", "milk", d("-1")), ErrNegativeQuantity)

	require.NoError(t, s.SetStatus("c1", "milk", StatusSkipped, true))
	assert.ErrorIs(t, s.SetQuantity("c1", "milk", d("2")), ErrNotDelivered)
}

func TestRemoveProduct(t *testing.T) {
	s := sampleSheet(t)

	s.RemoveProduct("c2", "curd")

	_, ok := s.Get("c2", "curd")
	assert.False(t, ok)
	assert.True(t, d("110").Equal(s.TotalDelivered()))
	assert.Equal(t, []string{"c1", "c2"}, s.CustomerIDs())
}

func TestNormalize(t *testing.T) {
	s := Sheet{
		"c1": {"milk": {Status: StatusSkipped, Quantity: d("4")}},
	}
	require.NoError(t, s.Normalize())
	entry, _ := s.Get("c1", "milk")
	assert.True(t, entry.Quantity.IsZero())

	bad := Sheet{"c1": {"milk": {Status: "gone"}}}
	assert.ErrorIs(t, bad.Normalize(), ErrInvalidStatus)
}

func TestCloneIsIndependent(t *testing.T) {
	s := sampleSheet(t)
	cp := s.Clone()

	require.NoError(t, cp.SetQuantity("c1", "milk", d("1")))

	entry, _ := s.Get("c1", "milk")
	assert.True(t, d("60").Equal(entry.Quantity))
}
