package report

import (
	"bytes"
	"testing"
	"time"

	"milkrun/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestAttendanceWorkbook(t *testing.T) {
	customer, milk := uuid.New(), uuid.New()
	logs := []model.AttendanceLog{{
		BusinessDate:     "2025-10-01",
		Date:             time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC),
		TotalDispatched:  decimal.NewFromInt(5),
		ReturnedQuantity: decimal.NewFromInt(-1),
		Entries: []model.AttendanceEntry{{
			CustomerID: customer,
			Products: []model.AttendanceProduct{
				{ProductID: milk, Quantity: decimal.NewFromInt(4), Status: "delivered"},
			},
		}},
	}}
	names := Names{
		Customers: map[string]string{customer.String(): "Asha"},
		Products:  map[string]string{milk.String(): "Milk"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteAttendance(&buf, logs, names))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(detailSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"2025-10-01", "Asha", "Milk", "delivered", "4"}, rows[1])

	balance, err := f.GetCellValue(summarySheet, "E2")
	require.NoError(t, err)
	assert.Equal(t, "0", balance)
}
