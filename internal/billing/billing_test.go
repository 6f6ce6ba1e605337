package billing

import (
	"testing"
	"time"

	"milkrun/internal/model"
	"milkrun/internal/period"
	"milkrun/internal/stock"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	customerID = uuid.MustParse("6f1c1a8e-0000-4000-8000-000000000001")
	otherID    = uuid.MustParse("6f1c1a8e-0000-4000-8000-000000000002")
	milkID     = uuid.MustParse("0b6d2f10-0000-4000-8000-00000000000a")
	curdID     = uuid.MustParse("0b6d2f10-0000-4000-8000-00000000000b")
)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func day(s string) time.Time {
	t, _ := time.Parse(period.DateLayout, s)
	return t
}

func logFor(date string, entries ...model.AttendanceEntry) model.AttendanceLog {
	return model.AttendanceLog{BusinessDate: date, Date: day(date), Entries: entries}
}

func entry(customer uuid.UUID, products ...model.AttendanceProduct) model.AttendanceEntry {
	return model.AttendanceEntry{CustomerID: customer, Products: products}
}

func delivered(product uuid.UUID, qty string) model.AttendanceProduct {
	return model.AttendanceProduct{ProductID: product, Quantity: dec(qty), Status: string(stock.StatusDelivered)}
}

func catalog() map[string]model.StoreProduct {
	return map[string]model.StoreProduct{
		milkID.String(): {ID: milkID, Name: "Milk 500ml", Price: dec("28")},
		curdID.String(): {ID: curdID, Name: "Curd", Price: dec("40")},
	}
}

func TestAggregateKeepsDatesApart(t *testing.T) {
	logs := []model.AttendanceLog{
		logFor("2025-10-02", entry(customerID, delivered(milkID, "3"))),
		logFor("2025-10-01", entry(customerID, delivered(milkID, "2"))),
	}

	rollup := Aggregate(logs, customerID)
	require.Len(t, rollup.Days, 2)
	assert.Equal(t, "2025-10-01", rollup.Days[0].Date)
	assert.Equal(t, "2025-10-02", rollup.Days[1].Date)

	p, _ := period.FromRange("2025-10-01", "2025-10-31")
	doc := Build(rollup, catalog(), &model.Customer{Name: "Asha"}, p, "IN")

	require.Len(t, doc.Lines, 2)
	assert.True(t, dec("56").Equal(doc.Lines[0].Products[0].ItemTotal))
	assert.True(t, dec("84").Equal(doc.Lines[1].Products[0].ItemTotal))
	assert.True(t, dec("140").Equal(doc.GrandTotal))
}

func TestAggregateSumsSameDateAndSkipsOthers(t *testing.T) {
	logs := []model.AttendanceLog{
		logFor("2025-10-01",
			entry(customerID,
				delivered(milkID, "1"),
				model.AttendanceProduct{ProductID: curdID, Quantity: dec("0"), Status: string(stock.StatusSkipped)},
			),
			entry(otherID, delivered(milkID, "9")),
		),
		logFor("2025-10-01", entry(customerID, delivered(milkID, "2"))),
		logFor("2025-10-03", entry(otherID, delivered(milkID, "5"))),
	}

	rollup := Aggregate(logs, customerID)

	assert.Equal(t, 2, rollup.Logs)
	require.Len(t, rollup.Days, 1)
	assert.True(t, dec("3").Equal(rollup.Days[0].Quantities[milkID.String()]))
	_, hasCurd := rollup.Days[0].Quantities[curdID.String()]
	assert.False(t, hasCurd)
	assert.Equal(t, []uuid.UUID{milkID}, rollup.ProductIDs())
}

func TestAggregateEmpty(t *testing.T) {
	rollup := Aggregate([]model.AttendanceLog{logFor("2025-10-01", entry(otherID, delivered(milkID, "1")))}, customerID)
	assert.True(t, rollup.Empty())
	assert.Zero(t, rollup.Logs)
}

func TestAggregateWithoutDeliveriesIsEmpty(t *testing.T) {
	logs := []model.AttendanceLog{
		logFor("2025-10-01", entry(customerID, model.AttendanceProduct{ProductID: milkID, Quantity: dec("2"), Status: string(stock.StatusSkipped)})),
		logFor("2025-10-02", entry(customerID, delivered(milkID, "0"))),
	}
	rollup := Aggregate(logs, customerID)
	assert.Equal(t, 2, rollup.Logs)
	assert.True(t, rollup.Empty())

	logs = append(logs, logFor("2025-10-03", entry(customerID, delivered(milkID, "1"))))
	assert.False(t, Aggregate(logs, customerID).Empty())
}

func TestBuildSkipsDatesWithoutDeliveries(t *testing.T) {
	logs := []model.AttendanceLog{
		logFor("2025-10-01", entry(customerID, model.AttendanceProduct{ProductID: milkID, Status: string(stock.StatusNotDelivered)})),
		logFor("2025-10-02", entry(customerID, delivered(milkID, "1"), delivered(curdID, "0.5"))),
	}
	customer := &model.Customer{Name: "Asha", DeliveryCost: dec("30")}
	p, _ := period.ParseMonthYear("October 2025")

	doc := Build(Aggregate(logs, customerID), catalog(), customer, p, "IN")

	require.Len(t, doc.Lines, 1)
	line := doc.Lines[0]
	assert.Equal(t, "2025-10-02", line.Date)
	require.Len(t, line.Products, 2)
	assert.Equal(t, "Curd", line.Products[0].Name)
	assert.True(t, dec("20").Equal(line.Products[0].ItemTotal))
	assert.True(t, dec("48").Equal(line.Total))
	assert.True(t, dec("48").Equal(doc.Subtotal))
	assert.True(t, dec("30").Equal(doc.DeliveryCharges))
	assert.True(t, dec("78").Equal(doc.GrandTotal))
}

func TestBuildUnknownProduct(t *testing.T) {
	ghost := uuid.New()
	logs := []model.AttendanceLog{logFor("2025-10-02", entry(customerID, delivered(ghost, "2")))}
	p, _ := period.ParseMonthYear("October 2025")

	doc := Build(Aggregate(logs, customerID), catalog(), &model.Customer{}, p, "IN")

	require.Len(t, doc.Lines, 1)
	assert.Equal(t, unknownProductName, doc.Lines[0].Products[0].Name)
	assert.True(t, doc.GrandTotal.IsZero())
}

func TestFormatPhone(t *testing.T) {
	assert.Contains(t, FormatPhone("9876543210", "IN"), "+91")
	assert.Equal(t, "call me", FormatPhone("call me", "IN"))
	assert.Equal(t, "", FormatPhone("  ", "IN"))
}

func ptr(t time.Time) *time.Time { return &t }

func TestDetectOverlap(t *testing.T) {
	october := model.Invoice{ID: uuid.New(), BillNo: "INV-1", Period: "October 2025", FromDate: ptr(day("2025-10-01")), ToDate: ptr(day("2025-10-31"))}

	mid, _ := period.FromRange("2025-10-15", "2025-11-15")
	overlap, found := DetectOverlap([]model.Invoice{october}, mid)
	require.True(t, found)
	assert.Equal(t, "INV-1", overlap.Invoice.BillNo)
	assert.False(t, overlap.Legacy)
	assert.Equal(t, "INV-1", overlap.Details()["billNo"])

	november, _ := period.FromRange("2025-11-01", "2025-11-30")
	_, found = DetectOverlap([]model.Invoice{october}, november)
	assert.False(t, found)
}

func TestDetectOverlapLegacyPeriodText(t *testing.T) {
	legacy := model.Invoice{ID: uuid.New(), BillNo: "INV-OLD", Period: "October 2025"}
	requested, _ := period.FromRange("2025-10-20", "2025-10-25")

	overlap, found := DetectOverlap([]model.Invoice{legacy}, requested)
	require.True(t, found)
	assert.True(t, overlap.Legacy)

	custom := model.Invoice{BillNo: "INV-CUSTOM", Period: "2025-09-25_to_2025-10-05"}
	overlap, found = DetectOverlap([]model.Invoice{custom}, requested)
	assert.False(t, found)

	garbage := model.Invoice{BillNo: "INV-BAD", Period: "sometime"}
	_, found = DetectOverlap([]model.Invoice{garbage}, requested)
	assert.False(t, found)
}

func TestDetectOverlapPrefersDirectMatches(t *testing.T) {
	legacy := model.Invoice{BillNo: "INV-LEGACY", Period: "October 2025"}
	direct := model.Invoice{BillNo: "INV-DIRECT", Period: "2025-10-10_to_2025-10-12", FromDate: ptr(day("2025-10-10")), ToDate: ptr(day("2025-10-12"))}
	requested, _ := period.ParseMonthYear("October 2025")

	overlap, found := DetectOverlap([]model.Invoice{legacy, direct}, requested)
	require.True(t, found)
	assert.Equal(t, "INV-DIRECT", overlap.Invoice.BillNo)
}

func TestStoredPeriod(t *testing.T) {
	t.Run("dates preferred over text", func(t *testing.T) {
		inv := model.Invoice{Period: "October 2025", PeriodKind: model.PeriodKindRange, FromDate: ptr(day("2025-10-01")), ToDate: ptr(day("2025-10-15"))}
		p, err := StoredPeriod(inv)
		require.NoError(t, err)
		assert.Equal(t, day("2025-10-15"), p.End)
		assert.Equal(t, period.KindRange, p.Kind)
	})

	t.Run("kind inferred for old rows", func(t *testing.T) {
		inv := model.Invoice{Period: "October 2025", FromDate: ptr(day("2025-10-01")), ToDate: ptr(day("2025-10-31"))}
		p, err := StoredPeriod(inv)
		require.NoError(t, err)
		assert.Equal(t, period.KindMonth, p.Kind)
		assert.Equal(t, "October 2025", p.Label)
	})

	t.Run("text only", func(t *testing.T) {
		p, err := StoredPeriod(model.Invoice{Period: "2025-10-05_to_2025-10-09"})
		require.NoError(t, err)
		assert.Equal(t, period.KindRange, p.Kind)
		assert.Equal(t, day("2025-10-05"), p.Start)
	})

	t.Run("unreadable", func(t *testing.T) {
		_, err := StoredPeriod(model.Invoice{Period: "whenever"})
		assert.Error(t, err)
	})
}
