// Package report exports attendance as spreadsheets.
package report

import (
	"fmt"
	"io"

	"milkrun/internal/model"
	"milkrun/internal/stock"

	"github.com/xuri/excelize/v2"
)

const (
	detailSheet  = "Attendance"
	summarySheet = "Summary"
)

// ContentType of the workbooks written by this package.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Names resolves ids to display names.
type Names struct {
	Customers map[string]string
	Products  map[string]string
}

func (n Names) customer(id string) string {
	if name, ok := n.Customers[id]; ok {
		return name
	}
	return id
}

func (n Names) product(id string) string {
	if name, ok := n.Products[id]; ok {
		return name
	}
	return id
}

// AttendanceWorkbook lists every product entry of the logs on one sheet and
// the daily stock balance on another.
func AttendanceWorkbook(logs []model.AttendanceLog, names Names) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", detailSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, err
	}

	headers := []interface{}{"Date", "Customer", "Product", "Status", "Quantity"}
	if err := f.SetSheetRow(detailSheet, "A1", &headers); err != nil {
		return nil, err
	}
	summaryHeaders := []interface{}{"Date", "Dispatched", "Returned", "Delivered", "Balance"}
	if err := f.SetSheetRow(summarySheet, "A1", &summaryHeaders); err != nil {
		return nil, err
	}

	row := 2
	for i, log := range logs {
		delivered := stock.NewSheet()
		for _, entry := range log.Entries {
			for _, product := range entry.Products {
				values := []interface{}{
					log.BusinessDate,
					names.customer(entry.CustomerID.String()),
					names.product(product.ProductID.String()),
					product.Status,
					product.Quantity.InexactFloat64(),
				}
				if err := f.SetSheetRow(detailSheet, fmt.Sprintf("A%d", row), &values); err != nil {
					return nil, err
				}
				row++

				if stock.Status(product.Status) == stock.StatusDelivered {
					if err := delivered.AddProduct(entry.CustomerID.String(), product.ProductID.String(), product.Quantity); err != nil {
						return nil, err
					}
				}
			}
		}

		total := delivered.TotalDelivered()
		summary := []interface{}{
			log.BusinessDate,
			log.TotalDispatched.InexactFloat64(),
			log.ReturnedQuantity.InexactFloat64(),
			total.InexactFloat64(),
			log.TotalDispatched.Add(log.ReturnedQuantity).Sub(total).InexactFloat64(),
		}
		if err := f.SetSheetRow(summarySheet, fmt.Sprintf("A%d", i+2), &summary); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// WriteAttendance writes the workbook to w.
func WriteAttendance(w io.Writer, logs []model.AttendanceLog, names Names) error {
	f, err := AttendanceWorkbook(logs, names)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}
