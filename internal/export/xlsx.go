// Package export renders dashboard views as spreadsheets.
package export

import (
	"bytes"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"faturas/internal/dashboard"
)

const (
	summarySheet  = "Summary"
	energySheet   = "Energy"
	monetarySheet = "Monetary"
	excludedSheet = "Excluded"

	// ContentTypeXLSX is the media type of Workbook output.
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Filename is the attachment name used for a selector.
func Filename(selector string) string {
	return fmt.Sprintf("faturas-%s.xlsx", selector)
}

// Workbook writes the view's series into an XLSX document. Rows follow the
// series order.
func Workbook(v dashboard.View) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{energySheet, monetarySheet, excludedSheet} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	_ = f.SetCellValue(summarySheet, "A1", "Invoice series")
	_ = f.SetCellValue(summarySheet, "A3", "Selector")
	_ = f.SetCellValue(summarySheet, "B3", v.Selector)
	_ = f.SetCellValue(summarySheet, "A4", "Records")
	_ = f.SetCellValue(summarySheet, "B4", v.Records)
	_ = f.SetCellValue(summarySheet, "A5", "Excluded records")
	_ = f.SetCellValue(summarySheet, "B5", v.Excluded())
	_ = f.SetCellValue(summarySheet, "A6", "Total consumption (kWh)")
	_ = f.SetCellValue(summarySheet, "B6", number(v.Totals.Consumption))
	_ = f.SetCellValue(summarySheet, "A7", "Total compensation (kWh)")
	_ = f.SetCellValue(summarySheet, "B7", number(v.Totals.Compensation))
	_ = f.SetCellValue(summarySheet, "A8", "Total value (R$)")
	_ = f.SetCellValue(summarySheet, "B8", number(v.Totals.TotalValue))
	_ = f.SetCellValue(summarySheet, "A9", "Savings (R$)")
	_ = f.SetCellValue(summarySheet, "B9", number(v.Totals.Savings))
	if !v.LoadedAt.IsZero() {
		_ = f.SetCellValue(summarySheet, "A10", "Loaded at")
		_ = f.SetCellValue(summarySheet, "B10", v.LoadedAt.Format("2006-01-02 15:04:05"))
	}

	_ = f.SetCellValue(energySheet, "A1", "Month")
	_ = f.SetCellValue(energySheet, "B1", "Consumption (kWh)")
	_ = f.SetCellValue(energySheet, "C1", "Compensation (kWh)")
	for i, p := range v.Energy {
		row := i + 2
		_ = f.SetCellValue(energySheet, fmt.Sprintf("A%d", row), p.Month)
		_ = f.SetCellValue(energySheet, fmt.Sprintf("B%d", row), number(p.Consumption))
		_ = f.SetCellValue(energySheet, fmt.Sprintf("C%d", row), number(p.Compensation))
	}

	_ = f.SetCellValue(monetarySheet, "A1", "Month")
	_ = f.SetCellValue(monetarySheet, "B1", "Total value (R$)")
	_ = f.SetCellValue(monetarySheet, "C1", "Savings (R$)")
	for i, p := range v.Monetary {
		row := i + 2
		_ = f.SetCellValue(monetarySheet, fmt.Sprintf("A%d", row), p.Month)
		_ = f.SetCellValue(monetarySheet, fmt.Sprintf("B%d", row), number(p.TotalValue))
		_ = f.SetCellValue(monetarySheet, fmt.Sprintf("C%d", row), number(p.Savings))
	}

	_ = f.SetCellValue(excludedSheet, "A1", "Series")
	_ = f.SetCellValue(excludedSheet, "B1", "Record")
	_ = f.SetCellValue(excludedSheet, "C1", "Account")
	_ = f.SetCellValue(excludedSheet, "D1", "Month")
	_ = f.SetCellValue(excludedSheet, "E1", "Field")
	_ = f.SetCellValue(excludedSheet, "F1", "Reason")
	row := 2
	for _, group := range []struct {
		name string
		list []dashboard.Exclusion
	}{{"energy", v.EnergyExcluded}, {"monetary", v.MonetaryExcluded}} {
		for _, e := range group.list {
			_ = f.SetCellValue(excludedSheet, fmt.Sprintf("A%d", row), group.name)
			_ = f.SetCellValue(excludedSheet, fmt.Sprintf("B%d", row), e.Index)
			_ = f.SetCellValue(excludedSheet, fmt.Sprintf("C%d", row), e.AccountID)
			_ = f.SetCellValue(excludedSheet, fmt.Sprintf("D%d", row), e.BillingMonth)
			_ = f.SetCellValue(excludedSheet, fmt.Sprintf("E%d", row), e.Field)
			_ = f.SetCellValue(excludedSheet, fmt.Sprintf("F%d", row), e.Reason)
			row++
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// number converts for the spreadsheet cell only; all arithmetic is done on
// decimals before this point.
func number(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}
