package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// PaymentRow is one line of a payment-journal export.
type PaymentRow struct {
	Date      string
	Amount    string
	Method    string
	Category  string
	Reference string
}

// PaymentsCSVExporter renders a ledger's journal as CSV.
type PaymentsCSVExporter struct{}

// NewPaymentsCSVExporter builds a CSV exporter.
func NewPaymentsCSVExporter() *PaymentsCSVExporter {
	return &PaymentsCSVExporter{}
}

// Render produces CSV encoded bytes for the journal.
func (e *PaymentsCSVExporter) Render(rows []PaymentRow) ([]byte, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write([]string{"date", "amount", "method", "category", "reference"}); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, row := range rows {
		if err := writer.Write([]string{row.Date, row.Amount, row.Method, row.Category, row.Reference}); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
