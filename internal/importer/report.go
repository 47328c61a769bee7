package importer

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// ReportCSV renders the outcome as CSV: the upload's header columns followed
// by status and message, one line per data row in file order.
func (o *Outcome) ReportCSV() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := make([]string, 0, len(o.Header)+2)
	header = append(header, o.Header...)
	header = append(header, "status", "message")
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write report header: %w", err)
	}

	for _, entry := range o.Entries {
		record := make([]string, 0, len(header))
		record = append(record, entry.Original...)
		for len(record) < len(o.Header) {
			record = append(record, "")
		}
		record = append(record, string(entry.Status), entry.Message)
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write report row %d: %w", entry.Row, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush report: %w", err)
	}
	return buf.Bytes(), nil
}
