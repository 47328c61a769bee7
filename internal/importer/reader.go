package importer

// reader.go turns an uploaded file into a Table.
//
// CSV is the default. Uploads detected as XLSX (by content or by a .xlsx
// name) are read from their first worksheet. CSV input must be UTF-8; a
// leading byte order mark is dropped.

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/xuri/excelize/v2"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// RequiredColumns lists the header columns every import file must carry.
var RequiredColumns = []string{
	"name",
	"company",
	"title",
	"email",
	"phone",
	"tags",
	"note",
	"last_interacted_at",
}

// CustomPrefix marks header columns that map to custom fields.
const CustomPrefix = "custom."

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Table is a header plus data rows. Rows may be ragged.
type Table struct {
	Header []string
	Rows   [][]string
	index  map[string]int
}

// NewTable builds a table and indexes its header. When a column name
// repeats, the last occurrence wins.
func NewTable(header []string, rows [][]string) *Table {
	index := make(map[string]int, len(header))
	for i, col := range header {
		index[col] = i
	}
	return &Table{Header: header, Rows: rows, index: index}
}

// Cell returns the value of column in row. The second result is false when
// the column is not in the header or the row is too short to reach it.
func (t *Table) Cell(row []string, column string) (string, bool) {
	pos, ok := t.index[column]
	if !ok || pos >= len(row) {
		return "", false
	}
	return row[pos], true
}

// Aligned returns row reshaped to the header: one value per header column,
// blank where the row has no value.
func (t *Table) Aligned(row []string) []string {
	out := make([]string, len(t.Header))
	for i, col := range t.Header {
		out[i], _ = t.Cell(row, col)
	}
	return out
}

// CustomColumns returns the header columns that map to custom fields, in
// header order.
func (t *Table) CustomColumns() []string {
	var cols []string
	for _, col := range t.Header {
		if strings.HasPrefix(col, CustomPrefix) {
			cols = append(cols, col)
		}
	}
	return cols
}

// ReadTable parses an upload into a Table and checks the required columns.
func ReadTable(name string, data []byte) (*Table, error) {
	var (
		records [][]string
		err     error
	)
	if isXLSX(name, data) {
		records, err = readXLSX(data)
	} else {
		records, err = readCSV(data)
	}
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fileError(ErrNoHeader, "%s", ErrNoHeader.Error())
	}

	table := NewTable(records[0], records[1:])
	if err := checkHeader(table.Header); err != nil {
		return nil, err
	}
	return table, nil
}

func isXLSX(name string, data []byte) bool {
	if strings.EqualFold(filepath.Ext(name), ".xlsx") {
		return true
	}
	return mimetype.Detect(data).Is(xlsxMIME)
}

func readCSV(data []byte) ([][]string, error) {
	if !utf8.Valid(data) {
		return nil, fileError(ErrNotUTF8, "%s", ErrNotUTF8.Error())
	}

	r := csv.NewReader(skipBOM(bytes.NewReader(data)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fileError(ErrUnsupportedFile, "CSV file could not be parsed: %v", err)
	}
	return records, nil
}

// skipBOM drops a UTF-8 byte order mark at the start of r, if present.
func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}

func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fileError(ErrUnsupportedFile, "Spreadsheet could not be opened: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fileError(ErrNoHeader, "%s", ErrNoHeader.Error())
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fileError(ErrUnsupportedFile, "Spreadsheet could not be read: %v", err)
	}

	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		if isBlankRow(row) {
			continue
		}
		records = append(records, row)
	}
	return records, nil
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if cell != "" {
			return false
		}
	}
	return true
}

func checkHeader(header []string) error {
	var missing []string
	for _, col := range RequiredColumns {
		if !slices.Contains(header, col) {
			missing = append(missing, col)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	slices.Sort(missing)
	return fileError(ErrMissingColumns, "Missing required columns: %s", strings.Join(missing, ", "))
}
