// Package pipeline turns an uploaded transaction export into the
// normalized dataset, segments, filtered views and aggregates served by
// the dashboard.
package pipeline

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/gocarina/gocsv"
	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"

	"rareport/internal/core"
)

// Record is one raw data row as read from the file.
type Record struct {
	TransactionID string `csv:"transaction_id"`
	CreatedAt     string `csv:"created_at"`
	Amount        string `csv:"amount"`
	Status        string `csv:"statut"`
	Operation     string `csv:"operation_origin"`
	Country       string `csv:"country"`
	Provider      string `csv:"provider_name"`
	Operator      string `csv:"operator"`
	Merchant      string `csv:"merchant_name"`

	// Line is the 1-based data row index in the source file.
	Line int `csv:"-"`
}

// Table is the raw parsed file: its header and rows in file order.
type Table struct {
	Header  []string
	Columns map[string]bool
	Records []Record
}

// Has reports whether the header contained col.
func (t *Table) Has(col string) bool {
	return t != nil && t.Columns[col]
}

// headerReader records the header row handed to gocsv and strips a
// leading byte order mark from the first column name.
type headerReader struct {
	r      *csv.Reader
	header []string
}

func (h *headerReader) Read() ([]string, error) {
	row, err := h.r.Read()
	if err != nil {
		return nil, err
	}
	if h.header == nil {
		row = cleanHeader(row)
		h.header = row
	}
	return row, nil
}

func (h *headerReader) ReadAll() ([][]string, error) {
	rows, err := h.r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 && h.header == nil {
		rows[0] = cleanHeader(rows[0])
		h.header = rows[0]
	}
	return rows, nil
}

func cleanHeader(row []string) []string {
	out := make([]string, len(row))
	for i, name := range row {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
			// BOM bytes decoded as Latin-1
			name = strings.TrimPrefix(name, "\u00ef\u00bb\u00bf")
		}
		out[i] = strings.TrimSpace(name)
	}
	return out
}

// Ingest decodes r with enc and parses it as comma-separated text with a
// header row. It performs no column validation. Any decode or parse
// failure is reported as *core.MalformedInputError and no partial table is
// returned.
func Ingest(r io.Reader, enc encoding.Encoding) (*Table, error) {
	if enc == nil {
		enc = encoding.Nop
	}
	cr := csv.NewReader(transform.NewReader(r, enc.NewDecoder()))
	cr.LazyQuotes = true
	hr := &headerReader{r: cr}

	var records []Record
	if err := gocsv.UnmarshalCSV(hr, &records); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			err = core.ErrEmptyInput
		}
		return nil, &core.MalformedInputError{Err: err}
	}
	if len(hr.header) == 0 {
		return nil, &core.MalformedInputError{Err: core.ErrEmptyInput}
	}

	cols := make(map[string]bool, len(hr.header))
	for _, name := range hr.header {
		cols[name] = true
	}
	for i := range records {
		records[i].Line = i + 1
	}
	return &Table{Header: hr.header, Columns: cols, Records: records}, nil
}
