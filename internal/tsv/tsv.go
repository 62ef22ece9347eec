// Package tsv reads the tab-separated value files that make up both the
// configuration tables (table, column, datatype, rule) and the data tables
// being loaded. All reads go through an afero.Fs so that callers can
// substitute an in-memory filesystem in tests.
package tsv

import (
	"encoding/csv"
	"io"

	"github.com/pjtatlow/terminus/internal/errs"
	"github.com/spf13/afero"
)

// Row is a single TSV data row keyed by column name, preserving the header
// order of the file it was read from.
type Row struct {
	Columns []string
	Values  map[string]string
}

// Get returns the row's value for column, or "" if the column is absent.
func (r Row) Get(column string) string {
	return r.Values[column]
}

// ReadAll reads every row of the TSV file at path. Fields are split on
// tabs by encoding/csv with LazyQuotes set, so quoting is not disabled: a
// field that begins with a double quote is read as a quoted field (the
// enclosing quotes are dropped and the field may span tabs and newlines);
// quotes elsewhere in a field are kept. Rows may have fewer or more fields
// than the header; missing trailing columns are absent from Values and
// extra fields are ignored. It fails with a TSVReadError if the file cannot be opened, has no header,
// or contains no data rows.
func ReadAll(fs afero.Fs, path string) ([]Row, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, errs.NewTSVReadError(path, "could not open file: %v", err)
	}
	defer f.Close()

	header, rows, err := readRecords(f)
	if err != nil {
		return nil, errs.NewTSVReadError(path, "%v", err)
	}
	if len(rows) < 1 {
		return nil, errs.NewTSVReadError(path, "no rows in file")
	}

	out := make([]Row, len(rows))
	for i, rec := range rows {
		values := make(map[string]string, len(header))
		for j, col := range header {
			if j < len(rec) {
				values[col] = rec[j]
			}
		}
		out[i] = Row{Columns: header, Values: values}
	}
	return out, nil
}

func readRecords(r io.Reader) ([]string, [][]string, error) {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil, errs.NewConfigError("no header row")
	}
	if err != nil {
		return nil, nil, err
	}

	var rows [][]string
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		rows = append(rows, rec)
	}
	return header, rows, nil
}

// Writer writes rows as tab-separated records in a fixed column order.
// Only this package's tests use it; the loader does not write rows back
// to their source files.
type Writer struct {
	w       *csv.Writer
	columns []string
}

// NewWriter wraps w as a tab-delimited writer for the given column order.
func NewWriter(w io.Writer, columns []string) *Writer {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	cw.UseCRLF = false
	return &Writer{w: cw, columns: columns}
}

// WriteHeader writes the column names as the first record.
func (tw *Writer) WriteHeader() error {
	return tw.w.Write(tw.columns)
}

// WriteRow writes a single row, looking up each configured column in
// values; missing columns are written as empty fields.
func (tw *Writer) WriteRow(values map[string]string) error {
	rec := make([]string, len(tw.columns))
	for i, col := range tw.columns {
		rec[i] = values[col]
	}
	return tw.w.Write(rec)
}

// Flush flushes buffered output and returns the first error encountered.
func (tw *Writer) Flush() error {
	tw.w.Flush()
	return tw.w.Error()
}
