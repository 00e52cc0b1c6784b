package table

import (
	"archive/zip"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// Frame is a small in-memory tabular structure: ordered column names and
// string-valued rows. It is the interchange form between CSV files, the W3C
// export format and the modifier pipeline.
type Frame struct {
	Columns []string
	Records [][]string
}

// NewFrame creates a frame with the given columns and no records.
func NewFrame(columns ...string) *Frame {
	return &Frame{Columns: append([]string(nil), columns...)}
}

// Append adds a record. The record must have one value per column.
func (f *Frame) Append(record ...string) error {
	if len(record) != len(f.Columns) {
		return fmt.Errorf("record has %d values, frame has %d columns", len(record), len(f.Columns))
	}
	f.Records = append(f.Records, append([]string(nil), record...))
	return nil
}

// Len returns the number of records.
func (f *Frame) Len() int { return len(f.Records) }

// ColumnIndex returns the position of the named column, or -1.
func (f *Frame) ColumnIndex(name string) int {
	for i, c := range f.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the named column exists.
func (f *Frame) HasColumn(name string) bool { return f.ColumnIndex(name) >= 0 }

// Column returns all values of the named column.
func (f *Frame) Column(name string) ([]string, error) {
	idx := f.ColumnIndex(name)
	if idx < 0 {
		return nil, fmt.Errorf("column %q does not exist", name)
	}
	values := make([]string, len(f.Records))
	for i, rec := range f.Records {
		values[i] = rec[idx]
	}
	return values, nil
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	out := &Frame{Columns: append([]string(nil), f.Columns...)}
	out.Records = make([][]string, len(f.Records))
	for i, rec := range f.Records {
		out.Records[i] = append([]string(nil), rec...)
	}
	return out
}

// ReadCSV parses CSV data with a header row into a frame.
func ReadCSV(r io.Reader) (*Frame, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csv input is empty")
	}
	f := NewFrame(records[0]...)
	for i, rec := range records[1:] {
		if len(rec) != len(f.Columns) {
			return nil, fmt.Errorf("csv row %d has %d fields, header has %d", i+1, len(rec), len(f.Columns))
		}
		f.Records = append(f.Records, rec)
	}
	return f, nil
}

// ReadCSVFile reads a CSV file into a frame.
func ReadCSVFile(path string) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer file.Close()
	return ReadCSV(file)
}

// WriteCSV writes the frame as CSV with a header row.
func (f *Frame) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(f.Columns); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, rec := range f.Records {
		if err := writer.Write(rec); err != nil {
			return fmt.Errorf("writing csv row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteCSVFile writes the frame to a CSV file.
func (f *Frame) WriteCSVFile(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := f.WriteCSV(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// WriteCSVZip writes the frame as a single CSV entry inside a zip archive.
// The entry name is the base name the backend expects on upload.
func (f *Frame) WriteCSVZip(w io.Writer, entryName string) error {
	if entryName == "" {
		entryName = "data.csv"
	}
	zw := zip.NewWriter(w)
	entry, err := zw.Create(entryName)
	if err != nil {
		return fmt.Errorf("creating zip entry: %w", err)
	}
	if err := f.WriteCSV(entry); err != nil {
		return err
	}
	return zw.Close()
}

// CSVBytes renders the frame to an in-memory CSV document.
func (f *Frame) CSVBytes() ([]byte, error) {
	var sb strings.Builder
	if err := f.WriteCSV(&sb); err != nil {
		return nil, err
	}
	return []byte(sb.String()), nil
}

// FromTable flattens a JSON table into a frame of cell labels. When
// withMetadata is true, a "<column> metadata" column is appended for every
// column that has at least one annotated cell, summarizing the top candidate.
func FromTable(t *Table, withMetadata bool) *Frame {
	names := t.ColumnNames()
	annotated := map[string]bool{}
	if withMetadata {
		for _, row := range t.Rows {
			for name, cell := range row.Cells {
				if len(cell.Metadata) > 0 {
					annotated[name] = true
				}
			}
		}
	}

	columns := append([]string(nil), names...)
	for _, name := range names {
		if annotated[name] {
			columns = append(columns, name+" metadata")
		}
	}

	f := NewFrame(columns...)
	for _, rowID := range t.RowIDs() {
		row := t.Rows[rowID]
		rec := make([]string, 0, len(columns))
		for _, name := range names {
			if cell, ok := row.Cells[name]; ok {
				rec = append(rec, cell.Label)
			} else {
				rec = append(rec, "")
			}
		}
		for _, name := range names {
			if !annotated[name] {
				continue
			}
			rec = append(rec, summarizeCell(row.Cells[name]))
		}
		f.Records = append(f.Records, rec)
	}
	return f
}

// summarizeCell renders the first entity candidate of a cell as a short
// "name (id, score)" string.
func summarizeCell(cell *Cell) string {
	if cell == nil || len(cell.Metadata) == 0 {
		return ""
	}
	meta := cell.Metadata[0]
	name := meta.Name.Value
	if name == "" {
		name = meta.ID
	}
	return fmt.Sprintf("%s (%s, %.2f)", name, meta.ID, meta.Score)
}
