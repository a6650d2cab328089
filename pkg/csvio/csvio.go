// Package csvio reads and writes the spreadsheet-friendly CSV dialect shared by
// the facility export, the admin import endpoint and the dedup backups: every
// field double-quoted, embedded quotes doubled, UTF-8 with a leading BOM.
package csvio

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// BOM is the UTF-8 byte-order mark spreadsheet applications expect
const BOM = "\uFEFF"

// Writer writes always-quoted CSV rows
type Writer struct {
	w      *bufio.Writer
	rowBuf strings.Builder
}

// NewWriter returns a Writer. When withBOM is set the mark is written immediately.
func NewWriter(w io.Writer, withBOM bool) (*Writer, error) {
	bw := bufio.NewWriter(w)
	if withBOM {
		if _, err := bw.WriteString(BOM); err != nil {
			return nil, err
		}
	}
	return &Writer{w: bw}, nil
}

// Write writes one row
func (w *Writer) Write(fields []string) error {
	w.rowBuf.Reset()
	for i, field := range fields {
		if i > 0 {
			w.rowBuf.WriteByte(',')
		}
		w.rowBuf.WriteString(Quote(field))
	}
	w.rowBuf.WriteByte('\n')
	_, err := w.w.WriteString(w.rowBuf.String())
	return err
}

// Flush writes buffered rows to the underlying writer
func (w *Writer) Flush() error {
	return w.w.Flush()
}

// Quote wraps a field in double quotes, doubling embedded quotes
func Quote(field string) string {
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}

// Row is one parsed record with its 1-based line number in the input
type Row struct {
	Line   int
	Fields []string
}

// Reader reads quote-aware CSV, tolerating a leading BOM and ragged rows
type Reader struct {
	r *csv.Reader
}

// NewReader returns a Reader over r
func NewReader(r io.Reader) *Reader {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(BOM)); err == nil && bytes.Equal(head, []byte(BOM)) {
		_, _ = br.Discard(len(BOM))
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = false
	return &Reader{r: cr}
}

// Read returns the next row, skipping blank lines. It returns io.EOF at the end.
func (r *Reader) Read() (*Row, error) {
	for {
		fields, err := r.r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("malformed csv: %w", err)
		}
		line, _ := r.r.FieldPos(0)
		if isBlank(fields) {
			continue
		}
		return &Row{Line: line, Fields: fields}, nil
	}
}

// ReadAll reads every remaining row
func (r *Reader) ReadAll() ([]*Row, error) {
	var rows []*Row
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return rows, err
		}
		rows = append(rows, row)
	}
}

func isBlank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
