package board

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

var (
	// ErrMissingColumn is returned when a required column is absent from the export header
	ErrMissingColumn = errors.New("missing column")
	// ErrDuplicateID is returned when two rows of an export share an ID
	ErrDuplicateID = errors.New("duplicate item id")
)

// Row is one export row reduced to the columns the pipeline uses
type Row struct {
	ID    string
	Text  string
	Color string
	X     float64
	Y     float64
	Line  int // 1-based line in the source, header is line 1
}

// ParseExportFile reads and parses a board export CSV file
func ParseExportFile(path string, cols ColumnConfig) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening export: %w", err)
	}
	defer f.Close()

	rows, err := ParseExport(f, cols)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}

// ParseExportBytes parses an in-memory board export
func ParseExportBytes(data []byte, cols ColumnConfig) ([]Row, error) {
	return ParseExport(bytes.NewReader(data), cols)
}

// ParseExport parses a board export in CSV form. The first record is the
// header; columns not named in cols are dropped.
func ParseExport(r io.Reader, cols ColumnConfig) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	idx, err := columnIndexes(header, cols)
	if err != nil {
		return nil, err
	}

	var rows []Row
	seen := make(map[string]int)

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading export: %w", err)
		}
		line, _ := reader.FieldPos(0)
		if isBlankRecord(record) {
			continue
		}

		row := Row{
			ID:    field(record, idx.id),
			Text:  field(record, idx.text),
			Color: field(record, idx.color),
			Line:  line,
		}

		if row.ID == "" {
			return nil, fmt.Errorf("line %d: empty %s", line, cols.ID)
		}
		if prev, dup := seen[row.ID]; dup {
			return nil, fmt.Errorf("line %d: %w %q (first seen on line %d)", line, ErrDuplicateID, row.ID, prev)
		}
		seen[row.ID] = line

		if row.X, err = parseCoordinate(field(record, idx.x)); err != nil {
			return nil, fmt.Errorf("line %d: %s: %w", line, cols.X, err)
		}
		if row.Y, err = parseCoordinate(field(record, idx.y)); err != nil {
			return nil, fmt.Errorf("line %d: %s: %w", line, cols.Y, err)
		}

		rows = append(rows, row)
	}

	return rows, nil
}

type columnIndex struct {
	id, text, color, x, y int
}

// columnIndexes locates the configured columns in the header. The text
// column is optional; every other column is required.
func columnIndexes(header []string, cols ColumnConfig) (columnIndex, error) {
	positions := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, dup := positions[name]; !dup {
			positions[name] = i
		}
	}

	lookup := func(name string, required bool) (int, error) {
		if i, ok := positions[name]; ok {
			return i, nil
		}
		if required {
			return -1, fmt.Errorf("%w: %q", ErrMissingColumn, name)
		}
		return -1, nil
	}

	var idx columnIndex
	var err error
	if idx.id, err = lookup(cols.ID, true); err != nil {
		return idx, err
	}
	if idx.text, err = lookup(cols.Text, false); err != nil {
		return idx, err
	}
	if idx.color, err = lookup(cols.Color, true); err != nil {
		return idx, err
	}
	if idx.x, err = lookup(cols.X, true); err != nil {
		return idx, err
	}
	if idx.y, err = lookup(cols.Y, true); err != nil {
		return idx, err
	}
	return idx, nil
}

func field(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func isBlankRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func parseCoordinate(s string) (float64, error) {
	if s == "" {
		return 0, fmt.Errorf("missing coordinate")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid coordinate %q", s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite coordinate %q", s)
	}
	return v, nil
}
