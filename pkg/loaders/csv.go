package loaders

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/df07/go-stochastic-viz/pkg/core"
	"github.com/df07/go-stochastic-viz/pkg/object"
)

// LabelColumn names the CSV column read as per-row labels instead of values
const LabelColumn = "label"

// LoadTable reads a CSV table file
func LoadTable(filename string) (*object.TableObject, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open table file: %w", err)
	}
	defer file.Close()

	table, err := ReadTable(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return table, nil
}

// ReadTable parses CSV with a header row. Every column must be numeric
// except an optional label column. Lines starting with # are skipped.
func ReadTable(r io.Reader) (*object.TableObject, error) {
	reader := csv.NewReader(r)
	reader.Comment = '#'
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty table: %w", core.ErrInputMismatch)
		}
		return nil, fmt.Errorf("failed to read table header: %w", err)
	}

	labelIndex := -1
	columns := make([][]float64, len(header))
	var labels []string
	for i, h := range header {
		header[i] = strings.TrimSpace(h)
		if strings.EqualFold(header[i], LabelColumn) && labelIndex < 0 {
			labelIndex = i
		}
	}

	for row := 1; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read table row %d: %v: %w", row, err, core.ErrInputMismatch)
		}
		for i, field := range record {
			if i == labelIndex {
				labels = append(labels, field)
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %v: %w", row, header[i], err, core.ErrInputMismatch)
			}
			columns[i] = append(columns[i], v)
		}
	}

	table := object.NewTableObject()
	for i, h := range header {
		if i == labelIndex {
			continue
		}
		if columns[i] == nil {
			columns[i] = []float64{}
		}
		if err := table.AddColumn(h, columns[i]); err != nil {
			return nil, err
		}
	}
	if labels != nil {
		table.SetLabels(labels)
	}
	return table, nil
}

// WriteTable writes a table as CSV with a header row. Labels, when set,
// are written as a trailing label column.
func WriteTable(w io.Writer, table *object.TableObject) error {
	writer := csv.NewWriter(w)
	labels := table.Labels()
	if len(labels) != table.NumRows() {
		labels = nil
	}

	header := make([]string, 0, table.NumColumns()+1)
	for i := 0; i < table.NumColumns(); i++ {
		header = append(header, table.Column(i).Label)
	}
	if labels != nil {
		header = append(header, LabelColumn)
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	record := make([]string, len(header))
	for r := 0; r < table.NumRows(); r++ {
		for i := 0; i < table.NumColumns(); i++ {
			record[i] = strconv.FormatFloat(table.Column(i).Values[r], 'g', -1, 64)
		}
		if labels != nil {
			record[len(record)-1] = labels[r]
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
