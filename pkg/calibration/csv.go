package calibration

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// ReadCSV parses calibration records from CSV. The first row is the header;
// its first column holds the record label and every other column a numeric
// field. A cell that is not a number is stored as NaN so the record fails at
// evaluation time while its neighbours still load. Non-empty labels must be
// unique.
func ReadCSV(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("calibration input is empty")
		}
		return nil, fmt.Errorf("failed to read calibration header: %w", err)
	}
	names, err := parseHeader(header)
	if err != nil {
		return nil, err
	}

	var records []Record
	labels := make(map[string]int)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read calibration record: %w", err)
		}
		if isBlank(row) {
			continue
		}
		line, _ := reader.FieldPos(0)
		if len(row) != len(header) {
			return nil, fmt.Errorf("calibration line %d has %d cells, expected %d", line, len(row), len(header))
		}

		label := strings.TrimSpace(row[0])
		if label != "" {
			if first, ok := labels[label]; ok {
				return nil, fmt.Errorf("calibration line %d repeats label %q of line %d", line, label, first)
			}
			labels[label] = line
		}

		fields := make(map[string]float64, len(names))
		for i, name := range names {
			fields[name] = parseCell(row[i+1])
		}
		records = append(records, Record{
			Index:  len(records),
			Label:  label,
			Fields: fields,
		})
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("calibration input has no records")
	}
	return records, nil
}

// LoadFile reads calibration records from a CSV file on disk.
func LoadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open calibration file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	return ReadCSV(f)
}

func parseHeader(header []string) ([]string, error) {
	if len(header) < 2 {
		return nil, fmt.Errorf("calibration header needs a label column and at least one field")
	}
	names := make([]string, 0, len(header)-1)
	seen := make(map[string]bool, len(header))
	for i, raw := range header[1:] {
		name := strings.TrimSpace(raw)
		if name == "" {
			return nil, fmt.Errorf("calibration header column %d is empty", i+2)
		}
		if seen[name] {
			return nil, fmt.Errorf("calibration header repeats column %q", name)
		}
		seen[name] = true
		names = append(names, name)
	}
	return names, nil
}

func parseCell(raw string) float64 {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return math.NaN()
	}
	return value
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
