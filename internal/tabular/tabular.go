// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package tabular turns an uploaded participant list (CSV, XLSX or XLS)
// into normalized row records keyed by column name.
package tabular

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

var (
	// ErrUnsupportedFormat is returned for uploads that are not CSV or Excel.
	ErrUnsupportedFormat = errors.New("unsupported file format: use CSV or Excel (.xlsx/.xls)")

	// ErrEmptyDataset is returned when no usable rows remain after cleaning.
	ErrEmptyDataset = errors.New("file does not contain any valid rows")
)

// Record is one participant row. Every column is present under its
// lower-cased trimmed name, and also under its original name when the two
// differ.
type Record map[string]string

// Parse dispatches on the file extension, parses the header row plus data
// rows, and normalizes the result.
func Parse(data []byte, filename string) ([]Record, error) {
	var (
		rows []rawRow
		err  error
	)

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		rows, err = parseCSV(data)
	case ".xlsx":
		rows, err = parseXLSX(data)
	case ".xls":
		rows, err = parseXLS(data)
	default:
		return nil, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}

	records := clean(rows)
	if len(records) == 0 {
		return nil, ErrEmptyDataset
	}
	return records, nil
}

// rawRow is a parsed row before normalization. Cells are kept in header
// order so normalization is deterministic when two headers collide.
type rawRow []cell

type cell struct {
	key   string
	value string
}

// fromTable zips a header row with data rows. Columns without a header are
// dropped, as are cells the row does not have. With skipEmpty, blank cells
// are dropped too, so a placeholder for them stays unresolved.
func fromTable(table [][]string, skipEmpty bool) []rawRow {
	if len(table) == 0 {
		return nil
	}
	header := table[0]
	rows := make([]rawRow, 0, len(table)-1)
	for _, line := range table[1:] {
		var row rawRow
		for i, value := range line {
			if i >= len(header) || strings.TrimSpace(header[i]) == "" {
				continue
			}
			if skipEmpty && strings.TrimSpace(value) == "" {
				continue
			}
			row = append(row, cell{key: header[i], value: value})
		}
		rows = append(rows, row)
	}
	return rows
}

// clean drops rows without any cell and builds the normalized records.
func clean(rows []rawRow) []Record {
	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		rec := make(Record, len(row)*2)
		for _, c := range row {
			value := strings.TrimSpace(c.value)
			cleanKey := strings.ToLower(strings.TrimSpace(c.key))
			rec[cleanKey] = value
			if cleanKey != c.key {
				rec[c.key] = value
			}
		}
		records = append(records, rec)
	}
	return records
}

// NewRecord normalizes an ad-hoc set of fields the way spreadsheet rows are
// normalized: blank keys and blank values are left out.
func NewRecord(fields map[string]string) Record {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	row := make(rawRow, 0, len(keys))
	for _, k := range keys {
		if strings.TrimSpace(k) != "" && strings.TrimSpace(fields[k]) != "" {
			row = append(row, cell{key: k, value: fields[k]})
		}
	}
	if recs := clean([]rawRow{row}); len(recs) == 1 {
		return recs[0]
	}
	return Record{}
}

// Columns returns the sorted normalized column names of a record set.
func Columns(records []Record) []string {
	var cols []string
	seen := make(map[string]bool)
	for _, rec := range records {
		for k := range rec {
			if k != strings.ToLower(strings.TrimSpace(k)) || seen[k] {
				continue
			}
			seen[k] = true
			cols = append(cols, k)
		}
	}
	slices.Sort(cols)
	return cols
}
