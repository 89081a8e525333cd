// Copyright (c) 2026 The gopql Authors. All rights reserved.

package gopql

import (
	"fmt"
	"strings"
)

// ResultSet is a materialised query result: ordered columns and rows of
// values aligned to them. A ResultSet returned to a caller is never modified
// by the executor; accessors hand out copies.
type ResultSet struct {
	columns []Column
	rows    [][]any
}

// NewResultSet builds a ResultSet from columns and rows. Both are copied.
func NewResultSet(columns []Column, rows [][]any) (*ResultSet, error) {
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("row %d has %d values, want %d", i, len(row), len(columns))
		}
	}
	return &ResultSet{columns: copyColumns(columns), rows: copyRows(rows)}, nil
}

func newResultSetNoCopy(columns []Column, rows [][]any) *ResultSet {
	return &ResultSet{columns: columns, rows: rows}
}

// Columns returns a copy of the column metadata.
func (rs *ResultSet) Columns() []Column {
	return copyColumns(rs.columns)
}

// ColumnNames returns the column names in order.
func (rs *ResultSet) ColumnNames() []string {
	names := make([]string, len(rs.columns))
	for i, c := range rs.columns {
		names[i] = c.Name
	}
	return names
}

// ColumnIndex returns the position of the named column, or -1.
func (rs *ResultSet) ColumnIndex(name string) int {
	for i, c := range rs.columns {
		if c.Name == name {
			return i
		}
	}
	for i, c := range rs.columns {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

// Len returns the number of rows.
func (rs *ResultSet) Len() int {
	return len(rs.rows)
}

// Rows returns a copy of all rows.
func (rs *ResultSet) Rows() [][]any {
	return copyRows(rs.rows)
}

// Row returns a copy of row i.
func (rs *ResultSet) Row(i int) []any {
	row := make([]any, len(rs.rows[i]))
	copy(row, rs.rows[i])
	return row
}

// Value returns the value at row i, column j.
func (rs *ResultSet) Value(i, j int) any {
	return rs.rows[i][j]
}

// Records returns every row as a column name keyed map.
func (rs *ResultSet) Records() []map[string]any {
	out := make([]map[string]any, len(rs.rows))
	for i, row := range rs.rows {
		rec := make(map[string]any, len(rs.columns))
		for j, c := range rs.columns {
			rec[c.Name] = row[j]
		}
		out[i] = rec
	}
	return out
}

func copyColumns(in []Column) []Column {
	out := make([]Column, len(in))
	copy(out, in)
	return out
}

func copyRows(in [][]any) [][]any {
	out := make([][]any, len(in))
	for i, row := range in {
		r := make([]any, len(row))
		copy(r, row)
		out[i] = r
	}
	return out
}

// mergeColumns keeps the first non-empty column list and fills unknown types
// from later pages.
func mergeColumns(current, page []Column) []Column {
	if len(current) == 0 {
		return copyColumns(page)
	}
	if len(page) != len(current) {
		return current
	}
	for i := range current {
		if current[i].Type == ColumnTypeUnknown && page[i].Type != ColumnTypeUnknown {
			current[i].Type = page[i].Type
		}
	}
	return current
}
