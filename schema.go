// Copyright (c) 2026 The gopql Authors. All rights reserved.

package gopql

import (
	"strings"
)

// Schema answers whether a column reference exists in a data model.
type Schema interface {
	HasColumn(ref string) bool
}

type acceptAnySchema struct{}

func (acceptAnySchema) HasColumn(string) bool { return true }

// AcceptAnySchema accepts every column reference.
var AcceptAnySchema Schema = acceptAnySchema{}

// Table is one table of a data model.
type Table struct {
	Name    string   `json:"name"`
	Alias   string   `json:"alias,omitempty"`
	Columns []Column `json:"columns"`
}

// StaticSchema is a fixed set of tables. References match "TABLE"."COLUMN"
// (quoted or not, by table name or alias, case-insensitive) or a bare column
// name that occurs in exactly one table.
type StaticSchema struct {
	tables  map[string]map[string]struct{}
	columns map[string]int
}

// NewStaticSchema indexes tables for lookups.
func NewStaticSchema(tables []Table) *StaticSchema {
	s := &StaticSchema{
		tables:  make(map[string]map[string]struct{}),
		columns: make(map[string]int),
	}
	for _, t := range tables {
		cols := make(map[string]struct{}, len(t.Columns))
		for _, c := range t.Columns {
			name := strings.ToUpper(c.Name)
			cols[name] = struct{}{}
			s.columns[name]++
		}
		for _, key := range []string{t.Name, t.Alias} {
			if key == "" {
				continue
			}
			key = strings.ToUpper(key)
			merged, ok := s.tables[key]
			if !ok {
				merged = make(map[string]struct{}, len(cols))
				s.tables[key] = merged
			}
			for c := range cols {
				merged[c] = struct{}{}
			}
		}
	}
	return s
}

// HasColumn implements Schema.
func (s *StaticSchema) HasColumn(ref string) bool {
	segments := splitIdentifier(ref)
	switch len(segments) {
	case 1:
		return s.columns[strings.ToUpper(segments[0])] == 1
	case 2:
		cols, ok := s.tables[strings.ToUpper(segments[0])]
		if !ok {
			return false
		}
		_, ok = cols[strings.ToUpper(segments[1])]
		return ok
	default:
		return false
	}
}

// splitIdentifier splits a dotted reference into unquoted segments.
func splitIdentifier(ref string) []string {
	parts, err := splitTopLevel(strings.TrimSpace(ref), '.')
	if err != nil {
		return nil
	}
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = unquoteIdentifier(strings.TrimSpace(p))
	}
	return out
}
