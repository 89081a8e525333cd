// Copyright (c) 2026 The gopql Authors. All rights reserved.

package gopql

// ClauseKind identifies a clause variant. The declaration order is the
// canonical order in which clauses are compiled.
type ClauseKind int

const (
	// SelectKind is a select item.
	SelectKind ClauseKind = iota
	// FilterKind is a filter predicate.
	FilterKind
	// GroupByKind is a group by column list.
	GroupByKind
	// HavingKind is a predicate over grouped rows.
	HavingKind
	// OrderByKind is one sort key.
	OrderByKind
	// LimitKind caps the number of rows.
	LimitKind
	// OffsetKind skips leading rows.
	OffsetKind
)

func (k ClauseKind) String() string {
	switch k {
	case SelectKind:
		return "SELECT"
	case FilterKind:
		return "FILTER"
	case GroupByKind:
		return "GROUP BY"
	case HavingKind:
		return "HAVING"
	case OrderByKind:
		return "ORDER BY"
	case LimitKind:
		return "LIMIT"
	case OffsetKind:
		return "OFFSET"
	default:
		return "UNKNOWN"
	}
}

// Clause is one immutable fragment of a Query.
type Clause interface {
	Kind() ClauseKind
}

// SelectClause selects an expression, optionally under an alias.
type SelectClause struct {
	Expression string
	Alias      string
}

// Kind implements Clause.
func (SelectClause) Kind() ClauseKind { return SelectKind }

// FilterClause restricts rows to those matching Predicate.
type FilterClause struct {
	Predicate string
}

// Kind implements Clause.
func (FilterClause) Kind() ClauseKind { return FilterKind }

// GroupByClause groups rows by Columns.
type GroupByClause struct {
	Columns []string
}

// Kind implements Clause.
func (GroupByClause) Kind() ClauseKind { return GroupByKind }

// HavingClause restricts groups to those matching Predicate.
type HavingClause struct {
	Predicate string
}

// Kind implements Clause.
func (HavingClause) Kind() ClauseKind { return HavingKind }

// OrderByClause is one sort key.
type OrderByClause struct {
	Column    string
	Ascending bool
}

// Kind implements Clause.
func (OrderByClause) Kind() ClauseKind { return OrderByKind }

// LimitClause caps the number of returned rows at N.
type LimitClause struct {
	N int
}

// Kind implements Clause.
func (LimitClause) Kind() ClauseKind { return LimitKind }

// OffsetClause skips the first N rows.
type OffsetClause struct {
	N int
}

// Kind implements Clause.
func (OffsetClause) Kind() ClauseKind { return OffsetKind }

// copyClause returns c with any slice storage duplicated.
func copyClause(c Clause) Clause {
	if g, ok := c.(GroupByClause); ok {
		cols := make([]string, len(g.Columns))
		copy(cols, g.Columns)
		return GroupByClause{Columns: cols}
	}
	return c
}

func copyClauses(in []Clause) []Clause {
	out := make([]Clause, len(in))
	for i, c := range in {
		out[i] = copyClause(c)
	}
	return out
}
