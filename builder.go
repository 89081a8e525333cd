// Copyright (c) 2026 The gopql Authors. All rights reserved.

package gopql

import (
	"fmt"
	"strings"
)

// Query is an immutable PQL query under construction. Every builder method
// returns a new Query; the receiver and any sibling derived from it are never
// modified, so a base Query can be shared between goroutines and chains.
//
// The first misuse of the builder is recorded on the returned Query and every
// later call is a no-op. Err reports it; Compile and the Executor return it.
type Query struct {
	dataModelID string
	clauses     []Clause
	schema      Schema
	distinct    bool
	err         error
}

// NewQuery starts a query from a comma separated select list such as
// `"CASES"."ID", COUNT("ACTIVITIES"."NAME") AS CNT`.
func NewQuery(selectExpressions string) Query {
	items, err := splitSelectList(selectExpressions)
	if err != nil {
		return Query{err: err}
	}
	clauses := make([]Clause, len(items))
	for i, item := range items {
		clauses[i] = item
	}
	return Query{clauses: clauses}
}

// Err returns the first error recorded while building the query.
func (q Query) Err() error {
	return q.err
}

// DataModelID returns the id of the data model the query targets.
func (q Query) DataModelID() string {
	return q.dataModelID
}

// Clauses returns a copy of the clauses in the order they were added.
func (q Query) Clauses() []Clause {
	return copyClauses(q.clauses)
}

func (q Query) with(c Clause) Query {
	next := q
	next.clauses = append(copyClauses(q.clauses), c)
	return next
}

func (q Query) fail(err *QueryError) Query {
	next := q
	next.err = err
	return next
}

func (q Query) has(kind ClauseKind) bool {
	for _, c := range q.clauses {
		if c.Kind() == kind {
			return true
		}
	}
	return false
}

func (q Query) checkColumn(column string) *QueryError {
	if q.schema != nil && !q.schema.HasColumn(column) {
		return newInvalidClauseError(ErrCodeUnknownColumn, errMsgUnknownColumn, column)
	}
	return nil
}

// ForDataModel sets the data model the query runs against.
func (q Query) ForDataModel(id string) Query {
	if q.err != nil {
		return q
	}
	next := q
	next.dataModelID = strings.TrimSpace(id)
	return next
}

// WithSchema validates GroupBy and OrderBy column references against s, both
// those already added and those added later.
func (q Query) WithSchema(s Schema) Query {
	if q.err != nil {
		return q
	}
	next := q
	next.schema = s
	for _, c := range q.clauses {
		switch clause := c.(type) {
		case GroupByClause:
			for _, col := range clause.Columns {
				if err := next.checkColumn(col); err != nil {
					return next.fail(err)
				}
			}
		case OrderByClause:
			if err := next.checkColumn(clause.Column); err != nil {
				return next.fail(err)
			}
		}
	}
	return next
}

// Select appends one select item. alias may be empty. An expression with a
// top-level comma is a MalformedQueryError; use NewQuery for select lists.
func (q Query) Select(expression, alias string) Query {
	if q.err != nil {
		return q
	}
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return q.fail(newMalformedQueryError(ErrCodeEmptySelect, errMsgEmptySelect))
	}
	parts, err := splitTopLevel(expression, ',')
	if err != nil {
		return q.fail(newMalformedQueryError(ErrCodeUnparsableSelect, errMsgUnparsableSelect, err))
	}
	if len(parts) > 1 {
		return q.fail(newMalformedQueryError(ErrCodeUnparsableSelect, errMsgUnparsableSelect,
			fmt.Sprintf("%q holds %d select items, Select takes one", expression, len(parts))))
	}
	return q.with(SelectClause{Expression: expression, Alias: strings.TrimSpace(alias)})
}

// Distinct removes duplicate rows from the result. Calling it again has no
// further effect.
func (q Query) Distinct() Query {
	if q.err != nil {
		return q
	}
	next := q
	next.distinct = true
	return next
}

// IsDistinct reports whether Distinct was called.
func (q Query) IsDistinct() bool {
	return q.distinct
}

// Filter appends a filter predicate. The predicate is passed to the engine
// verbatim. Multiple filters are AND-combined.
func (q Query) Filter(predicate string) Query {
	if q.err != nil {
		return q
	}
	predicate = strings.TrimSpace(predicate)
	if predicate == "" {
		return q.fail(newInvalidClauseError(ErrCodeEmptyPredicate, errMsgEmptyPredicate, "filter"))
	}
	return q.with(FilterClause{Predicate: predicate})
}

// GroupBy groups by the given columns. It may be called only once per chain.
// Column references are quoted; expressions such as ROUND_DAY("T"."C") are
// sent verbatim.
func (q Query) GroupBy(columns ...string) Query {
	if q.err != nil {
		return q
	}
	if q.has(GroupByKind) {
		return q.fail(newInvalidClauseError(ErrCodeGroupByTwice, errMsgGroupByTwice))
	}
	if len(columns) == 0 {
		return q.fail(newInvalidClauseError(ErrCodeEmptyGroupBy, errMsgEmptyGroupBy))
	}
	cols := make([]string, len(columns))
	for i, col := range columns {
		col = strings.TrimSpace(col)
		if col == "" {
			return q.fail(newInvalidClauseError(ErrCodeEmptyColumn, errMsgEmptyColumn, "group by"))
		}
		if err := q.checkColumn(col); err != nil {
			return q.fail(err)
		}
		cols[i] = col
	}
	return q.with(GroupByClause{Columns: cols})
}

// Having filters groups. It requires a preceding GroupBy.
func (q Query) Having(predicate string) Query {
	if q.err != nil {
		return q
	}
	if !q.has(GroupByKind) {
		return q.fail(newInvalidClauseError(ErrCodeHavingWithoutGroupBy, errMsgHavingWithoutGroupBy))
	}
	predicate = strings.TrimSpace(predicate)
	if predicate == "" {
		return q.fail(newInvalidClauseError(ErrCodeEmptyPredicate, errMsgEmptyPredicate, "having"))
	}
	return q.with(HavingClause{Predicate: predicate})
}

// OrderBy appends a sort key. The first call is the primary key.
func (q Query) OrderBy(column string, ascending bool) Query {
	if q.err != nil {
		return q
	}
	column = strings.TrimSpace(column)
	if column == "" {
		return q.fail(newInvalidClauseError(ErrCodeEmptyColumn, errMsgEmptyColumn, "order by"))
	}
	if err := q.checkColumn(column); err != nil {
		return q.fail(err)
	}
	return q.with(OrderByClause{Column: column, Ascending: ascending})
}

// OrderByAsc is OrderBy(column, true).
func (q Query) OrderByAsc(column string) Query {
	return q.OrderBy(column, true)
}

// OrderByDesc is OrderBy(column, false).
func (q Query) OrderByDesc(column string) Query {
	return q.OrderBy(column, false)
}

// Limit caps the number of rows. n must not be negative; 0 yields an empty result.
func (q Query) Limit(n int) Query {
	if q.err != nil {
		return q
	}
	if n < 0 {
		return q.fail(newInvalidClauseError(ErrCodeNegativeLimit, errMsgNegativeLimit, n))
	}
	if q.has(LimitKind) {
		return q.fail(newInvalidClauseError(ErrCodeLimitTwice, errMsgLimitTwice))
	}
	return q.with(LimitClause{N: n})
}

// Offset skips the first n rows. n must not be negative.
func (q Query) Offset(n int) Query {
	if q.err != nil {
		return q
	}
	if n < 0 {
		return q.fail(newInvalidClauseError(ErrCodeNegativeOffset, errMsgNegativeOffset, n))
	}
	if q.has(OffsetKind) {
		return q.fail(newInvalidClauseError(ErrCodeOffsetTwice, errMsgOffsetTwice))
	}
	return q.with(OffsetClause{N: n})
}

// limitValue returns the query's limit, if any.
func (q Query) limitValue() (int, bool) {
	for _, c := range q.clauses {
		if l, ok := c.(LimitClause); ok {
			return l.N, true
		}
	}
	return 0, false
}

// withPaging returns a copy whose limit and offset clauses are replaced by
// the given overrides. A nil override keeps the query's own clause.
func (q Query) withPaging(limit, offset *int) Query {
	if limit == nil && offset == nil {
		return q
	}
	next := q
	next.clauses = make([]Clause, 0, len(q.clauses)+2)
	for _, c := range q.clauses {
		switch {
		case c.Kind() == LimitKind && limit != nil:
		case c.Kind() == OffsetKind && offset != nil:
		default:
			next.clauses = append(next.clauses, copyClause(c))
		}
	}
	if limit != nil {
		next.clauses = append(next.clauses, LimitClause{N: *limit})
	}
	if offset != nil {
		next.clauses = append(next.clauses, OffsetClause{N: *offset})
	}
	return next
}

// selectColumns returns the column names the select items produce: the alias
// when set, otherwise the expression text.
func (q Query) selectColumns() []Column {
	var cols []Column
	for _, c := range q.clauses {
		if s, ok := c.(SelectClause); ok {
			name := s.Alias
			if name == "" {
				name = s.Expression
			}
			cols = append(cols, Column{Name: name, Type: ColumnTypeUnknown})
		}
	}
	return cols
}
