// Copyright (c) 2026 The gopql Authors. All rights reserved.

package gopql

import (
	"fmt"
	"strconv"
	"strings"
)

// CompiledQuery is the query text sent to the engine. It never changes after
// Compile returns it.
type CompiledQuery struct {
	text        string
	dataModelID string
}

// Text returns the PQL text.
func (c CompiledQuery) Text() string { return c.text }

// DataModelID returns the data model the query targets.
func (c CompiledQuery) DataModelID() string { return c.dataModelID }

func (c CompiledQuery) String() string { return c.text }

// Compile is Compile(q).
func (q Query) Compile() (CompiledQuery, error) {
	return Compile(q)
}

// Compile renders q in canonical clause order, independent of the order in
// which clauses were added:
//
//	SELECT, FILTER, GROUP BY, HAVING, ORDER BY, LIMIT, OFFSET
//
// A distinct query starts with SELECT DISTINCT. Identifiers are double quoted
// per dotted segment. Expressions and
// predicates are emitted verbatim.
func Compile(q Query) (CompiledQuery, error) {
	if q.err != nil {
		return CompiledQuery{}, q.err
	}
	var (
		selects  []SelectClause
		filters  []string
		groupBy  *GroupByClause
		having   []string
		orderBys []OrderByClause
		limit    *int
		offset   *int
	)
	for _, c := range q.clauses {
		switch clause := c.(type) {
		case SelectClause:
			selects = append(selects, clause)
		case FilterClause:
			filters = append(filters, clause.Predicate)
		case GroupByClause:
			if groupBy != nil {
				return CompiledQuery{}, newMalformedQueryError(ErrCodeInvariantViolated, errMsgInvariantViolated, "more than one group by")
			}
			g := clause
			groupBy = &g
		case HavingClause:
			having = append(having, clause.Predicate)
		case OrderByClause:
			orderBys = append(orderBys, clause)
		case LimitClause:
			if limit != nil {
				return CompiledQuery{}, newMalformedQueryError(ErrCodeInvariantViolated, errMsgInvariantViolated, "more than one limit")
			}
			n := clause.N
			limit = &n
		case OffsetClause:
			if offset != nil {
				return CompiledQuery{}, newMalformedQueryError(ErrCodeInvariantViolated, errMsgInvariantViolated, "more than one offset")
			}
			n := clause.N
			offset = &n
		default:
			return CompiledQuery{}, newMalformedQueryError(ErrCodeInvariantViolated, errMsgInvariantViolated, fmt.Sprintf("unknown clause %T", c))
		}
	}
	if len(selects) == 0 {
		return CompiledQuery{}, newMalformedQueryError(ErrCodeEmptySelect, errMsgEmptySelect)
	}
	if len(having) > 0 && groupBy == nil {
		return CompiledQuery{}, newMalformedQueryError(ErrCodeInvariantViolated, errMsgInvariantViolated, "having without group by")
	}
	if (limit != nil && *limit < 0) || (offset != nil && *offset < 0) {
		return CompiledQuery{}, newMalformedQueryError(ErrCodeInvariantViolated, errMsgInvariantViolated, "negative limit or offset")
	}

	var lines []string
	items := make([]string, len(selects))
	for i, s := range selects {
		items[i] = s.Expression
		if s.Alias != "" {
			items[i] += " AS " + quoteSegment(s.Alias)
		}
	}
	selectKeyword := "SELECT "
	if q.distinct {
		selectKeyword = "SELECT DISTINCT "
	}
	lines = append(lines, selectKeyword+strings.Join(items, ", "))
	if len(filters) > 0 {
		lines = append(lines, "FILTER "+joinPredicates(filters))
	}
	if groupBy != nil {
		cols := make([]string, len(groupBy.Columns))
		for i, c := range groupBy.Columns {
			cols[i] = QuoteIdentifier(c)
		}
		lines = append(lines, "GROUP BY "+strings.Join(cols, ", "))
	}
	if len(having) > 0 {
		lines = append(lines, "HAVING "+joinPredicates(having))
	}
	if len(orderBys) > 0 {
		keys := make([]string, len(orderBys))
		for i, o := range orderBys {
			dir := "ASC"
			if !o.Ascending {
				dir = "DESC"
			}
			keys[i] = QuoteIdentifier(o.Column) + " " + dir
		}
		lines = append(lines, "ORDER BY "+strings.Join(keys, ", "))
	}
	if limit != nil {
		lines = append(lines, "LIMIT "+strconv.Itoa(*limit))
	}
	if offset != nil {
		lines = append(lines, "OFFSET "+strconv.Itoa(*offset))
	}
	return CompiledQuery{text: strings.Join(lines, "\n"), dataModelID: q.dataModelID}, nil
}

// joinPredicates parenthesises each predicate when there is more than one.
func joinPredicates(preds []string) string {
	if len(preds) == 1 {
		return preds[0]
	}
	wrapped := make([]string, len(preds))
	for i, p := range preds {
		wrapped[i] = "(" + p + ")"
	}
	return strings.Join(wrapped, " AND ")
}

// QuoteIdentifier quotes a dotted column reference segment by segment:
// ACTIVITIES.CASE_ID becomes "ACTIVITIES"."CASE_ID". Segments that are
// already quoted are kept; embedded double quotes are doubled. A reference
// with an unquoted call, operator or literal, such as
// ROUND_DAY("T"."C"), is an expression and is returned verbatim.
func QuoteIdentifier(ref string) string {
	ref = strings.TrimSpace(ref)
	parts, err := splitTopLevel(ref, '.')
	if err != nil {
		return quoteSegment(ref)
	}
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if isExpressionSegment(p) {
			return ref
		}
		parts[i] = quoteSegment(p)
	}
	return strings.Join(parts, ".")
}

// isExpressionSegment reports whether an unquoted segment holds characters
// that cannot be part of a column name.
func isExpressionSegment(s string) bool {
	if isQuotedSegment(s) {
		return false
	}
	return strings.ContainsAny(s, "()[]{}'+*/<>=,|!")
}

// isQuotedSegment reports whether s is one double quoted name, with embedded
// quotes doubled.
func isQuotedSegment(s string) bool {
	if len(s) < 2 || !strings.HasPrefix(s, `"`) || !strings.HasSuffix(s, `"`) {
		return false
	}
	return !strings.Contains(strings.ReplaceAll(s[1:len(s)-1], `""`, ""), `"`)
}

func quoteSegment(s string) string {
	if isQuotedSegment(s) {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
