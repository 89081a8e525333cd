package gopql

import (
	"testing"
)

func TestCompileCanonicalOrder(t *testing.T) {
	q := NewQuery(`"CASES"."ID", COUNT("ACTIVITIES"."NAME") AS CNT`).
		ForDataModel("dm-1").
		Offset(20).
		OrderByDesc("CASES.ID").
		Limit(10).
		Having(`COUNT("ACTIVITIES"."NAME") > 2`).
		Filter(`"CASES"."AMOUNT" > 100`)
	// having without group by is rejected, so group by first
	assertErrIsF(t, q.Err(), &QueryError{Number: ErrCodeHavingWithoutGroupBy})

	q = NewQuery(`"CASES"."ID", COUNT("ACTIVITIES"."NAME") AS CNT`).
		ForDataModel("dm-1").
		Offset(20).
		GroupBy("CASES.ID").
		OrderByDesc("CASES.ID").
		Limit(10).
		Having(`COUNT("ACTIVITIES"."NAME") > 2`).
		Filter(`"CASES"."AMOUNT" > 100`).
		OrderByAsc(`"CASES"."NAME"`)
	compiled, err := q.Compile()
	assertNilF(t, err)
	expected := `SELECT "CASES"."ID", COUNT("ACTIVITIES"."NAME") AS "CNT"
FILTER "CASES"."AMOUNT" > 100
GROUP BY "CASES"."ID"
HAVING COUNT("ACTIVITIES"."NAME") > 2
ORDER BY "CASES"."ID" DESC, "CASES"."NAME" ASC
LIMIT 10
OFFSET 20`
	assertEqualE(t, compiled.Text(), expected)
	assertEqualE(t, compiled.String(), expected)
	assertEqualE(t, compiled.DataModelID(), "dm-1")
}

func TestCompileIsDeterministic(t *testing.T) {
	q := NewQuery(`"CASES"."ID"`).Filter("a").Filter("b").OrderByAsc("X")
	first, err := Compile(q)
	assertNilF(t, err)
	for range 5 {
		again, err := Compile(q)
		assertNilF(t, err)
		assertEqualE(t, again.Text(), first.Text())
	}
}

func TestCompileCombinesFilters(t *testing.T) {
	compiled, err := NewQuery(`"CASES"."ID"`).
		Filter(`"CASES"."A" = 1`).
		Filter(`"CASES"."B" = 2 OR "CASES"."C" = 3`).
		Compile()
	assertNilF(t, err)
	assertEqualE(t, compiled.Text(), `SELECT "CASES"."ID"
FILTER ("CASES"."A" = 1) AND ("CASES"."B" = 2 OR "CASES"."C" = 3)`)
}

func TestCompileLimitZero(t *testing.T) {
	compiled, err := NewQuery(`"CASES"."ID"`).Limit(0).Compile()
	assertNilF(t, err)
	assertEqualE(t, compiled.Text(), "SELECT \"CASES\".\"ID\"\nLIMIT 0")
}

func TestCompileRejectsBrokenClauseLists(t *testing.T) {
	testcases := []struct {
		name    string
		clauses []Clause
		number  int
	}{
		{name: "no select", clauses: []Clause{FilterClause{Predicate: "x"}}, number: ErrCodeEmptySelect},
		{name: "having without group by", clauses: []Clause{SelectClause{Expression: "A"}, HavingClause{Predicate: "x"}}, number: ErrCodeInvariantViolated},
		{name: "two group bys", clauses: []Clause{SelectClause{Expression: "A"}, GroupByClause{Columns: []string{"A"}}, GroupByClause{Columns: []string{"B"}}}, number: ErrCodeInvariantViolated},
		{name: "two limits", clauses: []Clause{SelectClause{Expression: "A"}, LimitClause{N: 1}, LimitClause{N: 2}}, number: ErrCodeInvariantViolated},
		{name: "two offsets", clauses: []Clause{SelectClause{Expression: "A"}, OffsetClause{N: 1}, OffsetClause{N: 2}}, number: ErrCodeInvariantViolated},
		{name: "negative limit", clauses: []Clause{SelectClause{Expression: "A"}, LimitClause{N: -3}}, number: ErrCodeInvariantViolated},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Compile(Query{clauses: tc.clauses})
			assertErrIsE(t, err, ErrMalformedQuery)
			assertErrIsE(t, err, &QueryError{Number: tc.number})
		})
	}
}

func TestQuoteIdentifier(t *testing.T) {
	testcases := []struct {
		in  string
		out string
	}{
		{in: "CASES.ID", out: `"CASES"."ID"`},
		{in: `"CASES"."ID"`, out: `"CASES"."ID"`},
		{in: ` CASES."Case ID" `, out: `"CASES"."Case ID"`},
		{in: "ID", out: `"ID"`},
		{in: `"TABLE"."A.B"`, out: `"TABLE"."A.B"`},
		{in: `WEIRD"NAME`, out: `"WEIRD""NAME"`},
		{in: `ROUND_DAY("T"."C")`, out: `ROUND_DAY("T"."C")`},
		{in: ` PU_COUNT(DOMAIN_TABLE("CASES"."ID"), "A"."B") `, out: `PU_COUNT(DOMAIN_TABLE("CASES"."ID"), "A"."B")`},
		{in: `"T"."A" + 1`, out: `"T"."A" + 1`},
		{in: `"T"."f(x)"`, out: `"T"."f(x)"`},
		{in: `"T"."A" + "T"."B"`, out: `"T"."A" + "T"."B"`},
	}
	for _, tc := range testcases {
		t.Run(tc.in, func(t *testing.T) {
			assertEqualE(t, QuoteIdentifier(tc.in), tc.out)
		})
	}
}

func TestCompileExpressionKeys(t *testing.T) {
	compiled, err := NewQuery(`ROUND_DAY("T"."C"), COUNT(1)`).
		GroupBy(`ROUND_DAY("T"."C")`).
		OrderByDesc(`COUNT(1)`).
		Compile()
	assertNilF(t, err)
	assertEqualE(t, compiled.Text(), "SELECT ROUND_DAY(\"T\".\"C\"), COUNT(1)\nGROUP BY ROUND_DAY(\"T\".\"C\")\nORDER BY COUNT(1) DESC")
}
