package gopql

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"testing"
	"time"
)

// pagedTransport serves pages in order and records every call.
type pagedTransport struct {
	mu    sync.Mutex
	pages []*Page
	err   error
	calls []Pagination
	texts []string
}

func (p *pagedTransport) Send(_ context.Context, q CompiledQuery, pg Pagination) (*Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, pg)
	p.texts = append(p.texts, q.Text())
	if p.err != nil {
		return nil, p.err
	}
	idx := 0
	if pg.PageToken != "" {
		var err error
		if idx, err = strconv.Atoi(pg.PageToken); err != nil {
			return nil, err
		}
	}
	if idx >= len(p.pages) {
		return nil, fmt.Errorf("no page %d", idx)
	}
	return p.pages[idx], nil
}

func (p *pagedTransport) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

var idColumns = []Column{{Name: "ID", Type: ColumnTypeInteger}, {Name: "NAME", Type: ColumnTypeString}}

// newPages splits rows into pages of size n with numeric page tokens.
func newPages(rows [][]any, n int) []*Page {
	var pages []*Page
	for start := 0; start < len(rows) || start == 0; start += n {
		end := min(start+n, len(rows))
		page := &Page{Columns: idColumns, Rows: rows[start:end]}
		if end < len(rows) {
			page.NextPageToken = strconv.Itoa(len(pages) + 1)
		}
		pages = append(pages, page)
		if end >= len(rows) {
			break
		}
	}
	return pages
}

func numberedRows(n int) [][]any {
	rows := make([][]any, n)
	for i := range rows {
		rows[i] = []any{int64(i), "row" + strconv.Itoa(i)}
	}
	return rows
}

func idQuery() Query {
	return NewQuery(`"CASES"."ID", "CASES"."NAME"`).ForDataModel("dm")
}

func TestExecuteSinglePage(t *testing.T) {
	tr := &pagedTransport{pages: newPages(numberedRows(2), 10)}
	rs, err := NewExecutor(tr).Execute(context.Background(), idQuery())
	assertNilF(t, err)
	assertEqualE(t, rs.Len(), 2)
	assertDeepEqualE(t, rs.ColumnNames(), []string{"ID", "NAME"})
	assertEqualE(t, rs.Value(1, 1), "row1")
	assertEqualE(t, tr.callCount(), 1)
	assertEqualE(t, tr.calls[0].PageToken, "")
	assertEqualE(t, tr.texts[0], "SELECT \"CASES\".\"ID\", \"CASES\".\"NAME\"")
}

func TestExecuteAllPages(t *testing.T) {
	tr := &pagedTransport{pages: newPages(numberedRows(7), 3)}
	rs, err := NewExecutor(tr).Execute(context.Background(), idQuery())
	assertNilF(t, err)
	assertEqualE(t, rs.Len(), 7)
	assertEqualE(t, rs.Value(6, 0), int64(6))
	assertEqualE(t, tr.callCount(), 3)
	assertEqualE(t, tr.calls[1].PageToken, "1")
	assertEqualE(t, tr.calls[2].PageToken, "2")
}

func TestStreamIsLazy(t *testing.T) {
	tr := &pagedTransport{pages: newPages(numberedRows(9), 3)}
	it := NewExecutor(tr).Stream(context.Background(), idQuery())
	assertEqualE(t, it.State(), StateBuilt)
	assertEqualE(t, tr.callCount(), 0, "nothing is sent before Next")

	for i := 1; i <= 3; i++ {
		batch, err := it.Next()
		assertNilF(t, err)
		assertEqualE(t, batch.Len(), 3)
		assertEqualE(t, tr.callCount(), i, "each Next fetches exactly one page")
		assertEqualE(t, it.Pages(), i)
	}
	assertEqualE(t, it.State(), StateComplete)
	_, err := it.Next()
	assertErrIsE(t, err, io.EOF)
	_, err = it.Next()
	assertErrIsE(t, err, io.EOF)
	assertEqualE(t, tr.callCount(), 3)
	assertStringContainsE(t, it.Query().Text(), "SELECT")
}

func TestStreamStatesBetweenPages(t *testing.T) {
	tr := &pagedTransport{pages: newPages(numberedRows(4), 2)}
	it := NewExecutor(tr).Stream(context.Background(), idQuery())
	_, err := it.Next()
	assertNilF(t, err)
	assertEqualE(t, it.State(), StateReceiving)
	_, err = it.Next()
	assertNilF(t, err)
	assertEqualE(t, it.State(), StateComplete)
}

func TestRemoteErrorKeepsQueryReusable(t *testing.T) {
	tr := &pagedTransport{err: NewRemoteQueryError(403, `{"message":"forbidden"}`)}
	q := idQuery().Limit(5)
	_, err := NewExecutor(tr).Execute(context.Background(), q)
	assertErrIsF(t, err, ErrRemoteQuery)
	var qe *QueryError
	assertErrorsAsF(t, err, &qe)
	assertEqualE(t, qe.StatusCode, 403)
	assertEqualE(t, qe.Payload, `{"message":"forbidden"}`)

	tr.err = nil
	tr.pages = newPages(numberedRows(5), 10)
	rs, err := NewExecutor(tr).Execute(context.Background(), q)
	assertNilF(t, err, "the query is reusable after a remote failure")
	assertEqualE(t, rs.Len(), 5)
}

func TestFailedIteratorRepeatsError(t *testing.T) {
	tr := &pagedTransport{err: NewRemoteQueryError(500, "boom")}
	it := NewExecutor(tr).Stream(context.Background(), idQuery())
	_, err1 := it.Next()
	_, err2 := it.Next()
	assertErrIsE(t, err1, ErrRemoteQuery)
	assertEqualE(t, err1, err2)
	assertEqualE(t, it.State(), StateFailed)
	assertEqualE(t, tr.callCount(), 1)
}

func TestLimitZeroSendsNothing(t *testing.T) {
	tr := &pagedTransport{}
	e := NewExecutor(tr)
	rs, err := e.Execute(context.Background(), idQuery().Limit(0))
	assertNilF(t, err)
	assertEqualE(t, rs.Len(), 0)
	assertDeepEqualE(t, rs.ColumnNames(), []string{`"CASES"."ID"`, `"CASES"."NAME"`})

	rs, err = e.Execute(context.Background(), idQuery().Limit(10), WithLimit(0))
	assertNilF(t, err)
	assertEqualE(t, rs.Len(), 0)
	assertEqualE(t, tr.callCount(), 0)
}

func TestExecuteOverrides(t *testing.T) {
	tr := &pagedTransport{pages: newPages(numberedRows(1), 10)}
	e := NewExecutor(tr)
	q := idQuery().Limit(100).Offset(3)
	_, err := e.Execute(context.Background(), q, WithLimit(5), WithOffset(10), WithPageSize(50))
	assertNilF(t, err)
	assertEqualE(t, tr.texts[0], "SELECT \"CASES\".\"ID\", \"CASES\".\"NAME\"\nLIMIT 5\nOFFSET 10")
	assertEqualE(t, tr.calls[0].PageSize, 50)

	_, err = e.Execute(context.Background(), q, WithLimit(-1))
	assertErrIsE(t, err, &QueryError{Number: ErrCodeNegativeLimit})
	_, err = e.Execute(context.Background(), q, WithOffset(-1))
	assertErrIsE(t, err, &QueryError{Number: ErrCodeNegativeOffset})
	assertEqualE(t, tr.callCount(), 1)
}

func TestBuilderErrorSurfacesOnExecute(t *testing.T) {
	tr := &pagedTransport{}
	_, err := NewExecutor(tr).Execute(context.Background(), idQuery().Having("x > 1"))
	assertErrIsE(t, err, ErrInvalidClause)
	assertEqualE(t, tr.callCount(), 0)
}

func TestRepeatedPageToken(t *testing.T) {
	tr := &pagedTransport{pages: []*Page{
		{Columns: idColumns, Rows: numberedRows(1), NextPageToken: "1"},
		{Columns: idColumns, Rows: numberedRows(1), NextPageToken: "1"},
	}}
	_, err := NewExecutor(tr).Execute(context.Background(), idQuery())
	assertErrIsE(t, err, &QueryError{Number: ErrCodeInvalidPageToken})
	assertEqualE(t, tr.callCount(), 2)
}

func TestRowWidthMismatch(t *testing.T) {
	tr := &pagedTransport{pages: []*Page{{Columns: idColumns, Rows: [][]any{{int64(1)}}}}}
	_, err := NewExecutor(tr).Execute(context.Background(), idQuery())
	assertErrIsE(t, err, ErrRemoteQuery)
	assertErrIsE(t, err, &QueryError{Number: ErrCodeTransportFailure})
}

func TestColumnTypesFilledFromLaterPages(t *testing.T) {
	tr := &pagedTransport{pages: []*Page{
		{Columns: []Column{{Name: "ID"}, {Name: "NAME"}}, NextPageToken: "1"},
		{Columns: idColumns, Rows: numberedRows(2)},
	}}
	rs, err := NewExecutor(tr).Execute(context.Background(), idQuery())
	assertNilF(t, err)
	assertDeepEqualE(t, rs.Columns(), idColumns)
}

func TestTransportErrorsAreNormalized(t *testing.T) {
	testcases := []struct {
		name string
		err  error
		kind *QueryError
	}{
		{name: "deadline", err: context.DeadlineExceeded, kind: ErrTimeout},
		{name: "wrapped canceled", err: fmt.Errorf("send: %w", context.Canceled), kind: &QueryError{Number: ErrCodeCanceled}},
		{name: "plain", err: errors.New("connection reset"), kind: ErrRemoteQuery},
		{name: "query error", err: &QueryError{Number: ErrCodeMissingDataModel, Kind: Configuration}, kind: ErrConfiguration},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewExecutor(&pagedTransport{err: tc.err}).Execute(context.Background(), idQuery())
			assertErrIsE(t, err, tc.kind)
			assertErrIsE(t, err, tc.err)
		})
	}
}

func TestCanceledContextSendsNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tr := &pagedTransport{pages: newPages(numberedRows(1), 1)}
	_, err := NewExecutor(tr).Execute(ctx, idQuery())
	assertErrIsE(t, err, &QueryError{Number: ErrCodeCanceled})
	assertErrIsE(t, err, context.Canceled)
	assertFalseE(t, errors.Is(err, ErrTimeout), "cancellation is not a timeout")
	assertEqualE(t, tr.callCount(), 0)
}

func TestExpiredContextIsTimeout(t *testing.T) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	tr := &pagedTransport{pages: newPages(numberedRows(1), 1)}
	_, err := NewExecutor(tr).Execute(ctx, idQuery())
	assertErrIsE(t, err, ErrTimeout)
	assertErrIsE(t, err, context.DeadlineExceeded)
	assertEqualE(t, tr.callCount(), 0)
}

func TestIterChunksAcrossPages(t *testing.T) {
	tr := &pagedTransport{pages: newPages(numberedRows(10), 3)}
	it, err := NewExecutor(tr).IterChunks(context.Background(), idQuery(), 4)
	assertNilF(t, err)

	var sizes []int
	var next int64
	for {
		chunk, err := it.Next()
		if err == io.EOF {
			break
		}
		assertNilF(t, err)
		sizes = append(sizes, chunk.Len())
		for i := 0; i < chunk.Len(); i++ {
			assertEqualE(t, chunk.Value(i, 0), next, "rows keep their order")
			next++
		}
	}
	assertDeepEqualE(t, sizes, []int{4, 4, 2})
	assertEqualE(t, it.State(), StateComplete)
	assertDeepEqualE(t, it.Columns(), idColumns)
	assertEqualE(t, tr.calls[0].PageSize, 4, "page size defaults to the chunk size")
}

func TestIterChunksExactMultiple(t *testing.T) {
	tr := &pagedTransport{pages: newPages(numberedRows(6), 2)}
	it, err := NewExecutor(tr).IterChunks(context.Background(), idQuery(), 3, WithPageSize(2))
	assertNilF(t, err)
	var sizes []int
	for {
		chunk, err := it.Next()
		if err == io.EOF {
			break
		}
		assertNilF(t, err)
		sizes = append(sizes, chunk.Len())
	}
	assertDeepEqualE(t, sizes, []int{3, 3})
	assertEqualE(t, tr.calls[0].PageSize, 2)
}

func TestIterChunksInvalidSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		_, err := NewExecutor(&pagedTransport{}).IterChunks(context.Background(), idQuery(), size)
		assertErrIsE(t, err, ErrInvalidClause)
		assertErrIsE(t, err, &QueryError{Number: ErrCodeInvalidChunkSize})
	}
}

func TestIterChunksPageFailure(t *testing.T) {
	tr := &pagedTransport{pages: []*Page{
		{Columns: idColumns, Rows: numberedRows(2), NextPageToken: "7"},
	}}
	it, err := NewExecutor(tr).IterChunks(context.Background(), idQuery(), 5)
	assertNilF(t, err)
	_, err = it.Next()
	assertErrIsE(t, err, ErrRemoteQuery)
	assertEqualE(t, it.State(), StateFailed)
}

func TestExecutionStateString(t *testing.T) {
	assertEqualE(t, StateBuilt.String(), "BUILT")
	assertEqualE(t, StateCompiling.String(), "COMPILING")
	assertEqualE(t, StateSubmitted.String(), "SUBMITTED")
	assertEqualE(t, StateReceiving.String(), "RECEIVING")
	assertEqualE(t, StateComplete.String(), "COMPLETE")
	assertEqualE(t, StateFailed.String(), "FAILED")
	assertEqualE(t, ExecutionState(42).String(), "UNKNOWN")
}
