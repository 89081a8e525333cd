// Copyright (c) 2026 The gopql Authors. All rights reserved.

package gopql

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// BatchIterator yields one ResultSet per transport page. It is not safe for
// concurrent Next calls. Between calls it is idle; nothing is fetched in the
// background.
type BatchIterator struct {
	ctx       context.Context
	transport Transport
	query     Query
	opts      executeOptions

	state    ExecutionState
	compiled CompiledQuery
	token    string
	columns  []Column
	pages    int
	err      error
}

func newBatchIterator(ctx context.Context, t Transport, q Query, o executeOptions) *BatchIterator {
	ctx = withLogValue(ctx, PQLExecutionIDKey, uuid.NewString())
	ctx = withLogValue(ctx, PQLDataModelIDKey, q.dataModelID)
	return &BatchIterator{
		ctx:       ctx,
		transport: t,
		query:     q,
		opts:      o,
		state:     StateBuilt,
	}
}

// State returns the current execution state.
func (it *BatchIterator) State() ExecutionState {
	return it.state
}

// Columns returns the columns seen so far.
func (it *BatchIterator) Columns() []Column {
	return copyColumns(it.columns)
}

// Pages returns the number of pages received so far.
func (it *BatchIterator) Pages() int {
	return it.pages
}

// Query returns the compiled text, available after the first Next call.
func (it *BatchIterator) Query() CompiledQuery {
	return it.compiled
}

func (it *BatchIterator) setState(s ExecutionState) {
	logger.WithContext(it.ctx).Debugf("execution state %v -> %v", it.state, s)
	it.state = s
}

func (it *BatchIterator) fail(err error) error {
	it.err = err
	it.setState(StateFailed)
	logger.WithContext(it.ctx).Debugf("execution failed: %v", err)
	return err
}

// Next returns the next page. It returns io.EOF after the last page and the
// same error again after a failure.
func (it *BatchIterator) Next() (*ResultSet, error) {
	switch it.state {
	case StateFailed:
		return nil, it.err
	case StateComplete:
		return nil, io.EOF
	case StateBuilt:
		it.setState(StateCompiling)
		compiled, effective, empty, err := prepare(it.query, it.opts)
		if err != nil {
			return nil, it.fail(err)
		}
		it.compiled = compiled
		if empty {
			it.columns = effective.selectColumns()
			it.setState(StateComplete)
			return nil, io.EOF
		}
		it.setState(StateSubmitted)
	}

	if err := it.ctx.Err(); err != nil {
		return nil, it.fail(normalizeError(err))
	}
	page, err := it.transport.Send(it.ctx, it.compiled, Pagination{PageToken: it.token, PageSize: it.opts.pageSize})
	if err != nil {
		return nil, it.fail(normalizeError(err))
	}
	if page == nil {
		page = &Page{}
	}
	columns := mergeColumns(it.columns, page.Columns)
	for i, row := range page.Rows {
		if len(row) != len(columns) {
			return nil, it.fail(&QueryError{
				Number:  ErrCodeTransportFailure,
				Kind:    RemoteQuery,
				Message: errMsgTransportFailure,
				Err:     fmt.Errorf("page %d row %d has %d values for %d columns", it.pages, i, len(row), len(columns)),
			})
		}
	}
	if page.NextPageToken != "" && page.NextPageToken == it.token {
		return nil, it.fail(&QueryError{
			Number:      ErrCodeInvalidPageToken,
			Kind:        RemoteQuery,
			Message:     errMsgInvalidPageToken,
			MessageArgs: []interface{}{page.NextPageToken},
		})
	}
	it.columns = columns
	it.pages++
	it.token = page.NextPageToken
	if it.token == "" {
		it.setState(StateComplete)
	} else {
		it.setState(StateReceiving)
	}
	return newResultSetNoCopy(copyColumns(it.columns), copyRows(page.Rows)), nil
}

// ChunkIterator regroups pages into fixed size ResultSets.
type ChunkIterator struct {
	batches   *BatchIterator
	size      int
	buf       [][]any
	exhausted bool
}

func newChunkIterator(batches *BatchIterator, size int) *ChunkIterator {
	return &ChunkIterator{batches: batches, size: size}
}

// State returns the state of the underlying execution.
func (c *ChunkIterator) State() ExecutionState {
	return c.batches.State()
}

// Columns returns the columns seen so far.
func (c *ChunkIterator) Columns() []Column {
	return c.batches.Columns()
}

// Next returns the next chunk, fetching as many pages as needed to fill it.
// It returns io.EOF once all rows were handed out. Rows buffered for a chunk
// are dropped when a page fetch fails.
func (c *ChunkIterator) Next() (*ResultSet, error) {
	for len(c.buf) < c.size && !c.exhausted {
		batch, err := c.batches.Next()
		if err == io.EOF {
			c.exhausted = true
			break
		}
		if err != nil {
			c.buf = nil
			return nil, err
		}
		c.buf = append(c.buf, batch.rows...)
	}
	if len(c.buf) == 0 {
		return nil, io.EOF
	}
	n := c.size
	if len(c.buf) < n {
		n = len(c.buf)
	}
	chunk := make([][]any, n)
	copy(chunk, c.buf[:n])
	c.buf = c.buf[n:]
	return newResultSetNoCopy(c.batches.Columns(), chunk), nil
}
