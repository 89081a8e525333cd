// Copyright (c) 2026 The gopql Authors. All rights reserved.

package gopql

import (
	"context"
	"errors"
	"io"
	"net"
)

// ExecutionState is the state of one Execute, Stream or IterChunks call.
type ExecutionState int

const (
	// StateBuilt is the state before anything was compiled or sent.
	StateBuilt ExecutionState = iota
	// StateCompiling is the state while the query is being compiled.
	StateCompiling
	// StateSubmitted is the state once the first page was requested.
	StateSubmitted
	// StateReceiving is the state between pages of a multi page result.
	StateReceiving
	// StateComplete is the terminal state after the last page.
	StateComplete
	// StateFailed is the terminal state after an error.
	StateFailed
)

func (s ExecutionState) String() string {
	switch s {
	case StateBuilt:
		return "BUILT"
	case StateCompiling:
		return "COMPILING"
	case StateSubmitted:
		return "SUBMITTED"
	case StateReceiving:
		return "RECEIVING"
	case StateComplete:
		return "COMPLETE"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// ExecuteOption customises a single execution.
type ExecuteOption func(*executeOptions)

type executeOptions struct {
	limit    *int
	offset   *int
	pageSize int
}

// WithLimit overrides the query's limit for this call only.
func WithLimit(n int) ExecuteOption {
	return func(o *executeOptions) { o.limit = &n }
}

// WithOffset overrides the query's offset for this call only.
func WithOffset(n int) ExecuteOption {
	return func(o *executeOptions) { o.offset = &n }
}

// WithPageSize passes a page size hint to the transport.
func WithPageSize(n int) ExecuteOption {
	return func(o *executeOptions) { o.pageSize = n }
}

func buildOptions(opts []ExecuteOption) executeOptions {
	var o executeOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Executor runs queries over a Transport. It holds no per-query state and is
// safe for concurrent use when the Transport is.
//
// The Executor never retries; retry policy belongs to the Transport.
type Executor struct {
	transport Transport
}

// NewExecutor returns an Executor sending queries over t.
func NewExecutor(t Transport) *Executor {
	return &Executor{transport: t}
}

// Execute runs q and materialises every page into one ResultSet. Either all
// pages succeed or an error is returned; there is no partial result.
func (e *Executor) Execute(ctx context.Context, q Query, opts ...ExecuteOption) (*ResultSet, error) {
	it := e.Stream(ctx, q, opts...)
	var rows [][]any
	for {
		batch, err := it.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, batch.rows...)
	}
	return newResultSetNoCopy(it.Columns(), rows), nil
}

// Stream returns a lazy iterator yielding one ResultSet per transport page.
// Nothing is sent until the first Next call, and each Next fetches exactly
// one page. Stopping early is the only cancellation: no cancel request is
// sent to the engine, so a running remote job finishes on its own.
func (e *Executor) Stream(ctx context.Context, q Query, opts ...ExecuteOption) *BatchIterator {
	return newBatchIterator(ctx, e.transport, q, buildOptions(opts))
}

// IterChunks returns a lazy iterator yielding ResultSets of exactly chunkSize
// rows, except for a shorter last chunk. Rows are re-buffered across page
// boundaries.
func (e *Executor) IterChunks(ctx context.Context, q Query, chunkSize int, opts ...ExecuteOption) (*ChunkIterator, error) {
	if chunkSize <= 0 {
		return nil, newInvalidClauseError(ErrCodeInvalidChunkSize, errMsgInvalidChunkSize, chunkSize)
	}
	o := buildOptions(opts)
	if o.pageSize == 0 {
		o.pageSize = chunkSize
	}
	return newChunkIterator(newBatchIterator(ctx, e.transport, q, o), chunkSize), nil
}

// prepare applies call-time overrides and compiles. It reports whether the
// effective limit is zero, in which case nothing needs to be sent.
func prepare(q Query, o executeOptions) (CompiledQuery, Query, bool, error) {
	if q.err != nil {
		return CompiledQuery{}, q, false, q.err
	}
	if o.limit != nil && *o.limit < 0 {
		return CompiledQuery{}, q, false, newInvalidClauseError(ErrCodeNegativeLimit, errMsgNegativeLimit, *o.limit)
	}
	if o.offset != nil && *o.offset < 0 {
		return CompiledQuery{}, q, false, newInvalidClauseError(ErrCodeNegativeOffset, errMsgNegativeOffset, *o.offset)
	}
	effective := q.withPaging(o.limit, o.offset)
	compiled, err := Compile(effective)
	if err != nil {
		return CompiledQuery{}, effective, false, err
	}
	limit, ok := effective.limitValue()
	return compiled, effective, ok && limit == 0, nil
}

// normalizeError maps transport failures onto the QueryError taxonomy. A
// canceled context is reported as ErrCodeCanceled, not as a timeout.
func normalizeError(err error) error {
	var qe *QueryError
	if errors.As(err, &qe) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return contextError(err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return NewTimeoutError(err)
	}
	return &QueryError{
		Number:  ErrCodeTransportFailure,
		Kind:    RemoteQuery,
		Message: errMsgTransportFailure,
		Err:     err,
	}
}
