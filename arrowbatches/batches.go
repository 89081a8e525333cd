package arrowbatches

import (
	"github.com/apache/arrow/go/v16/arrow"
	"github.com/apache/arrow/go/v16/arrow/memory"

	pql "github.com/pqlclient/gopql"
)

// ResultIterator is satisfied by *gopql.BatchIterator and *gopql.ChunkIterator.
type ResultIterator interface {
	Next() (*pql.ResultSet, error)
}

// RecordReader yields one Arrow record per ResultSet of the wrapped iterator.
// Pages are fetched lazily and io.EOF is returned after the last one.
type RecordReader struct {
	it  ResultIterator
	mem memory.Allocator
}

// NewRecordReader wraps it. A nil allocator means memory.DefaultAllocator.
func NewRecordReader(it ResultIterator, mem memory.Allocator) *RecordReader {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	return &RecordReader{it: it, mem: mem}
}

// Next returns the next record. The caller must release it.
func (r *RecordReader) Next() (arrow.Record, error) {
	rs, err := r.it.Next()
	if err != nil {
		return nil, err
	}
	return Record(rs, r.mem)
}
