package export

import (
	"bytes"
	"context"
	"fmt"
	"io"

	pql "github.com/pqlclient/gopql"
)

// ResultIterator is satisfied by *gopql.BatchIterator and *gopql.ChunkIterator.
type ResultIterator interface {
	Next() (*pql.ResultSet, error)
}

// Result describes a finished export.
type Result struct {
	// Objects are the locations written, in order.
	Objects []string
	Rows    int
}

// Export drains it and writes every ResultSet to sink as
// <prefix>_<n><ext>, n counting from 0. Nothing is written when the
// iterator ends before its first page. On error the objects written so far are kept and reported.
func Export(ctx context.Context, it ResultIterator, sink Sink, prefix string, format Format) (*Result, error) {
	if prefix == "" {
		prefix = "chunk"
	}
	res := &Result{}
	var buf bytes.Buffer
	for n := 0; ; n++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		rs, err := it.Next()
		if err == io.EOF {
			return res, nil
		}
		if err != nil {
			return res, err
		}
		buf.Reset()
		if err = encode(&buf, rs, format); err != nil {
			return res, fmt.Errorf("failed to encode chunk %d: %w", n, err)
		}
		name := fmt.Sprintf("%s_%d%s", prefix, n, format.Extension())
		if err = sink.Put(ctx, name, bytes.NewReader(buf.Bytes())); err != nil {
			return res, err
		}
		pql.GetLogger().WithContext(ctx).Debugf("exported %d rows to %v", rs.Len(), sink.Location(name))
		res.Objects = append(res.Objects, sink.Location(name))
		res.Rows += rs.Len()
	}
}
