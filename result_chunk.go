// Copyright (c) 2026 The gopql Authors. All rights reserved.

package gopql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/apache/arrow/go/v16/arrow"
	"github.com/apache/arrow/go/v16/arrow/ipc"
	"github.com/apache/arrow/go/v16/arrow/memory"
	"github.com/gabriel-vasile/mimetype"

	ia "github.com/pqlclient/gopql/internal/arrow"
)

const (
	mimeParquet = "application/vnd.apache.parquet"
	mimeJSON    = "application/json"
)

var (
	arrowFileMagic   = []byte("ARROW1")
	arrowStreamMagic = []byte{0xff, 0xff, 0xff, 0xff}
)

// jsonResultChunk is the JSON form of an exported chunk.
type jsonResultChunk struct {
	Columns []struct {
		Name string `json:"name"`
		Type string `json:"type"`
	} `json:"columns"`
	Rows [][]any `json:"rows"`
}

// decodeResultChunk sniffs the chunk format and decodes it into columns and
// rows. Parquet, Arrow IPC (file or stream) and JSON are understood.
func decodeResultChunk(ctx context.Context, data []byte, mem memory.Allocator) ([]Column, [][]any, error) {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	switch {
	case bytes.HasPrefix(data, arrowFileMagic):
		logger.WithContext(ctx).Debug("Arrow file decoder")
		rdr, err := ipc.NewFileReader(bytes.NewReader(data), ipc.WithAllocator(mem))
		if err != nil {
			return nil, nil, unsupportedChunk("arrow", err)
		}
		defer rdr.Close()
		records := make([]arrow.Record, 0, rdr.NumRecords())
		for i := 0; i < rdr.NumRecords(); i++ {
			rec, err := rdr.Record(i)
			if err != nil {
				return nil, nil, unsupportedChunk("arrow", err)
			}
			rec.Retain()
			records = append(records, rec)
		}
		defer func() {
			for _, rec := range records {
				rec.Release()
			}
		}()
		return recordsToRows(rdr.Schema(), records)
	case bytes.HasPrefix(data, arrowStreamMagic):
		logger.WithContext(ctx).Debug("Arrow stream decoder")
		rdr, err := ipc.NewReader(bytes.NewReader(data), ipc.WithAllocator(mem))
		if err != nil {
			return nil, nil, unsupportedChunk("arrow stream", err)
		}
		defer rdr.Release()
		var records []arrow.Record
		for rdr.Next() {
			rec := rdr.Record()
			rec.Retain()
			records = append(records, rec)
		}
		defer func() {
			for _, rec := range records {
				rec.Release()
			}
		}()
		if err = rdr.Err(); err != nil && err != io.EOF {
			return nil, nil, unsupportedChunk("arrow stream", err)
		}
		return recordsToRows(rdr.Schema(), records)
	}

	mtype := mimetype.Detect(data)
	switch {
	case mtype.Is(mimeParquet):
		logger.WithContext(ctx).Debug("Parquet decoder")
		tbl, err := ia.ReadParquet(ctx, bytes.NewReader(data), mem)
		if err != nil {
			return nil, nil, unsupportedChunk(mimeParquet, err)
		}
		defer tbl.Release()
		return schemaColumns(tbl.Schema()), ia.TableRows(tbl), nil
	case mtype.Is(mimeJSON):
		logger.WithContext(ctx).Debug("JSON decoder")
		return decodeJSONChunk(data)
	default:
		return nil, nil, &QueryError{
			Number:      ErrCodeUnsupportedChunkFormat,
			Kind:        RemoteQuery,
			Message:     errMsgUnsupportedFormat,
			MessageArgs: []interface{}{mtype.String()},
		}
	}
}

func unsupportedChunk(format string, err error) *QueryError {
	return &QueryError{
		Number:      ErrCodeUnsupportedChunkFormat,
		Kind:        RemoteQuery,
		Message:     errMsgUnsupportedFormat,
		MessageArgs: []interface{}{format},
		Err:         err,
	}
}

func decodeJSONChunk(data []byte) ([]Column, [][]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var chunk jsonResultChunk
	if err := dec.Decode(&chunk); err != nil {
		return nil, nil, unsupportedChunk(mimeJSON, err)
	}
	columns := make([]Column, len(chunk.Columns))
	for i, c := range chunk.Columns {
		columns[i] = Column{Name: c.Name, Type: ParseColumnType(c.Type)}
	}
	rows := make([][]any, len(chunk.Rows))
	for i, raw := range chunk.Rows {
		if len(raw) != len(columns) {
			return nil, nil, unsupportedChunk(mimeJSON,
				fmt.Errorf("row %d has %d values for %d columns", i, len(raw), len(columns)))
		}
		row := make([]any, len(raw))
		for j, v := range raw {
			cv, err := coerceValue(columns[j].Type, v)
			if err != nil {
				return nil, nil, unsupportedChunk(mimeJSON, fmt.Errorf("row %d column %v: %w", i, columns[j].Name, err))
			}
			row[j] = cv
		}
		rows[i] = row
	}
	return columns, rows, nil
}

func schemaColumns(schema *arrow.Schema) []Column {
	columns := make([]Column, schema.NumFields())
	for i, f := range schema.Fields() {
		columns[i] = Column{Name: f.Name, Type: ia.ColumnType(f.Type)}
	}
	return columns
}

func recordsToRows(schema *arrow.Schema, records []arrow.Record) ([]Column, [][]any, error) {
	var rows [][]any
	for _, rec := range records {
		rows = ia.AppendRows(rows, rec)
	}
	return schemaColumns(schema), rows, nil
}
