// Package arrowbatches converts gopql results to Apache Arrow records and
// Parquet files.
package arrowbatches

import (
	"context"
	"fmt"
	"io"

	"github.com/apache/arrow/go/v16/arrow"
	"github.com/apache/arrow/go/v16/arrow/array"
	"github.com/apache/arrow/go/v16/arrow/memory"
	"github.com/apache/arrow/go/v16/parquet"

	pql "github.com/pqlclient/gopql"
	ia "github.com/pqlclient/gopql/internal/arrow"
)

// ColumnTypeMetadataKey is the field metadata key holding the PQL type name.
// TIME columns are stored as strings and need it to read back as TIME.
const ColumnTypeMetadataKey = "pql.type"

// Schema returns the Arrow schema for columns. All fields are nullable.
func Schema(columns []pql.Column) *arrow.Schema {
	fields := make([]arrow.Field, len(columns))
	for i, c := range columns {
		fields[i] = arrow.Field{
			Name:     c.Name,
			Type:     ia.DataType(c.Type),
			Nullable: true,
			Metadata: arrow.NewMetadata([]string{ColumnTypeMetadataKey}, []string{c.Type.String()}),
		}
	}
	return arrow.NewSchema(fields, nil)
}

// Columns is the inverse of Schema. Fields without type metadata are typed
// from their Arrow data type.
func Columns(schema *arrow.Schema) []pql.Column {
	columns := make([]pql.Column, schema.NumFields())
	for i, f := range schema.Fields() {
		ct := ia.ColumnType(f.Type)
		if idx := f.Metadata.FindKey(ColumnTypeMetadataKey); idx >= 0 {
			if parsed := pql.ParseColumnType(f.Metadata.Values()[idx]); parsed != pql.ColumnTypeUnknown {
				ct = parsed
			}
		}
		columns[i] = pql.Column{Name: f.Name, Type: ct}
	}
	return columns
}

// Record converts rs into a single Arrow record. The caller must release it.
func Record(rs *pql.ResultSet, mem memory.Allocator) (arrow.Record, error) {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	columns := rs.Columns()
	b := array.NewRecordBuilder(mem, Schema(columns))
	defer b.Release()
	for i := 0; i < rs.Len(); i++ {
		for j := range columns {
			if err := ia.Append(b.Field(j), rs.Value(i, j)); err != nil {
				return nil, fmt.Errorf("row %d column %v: %w", i, columns[j].Name, err)
			}
		}
	}
	return b.NewRecord(), nil
}

// ResultSet converts rec back into a ResultSet.
func ResultSet(rec arrow.Record) (*pql.ResultSet, error) {
	return pql.NewResultSet(Columns(rec.Schema()), ia.AppendRows(nil, rec))
}

// WriteParquet writes rs as a snappy compressed Parquet file.
func WriteParquet(w io.Writer, rs *pql.ResultSet) error {
	rec, err := Record(rs, memory.DefaultAllocator)
	if err != nil {
		return err
	}
	defer rec.Release()
	return ia.WriteParquet(w, rec.Schema(), rec)
}

// ReadParquet reads a whole Parquet file into a ResultSet.
func ReadParquet(ctx context.Context, r parquet.ReaderAtSeeker) (*pql.ResultSet, error) {
	tbl, err := ia.ReadParquet(ctx, r, memory.DefaultAllocator)
	if err != nil {
		return nil, err
	}
	defer tbl.Release()
	return pql.NewResultSet(Columns(tbl.Schema()), ia.TableRows(tbl))
}
