// Package arrow converts between Arrow arrays and PQL column values.
package arrow

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/apache/arrow/go/v16/arrow"
	"github.com/apache/arrow/go/v16/arrow/array"
	"github.com/apache/arrow/go/v16/arrow/memory"
	"github.com/apache/arrow/go/v16/parquet"
	"github.com/apache/arrow/go/v16/parquet/compress"
	"github.com/apache/arrow/go/v16/parquet/file"
	"github.com/apache/arrow/go/v16/parquet/pqarrow"

	"github.com/pqlclient/gopql/internal/types"
)

const timeOfDayLayout = "15:04:05.999999999"

// ColumnType maps an Arrow data type onto a PQL column type.
func ColumnType(dt arrow.DataType) types.ColumnType {
	switch dt.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64:
		return types.IntegerType
	case arrow.FLOAT16, arrow.FLOAT32, arrow.FLOAT64, arrow.DECIMAL128, arrow.DECIMAL256:
		return types.FloatType
	case arrow.BOOL:
		return types.BooleanType
	case arrow.STRING, arrow.LARGE_STRING, arrow.BINARY, arrow.LARGE_BINARY:
		return types.StringType
	case arrow.DATE32, arrow.DATE64:
		return types.DateType
	case arrow.TIME32, arrow.TIME64:
		return types.TimeType
	case arrow.TIMESTAMP:
		return types.DatetimeType
	default:
		return types.UnknownType
	}
}

// DataType is the Arrow type used to write a PQL column type.
func DataType(ct types.ColumnType) arrow.DataType {
	switch ct {
	case types.IntegerType:
		return arrow.PrimitiveTypes.Int64
	case types.FloatType:
		return arrow.PrimitiveTypes.Float64
	case types.BooleanType:
		return arrow.FixedWidthTypes.Boolean
	case types.DateType:
		return arrow.FixedWidthTypes.Date32
	case types.DatetimeType:
		return &arrow.TimestampType{Unit: arrow.Millisecond, TimeZone: "UTC"}
	default:
		return arrow.BinaryTypes.String
	}
}

// Value returns row i of col as int64, float64, bool, string, time.Time or nil.
func Value(col arrow.Array, i int) any {
	if col.IsNull(i) {
		return nil
	}
	switch a := col.(type) {
	case *array.Int8:
		return int64(a.Value(i))
	case *array.Int16:
		return int64(a.Value(i))
	case *array.Int32:
		return int64(a.Value(i))
	case *array.Int64:
		return a.Value(i)
	case *array.Uint8:
		return int64(a.Value(i))
	case *array.Uint16:
		return int64(a.Value(i))
	case *array.Uint32:
		return int64(a.Value(i))
	case *array.Uint64:
		return int64(a.Value(i))
	case *array.Float16:
		return float64(a.Value(i).Float32())
	case *array.Float32:
		return float64(a.Value(i))
	case *array.Float64:
		return a.Value(i)
	case *array.Decimal128:
		return a.Value(i).ToFloat64(a.DataType().(*arrow.Decimal128Type).Scale)
	case *array.Boolean:
		return a.Value(i)
	case *array.String:
		return a.Value(i)
	case *array.LargeString:
		return a.Value(i)
	case *array.Binary:
		return string(a.Value(i))
	case *array.Date32:
		return a.Value(i).ToTime()
	case *array.Date64:
		return a.Value(i).ToTime()
	case *array.Time32:
		return a.Value(i).ToTime(a.DataType().(*arrow.Time32Type).Unit).Format(timeOfDayLayout)
	case *array.Time64:
		return a.Value(i).ToTime(a.DataType().(*arrow.Time64Type).Unit).Format(timeOfDayLayout)
	case *array.Timestamp:
		return a.Value(i).ToTime(a.DataType().(*arrow.TimestampType).Unit)
	default:
		return a.ValueStr(i)
	}
}

// Append adds v to b. b must have been created for DataType(ct) of the
// column v belongs to.
func Append(b array.Builder, v any) error {
	if v == nil {
		b.AppendNull()
		return nil
	}
	switch bb := b.(type) {
	case *array.Int64Builder:
		switch n := v.(type) {
		case int64:
			bb.Append(n)
		case int:
			bb.Append(int64(n))
		case float64:
			bb.Append(int64(n))
		default:
			return fmt.Errorf("cannot write %T as INTEGER", v)
		}
	case *array.Float64Builder:
		switch n := v.(type) {
		case float64:
			bb.Append(n)
		case int64:
			bb.Append(float64(n))
		case int:
			bb.Append(float64(n))
		default:
			return fmt.Errorf("cannot write %T as FLOAT", v)
		}
	case *array.BooleanBuilder:
		t, ok := v.(bool)
		if !ok {
			return fmt.Errorf("cannot write %T as BOOLEAN", v)
		}
		bb.Append(t)
	case *array.Date32Builder:
		t, ok := v.(time.Time)
		if !ok {
			return fmt.Errorf("cannot write %T as DATE", v)
		}
		bb.Append(arrow.Date32FromTime(t))
	case *array.TimestampBuilder:
		t, ok := v.(time.Time)
		if !ok {
			return fmt.Errorf("cannot write %T as DATETIME", v)
		}
		bb.Append(arrow.Timestamp(t.UnixMilli()))
	case *array.StringBuilder:
		if s, ok := v.(string); ok {
			bb.Append(s)
		} else {
			bb.Append(fmt.Sprint(v))
		}
	default:
		return fmt.Errorf("unsupported builder %T", b)
	}
	return nil
}

// ReadParquet reads a whole Parquet file into a table. The caller releases it.
func ReadParquet(ctx context.Context, r parquet.ReaderAtSeeker, mem memory.Allocator) (arrow.Table, error) {
	rdr, err := file.NewParquetReader(r)
	if err != nil {
		return nil, err
	}
	defer rdr.Close()
	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{}, mem)
	if err != nil {
		return nil, err
	}
	return fr.ReadTable(ctx)
}

// WriteParquet writes the records as one snappy compressed Parquet file.
func WriteParquet(w io.Writer, schema *arrow.Schema, records ...arrow.Record) error {
	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	fw, err := pqarrow.NewFileWriter(schema, w, props, pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema()))
	if err != nil {
		return err
	}
	for _, rec := range records {
		if err = fw.Write(rec); err != nil {
			_ = fw.Close()
			return err
		}
	}
	return fw.Close()
}

// AppendRows appends the rows of rec to dst, one []any per row.
func AppendRows(dst [][]any, rec arrow.Record) [][]any {
	numRows := int(rec.NumRows())
	start := len(dst)
	for i := 0; i < numRows; i++ {
		dst = append(dst, make([]any, rec.NumCols()))
	}
	for colIdx, col := range rec.Columns() {
		for i := 0; i < numRows; i++ {
			dst[start+i][colIdx] = Value(col, i)
		}
	}
	return dst
}

// TableRows returns all rows of tbl.
func TableRows(tbl arrow.Table) [][]any {
	tr := array.NewTableReader(tbl, 0)
	defer tr.Release()
	var rows [][]any
	for tr.Next() {
		rows = AppendRows(rows, tr.Record())
	}
	return rows
}
