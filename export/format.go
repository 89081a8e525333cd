package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	pql "github.com/pqlclient/gopql"
	"github.com/pqlclient/gopql/arrowbatches"
)

// Format is the file format of exported objects.
type Format string

const (
	// FormatParquet writes snappy compressed Parquet files.
	FormatParquet Format = "parquet"
	// FormatCSV writes RFC 4180 CSV with a header row.
	FormatCSV Format = "csv"
)

// ParseFormat parses a format name, case-insensitive.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatParquet, FormatCSV:
		return f, nil
	case "":
		return FormatParquet, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// Extension returns the file name extension, including the dot.
func (f Format) Extension() string {
	return "." + string(f)
}

func contentType(name string) string {
	switch path.Ext(name) {
	case FormatParquet.Extension():
		return "application/vnd.apache.parquet"
	case FormatCSV.Extension():
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}

func encode(w io.Writer, rs *pql.ResultSet, f Format) error {
	switch f {
	case FormatParquet:
		return arrowbatches.WriteParquet(w, rs)
	case FormatCSV:
		return writeCSV(w, rs)
	default:
		return fmt.Errorf("unsupported export format %q", f)
	}
}

func writeCSV(w io.Writer, rs *pql.ResultSet) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(rs.ColumnNames()); err != nil {
		return err
	}
	columns := rs.Columns()
	record := make([]string, len(columns))
	for i := 0; i < rs.Len(); i++ {
		for j, c := range columns {
			record[j] = formatCSVValue(c.Type, rs.Value(i, j))
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatCSVValue(ct pql.ColumnType, v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		if ct == pql.ColumnTypeDate {
			return t.Format(time.DateOnly)
		}
		return t.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(t)
	}
}
