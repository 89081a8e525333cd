package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	pql "github.com/pqlclient/gopql"
)

const (
	outputTable = "table"
	outputJSON  = "json"
	outputCSV   = "csv"
)

func validateOutputFormat(output string) error {
	switch output {
	case outputTable, outputJSON, outputCSV:
		return nil
	default:
		return fmt.Errorf("unsupported output format %q: use table, json or csv", output)
	}
}

func printResultSet(w io.Writer, output string, rs *pql.ResultSet) error {
	switch output {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rs.Records())
	case outputCSV:
		return writeCSV(w, rs.ColumnNames(), stringRows(rs.Rows()))
	default:
		return printTable(w, rs.ColumnNames(), stringRows(rs.Rows()))
	}
}

func printTable(w io.Writer, header []string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

func writeCSV(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

func stringRows(rows [][]any) [][]string {
	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = formatRow(row)
	}
	return out
}

func formatRow(row []any) []string {
	out := make([]string, len(row))
	for i, v := range row {
		out[i] = formatValue(v)
	}
	return out
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case time.Time:
		return t.Format(time.RFC3339Nano)
	case string:
		// keep table cells on one line
		return strings.NewReplacer("\t", " ", "\n", " ").Replace(t)
	default:
		return fmt.Sprint(t)
	}
}
