// Copyright (c) 2026 The gopql Authors. All rights reserved.

package gopql

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/pqlclient/gopql/internal/types"
)

// ColumnType is the engine data type of a result column.
type ColumnType = types.ColumnType

const (
	// ColumnTypeUnknown is used when the transport reports no type.
	ColumnTypeUnknown = types.UnknownType
	// ColumnTypeInteger is an INTEGER column.
	ColumnTypeInteger = types.IntegerType
	// ColumnTypeFloat is a FLOAT column.
	ColumnTypeFloat = types.FloatType
	// ColumnTypeString is a STRING column.
	ColumnTypeString = types.StringType
	// ColumnTypeBoolean is a BOOLEAN column.
	ColumnTypeBoolean = types.BooleanType
	// ColumnTypeDate is a DATE column.
	ColumnTypeDate = types.DateType
	// ColumnTypeTime is a TIME column.
	ColumnTypeTime = types.TimeType
	// ColumnTypeDatetime is a DATETIME column.
	ColumnTypeDatetime = types.DatetimeType
)

// ParseColumnType returns the ColumnType for an engine type name.
func ParseColumnType(name string) ColumnType {
	return types.ParseColumnType(name)
}

// Column describes one result column.
type Column struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"}

// coerceValue converts a decoded JSON scalar into the Go type used for ct:
// int64, float64, string, bool or time.Time. nil stays nil.
func coerceValue(ct ColumnType, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch ct {
	case ColumnTypeInteger:
		switch n := v.(type) {
		case json.Number:
			if i, err := n.Int64(); err == nil {
				return i, nil
			}
			f, err := n.Float64()
			if err != nil {
				return nil, fmt.Errorf("invalid INTEGER value %q: %w", n, err)
			}
			return int64(f), nil
		case float64:
			return int64(n), nil
		case int64:
			return n, nil
		case int:
			return int64(n), nil
		case string:
			i, err := strconv.ParseInt(n, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid INTEGER value %q: %w", n, err)
			}
			return i, nil
		}
	case ColumnTypeFloat:
		switch n := v.(type) {
		case json.Number:
			f, err := n.Float64()
			if err != nil {
				return nil, fmt.Errorf("invalid FLOAT value %q: %w", n, err)
			}
			return f, nil
		case float64:
			return n, nil
		case int64:
			return float64(n), nil
		case string:
			f, err := strconv.ParseFloat(n, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid FLOAT value %q: %w", n, err)
			}
			return f, nil
		}
	case ColumnTypeBoolean:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			parsed, err := strconv.ParseBool(b)
			if err != nil {
				return nil, fmt.Errorf("invalid BOOLEAN value %q: %w", b, err)
			}
			return parsed, nil
		}
	case ColumnTypeDate, ColumnTypeDatetime:
		switch t := v.(type) {
		case time.Time:
			return t, nil
		case string:
			return parseTime(t)
		case json.Number:
			// epoch milliseconds
			ms, err := t.Int64()
			if err != nil {
				return nil, fmt.Errorf("invalid %v value %q: %w", ct, t, err)
			}
			return time.UnixMilli(ms).UTC(), nil
		}
	case ColumnTypeString, ColumnTypeTime:
		if s, ok := v.(string); ok {
			return s, nil
		}
		return fmt.Sprint(v), nil
	}
	if n, ok := v.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		if f, err := n.Float64(); err == nil {
			return f, nil
		}
		return n.String(), nil
	}
	return v, nil
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time value %q", s)
}
