// Package types holds the column types reported by the PQL engine.
package types

import (
	"strings"
)

// ColumnType represents a data type of a PQL result column.
type ColumnType int

const (
	// UnknownType is used when the transport reports no type for a column.
	UnknownType ColumnType = iota
	// IntegerType represents the INTEGER column type.
	IntegerType
	// FloatType represents the FLOAT column type.
	FloatType
	// StringType represents the STRING column type.
	StringType
	// BooleanType represents the BOOLEAN column type.
	BooleanType
	// DateType represents the DATE column type, a calendar day.
	DateType
	// TimeType represents the TIME column type, a time of day.
	TimeType
	// DatetimeType represents the DATETIME column type, a point in time.
	DatetimeType
)

// NameToColumnType maps engine type names to ColumnType constants.
var NameToColumnType = map[string]ColumnType{
	"UNKNOWN":  UnknownType,
	"INTEGER":  IntegerType,
	"FLOAT":    FloatType,
	"STRING":   StringType,
	"BOOLEAN":  BooleanType,
	"DATE":     DateType,
	"TIME":     TimeType,
	"DATETIME": DatetimeType,
}

// aliases seen in data model table listings and JSON exports.
var aliases = map[string]ColumnType{
	"INT":       IntegerType,
	"LONG":      IntegerType,
	"DOUBLE":    FloatType,
	"DECIMAL":   FloatType,
	"TEXT":      StringType,
	"VARCHAR":   StringType,
	"BOOL":      BooleanType,
	"TIMESTAMP": DatetimeType,
}

// ColumnTypeToName is the inverse mapping of NameToColumnType.
var ColumnTypeToName = invertMap(NameToColumnType)

func invertMap(m map[string]ColumnType) map[ColumnType]string {
	inv := make(map[ColumnType]string)
	for k, v := range m {
		if _, ok := inv[v]; ok {
			panic("failed to create ColumnTypeToName map due to duplicated values")
		}
		inv[v] = k
	}
	return inv
}

func (ct ColumnType) String() string {
	if name, ok := ColumnTypeToName[ct]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseColumnType returns the ColumnType for an engine type name; unrecognised names are UnknownType.
func ParseColumnType(name string) ColumnType {
	upper := strings.ToUpper(strings.TrimSpace(name))
	if ct, ok := NameToColumnType[upper]; ok {
		return ct
	}
	return aliases[upper]
}

// MarshalText encodes ct as its engine type name.
func (ct ColumnType) MarshalText() ([]byte, error) {
	return []byte(ct.String()), nil
}

// UnmarshalText accepts any name ParseColumnType does.
func (ct *ColumnType) UnmarshalText(text []byte) error {
	*ct = ParseColumnType(string(text))
	return nil
}
