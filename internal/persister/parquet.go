package persister

import (
	"bytes"
	"fmt"
	"reflect"

	"github.com/parquet-go/parquet-go"

	"github.com/kartikbazzad/gen1db/internal/catalog"
	"github.com/kartikbazzad/gen1db/internal/tablebuffer"
	"github.com/kartikbazzad/gen1db/internal/types"
)

// encodeParquet serializes partition's rows into a parquet file using cols
// as the column order/types. A Go struct type is built at runtime via
// reflect.StructOf — one exported field per column, tagged for
// parquet-go's reflection-based Writer — because the schema varies per
// table and isn't known until the catalog is consulted.
//
// Grounded on github.com/parquet-go/parquet-go, the library
// polarsignals-arcticdb (a real Go time-series/columnar store in the
// retrieved corpus) uses for exactly this kind of columnar file write.
func encodeParquet(cols []catalog.ColumnDef, partition *tablebuffer.ColumnarPartition) ([]byte, error) {
	// field 0 is always the row timestamp (types.Row.Timestamp lives outside
	// the Values map, so it needs its own struct field ahead of the
	// catalog-defined columns).
	fields := make([]reflect.StructField, len(cols)+1)
	fields[0] = reflect.StructField{
		Name: "Time",
		Type: reflect.TypeOf(int64(0)),
		Tag:  `parquet:"time"`,
	}
	for i, col := range cols {
		fields[i+1] = reflect.StructField{
			Name: fieldName(i, col.Name),
			Type: goType(col.Type),
			Tag:  reflect.StructTag(fmt.Sprintf(`parquet:"%s,optional"`, col.Name)),
		}
	}
	rowType := reflect.StructOf(fields)

	var buf bytes.Buffer
	schema := parquet.SchemaOf(reflect.New(rowType).Interface())
	w := parquet.NewWriter(&buf, schema)

	for _, row := range partition.Rows {
		v := reflect.New(rowType).Elem()
		v.Field(0).SetInt(row.Timestamp)
		for i, col := range cols {
			fv, ok := row.Values[col.ID]
			if !ok {
				continue
			}
			setField(v.Field(i+1), col.Type, fv)
		}
		if _, err := w.Write(v.Addr().Interface()); err != nil {
			return nil, fmt.Errorf("write parquet row: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

// fieldName produces a valid exported Go identifier for column index i —
// falling back to a positional name ("F3") when the column name itself
// isn't a valid/exported Go identifier (e.g. starts with a digit).
func fieldName(i int, name string) string {
	if name == "" {
		return fmt.Sprintf("F%d", i)
	}
	r := []rune(name)
	if !isLetter(r[0]) || r[0] == '_' {
		return fmt.Sprintf("F%d", i)
	}
	out := make([]rune, len(r))
	for j, c := range r {
		if isLetter(c) || (j > 0 && c >= '0' && c <= '9') {
			out[j] = c
		} else {
			out[j] = '_'
		}
	}
	out[0] = toUpper(out[0])
	return string(out)
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
}

func toUpper(r rune) rune {
	if r >= 'a' && r <= 'z' {
		return r - ('a' - 'A')
	}
	return r
}

func goType(t types.ColumnType) reflect.Type {
	switch t {
	case types.ColumnTypeInt64, types.ColumnTypeTime:
		return reflect.TypeOf(int64(0))
	case types.ColumnTypeUint64:
		return reflect.TypeOf(uint64(0))
	case types.ColumnTypeFloat64:
		return reflect.TypeOf(float64(0))
	case types.ColumnTypeBool:
		return reflect.TypeOf(false)
	default: // ColumnTypeTag, ColumnTypeString
		return reflect.TypeOf("")
	}
}

func setField(f reflect.Value, t types.ColumnType, fv types.FieldValue) {
	switch t {
	case types.ColumnTypeInt64, types.ColumnTypeTime:
		f.SetInt(fv.Int64)
	case types.ColumnTypeUint64:
		f.SetUint(fv.Uint64)
	case types.ColumnTypeFloat64:
		f.SetFloat(fv.Float64)
	case types.ColumnTypeBool:
		f.SetBool(fv.Bool)
	default:
		f.SetString(fv.String)
	}
}
