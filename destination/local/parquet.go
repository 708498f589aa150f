package local

import (
	"fmt"
	"io"

	"github.com/datazip-inc/airlake/types"
	"github.com/datazip-inc/airlake/utils/typeutils"
	"github.com/goccy/go-json"
	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"
)

type columnKind int

const (
	stringColumn columnKind = iota
	int64Column
	doubleColumn
	booleanColumn
)

// parquetFile buffers rows of one stream into a parquet writer. Columns are
// the top level schema properties plus the raw columns, all optional.
type parquetFile struct {
	writer  *parquet.Writer
	columns []string
	kinds   map[string]columnKind
	// streams without declared properties keep their payload as JSON
	rawPayload bool
}

func newParquetFile(output io.Writer, jsonSchema map[string]any, compression string) *parquetFile {
	kinds := columnKinds(jsonSchema)
	rawPayload := len(kinds) == 0
	if rawPayload {
		kinds[types.RawDataColumn] = stringColumn
	}
	kinds[types.RawIDColumn] = stringColumn
	kinds[types.RawEmittedAtColumn] = int64Column

	group := parquet.Group{}
	for name, kind := range kinds {
		group[name] = parquet.Optional(kind.node())
	}
	schema := parquet.NewSchema("airlake_schema", group)

	columns := make([]string, 0, len(kinds))
	for _, path := range schema.Columns() {
		columns = append(columns, path[0])
	}

	return &parquetFile{
		writer:     parquet.NewWriter(output, schema, parquet.Compression(codec(compression))),
		columns:    columns,
		kinds:      kinds,
		rawPayload: rawPayload,
	}
}

func (p *parquetFile) write(row map[string]any) error {
	if p.rawPayload {
		payload := make(map[string]any, len(row))
		for key, value := range row {
			if key != types.RawIDColumn && key != types.RawEmittedAtColumn {
				payload[key] = value
			}
		}
		encoded, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		row = map[string]any{
			types.RawDataColumn:      string(encoded),
			types.RawIDColumn:        row[types.RawIDColumn],
			types.RawEmittedAtColumn: row[types.RawEmittedAtColumn],
		}
	}

	values := make(parquet.Row, 0, len(p.columns))
	for idx, column := range p.columns {
		value, err := p.kinds[column].value(row[column])
		if err != nil {
			return fmt.Errorf("column[%s]: %s", column, err)
		}
		if value.IsNull() {
			values = append(values, value.Level(0, 0, idx))
			continue
		}
		values = append(values, value.Level(0, 1, idx))
	}

	_, err := p.writer.WriteRows([]parquet.Row{values})
	return err
}

func (p *parquetFile) flush() error {
	return p.writer.Flush()
}

func (p *parquetFile) close() error {
	return p.writer.Close()
}

func (k columnKind) node() parquet.Node {
	switch k {
	case int64Column:
		return parquet.Int(64)
	case doubleColumn:
		return parquet.Leaf(parquet.DoubleType)
	case booleanColumn:
		return parquet.Leaf(parquet.BooleanType)
	default:
		return parquet.String()
	}
}

func (k columnKind) value(raw any) (parquet.Value, error) {
	if raw == nil {
		return parquet.NullValue(), nil
	}

	switch k {
	case int64Column:
		switch number := raw.(type) {
		case float64:
			return parquet.Int64Value(int64(number)), nil
		case int64:
			return parquet.Int64Value(number), nil
		case int:
			return parquet.Int64Value(int64(number)), nil
		case json.Number:
			parsed, err := number.Int64()
			if err != nil {
				return parquet.Value{}, err
			}
			return parquet.Int64Value(parsed), nil
		}
	case doubleColumn:
		switch number := raw.(type) {
		case float64:
			return parquet.DoubleValue(number), nil
		case int64:
			return parquet.DoubleValue(float64(number)), nil
		case int:
			return parquet.DoubleValue(float64(number)), nil
		}
	case booleanColumn:
		if flag, ok := raw.(bool); ok {
			return parquet.BooleanValue(flag), nil
		}
	default:
		switch value := raw.(type) {
		case string:
			return parquet.ByteArrayValue([]byte(value)), nil
		case map[string]any, []any:
			encoded, err := json.Marshal(value)
			if err != nil {
				return parquet.Value{}, err
			}
			return parquet.ByteArrayValue(encoded), nil
		default:
			return parquet.ByteArrayValue([]byte(typeutils.String(value))), nil
		}
	}
	return parquet.Value{}, fmt.Errorf("unexpected value %v (%T)", raw, raw)
}

// columnKinds maps the top level properties of a JSON schema to columns; the
// first non null type of a property decides its column kind
func columnKinds(jsonSchema map[string]any) map[string]columnKind {
	kinds := map[string]columnKind{}
	properties, _ := jsonSchema["properties"].(map[string]any)
	for name, property := range properties {
		definition, _ := property.(map[string]any)
		kinds[name] = kindOf(definition["type"])
	}
	return kinds
}

func kindOf(typ any) columnKind {
	var names []string
	switch value := typ.(type) {
	case string:
		names = []string{value}
	case []any:
		for _, item := range value {
			if name, ok := item.(string); ok {
				names = append(names, name)
			}
		}
	}

	for _, name := range names {
		switch name {
		case "null":
			continue
		case "integer":
			return int64Column
		case "number":
			return doubleColumn
		case "boolean":
			return booleanColumn
		default:
			return stringColumn
		}
	}
	return stringColumn
}

func codec(name string) compress.Codec {
	switch name {
	case "gzip":
		return &parquet.Gzip
	case "zstd":
		return &parquet.Zstd
	case "none":
		return &parquet.Uncompressed
	default:
		return &parquet.Snappy
	}
}
