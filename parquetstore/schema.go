package parquetstore

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/danthegoodman1/tablestream/table"
)

type (
	parquetJSONSchema struct {
		Tag    string               `json:",omitempty"`
		Fields []*parquetJSONSchema `json:",omitempty"`
	}

	schemaTag struct {
		name           string
		typ            string
		convertedType  string
		encoding       string
		repetitionType string
	}
)

// SchemaString renders a table schema as the parquet-go JSON schema format
// consumed by its JSON writer.
func SchemaString(schema *table.Schema) (string, error) {
	fields := make([]*parquetJSONSchema, 0, schema.Len())
	for _, f := range schema.Fields() {
		tag, err := fieldTag(f)
		if err != nil {
			return "", err
		}
		fields = append(fields, &parquetJSONSchema{Tag: tag.String()})
	}
	pjs := parquetJSONSchema{
		Tag:    "name=parquet_go_root, repetitiontype=REQUIRED",
		Fields: fields,
	}
	b, err := json.Marshal(pjs)
	if err != nil {
		return "", fmt.Errorf("error in json.Marshal: %w", err)
	}
	return string(b), nil
}

func fieldTag(f table.Field) (schemaTag, error) {
	tag := schemaTag{
		// parquet-go wants exported-style names, it can figure out the rest
		name:           strings.ToUpper(f.Name[:1]) + f.Name[1:],
		repetitionType: "REQUIRED",
	}
	if f.Nullable {
		tag.repetitionType = "OPTIONAL"
	}

	switch f.Type {
	case table.TypeString:
		tag.typ = "BYTE_ARRAY"
		tag.convertedType = "UTF8"
		tag.encoding = "PLAIN"
	case table.TypeBytes:
		tag.typ = "BYTE_ARRAY"
	case table.TypeInt64:
		tag.typ = "INT64"
	case table.TypeFloat64:
		tag.typ = "DOUBLE"
	case table.TypeBool:
		tag.typ = "BOOLEAN"
	case table.TypeTimestamp:
		tag.typ = "INT64"
		tag.convertedType = "TIMESTAMP_MILLIS"
	default:
		return schemaTag{}, fmt.Errorf("field %s has no parquet mapping for type %s", f.Name, f.Type)
	}
	return tag, nil
}

func (t schemaTag) String() string {
	var parts []string
	if t.typ != "" {
		parts = append(parts, "type="+t.typ)
	}
	if t.convertedType != "" {
		parts = append(parts, "convertedtype="+t.convertedType)
	}
	if t.encoding != "" {
		parts = append(parts, "encoding="+t.encoding)
	}
	parts = append(parts, "name="+t.name, "repetitiontype="+t.repetitionType)
	return strings.Join(parts, ", ")
}
