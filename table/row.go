package table

import (
	"fmt"
)

type (
	// Row is an immutable value: a schema reference plus one value per field,
	// in the schema's field order.
	Row struct {
		schema *Schema
		values []any
	}
)

// NewRow builds a row, failing with ErrSchemaMismatch when the value count
// does not match the schema arity.
func NewRow(schema *Schema, values []any) (Row, error) {
	if len(values) != schema.Len() {
		return Row{}, fmt.Errorf("got %d values for %d fields: %w", len(values), schema.Len(), ErrSchemaMismatch)
	}
	vals := make([]any, len(values))
	copy(vals, values)
	return Row{schema: schema, values: vals}, nil
}

// NewRowFromMap builds a row by matching map keys to schema field names.
// Missing keys become nil values.
func NewRowFromMap(schema *Schema, m map[string]any) (Row, error) {
	values := make([]any, schema.Len())
	for i, f := range schema.fields {
		values[i] = m[f.Name]
	}
	return Row{schema: schema, values: values}, nil
}

func (r Row) Schema() *Schema {
	return r.schema
}

func (r Row) Len() int {
	return len(r.values)
}

func (r Row) Value(i int) any {
	return r.values[i]
}

func (r Row) ValueByName(name string) (any, error) {
	i, ok := r.schema.Index(name)
	if !ok {
		return nil, fmt.Errorf("field %s: %w", name, ErrFieldNotFound)
	}
	return r.values[i], nil
}

// Values returns a copy of the value list.
func (r Row) Values() []any {
	values := make([]any, len(r.values))
	copy(values, r.values)
	return values
}

// WithValues returns a new row over the same schema.
func (r Row) WithValues(values []any) (Row, error) {
	return NewRow(r.schema, values)
}

// WithValue returns a new row with a single value replaced by field name.
func (r Row) WithValue(name string, value any) (Row, error) {
	i, ok := r.schema.Index(name)
	if !ok {
		return Row{}, fmt.Errorf("field %s: %w", name, ErrFieldNotFound)
	}
	values := r.Values()
	values[i] = value
	return NewRow(r.schema, values)
}

// WithSchema re-tags the row with a derived schema of identical arity,
// leaving the values untouched.
func (r Row) WithSchema(schema *Schema) (Row, error) {
	if len(r.values) != schema.Len() {
		return Row{}, fmt.Errorf("got %d values for %d fields: %w", len(r.values), schema.Len(), ErrSchemaMismatch)
	}
	return Row{schema: schema, values: r.values}, nil
}

// Project returns a new row holding only the named fields, in the given
// order.
func (r Row) Project(names ...string) (Row, error) {
	schema, err := r.schema.Project(names...)
	if err != nil {
		return Row{}, err
	}
	values := make([]any, len(names))
	for i, name := range names {
		idx, _ := r.schema.Index(name)
		values[i] = r.values[idx]
	}
	return Row{schema: schema, values: values}, nil
}

// ToMap converts the row to a field name keyed map, for backends that speak
// JSON-shaped rows.
func (r Row) ToMap() map[string]any {
	m := make(map[string]any, len(r.values))
	for i, f := range r.schema.fields {
		m[f.Name] = r.values[i]
	}
	return m
}
