package table

import (
	"errors"
	"fmt"
	"strings"
)

type (
	// FieldType is the logical type of a column, independent of any backend's
	// physical representation.
	FieldType string

	Field struct {
		Name     string
		Type     FieldType
		Nullable bool
	}

	// Schema is an immutable, ordered set of fields. Derived schemas (rename,
	// lowercase, concat) are always new values.
	Schema struct {
		fields          []Field
		nameToIndex     map[string]int
		caseInsensitive bool
	}
)

const (
	TypeString    FieldType = "STRING"
	TypeInt64     FieldType = "INT64"
	TypeFloat64   FieldType = "FLOAT64"
	TypeBool      FieldType = "BOOL"
	TypeBytes     FieldType = "BYTES"
	TypeTimestamp FieldType = "TIMESTAMP"
)

var (
	ErrDuplicateField = errors.New("duplicate field name in schema")
	ErrFieldNotFound  = errors.New("field not found in schema")
	ErrSchemaMismatch = errors.New("row does not match schema")
)

// NewSchema builds a case-sensitive schema. Field names must be unique.
func NewSchema(fields []Field) (*Schema, error) {
	return newSchema(fields, false)
}

// NewSchemaWithPolicy builds a schema with an explicit field name case policy.
func NewSchemaWithPolicy(fields []Field, caseInsensitive bool) (*Schema, error) {
	return newSchema(fields, caseInsensitive)
}

func newSchema(fields []Field, caseInsensitive bool) (*Schema, error) {
	s := &Schema{
		fields:          make([]Field, len(fields)),
		nameToIndex:     make(map[string]int, len(fields)),
		caseInsensitive: caseInsensitive,
	}
	copy(s.fields, fields)
	for i, f := range s.fields {
		key := s.normalize(f.Name)
		if _, exists := s.nameToIndex[key]; exists {
			return nil, fmt.Errorf("field %s: %w", f.Name, ErrDuplicateField)
		}
		s.nameToIndex[key] = i
	}
	return s, nil
}

func (s *Schema) normalize(name string) string {
	if s.caseInsensitive {
		return strings.ToLower(name)
	}
	return name
}

func (s *Schema) Len() int {
	return len(s.fields)
}

func (s *Schema) Field(i int) Field {
	return s.fields[i]
}

// Fields returns a copy of the field list.
func (s *Schema) Fields() []Field {
	fields := make([]Field, len(s.fields))
	copy(fields, s.fields)
	return fields
}

func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// Index returns the positional index of a field by name.
func (s *Schema) Index(name string) (int, bool) {
	i, ok := s.nameToIndex[s.normalize(name)]
	return i, ok
}

// Rename returns a new schema with one field renamed, values untouched.
func (s *Schema) Rename(from, to string) (*Schema, error) {
	i, ok := s.Index(from)
	if !ok {
		return nil, fmt.Errorf("field %s: %w", from, ErrFieldNotFound)
	}
	fields := s.Fields()
	fields[i].Name = to
	renamed, err := newSchema(fields, s.caseInsensitive)
	if err != nil {
		return nil, fmt.Errorf("error building renamed schema: %w", err)
	}
	return renamed, nil
}

// LowerCased returns a new schema with every field name lower-cased.
func (s *Schema) LowerCased() (*Schema, error) {
	fields := s.Fields()
	for i := range fields {
		fields[i].Name = strings.ToLower(fields[i].Name)
	}
	lowered, err := newSchema(fields, s.caseInsensitive)
	if err != nil {
		return nil, fmt.Errorf("error building lowercased schema: %w", err)
	}
	return lowered, nil
}

// Project returns a new schema containing the named fields, in the given
// order.
func (s *Schema) Project(names ...string) (*Schema, error) {
	fields := make([]Field, 0, len(names))
	for _, name := range names {
		i, ok := s.Index(name)
		if !ok {
			return nil, fmt.Errorf("field %s: %w", name, ErrFieldNotFound)
		}
		fields = append(fields, s.fields[i])
	}
	projected, err := newSchema(fields, s.caseInsensitive)
	if err != nil {
		return nil, fmt.Errorf("error building projected schema: %w", err)
	}
	return projected, nil
}

// Concat returns a new schema that is the field-wise concatenation of s and
// other, for zip joins. Colliding field names fail with ErrDuplicateField.
func (s *Schema) Concat(other *Schema) (*Schema, error) {
	fields := append(s.Fields(), other.Fields()...)
	joined, err := newSchema(fields, s.caseInsensitive)
	if err != nil {
		return nil, fmt.Errorf("error building joined schema: %w", err)
	}
	return joined, nil
}

// Equal compares field lists positionally, ignoring the case policy.
func (s *Schema) Equal(other *Schema) bool {
	if s == other {
		return true
	}
	if other == nil || len(s.fields) != len(other.fields) {
		return false
	}
	for i, f := range s.fields {
		if f != other.fields[i] {
			return false
		}
	}
	return true
}
