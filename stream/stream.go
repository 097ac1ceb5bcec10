package stream

import (
	"context"
	"fmt"

	"github.com/danthegoodman1/tablestream/table"
)

type (
	// MapFunc transforms one row into another. Errors surface at pull time,
	// attributed to the partition that produced the row.
	MapFunc func(table.Row) (table.Row, error)

	// PredicateFunc decides whether a row passes a filter or bound.
	PredicateFunc func(table.Row) (bool, error)

	// Stream is a lazy table: a schema plus deferred partitions, with a
	// pipeline of pending transformations held as data. Constructing or
	// transforming a stream never touches I/O; exactly one terminal action
	// (Collect, Iterator, WriteTo) executes the pipeline.
	Stream struct {
		schema   *table.Schema
		parts    func(ctx context.Context) ([]Partition, error)
		ops      []transform
		cfg      Config
		listener Listener
	}
)

// FromSource builds a stream over a backend source. Only the schema is read
// here, partitions are pulled by the terminal action.
func FromSource(ctx context.Context, src Source, cfg Config) (*Stream, error) {
	schema, err := src.Schema(ctx)
	if err != nil {
		return nil, fmt.Errorf("error in src.Schema: %w", err)
	}
	if cfg.CaseInsensitiveFields {
		schema, err = table.NewSchemaWithPolicy(schema.Fields(), true)
		if err != nil {
			return nil, fmt.Errorf("error rebuilding schema with case policy: %w", err)
		}
	}
	return &Stream{
		schema: schema,
		parts:  src.Partitions,
		cfg:    cfg,
	}, nil
}

// FromRows builds an in-memory stream, one restartable partition per row
// slice.
func FromRows(schema *table.Schema, partitions [][]table.Row, cfg Config) *Stream {
	return &Stream{
		schema: schema,
		parts: func(ctx context.Context) ([]Partition, error) {
			parts := make([]Partition, len(partitions))
			for i, rows := range partitions {
				parts[i] = NewSlicePartition(rows)
			}
			return parts, nil
		},
		cfg: cfg,
	}
}

func (s *Stream) Schema() *table.Schema {
	return s.schema
}

// WithListener attaches an observer that terminal actions will notify. The
// listener never alters row flow.
func (s *Stream) WithListener(l Listener) *Stream {
	next := s.derive(s.schema, nil)
	next.listener = l
	return next
}

func (s *Stream) notify() Listener {
	if s.listener == nil {
		return NopListener{}
	}
	return s.listener
}

// derive returns a new stream with op appended (or no-op when op is nil). The
// receiver is left untouched.
func (s *Stream) derive(schema *table.Schema, op *transform) *Stream {
	ops := make([]transform, len(s.ops), len(s.ops)+1)
	copy(ops, s.ops)
	if op != nil {
		ops = append(ops, *op)
	}
	return &Stream{
		schema:   schema,
		parts:    s.parts,
		ops:      ops,
		cfg:      s.cfg,
		listener: s.listener,
	}
}

// Map transforms every row positionally, order preserved, schema unchanged.
func (s *Stream) Map(fn MapFunc) *Stream {
	return s.derive(s.schema, &transform{kind: opMap, mapFn: fn})
}

// Filter keeps rows satisfying pred. Partition count and identity are
// preserved, so partitions still filter in parallel.
func (s *Stream) Filter(pred PredicateFunc) *Stream {
	return s.derive(s.schema, &transform{kind: opFilter, pred: pred})
}

// RenameField renames one schema field. Every emitted row is re-tagged with
// the derived schema, values untouched.
func (s *Stream) RenameField(from, to string) (*Stream, error) {
	renamed, err := s.schema.Rename(from, to)
	if err != nil {
		return nil, fmt.Errorf("error renaming schema field: %w", err)
	}
	return s.derive(renamed, &transform{kind: opRetag, schema: renamed}), nil
}

// ToLowerCaseSchema lower-cases every schema field name, re-tagging rows as
// they are produced.
func (s *Stream) ToLowerCaseSchema() (*Stream, error) {
	lowered, err := s.schema.LowerCased()
	if err != nil {
		return nil, fmt.Errorf("error lowercasing schema: %w", err)
	}
	return s.derive(lowered, &transform{kind: opRetag, schema: lowered}), nil
}

// Coalesce collapses all partitions into one by concatenation in partition
// order.
func (s *Stream) Coalesce() *Stream {
	return s.derive(s.schema, &transform{kind: opCoalesce})
}

// Take coalesces and keeps the first n rows of the concatenated order.
func (s *Stream) Take(n int) *Stream {
	return s.derive(s.schema, &transform{kind: opTake, n: n})
}

// Drop coalesces and skips the first n rows, forwarding the remainder.
func (s *Stream) Drop(n int) *Stream {
	return s.derive(s.schema, &transform{kind: opDrop, n: n})
}

// TakeWhile coalesces and emits rows while pred holds, stopping at the first
// row that fails it.
func (s *Stream) TakeWhile(pred PredicateFunc) *Stream {
	return s.derive(s.schema, &transform{kind: opTakeWhile, pred: pred})
}

// TakeUntil coalesces and emits rows until pred first holds. The triggering
// row is not emitted.
func (s *Stream) TakeUntil(pred PredicateFunc) *Stream {
	return s.derive(s.schema, &transform{kind: opTakeUntil, pred: pred})
}

// Join zips this stream with other position-wise: both sides are coalesced,
// then row i of each side is concatenated field-wise. Mismatched coalesced
// lengths fail with ErrRowCountMismatch at pull time.
func (s *Stream) Join(other *Stream) (*Stream, error) {
	joined, err := s.schema.Concat(other.schema)
	if err != nil {
		return nil, fmt.Errorf("error concatenating schemas: %w", err)
	}
	return s.derive(joined, &transform{kind: opZip, schema: joined, other: other}), nil
}

// partitions runs the interpreter: source partitions first, then each pending
// transformation wraps them in lazily-derived views.
func (s *Stream) partitions(ctx context.Context) ([]Partition, error) {
	parts, err := s.parts(ctx)
	if err != nil {
		return nil, fmt.Errorf("error producing source partitions: %w", err)
	}
	for _, op := range s.ops {
		parts, err = op.apply(ctx, parts)
		if err != nil {
			return nil, err
		}
	}
	return parts, nil
}
