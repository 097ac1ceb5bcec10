package stream

import (
	"context"
	"fmt"

	"github.com/danthegoodman1/tablestream/table"
)

type (
	transformKind int

	// transform is one tagged pipeline step. The closed set of kinds keeps the
	// pipeline introspectable as data, with apply as the single interpreter.
	transform struct {
		kind   transformKind
		mapFn  MapFunc
		pred   PredicateFunc
		n      int
		schema *table.Schema
		other  *Stream
	}

	// viewPartition wraps an inner partition, deriving rows through wrap at
	// pull time. Closing the view closes the inner partition.
	viewPartition struct {
		inner Partition
		wrap  func(RowIterator) RowIterator
	}

	mapIterator struct {
		in RowIterator
		fn MapFunc
	}

	filterIterator struct {
		in   RowIterator
		pred PredicateFunc
	}

	retagIterator struct {
		in     RowIterator
		schema *table.Schema
	}

	takeIterator struct {
		in        RowIterator
		remaining int
	}

	dropIterator struct {
		in      RowIterator
		n       int
		dropped bool
	}

	// boundedIterator stops at the first row failing pred (negate inverts the
	// predicate for take-until).
	boundedIterator struct {
		in     RowIterator
		pred   PredicateFunc
		negate bool
		done   bool
	}

	zipIterator struct {
		left   RowIterator
		right  RowIterator
		schema *table.Schema
	}
)

const (
	opMap transformKind = iota
	opFilter
	opRetag
	opCoalesce
	opTake
	opDrop
	opTakeWhile
	opTakeUntil
	opZip
)

func (t transform) apply(ctx context.Context, parts []Partition) ([]Partition, error) {
	switch t.kind {
	case opMap:
		return wrapEach(parts, func(in RowIterator) RowIterator {
			return &mapIterator{in: in, fn: t.mapFn}
		}), nil
	case opFilter:
		return wrapEach(parts, func(in RowIterator) RowIterator {
			return &filterIterator{in: in, pred: t.pred}
		}), nil
	case opRetag:
		return wrapEach(parts, func(in RowIterator) RowIterator {
			return &retagIterator{in: in, schema: t.schema}
		}), nil
	case opCoalesce:
		return []Partition{newCoalescedPartition(parts)}, nil
	case opTake:
		return wrapCoalesced(parts, func(in RowIterator) RowIterator {
			return &takeIterator{in: in, remaining: t.n}
		}), nil
	case opDrop:
		return wrapCoalesced(parts, func(in RowIterator) RowIterator {
			return &dropIterator{in: in, n: t.n}
		}), nil
	case opTakeWhile:
		return wrapCoalesced(parts, func(in RowIterator) RowIterator {
			return &boundedIterator{in: in, pred: t.pred}
		}), nil
	case opTakeUntil:
		return wrapCoalesced(parts, func(in RowIterator) RowIterator {
			return &boundedIterator{in: in, pred: t.pred, negate: true}
		}), nil
	case opZip:
		otherParts, err := t.other.partitions(ctx)
		if err != nil {
			return nil, fmt.Errorf("error producing joined stream partitions: %w", err)
		}
		left := newCoalescedPartition(parts)
		right := newCoalescedPartition(otherParts)
		return []Partition{&zipPartition{left: left, right: right, schema: t.schema}}, nil
	default:
		return nil, fmt.Errorf("unknown transform kind %d", t.kind)
	}
}

func wrapEach(parts []Partition, wrap func(RowIterator) RowIterator) []Partition {
	out := make([]Partition, len(parts))
	for i, p := range parts {
		out[i] = &viewPartition{inner: p, wrap: wrap}
	}
	return out
}

func wrapCoalesced(parts []Partition, wrap func(RowIterator) RowIterator) []Partition {
	return []Partition{&viewPartition{inner: newCoalescedPartition(parts), wrap: wrap}}
}

func (v *viewPartition) Iterator() (RowIterator, error) {
	it, err := v.inner.Iterator()
	if err != nil {
		return nil, err
	}
	return v.wrap(it), nil
}

func (v *viewPartition) Close() error {
	return v.inner.Close()
}

func (it *mapIterator) Next() (table.Row, error) {
	row, err := it.in.Next()
	if err != nil {
		return table.Row{}, err
	}
	mapped, err := it.fn(row)
	if err != nil {
		return table.Row{}, fmt.Errorf("error in map function: %w", err)
	}
	return mapped, nil
}

func (it *filterIterator) Next() (table.Row, error) {
	for {
		row, err := it.in.Next()
		if err != nil {
			return table.Row{}, err
		}
		keep, err := it.pred(row)
		if err != nil {
			return table.Row{}, fmt.Errorf("error in filter predicate: %w", err)
		}
		if keep {
			return row, nil
		}
	}
}

func (it *retagIterator) Next() (table.Row, error) {
	row, err := it.in.Next()
	if err != nil {
		return table.Row{}, err
	}
	retagged, err := row.WithSchema(it.schema)
	if err != nil {
		return table.Row{}, fmt.Errorf("error re-tagging row schema: %w", err)
	}
	return retagged, nil
}

func (it *takeIterator) Next() (table.Row, error) {
	if it.remaining <= 0 {
		return table.Row{}, ErrEndOfPartition
	}
	row, err := it.in.Next()
	if err != nil {
		return table.Row{}, err
	}
	it.remaining--
	return row, nil
}

func (it *dropIterator) Next() (table.Row, error) {
	if !it.dropped {
		it.dropped = true
		for i := 0; i < it.n; i++ {
			_, err := it.in.Next()
			if err == ErrEndOfPartition {
				return table.Row{}, ErrEndOfPartition
			}
			if err != nil {
				return table.Row{}, err
			}
		}
	}
	return it.in.Next()
}

func (it *boundedIterator) Next() (table.Row, error) {
	if it.done {
		return table.Row{}, ErrEndOfPartition
	}
	row, err := it.in.Next()
	if err != nil {
		return table.Row{}, err
	}
	keep, err := it.pred(row)
	if err != nil {
		return table.Row{}, fmt.Errorf("error in bound predicate: %w", err)
	}
	if it.negate {
		keep = !keep
	}
	if !keep {
		it.done = true
		return table.Row{}, ErrEndOfPartition
	}
	return row, nil
}

type zipPartition struct {
	left   Partition
	right  Partition
	schema *table.Schema
}

func (p *zipPartition) Iterator() (RowIterator, error) {
	left, err := p.left.Iterator()
	if err != nil {
		return nil, err
	}
	right, err := p.right.Iterator()
	if err != nil {
		return nil, err
	}
	return &zipIterator{left: left, right: right, schema: p.schema}, nil
}

func (p *zipPartition) Close() error {
	leftErr := p.left.Close()
	rightErr := p.right.Close()
	if leftErr != nil {
		return leftErr
	}
	return rightErr
}

func (it *zipIterator) Next() (table.Row, error) {
	leftRow, leftErr := it.left.Next()
	rightRow, rightErr := it.right.Next()

	if leftErr == ErrEndOfPartition && rightErr == ErrEndOfPartition {
		return table.Row{}, ErrEndOfPartition
	}
	if leftErr == ErrEndOfPartition || rightErr == ErrEndOfPartition {
		// One side ran out first, never truncate or pad.
		return table.Row{}, ErrRowCountMismatch
	}
	if leftErr != nil {
		return table.Row{}, leftErr
	}
	if rightErr != nil {
		return table.Row{}, rightErr
	}

	values := append(leftRow.Values(), rightRow.Values()...)
	row, err := table.NewRow(it.schema, values)
	if err != nil {
		return table.Row{}, fmt.Errorf("error building joined row: %w", err)
	}
	return row, nil
}
