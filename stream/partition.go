package stream

import (
	"fmt"
	"sync"

	"github.com/danthegoodman1/tablestream/table"
)

type (
	// SlicePartition is an in-memory, restartable partition.
	SlicePartition struct {
		rows []table.Row
	}

	sliceIterator struct {
		rows []table.Row
		pos  int
	}

	// IteratorPartition adapts a raw RowIterator into a one-shot partition.
	// A second Iterator call fails with ErrAlreadyConsumed.
	IteratorPartition struct {
		mu       sync.Mutex
		it       RowIterator
		consumed bool
		closeFn  func() error
		closed   bool
	}

	// coalescedPartition concatenates partitions in index order into one
	// ordered sequence. It is not an interleaved merge.
	coalescedPartition struct {
		parts []Partition
	}

	coalescedIterator struct {
		parts []Partition
		pos   int
		cur   RowIterator
	}
)

func NewSlicePartition(rows []table.Row) *SlicePartition {
	return &SlicePartition{rows: rows}
}

func (p *SlicePartition) Iterator() (RowIterator, error) {
	return &sliceIterator{rows: p.rows}, nil
}

func (p *SlicePartition) Close() error {
	return nil
}

func (it *sliceIterator) Next() (table.Row, error) {
	if it.pos >= len(it.rows) {
		return table.Row{}, ErrEndOfPartition
	}
	row := it.rows[it.pos]
	it.pos++
	return row, nil
}

// NewIteratorPartition wraps it as a one-shot partition. closeFn may be nil.
func NewIteratorPartition(it RowIterator, closeFn func() error) *IteratorPartition {
	return &IteratorPartition{it: it, closeFn: closeFn}
}

func (p *IteratorPartition) Iterator() (RowIterator, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.consumed {
		return nil, ErrAlreadyConsumed
	}
	p.consumed = true
	return p.it, nil
}

func (p *IteratorPartition) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.closeFn == nil {
		p.closed = true
		return nil
	}
	p.closed = true
	return p.closeFn()
}

func newCoalescedPartition(parts []Partition) *coalescedPartition {
	return &coalescedPartition{parts: parts}
}

func (p *coalescedPartition) Iterator() (RowIterator, error) {
	return &coalescedIterator{parts: p.parts}, nil
}

func (p *coalescedPartition) Close() error {
	var firstErr error
	for _, part := range p.parts {
		if err := part.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (it *coalescedIterator) Next() (table.Row, error) {
	for {
		if it.cur == nil {
			if it.pos >= len(it.parts) {
				return table.Row{}, ErrEndOfPartition
			}
			cur, err := it.parts[it.pos].Iterator()
			if err != nil {
				return table.Row{}, fmt.Errorf("error getting iterator for partition %d: %w", it.pos, err)
			}
			it.cur = cur
		}
		row, err := it.cur.Next()
		if err == ErrEndOfPartition {
			// Exhausted partitions are closed as we cross the boundary so
			// backend resources are released deterministically.
			if closeErr := it.parts[it.pos].Close(); closeErr != nil {
				return table.Row{}, fmt.Errorf("error closing partition %d: %w", it.pos, closeErr)
			}
			it.cur = nil
			it.pos++
			continue
		}
		if err != nil {
			return table.Row{}, err
		}
		return row, nil
	}
}
