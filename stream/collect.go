package stream

import (
	"context"
	"fmt"

	"github.com/danthegoodman1/tablestream/table"
)

// Collect coalesces all partitions in concatenation order and materializes
// them into one in-memory sequence. Each call re-pulls from scratch; pulling
// non-restartable partitions a second time fails with ErrAlreadyConsumed.
func (s *Stream) Collect(ctx context.Context) ([]table.Row, error) {
	listener := s.notify()
	listener.Started()

	parts, err := s.partitions(ctx)
	if err != nil {
		listener.OnError(err)
		return nil, err
	}

	out := make([]table.Row, 0)
	it := &coalescedIterator{parts: parts}
	for {
		row, err := it.Next()
		if err == ErrEndOfPartition {
			break
		}
		if err != nil {
			// Release whatever the fault left open before propagating.
			for i := it.pos; i < len(parts); i++ {
				parts[i].Close()
			}
			listener.OnError(err)
			return nil, fmt.Errorf("error pulling row: %w", err)
		}
		listener.OnNext(row)
		out = append(out, row)
	}

	listener.OnComplete()
	return out, nil
}

type (
	// StreamIterator is the pull-based terminal: each Next pulls exactly one
	// upstream row. It is not restartable. Close releases any partitions not
	// yet exhausted, and is safe after exhaustion.
	StreamIterator struct {
		it       *coalescedIterator
		listener Listener
		done     bool
	}
)

// Iterator executes the pipeline lazily, returning a pull-based sequence over
// the coalesced partitions. Finite or infinite depending on the underlying
// partitions.
func (s *Stream) Iterator(ctx context.Context) (*StreamIterator, error) {
	listener := s.notify()
	listener.Started()

	parts, err := s.partitions(ctx)
	if err != nil {
		listener.OnError(err)
		return nil, err
	}

	return &StreamIterator{
		it:       &coalescedIterator{parts: parts},
		listener: listener,
	}, nil
}

func (si *StreamIterator) Next() (table.Row, error) {
	if si.done {
		return table.Row{}, ErrEndOfPartition
	}
	row, err := si.it.Next()
	if err == ErrEndOfPartition {
		si.done = true
		si.listener.OnComplete()
		return table.Row{}, ErrEndOfPartition
	}
	if err != nil {
		si.done = true
		si.listener.OnError(err)
		return table.Row{}, err
	}
	si.listener.OnNext(row)
	return row, nil
}

// Close releases partitions the iterator never reached. Exhausted partitions
// are already closed at pull boundaries.
func (si *StreamIterator) Close() error {
	si.done = true
	var firstErr error
	for i := si.it.pos; i < len(si.it.parts); i++ {
		if err := si.it.parts[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	si.it.pos = len(si.it.parts)
	si.it.cur = nil
	return firstErr
}
