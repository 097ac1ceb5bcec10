package partitioner

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/danthegoodman1/tablestream/stream"
	"github.com/danthegoodman1/tablestream/table"
)

type (
	// WriterFactory opens a child writer for one partition key. Called at
	// most once per key per owning writer.
	WriterFactory func(ctx context.Context, partitionKey string, schema *table.Schema) (stream.Writer, error)

	// KeyedSink fans rows out to child writers chosen by the row's rendered
	// partition key. Each Writer call returns an independent router, so
	// concurrent partition workers never share child writers; the sink only
	// shares the key registry, which records every partition location seen.
	KeyedSink struct {
		plans   []PartitionPlan
		factory WriterFactory

		mu   sync.Mutex
		keys map[string]struct{}
	}

	keyedWriter struct {
		mu      sync.Mutex
		sink    *KeyedSink
		schema  *table.Schema
		writers map[string]stream.Writer
		closed  bool
	}
)

func NewKeyedSink(plans []PartitionPlan, factory WriterFactory) *KeyedSink {
	return &KeyedSink{
		plans:   plans,
		factory: factory,
		keys:    make(map[string]struct{}),
	}
}

// Locations returns every partition key this sink has seen, sorted.
func (s *KeyedSink) Locations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.keys))
	for k := range s.keys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *KeyedSink) registerKey(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key] = struct{}{}
}

func (s *KeyedSink) Writer(ctx context.Context, schema *table.Schema) (stream.Writer, error) {
	return &keyedWriter{
		sink:    s,
		schema:  schema,
		writers: make(map[string]stream.Writer),
	}, nil
}

func (w *keyedWriter) Write(ctx context.Context, row table.Row) error {
	key, err := GetRowPartition(row, w.sink.plans)
	if err != nil {
		return fmt.Errorf("error getting partition for row: %w", err)
	}

	child, ok := w.writers[key]
	if !ok {
		w.sink.registerKey(key)
		child, err = w.sink.factory(ctx, key, w.schema)
		if err != nil {
			return fmt.Errorf("error opening writer for partition %s: %w", key, err)
		}
		w.writers[key] = child
	}

	return child.Write(ctx, row)
}

// Close closes every child writer exactly once, returning the first error.
func (w *keyedWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	var firstErr error
	for _, child := range w.writers {
		if err := child.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
