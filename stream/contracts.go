package stream

import (
	"context"

	"github.com/danthegoodman1/tablestream/table"
)

type (
	// RowIterator is a pull-based row sequence. Next returns ErrEndOfPartition
	// at exhaustion.
	RowIterator interface {
		Next() (table.Row, error)
	}

	// Partition is an ordered, lazily-pulled sequence of rows sharing one
	// schema. It may be finite or unbounded, and is not guaranteed restartable
	// unless the owning source supports re-creation.
	Partition interface {
		Iterator() (RowIterator, error)
		Close() error
	}

	// Source is the read-side backend contract. Partitions returns the
	// independently consumable partitions of the underlying table.
	Source interface {
		Schema(ctx context.Context) (*table.Schema, error)
		Partitions(ctx context.Context) ([]Partition, error)
	}

	// Sink is the write-side backend contract. Each Writer call returns a new
	// writer instance owned by exactly one caller.
	Sink interface {
		Writer(ctx context.Context, schema *table.Schema) (Writer, error)
	}

	// Writer accepts rows sequentially. Close is idempotent and releases all
	// resources held by the writer.
	Writer interface {
		Write(ctx context.Context, row table.Row) error
		Close() error
	}

	// Listener observes row flow through an action without altering it. All
	// callbacks are side-effect-only; OnNext may be invoked from multiple
	// partition workers during sink writes.
	Listener interface {
		Started()
		OnNext(row table.Row)
		OnError(err error)
		OnComplete()
	}

	// NopListener is the default no-op Listener.
	NopListener struct{}
)

func (NopListener) Started()         {}
func (NopListener) OnNext(table.Row) {}
func (NopListener) OnError(error)    {}
func (NopListener) OnComplete()      {}
