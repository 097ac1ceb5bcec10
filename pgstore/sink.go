package pgstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/danthegoodman1/tablestream/stream"
	"github.com/danthegoodman1/tablestream/table"
	"github.com/danthegoodman1/tablestream/utils"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const defaultBatchSize = 500

type (
	// Sink writes rows into one relational table in transactional batches.
	Sink struct {
		pool      *pgxpool.Pool
		tableName string
		batchSize int
	}

	pgWriter struct {
		mu     sync.Mutex
		sink   *Sink
		cols   []string
		buf    [][]any
		closed bool
	}
)

func NewSink(pool *pgxpool.Pool, tableName string) *Sink {
	return &Sink{pool: pool, tableName: tableName, batchSize: defaultBatchSize}
}

func (s *Sink) Writer(ctx context.Context, schema *table.Schema) (stream.Writer, error) {
	return &pgWriter{
		sink: s,
		cols: schema.FieldNames(),
	}, nil
}

func (w *pgWriter) Write(ctx context.Context, row table.Row) error {
	w.buf = append(w.buf, row.Values())
	if len(w.buf) >= w.sink.batchSize {
		return w.flush(ctx)
	}
	return nil
}

func (w *pgWriter) flush(ctx context.Context) error {
	if len(w.buf) == 0 {
		return nil
	}
	batch := w.buf
	w.buf = nil

	err := utils.ReliableExecInTx(ctx, w.sink.pool, time.Second*30, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.CopyFrom(ctx, pgx.Identifier{w.sink.tableName}, w.cols, pgx.CopyFromRows(batch))
		if err != nil {
			return fmt.Errorf("error in tx.CopyFrom: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("error flushing row batch: %w", err)
	}
	return nil
}

func (w *pgWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	// The owning worker is done writing, flush whatever it buffered.
	ctx, cancel := context.WithTimeout(context.Background(), StandardContextTimeout*6)
	defer cancel()
	return w.flush(ctx)
}
