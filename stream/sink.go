package stream

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danthegoodman1/tablestream/gologger"
	"github.com/rs/zerolog"
)

var logger = gologger.NewLogger()

type (
	// PartitionState is the terminal lifecycle of one partition during a sink
	// write: Idle -> Subscribed -> Writing -> (Completed | Errored). The
	// writer is closed exactly once on either terminal state.
	PartitionState int32

	PartitionResult struct {
		Partition int
		State     PartitionState
		// Rows successfully handed to the writer before completion or failure
		Rows int64
		Err  error
	}

	// SinkReport aggregates per-partition outcomes of a sink write. Partition
	// failures are isolated: they land here as Errored results instead of
	// aborting siblings.
	SinkReport struct {
		RowsWritten         int64
		PartitionsCompleted int
		PartitionsErrored   int
		Partitions          []PartitionResult
	}
)

const (
	StateIdle PartitionState = iota
	StateSubscribed
	StateWriting
	StateCompleted
	StateErrored
)

func (s PartitionState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateSubscribed:
		return "Subscribed"
	case StateWriting:
		return "Writing"
	case StateCompleted:
		return "Completed"
	case StateErrored:
		return "Errored"
	default:
		return "Unknown"
	}
}

// WriteTo drives every partition into its own writer concurrently: one worker
// and one writer per partition, rows written in partition order, no ordering
// across partitions. It waits for all workers to reach a terminal state,
// bounded by the stream config's SinkTimeout; exceeding the bound returns
// ErrSinkTimeout with a snapshot report, abandoning in-flight workers (no
// cancellation is propagated to them).
func (s *Stream) WriteTo(ctx context.Context, sink Sink) (SinkReport, error) {
	log := zerolog.Ctx(ctx)
	listener := s.notify()
	listener.Started()

	parts, err := s.partitions(ctx)
	if err != nil {
		listener.OnError(err)
		return SinkReport{}, err
	}

	var (
		totalRows int64
		notifyMu  sync.Mutex
		resCh     = make(chan PartitionResult, len(parts))
	)

	for i, p := range parts {
		go func(idx int, p Partition) {
			resCh <- s.writePartition(ctx, sink, idx, p, &totalRows, &notifyMu, listener)
		}(i, p)
	}

	report := SinkReport{Partitions: make([]PartitionResult, len(parts))}

	timer := time.NewTimer(s.cfg.sinkTimeout())
	defer timer.Stop()

	for received := 0; received < len(parts); received++ {
		select {
		case res := <-resCh:
			report.Partitions[res.Partition] = res
			if res.State == StateErrored {
				report.PartitionsErrored++
			} else {
				report.PartitionsCompleted++
			}
		case <-timer.C:
			report.RowsWritten = atomic.LoadInt64(&totalRows)
			log.Warn().Int("partitions", len(parts)).Int("completed", received).Msg("sink write timed out waiting for partition writers")
			listener.OnError(ErrSinkTimeout)
			return report, ErrSinkTimeout
		case <-ctx.Done():
			report.RowsWritten = atomic.LoadInt64(&totalRows)
			log.Warn().Int("partitions", len(parts)).Int("completed", received).Msg("caller context ended before partition writers finished")
			listener.OnError(ctx.Err())
			return report, ctx.Err()
		}
	}

	report.RowsWritten = atomic.LoadInt64(&totalRows)
	listener.OnComplete()
	return report, nil
}

// writePartition is one partition worker: it owns its writer exclusively and
// writes the partition's rows strictly in production order.
func (s *Stream) writePartition(ctx context.Context, sink Sink, idx int, p Partition, totalRows *int64, notifyMu *sync.Mutex, listener Listener) PartitionResult {
	res := PartitionResult{Partition: idx, State: StateSubscribed}

	fail := func(err error) PartitionResult {
		res.State = StateErrored
		res.Err = &PartitionFailure{Partition: idx, Err: err}
		logger.Debug().Err(err).Int("partition", idx).Msg("partition errored during sink write")
		notifyMu.Lock()
		listener.OnError(res.Err)
		notifyMu.Unlock()
		return res
	}

	defer p.Close()

	w, err := sink.Writer(ctx, s.schema)
	if err != nil {
		return fail(err)
	}
	defer w.Close()

	it, err := p.Iterator()
	if err != nil {
		return fail(err)
	}

	res.State = StateWriting
	for {
		row, err := it.Next()
		if err == ErrEndOfPartition {
			break
		}
		if err != nil {
			return fail(err)
		}
		if err := w.Write(ctx, row); err != nil {
			return fail(err)
		}
		res.Rows++
		atomic.AddInt64(totalRows, 1)
		notifyMu.Lock()
		listener.OnNext(row)
		notifyMu.Unlock()
	}

	res.State = StateCompleted
	return res
}
