package stream

import (
	"errors"
	"fmt"
)

var (
	// ErrEndOfPartition is returned by RowIterator.Next when a partition is
	// exhausted. It is a signal, not a failure.
	ErrEndOfPartition = errors.New("end of partition")

	// ErrAlreadyConsumed is returned when a non-restartable partition or
	// stream is pulled a second time.
	ErrAlreadyConsumed = errors.New("partition already consumed")

	// ErrRowCountMismatch is returned when the two sides of a zip join have
	// different coalesced lengths.
	ErrRowCountMismatch = errors.New("joined streams have mismatched row counts")

	// ErrSinkTimeout is returned when the sink action's completion barrier
	// exceeds its bound. In-flight partition workers are abandoned, not
	// cancelled.
	ErrSinkTimeout = errors.New("timed out waiting for partition writers")

	// ErrUnsupportedOperation is returned by backends for operations they
	// cannot support.
	ErrUnsupportedOperation = errors.New("operation not supported by this backend")
)

// PartitionFailure wraps an error raised while pulling or writing a single
// partition, carrying the partition index. Failures are isolated to their
// partition during sink writes.
type PartitionFailure struct {
	Partition int
	Err       error
}

func (e *PartitionFailure) Error() string {
	return fmt.Sprintf("partition %d failed: %s", e.Partition, e.Err)
}

func (e *PartitionFailure) Unwrap() error {
	return e.Err
}
