package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/danthegoodman1/tablestream/stream"
	"github.com/danthegoodman1/tablestream/utils"
	"github.com/jackc/pgx/v4/pgxpool"
)

type (
	Run struct {
		ID                  string
		Source              string
		Sink                string
		RowsWritten         int64
		PartitionsCompleted int64
		PartitionsErrored   int64
		CreatedAt           time.Time
	}
)

// RecordRun stores the aggregate result of a pipeline run.
func RecordRun(ctx context.Context, pool *pgxpool.Pool, runID, source, sink string, report stream.SinkReport) error {
	err := utils.ReliableExec(ctx, pool, StandardContextTimeout, func(ctx context.Context, conn *pgxpool.Conn) error {
		_, err := conn.Exec(ctx, `INSERT INTO pipeline_runs (id, source, sink, rows_written, partitions_completed, partitions_errored) VALUES ($1, $2, $3, $4, $5, $6)`,
			runID, source, sink, report.RowsWritten, report.PartitionsCompleted, report.PartitionsErrored)
		if err != nil {
			return fmt.Errorf("error inserting pipeline run: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("error in ReliableExec: %w", err)
	}
	return nil
}

// ListRuns returns the most recent pipeline runs, newest first.
func ListRuns(ctx context.Context, pool *pgxpool.Pool, limit int64) ([]Run, error) {
	var runs []Run
	err := utils.ReliableExec(ctx, pool, StandardContextTimeout, func(ctx context.Context, conn *pgxpool.Conn) error {
		rows, err := conn.Query(ctx, `SELECT id, source, sink, rows_written, partitions_completed, partitions_errored, created_at FROM pipeline_runs ORDER BY created_at DESC LIMIT $1`, limit)
		if err != nil {
			return fmt.Errorf("error querying pipeline runs: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r Run
			if err := rows.Scan(&r.ID, &r.Source, &r.Sink, &r.RowsWritten, &r.PartitionsCompleted, &r.PartitionsErrored, &r.CreatedAt); err != nil {
				return fmt.Errorf("error scanning pipeline run: %w", err)
			}
			runs = append(runs, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return runs, nil
}
