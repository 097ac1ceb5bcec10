package http_server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/danthegoodman1/tablestream/engine"
	"github.com/danthegoodman1/tablestream/pgstore"
	"github.com/danthegoodman1/tablestream/stream"
	"github.com/danthegoodman1/tablestream/utils"
	"github.com/rs/zerolog"
)

type (
	RenameSpec struct {
		From string `validate:"required"`
		To   string `validate:"required"`
	}

	RunReqBody struct {
		Source string `validate:"required"`
		Sink   string `validate:"required"`

		// Declarative transformations, applied in struct order
		Renames         []RenameSpec
		LowerCaseSchema bool
		DropFirst       *int
		Take            *int

		// How many seconds before the run's caller wait times out.
		//
		// Default `60`.
		MaxRuntimeSec *int64
	}

	RunStats struct {
		RunID               string
		RowsWritten         int64
		PartitionsCompleted int
		PartitionsErrored   int
		TimeMS              int64
	}
)

func (s *HTTPServer) RunPipelineHandler(c *CustomContext) error {
	var reqBody RunReqBody
	if err := ValidateRequest(c, &reqBody); err != nil {
		return c.String(http.StatusBadRequest, err.Error())
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), time.Second*time.Duration(utils.Deref(reqBody.MaxRuntimeSec, 60)))
	defer cancel()

	logger := zerolog.Ctx(ctx)

	runID := utils.GenKSortedID("run_")
	start := time.Now()

	report, err := s.Engine.Run(ctx, reqBody.Source, reqBody.Sink, func(st *stream.Stream) (*stream.Stream, error) {
		var err error
		for _, rename := range reqBody.Renames {
			st, err = st.RenameField(rename.From, rename.To)
			if err != nil {
				return nil, fmt.Errorf("error renaming %s to %s: %w", rename.From, rename.To, err)
			}
		}
		if reqBody.LowerCaseSchema {
			st, err = st.ToLowerCaseSchema()
			if err != nil {
				return nil, fmt.Errorf("error lowercasing schema: %w", err)
			}
		}
		if reqBody.DropFirst != nil {
			st = st.Drop(*reqBody.DropFirst)
		}
		if reqBody.Take != nil {
			st = st.Take(*reqBody.Take)
		}
		return st, nil
	})
	if errors.Is(err, engine.ErrNotRegistered) {
		return c.String(http.StatusNotFound, err.Error())
	}
	if errors.Is(err, stream.ErrSinkTimeout) {
		return c.String(http.StatusGatewayTimeout, err.Error())
	}
	if err != nil {
		return c.InternalError(err, "error running pipeline")
	}

	logger.Debug().Str("runID", runID).Int64("rowsWritten", report.RowsWritten).Int("partitionsErrored", report.PartitionsErrored).Msg("pipeline run finished")

	if pgstore.PGPool != nil {
		err = pgstore.RecordRun(ctx, pgstore.PGPool, runID, reqBody.Source, reqBody.Sink, report)
		if err != nil {
			return c.InternalError(err, "error recording pipeline run")
		}
	}

	stats := RunStats{
		RunID:               runID,
		RowsWritten:         report.RowsWritten,
		PartitionsCompleted: report.PartitionsCompleted,
		PartitionsErrored:   report.PartitionsErrored,
		TimeMS:              time.Since(start).Milliseconds(),
	}

	return c.JSON(http.StatusOK, stats)
}
