package http_server

import (
	"net/http"

	"github.com/danthegoodman1/tablestream/pgstore"
	"github.com/danthegoodman1/tablestream/utils"
)

func (s *HTTPServer) ListSourcesHandler(c *CustomContext) error {
	return c.JSON(http.StatusOK, utils.ArrayOrEmpty(s.Engine.SourceNames()))
}

func (s *HTTPServer) ListSinksHandler(c *CustomContext) error {
	return c.JSON(http.StatusOK, utils.ArrayOrEmpty(s.Engine.SinkNames()))
}

func (s *HTTPServer) ListRunsHandler(c *CustomContext) error {
	if pgstore.PGPool == nil {
		return c.String(http.StatusServiceUnavailable, "no run ledger connected")
	}

	runs, err := pgstore.ListRuns(c.Request().Context(), pgstore.PGPool, 50)
	if err != nil {
		return c.InternalError(err, "error listing runs")
	}

	return c.JSON(http.StatusOK, utils.ArrayOrEmpty(runs))
}
