package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/danthegoodman1/tablestream/engine"
	"github.com/danthegoodman1/tablestream/gologger"
	"github.com/danthegoodman1/tablestream/http_server"
	"github.com/danthegoodman1/tablestream/jsonstore"
	"github.com/danthegoodman1/tablestream/migrations"
	"github.com/danthegoodman1/tablestream/parquetstore"
	"github.com/danthegoodman1/tablestream/partitioner"
	"github.com/danthegoodman1/tablestream/pgstore"
	"github.com/danthegoodman1/tablestream/s3store"
	"github.com/danthegoodman1/tablestream/stream"
	"github.com/danthegoodman1/tablestream/utils"
)

var logger = gologger.NewLogger()

func main() {
	logger.Debug().Msg("starting tablestream api")

	partitioner.RegisterFunctions()

	if utils.PG_DSN != "" {
		if err := pgstore.ConnectToDB(); err != nil {
			logger.Error().Err(err).Msg("error connecting to PG")
			os.Exit(1)
		}

		err := migrations.CheckMigrations(utils.PG_DSN)
		if err != nil {
			logger.Error().Err(err).Msg("Error checking migrations")
			os.Exit(1)
		}
	}

	cfg := stream.DefaultConfig()
	cfg.SinkTimeout = time.Second * time.Duration(utils.GetEnvOrDefaultInt("SINK_TIMEOUT_SEC", 30))

	eng := engine.New(cfg)
	if err := registerBackends(eng); err != nil {
		logger.Error().Err(err).Msg("error registering backends")
		os.Exit(1)
	}

	httpServer := http_server.StartHTTPServer(eng)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	logger.Warn().Msg("received shutdown signal!")

	// For AWS ALB needing some time to de-register pod
	// Convert the time to seconds
	sleepTime := utils.GetEnvOrDefaultInt("SHUTDOWN_SLEEP_SEC", 0)
	logger.Info().Msg(fmt.Sprintf("sleeping for %ds before exiting", sleepTime))

	time.Sleep(time.Second * time.Duration(sleepTime))
	logger.Info().Msg(fmt.Sprintf("slept for %ds, exiting", sleepTime))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown HTTP server")
	} else {
		logger.Info().Msg("successfully shutdown HTTP server")
	}
}

// registerBackends wires env-selected sources and sinks into the engine.
func registerBackends(eng *engine.Engine) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	if pgstore.PGPool != nil {
		for _, tableName := range splitList(os.Getenv("PG_SOURCE_TABLES")) {
			schema, err := pgstore.InferSchema(ctx, pgstore.PGPool, tableName)
			if err != nil {
				return fmt.Errorf("error inferring schema for table %s: %w", tableName, err)
			}
			if err := eng.RegisterSource("pg:"+tableName, pgstore.NewSource(pgstore.PGPool, schema, tableName)); err != nil {
				return err
			}
		}
		for _, tableName := range splitList(os.Getenv("PG_SINK_TABLES")) {
			if err := eng.RegisterSink("pg:"+tableName, pgstore.NewSink(pgstore.PGPool, tableName)); err != nil {
				return err
			}
		}
	}

	if dir := os.Getenv("NDJSON_SINK_DIR"); dir != "" {
		if err := eng.RegisterSink("ndjson", jsonstore.NewSink(dir)); err != nil {
			return err
		}
	}

	if dir := os.Getenv("PARQUET_SINK_DIR"); dir != "" {
		if err := eng.RegisterSink("parquet", parquetstore.NewSink(dir)); err != nil {
			return err
		}
	}

	if utils.S3_BUCKET_NAME != "" {
		prefix := utils.GetEnvOrDefault("S3_SINK_PREFIX", "tablestream")
		if err := eng.RegisterSink("s3", s3store.NewSink(utils.S3_BUCKET_NAME, prefix)); err != nil {
			return err
		}
	}

	return nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
