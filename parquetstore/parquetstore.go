package parquetstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/danthegoodman1/tablestream/stream"
	"github.com/danthegoodman1/tablestream/table"
	"github.com/danthegoodman1/tablestream/utils"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"
)

type (
	// Sink writes each partition to its own parquet file under dir.
	Sink struct {
		dir string
		// parallel number handed to the parquet writer
		np int64
	}

	parquetWriter struct {
		mu     sync.Mutex
		pw     *writer.JSONWriter
		fw     source.ParquetFile
		closed bool
	}
)

func NewSink(dir string) *Sink {
	return &Sink{dir: dir, np: 4}
}

func (s *Sink) Writer(ctx context.Context, schema *table.Schema) (stream.Writer, error) {
	schemaStr, err := SchemaString(schema)
	if err != nil {
		return nil, fmt.Errorf("error in SchemaString: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, fmt.Errorf("error in os.MkdirAll: %w", err)
	}
	fw, err := local.NewLocalFileWriter(filepath.Join(s.dir, utils.GenKSortedID("")+".parquet"))
	if err != nil {
		return nil, fmt.Errorf("error in NewLocalFileWriter: %w", err)
	}

	pw, err := writer.NewJSONWriter(schemaStr, fw, s.np)
	if err != nil {
		fw.Close()
		return nil, fmt.Errorf("error in NewJSONWriter: %w", err)
	}

	return &parquetWriter{pw: pw, fw: fw}, nil
}

func (w *parquetWriter) Write(ctx context.Context, row table.Row) error {
	rowBytes, err := json.Marshal(row.ToMap())
	if err != nil {
		return fmt.Errorf("error in json.Marshal of row: %w", err)
	}
	if err := w.pw.Write(rowBytes); err != nil {
		return fmt.Errorf("error in pw.Write: %w", err)
	}
	return nil
}

func (w *parquetWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.pw.WriteStop(); err != nil {
		w.fw.Close()
		return fmt.Errorf("error in pw.WriteStop: %w", err)
	}
	return w.fw.Close()
}
