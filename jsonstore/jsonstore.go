package jsonstore

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/danthegoodman1/gojsonutils"
	"github.com/danthegoodman1/tablestream/stream"
	"github.com/danthegoodman1/tablestream/table"
	"github.com/danthegoodman1/tablestream/utils"
)

var (
	ErrNotFlatMap = errors.New("not a flat map")
)

type (
	// Source reads NDJSON row files, one partition per file. Nested objects
	// are flattened into column paths before matching against the schema.
	Source struct {
		schema *table.Schema
		paths  []string
	}

	// Sink writes each partition to its own NDJSON file under dir.
	Sink struct {
		dir string
	}

	filePartition struct {
		mu       sync.Mutex
		schema   *table.Schema
		path     string
		f        *os.File
		consumed bool
	}

	fileIterator struct {
		schema  *table.Schema
		scanner *bufio.Scanner
	}

	fileWriter struct {
		mu     sync.Mutex
		f      *os.File
		bw     *bufio.Writer
		closed bool
	}
)

func NewSource(schema *table.Schema, paths []string) *Source {
	return &Source{schema: schema, paths: paths}
}

func (s *Source) Schema(ctx context.Context) (*table.Schema, error) {
	return s.schema, nil
}

// Partitions returns fresh partitions each call, so streams over this source
// are restartable.
func (s *Source) Partitions(ctx context.Context) ([]stream.Partition, error) {
	parts := make([]stream.Partition, len(s.paths))
	for i, path := range s.paths {
		parts[i] = &filePartition{schema: s.schema, path: path}
	}
	return parts, nil
}

func (p *filePartition) Iterator() (stream.RowIterator, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.consumed {
		return nil, stream.ErrAlreadyConsumed
	}
	f, err := os.Open(p.path)
	if err != nil {
		return nil, fmt.Errorf("error in os.Open: %w", err)
	}
	p.f = f
	p.consumed = true
	return &fileIterator{schema: p.schema, scanner: bufio.NewScanner(f)}, nil
}

func (p *filePartition) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.f == nil {
		return nil
	}
	f := p.f
	p.f = nil
	return f.Close()
}

func (it *fileIterator) Next() (table.Row, error) {
	if !it.scanner.Scan() {
		if err := it.scanner.Err(); err != nil {
			return table.Row{}, fmt.Errorf("error scanning NDJSON line: %w", err)
		}
		return table.Row{}, stream.ErrEndOfPartition
	}

	var raw any
	if err := json.Unmarshal(it.scanner.Bytes(), &raw); err != nil {
		return table.Row{}, fmt.Errorf("error in json.Unmarshal: %w", err)
	}
	jsonMap, ok := raw.(map[string]any)
	if !ok {
		return table.Row{}, fmt.Errorf("line was not a JSON object: %w", ErrNotFlatMap)
	}

	flat, err := gojsonutils.Flatten(jsonMap, nil)
	if err != nil {
		return table.Row{}, fmt.Errorf("error flattening JSON map: %w", err)
	}
	flatMap, ok := flat.(map[string]any)
	if !ok {
		return table.Row{}, fmt.Errorf("got a non flat map: %w", ErrNotFlatMap)
	}

	row, err := table.NewRowFromMap(it.schema, flatMap)
	if err != nil {
		return table.Row{}, fmt.Errorf("error building row from map: %w", err)
	}
	return row, nil
}

func NewSink(dir string) *Sink {
	return &Sink{dir: dir}
}

func (s *Sink) Writer(ctx context.Context, schema *table.Schema) (stream.Writer, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, fmt.Errorf("error in os.MkdirAll: %w", err)
	}
	f, err := os.Create(filepath.Join(s.dir, utils.GenKSortedID("")+".ndjson"))
	if err != nil {
		return nil, fmt.Errorf("error in os.Create: %w", err)
	}
	return &fileWriter{f: f, bw: bufio.NewWriter(f)}, nil
}

func (w *fileWriter) Write(ctx context.Context, row table.Row) error {
	b, err := json.Marshal(row.ToMap())
	if err != nil {
		return fmt.Errorf("error in json.Marshal of row: %w", err)
	}
	if _, err := w.bw.Write(b); err != nil {
		return fmt.Errorf("error writing row bytes: %w", err)
	}
	if err := w.bw.WriteByte('\n'); err != nil {
		return fmt.Errorf("error writing row delimiter: %w", err)
	}
	return nil
}

func (w *fileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.bw.Flush(); err != nil {
		w.f.Close()
		return fmt.Errorf("error flushing writer: %w", err)
	}
	return w.f.Close()
}
