package jsonstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/danthegoodman1/tablestream/stream"
	"github.com/danthegoodman1/tablestream/table"
)

func TestSinkThenSourceRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	schema, err := table.NewSchema([]table.Field{
		{Name: "user", Type: table.TypeString},
		{Name: "n", Type: table.TypeFloat64},
	})
	if err != nil {
		t.Fatal(err)
	}

	mkRow := func(user string, n float64) table.Row {
		row, err := table.NewRow(schema, []any{user, n})
		if err != nil {
			t.Fatal(err)
		}
		return row
	}

	in := stream.FromRows(schema, [][]table.Row{
		{mkRow("a", 1), mkRow("b", 2)},
		{mkRow("c", 3)},
	}, stream.DefaultConfig())

	report, err := in.WriteTo(ctx, NewSink(dir))
	if err != nil {
		t.Fatal(err)
	}
	if report.RowsWritten != 3 {
		t.Fatalf("expected 3 rows written, got %d", report.RowsWritten)
	}

	paths, err := filepath.Glob(filepath.Join(dir, "*.ndjson"))
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected one file per partition, got %d", len(paths))
	}

	out, err := stream.FromSource(ctx, NewSource(schema, paths), stream.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	rows, err := out.Collect(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows back, got %d", len(rows))
	}

	seen := make(map[string]float64)
	for _, row := range rows {
		seen[row.Value(0).(string)] = row.Value(1).(float64)
	}
	if seen["a"] != 1 || seen["b"] != 2 || seen["c"] != 3 {
		t.Fatalf("unexpected rows: %v", seen)
	}
}

func TestSourceFlattensNestedObjects(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	path := filepath.Join(dir, "events.ndjson")
	data := `{"user": "a", "meta": {"ip": "1.2.3.4"}}` + "\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	schema, err := table.NewSchema([]table.Field{
		{Name: "user", Type: table.TypeString},
		{Name: "meta.ip", Type: table.TypeString},
	})
	if err != nil {
		t.Fatal(err)
	}

	s, err := stream.FromSource(ctx, NewSource(schema, []string{path}), stream.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	rows, err := s.Collect(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	ip, err := rows[0].ValueByName("meta.ip")
	if err != nil {
		t.Fatal(err)
	}
	if ip != "1.2.3.4" {
		t.Fatalf("expected flattened nested field, got %v", ip)
	}
}
