package partitioner

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/danthegoodman1/tablestream/stream"
	"github.com/danthegoodman1/tablestream/table"
)

func eventSchema(t *testing.T) *table.Schema {
	t.Helper()
	s, err := table.NewSchema([]table.Field{
		{Name: "user", Type: table.TypeString},
		{Name: "t", Type: table.TypeString},
	})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func eventRow(t *testing.T, schema *table.Schema, user, ts string) table.Row {
	t.Helper()
	row, err := table.NewRow(schema, []any{user, ts})
	if err != nil {
		t.Fatal(err)
	}
	return row
}

func TestToDay(t *testing.T) {
	RegisterFunctions()

	schema := eventSchema(t)
	f := Functions["toDay"]

	day, err := f(eventRow(t, schema, "a", "x"), []string{"now()"})
	if err != nil {
		t.Fatal(err)
	}
	if day != fmt.Sprint(time.Now().Day()) {
		t.Fatal("mismatched date")
	}

	day, err = f(eventRow(t, schema, "a", "2022-01-24T00:00:00.000Z"), []string{"t"})
	if err != nil {
		t.Fatal(err)
	}
	if day != "24" {
		t.Fatal("mismatched date for t string")
	}

	floatSchema, err := table.NewSchema([]table.Field{{Name: "t", Type: table.TypeFloat64}})
	if err != nil {
		t.Fatal(err)
	}
	floatRow, err := table.NewRow(floatSchema, []any{1672406408279.0})
	if err != nil {
		t.Fatal(err)
	}
	day, err = f(floatRow, []string{"t"})
	if err != nil {
		t.Fatal(err)
	}
	if day != "30" {
		t.Fatal("mismatched date for t float")
	}

	boolSchema, err := table.NewSchema([]table.Field{{Name: "t", Type: table.TypeBool}})
	if err != nil {
		t.Fatal(err)
	}
	boolRow, err := table.NewRow(boolSchema, []any{true})
	if err != nil {
		t.Fatal(err)
	}
	_, err = f(boolRow, []string{"t"})
	if !errors.Is(err, ErrInvalidColumnType) {
		t.Fatal("did not get invalid col type")
	}
}

func TestGetRowPartition(t *testing.T) {
	RegisterFunctions()

	schema := eventSchema(t)
	row := eventRow(t, schema, "u1", "2022-01-24T00:00:00.000Z")

	key, err := GetRowPartition(row, []PartitionPlan{
		{Func: "toString", Args: []string{"user"}, As: "u"},
		{Func: "toYear", Args: []string{"t"}, As: "y"},
		{Func: "toMonth", Args: []string{"t"}, As: "m"},
		{Func: "toDay", Args: []string{"t"}, As: "d"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if key != "u=u1/y=2022/m=1/d=24" {
		t.Fatalf("unexpected key %s", key)
	}

	_, err = GetRowPartition(row, []PartitionPlan{{Func: "nope", As: "x"}})
	if !errors.Is(err, ErrFuncNotFound) {
		t.Fatalf("expected ErrFuncNotFound, got %v", err)
	}
}

type memWriter struct {
	mu   sync.Mutex
	rows []table.Row
}

func (w *memWriter) Write(ctx context.Context, row table.Row) error {
	w.mu.Lock()
	w.rows = append(w.rows, row)
	w.mu.Unlock()
	return nil
}

func (w *memWriter) Close() error { return nil }

func TestKeyedSinkRoutesByPartitionKey(t *testing.T) {
	RegisterFunctions()

	schema := eventSchema(t)
	rows := [][]table.Row{
		{
			eventRow(t, schema, "u1", "2022-01-24T00:00:00.000Z"),
			eventRow(t, schema, "u2", "2022-01-24T00:00:00.000Z"),
		},
		{
			eventRow(t, schema, "u1", "2022-01-25T00:00:00.000Z"),
		},
	}

	var (
		mu       sync.Mutex
		children = make(map[string]*memWriter)
	)
	sink := NewKeyedSink(
		[]PartitionPlan{{Func: "toString", Args: []string{"user"}, As: "u"}},
		func(ctx context.Context, key string, schema *table.Schema) (stream.Writer, error) {
			w := &memWriter{}
			mu.Lock()
			children[key+fmt.Sprint(len(children))] = w
			mu.Unlock()
			return w, nil
		},
	)

	s := stream.FromRows(schema, rows, stream.DefaultConfig())
	report, err := s.WriteTo(context.Background(), sink)
	if err != nil {
		t.Fatal(err)
	}
	if report.RowsWritten != 3 {
		t.Fatalf("expected 3 rows written, got %d", report.RowsWritten)
	}

	if got := sink.Locations(); !reflect.DeepEqual(got, []string{"u=u1", "u=u2"}) {
		t.Fatalf("unexpected locations: %v", got)
	}

	var total int
	for _, w := range children {
		total += len(w.rows)
	}
	if total != 3 {
		t.Fatalf("children saw %d rows, expected 3", total)
	}
}
