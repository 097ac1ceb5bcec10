package stream

import (
	"context"
	"errors"
	"testing"

	"github.com/danthegoodman1/tablestream/table"
)

func testSchema(t *testing.T) *table.Schema {
	t.Helper()
	s, err := table.NewSchema([]table.Field{
		{Name: "a", Type: table.TypeString},
		{Name: "b", Type: table.TypeInt64},
	})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func testRow(t *testing.T, schema *table.Schema, a string, b int64) table.Row {
	t.Helper()
	row, err := table.NewRow(schema, []any{a, b})
	if err != nil {
		t.Fatal(err)
	}
	return row
}

// testPartitions builds [][]table.Row with sizes, values a0..aN / 0..N
func testPartitions(t *testing.T, schema *table.Schema, sizes ...int) [][]table.Row {
	t.Helper()
	var parts [][]table.Row
	n := int64(0)
	for _, size := range sizes {
		var rows []table.Row
		for i := 0; i < size; i++ {
			rows = append(rows, testRow(t, schema, "a", n))
			n++
		}
		parts = append(parts, rows)
	}
	return parts
}

func collectOrFail(t *testing.T, s *Stream) []table.Row {
	t.Helper()
	rows, err := s.Collect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return rows
}

func TestCollectConcatenatesPartitionsInOrder(t *testing.T) {
	schema := testSchema(t)
	s := FromRows(schema, testPartitions(t, schema, 3, 2, 4), DefaultConfig())

	rows := collectOrFail(t, s)
	if len(rows) != 9 {
		t.Fatalf("expected 9 rows, got %d", len(rows))
	}
	for i, row := range rows {
		if row.Value(1) != int64(i) {
			t.Fatalf("row %d out of order: got %v", i, row.Value(1))
		}
	}
}

func TestCollectEmptyStream(t *testing.T) {
	schema := testSchema(t)
	s := FromRows(schema, nil, DefaultConfig())

	rows := collectOrFail(t, s)
	if len(rows) != 0 {
		t.Fatalf("expected no rows, got %d", len(rows))
	}
}

func TestFilterPreservesPartitionOrder(t *testing.T) {
	schema := testSchema(t)
	s := FromRows(schema, testPartitions(t, schema, 4, 4), DefaultConfig())

	even := s.Filter(func(row table.Row) (bool, error) {
		return row.Value(1).(int64)%2 == 0, nil
	})

	rows := collectOrFail(t, even)
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}
	want := []int64{0, 2, 4, 6}
	for i, row := range rows {
		if row.Value(1) != want[i] {
			t.Fatalf("row %d: expected %d, got %v", i, want[i], row.Value(1))
		}
	}

	// Filtering never changes the stream's schema
	if even.Schema() != schema {
		t.Fatal("filter changed schema")
	}
}

func TestMapIncrementsValues(t *testing.T) {
	schema := testSchema(t)
	s := FromRows(schema, [][]table.Row{{
		testRow(t, schema, "x", 1),
		testRow(t, schema, "y", 2),
	}}, DefaultConfig())

	mapped := s.Map(func(row table.Row) (table.Row, error) {
		return row.WithValue("b", row.Value(1).(int64)+1)
	})

	rows := collectOrFail(t, mapped)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Value(0) != "x" || rows[0].Value(1) != int64(2) {
		t.Fatalf("unexpected row 0: %v", rows[0].Values())
	}
	if rows[1].Value(0) != "y" || rows[1].Value(1) != int64(3) {
		t.Fatalf("unexpected row 1: %v", rows[1].Values())
	}
}

func TestMapDoesNotMutateSource(t *testing.T) {
	schema := testSchema(t)
	parts := testPartitions(t, schema, 2)
	s := FromRows(schema, parts, DefaultConfig())

	_ = collectOrFail(t, s.Map(func(row table.Row) (table.Row, error) {
		return row.WithValue("b", int64(999))
	}))

	rows := collectOrFail(t, s)
	if rows[0].Value(1) != int64(0) || rows[1].Value(1) != int64(1) {
		t.Fatal("map mutated the source rows")
	}
}

func TestTake(t *testing.T) {
	schema := testSchema(t)
	s := FromRows(schema, testPartitions(t, schema, 3, 3), DefaultConfig())

	rows := collectOrFail(t, s.Take(4))
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}
	for i, row := range rows {
		if row.Value(1) != int64(i) {
			t.Fatalf("row %d out of order: got %v", i, row.Value(1))
		}
	}

	if got := len(collectOrFail(t, s.Take(0))); got != 0 {
		t.Fatalf("take(0): expected 0 rows, got %d", got)
	}
	if got := len(collectOrFail(t, s.Take(100))); got != 6 {
		t.Fatalf("take(100): expected all 6 rows, got %d", got)
	}
}

func TestDropThenTakeReconstructsTail(t *testing.T) {
	schema := testSchema(t)
	s := FromRows(schema, testPartitions(t, schema, 4, 4), DefaultConfig())

	rows := collectOrFail(t, s.Drop(3).Take(5))
	if len(rows) != 5 {
		t.Fatalf("expected 5 rows, got %d", len(rows))
	}
	for i, row := range rows {
		if row.Value(1) != int64(i+3) {
			t.Fatalf("row %d: expected %d, got %v", i, i+3, row.Value(1))
		}
	}

	if got := len(collectOrFail(t, s.Drop(0))); got != 8 {
		t.Fatalf("drop(0): expected 8 rows, got %d", got)
	}
	if got := len(collectOrFail(t, s.Drop(100))); got != 0 {
		t.Fatalf("drop past end: expected 0 rows, got %d", got)
	}
}

func TestCoalesceSingleDeterministicPartition(t *testing.T) {
	schema := testSchema(t)
	s := FromRows(schema, testPartitions(t, schema, 2, 2, 2), DefaultConfig())

	parts, err := s.Coalesce().partitions(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(parts) != 1 {
		t.Fatalf("expected 1 partition after coalesce, got %d", len(parts))
	}

	rows := collectOrFail(t, s.Coalesce())
	for i, row := range rows {
		if row.Value(1) != int64(i) {
			t.Fatalf("row %d out of order after coalesce: got %v", i, row.Value(1))
		}
	}
}

func TestTakeWhileAndTakeUntil(t *testing.T) {
	schema := testSchema(t)
	s := FromRows(schema, testPartitions(t, schema, 3, 3), DefaultConfig())

	rows := collectOrFail(t, s.TakeWhile(func(row table.Row) (bool, error) {
		return row.Value(1).(int64) < 4, nil
	}))
	if len(rows) != 4 {
		t.Fatalf("takeWhile: expected 4 rows, got %d", len(rows))
	}

	rows = collectOrFail(t, s.TakeUntil(func(row table.Row) (bool, error) {
		return row.Value(1).(int64) == 2, nil
	}))
	if len(rows) != 2 {
		t.Fatalf("takeUntil: expected 2 rows, got %d", len(rows))
	}
}

func TestRenameFieldRetagsRows(t *testing.T) {
	schema := testSchema(t)
	s := FromRows(schema, testPartitions(t, schema, 2, 1), DefaultConfig())

	renamed, err := s.RenameField("a", "renamed")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := renamed.Schema().Index("renamed"); !ok {
		t.Fatal("stream schema missing renamed field")
	}

	rows := collectOrFail(t, renamed)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	for i, row := range rows {
		// Every emitted row carries the derived schema, values untouched
		if row.Schema() != renamed.Schema() {
			t.Fatalf("row %d not retagged with renamed schema", i)
		}
		if row.Value(1) != int64(i) {
			t.Fatalf("row %d values changed by rename", i)
		}
	}
}

func TestToLowerCaseSchema(t *testing.T) {
	schema, err := table.NewSchema([]table.Field{
		{Name: "Alpha", Type: table.TypeString},
		{Name: "Beta", Type: table.TypeInt64},
	})
	if err != nil {
		t.Fatal(err)
	}
	rowIn, err := table.NewRow(schema, []any{"x", int64(1)})
	if err != nil {
		t.Fatal(err)
	}

	s := FromRows(schema, [][]table.Row{{rowIn}}, DefaultConfig())
	lowered, err := s.ToLowerCaseSchema()
	if err != nil {
		t.Fatal(err)
	}

	rows := collectOrFail(t, lowered)
	if rows[0].Schema().Field(0).Name != "alpha" {
		t.Fatalf("expected lowered field name, got %s", rows[0].Schema().Field(0).Name)
	}
	if rows[0].Value(0) != "x" {
		t.Fatal("lowercasing changed values")
	}
}

func TestJoinZipsCoalescedStreams(t *testing.T) {
	leftSchema, err := table.NewSchema([]table.Field{{Name: "l", Type: table.TypeInt64}})
	if err != nil {
		t.Fatal(err)
	}
	rightSchema, err := table.NewSchema([]table.Field{{Name: "r", Type: table.TypeInt64}})
	if err != nil {
		t.Fatal(err)
	}

	mkRows := func(schema *table.Schema, vals ...int64) []table.Row {
		var rows []table.Row
		for _, v := range vals {
			row, err := table.NewRow(schema, []any{v})
			if err != nil {
				t.Fatal(err)
			}
			rows = append(rows, row)
		}
		return rows
	}

	left := FromRows(leftSchema, [][]table.Row{mkRows(leftSchema, 1, 2), mkRows(leftSchema, 3)}, DefaultConfig())
	right := FromRows(rightSchema, [][]table.Row{mkRows(rightSchema, 10, 20, 30)}, DefaultConfig())

	joined, err := left.Join(right)
	if err != nil {
		t.Fatal(err)
	}
	if joined.Schema().Len() != 2 {
		t.Fatalf("expected 2 joined fields, got %d", joined.Schema().Len())
	}

	rows := collectOrFail(t, joined)
	if len(rows) != 3 {
		t.Fatalf("expected 3 joined rows, got %d", len(rows))
	}
	wantLeft := []int64{1, 2, 3}
	wantRight := []int64{10, 20, 30}
	for i, row := range rows {
		if row.Value(0) != wantLeft[i] || row.Value(1) != wantRight[i] {
			t.Fatalf("row %d: got %v", i, row.Values())
		}
	}
}

func TestJoinMismatchedLengthsFails(t *testing.T) {
	leftSchema, err := table.NewSchema([]table.Field{{Name: "l", Type: table.TypeInt64}})
	if err != nil {
		t.Fatal(err)
	}
	rightSchema, err := table.NewSchema([]table.Field{{Name: "r", Type: table.TypeInt64}})
	if err != nil {
		t.Fatal(err)
	}

	lRow, err := table.NewRow(leftSchema, []any{int64(1)})
	if err != nil {
		t.Fatal(err)
	}
	rRow1, err := table.NewRow(rightSchema, []any{int64(10)})
	if err != nil {
		t.Fatal(err)
	}
	rRow2, err := table.NewRow(rightSchema, []any{int64(20)})
	if err != nil {
		t.Fatal(err)
	}

	left := FromRows(leftSchema, [][]table.Row{{lRow}}, DefaultConfig())
	right := FromRows(rightSchema, [][]table.Row{{rRow1, rRow2}}, DefaultConfig())

	joined, err := left.Join(right)
	if err != nil {
		t.Fatal(err)
	}

	_, err = joined.Collect(context.Background())
	if !errors.Is(err, ErrRowCountMismatch) {
		t.Fatalf("expected ErrRowCountMismatch, got %v", err)
	}
}

func TestIteratorPullsLazily(t *testing.T) {
	schema := testSchema(t)
	s := FromRows(schema, testPartitions(t, schema, 2, 2), DefaultConfig())

	it, err := s.Iterator(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 4; i++ {
		row, err := it.Next()
		if err != nil {
			t.Fatalf("row %d: %v", i, err)
		}
		if row.Value(1) != int64(i) {
			t.Fatalf("row %d out of order: got %v", i, row.Value(1))
		}
	}

	_, err = it.Next()
	if err != ErrEndOfPartition {
		t.Fatalf("expected ErrEndOfPartition, got %v", err)
	}
	// Safe after exhaustion
	if err := it.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestAlreadyConsumedPartition(t *testing.T) {
	schema := testSchema(t)
	rows := testPartitions(t, schema, 2)[0]

	p := NewIteratorPartition(&sliceIterator{rows: rows}, nil)
	s := &Stream{
		schema: schema,
		parts: func(ctx context.Context) ([]Partition, error) {
			return []Partition{p}, nil
		},
		cfg: DefaultConfig(),
	}

	if _, err := s.Collect(context.Background()); err != nil {
		t.Fatal(err)
	}

	_, err := s.Collect(context.Background())
	if !errors.Is(err, ErrAlreadyConsumed) {
		t.Fatalf("expected ErrAlreadyConsumed, got %v", err)
	}
}

type fixedSource struct {
	schema *table.Schema
	rows   []table.Row
}

func (s *fixedSource) Schema(ctx context.Context) (*table.Schema, error) {
	return s.schema, nil
}

func (s *fixedSource) Partitions(ctx context.Context) ([]Partition, error) {
	return []Partition{NewSlicePartition(s.rows)}, nil
}

func TestCaseInsensitiveFieldConfig(t *testing.T) {
	schema, err := table.NewSchema([]table.Field{{Name: "Alpha", Type: table.TypeString}})
	if err != nil {
		t.Fatal(err)
	}
	row, err := table.NewRow(schema, []any{"x"})
	if err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	cfg.CaseInsensitiveFields = true
	s, err := FromSource(context.Background(), &fixedSource{schema: schema, rows: []table.Row{row}}, cfg)
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := s.Schema().Index("alpha"); !ok {
		t.Fatal("expected case-insensitive field lookup")
	}

	renamed, err := s.RenameField("ALPHA", "beta")
	if err != nil {
		t.Fatal(err)
	}
	if renamed.Schema().Field(0).Name != "beta" {
		t.Fatalf("unexpected field name %s", renamed.Schema().Field(0).Name)
	}
}

func TestTransformationsArePure(t *testing.T) {
	schema := testSchema(t)
	s := FromRows(schema, testPartitions(t, schema, 3), DefaultConfig())

	// Deriving must not touch the parent pipeline
	_ = s.Take(1)
	_ = s.Filter(func(table.Row) (bool, error) { return false, nil })

	rows := collectOrFail(t, s)
	if len(rows) != 3 {
		t.Fatalf("derivations leaked into parent: got %d rows", len(rows))
	}
}
