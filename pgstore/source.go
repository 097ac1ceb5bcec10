package pgstore

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/danthegoodman1/tablestream/stream"
	"github.com/danthegoodman1/tablestream/table"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

type (
	// Source reads one relational table as a single partition.
	Source struct {
		pool      *pgxpool.Pool
		schema    *table.Schema
		tableName string
	}

	queryPartition struct {
		mu       sync.Mutex
		ctx      context.Context
		pool     *pgxpool.Pool
		schema   *table.Schema
		query    string
		rows     pgx.Rows
		consumed bool
	}

	rowIterator struct {
		schema *table.Schema
		rows   pgx.Rows
	}
)

func NewSource(pool *pgxpool.Pool, schema *table.Schema, tableName string) *Source {
	return &Source{pool: pool, schema: schema, tableName: tableName}
}

func (s *Source) Schema(ctx context.Context) (*table.Schema, error) {
	return s.schema, nil
}

func (s *Source) Partitions(ctx context.Context) ([]stream.Partition, error) {
	cols := make([]string, 0, s.schema.Len())
	for _, name := range s.schema.FieldNames() {
		cols = append(cols, pgx.Identifier{name}.Sanitize())
	}
	q := fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), pgx.Identifier{s.tableName}.Sanitize())
	return []stream.Partition{&queryPartition{
		ctx:    ctx,
		pool:   s.pool,
		schema: s.schema,
		query:  q,
	}}, nil
}

func (p *queryPartition) Iterator() (stream.RowIterator, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.consumed {
		return nil, stream.ErrAlreadyConsumed
	}
	rows, err := p.pool.Query(p.ctx, p.query)
	if err != nil {
		return nil, fmt.Errorf("error in pool.Query: %w", err)
	}
	p.rows = rows
	p.consumed = true
	return &rowIterator{schema: p.schema, rows: rows}, nil
}

func (p *queryPartition) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rows != nil {
		p.rows.Close()
		p.rows = nil
	}
	return nil
}

func (it *rowIterator) Next() (table.Row, error) {
	if !it.rows.Next() {
		if err := it.rows.Err(); err != nil {
			return table.Row{}, fmt.Errorf("error iterating query rows: %w", err)
		}
		return table.Row{}, stream.ErrEndOfPartition
	}
	values, err := it.rows.Values()
	if err != nil {
		return table.Row{}, fmt.Errorf("error in rows.Values: %w", err)
	}
	row, err := table.NewRow(it.schema, values)
	if err != nil {
		return table.Row{}, fmt.Errorf("error building row: %w", err)
	}
	return row, nil
}

// InferSchema derives a table schema from the column types of a relational
// table, without pulling any rows.
func InferSchema(ctx context.Context, pool *pgxpool.Pool, tableName string) (*table.Schema, error) {
	rows, err := pool.Query(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT 0", pgx.Identifier{tableName}.Sanitize()))
	if err != nil {
		return nil, fmt.Errorf("error in pool.Query: %w", err)
	}
	defer rows.Close()

	fds := rows.FieldDescriptions()
	fields := make([]table.Field, 0, len(fds))
	for _, fd := range fds {
		fields = append(fields, table.Field{
			Name:     string(fd.Name),
			Type:     fieldTypeFromOID(fd.DataTypeOID),
			Nullable: true,
		})
	}

	schema, err := table.NewSchema(fields)
	if err != nil {
		return nil, fmt.Errorf("error building schema: %w", err)
	}
	return schema, nil
}

func fieldTypeFromOID(oid uint32) table.FieldType {
	switch oid {
	case pgtype.Int2OID, pgtype.Int4OID, pgtype.Int8OID:
		return table.TypeInt64
	case pgtype.Float4OID, pgtype.Float8OID, pgtype.NumericOID:
		return table.TypeFloat64
	case pgtype.BoolOID:
		return table.TypeBool
	case pgtype.ByteaOID:
		return table.TypeBytes
	case pgtype.TimestampOID, pgtype.TimestamptzOID, pgtype.DateOID:
		return table.TypeTimestamp
	default:
		return table.TypeString
	}
}
