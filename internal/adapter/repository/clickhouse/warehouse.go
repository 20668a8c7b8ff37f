// Package clickhouse loads warehouse tables into ClickHouse.
package clickhouse

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/V4T54L/commerce-facts/internal/domain"
)

var columnTypes = map[domain.ColumnType]string{
	domain.TypeString:    "String",
	domain.TypeDecimal:   "Decimal(38, 6)",
	domain.TypeFloat:     "Float64",
	domain.TypeInt:       "Int64",
	domain.TypeBool:      "Bool",
	domain.TypeTimestamp: "DateTime64(3, 'UTC')",
	domain.TypeDate:      "Date",
}

// Options configures the connection.
type Options struct {
	Addr     string
	Database string
	Username string
	Password string
}

// Open connects to ClickHouse with LZ4 compression and verifies the connection.
func Open(ctx context.Context, opts Options) (driver.Conn, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{opts.Addr},
		Auth: clickhouse.Auth{
			Database: opts.Database,
			Username: opts.Username,
			Password: opts.Password,
		},
		DialTimeout: 30 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open clickhouse connection: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	return conn, nil
}

// Warehouse implements domain.WarehouseSink on MergeTree tables.
type Warehouse struct {
	conn     driver.Conn
	database string
	logger   *slog.Logger
}

// NewWarehouse creates a new ClickHouse warehouse sink writing into database.
func NewWarehouse(conn driver.Conn, database string, logger *slog.Logger) *Warehouse {
	return &Warehouse{conn: conn, database: database, logger: logger.With("component", "clickhouse_warehouse")}
}

// WriteTable creates the table if needed and inserts rows in one batch. ClickHouse has
// no transactional TRUNCATE, so a replace that fails after truncation leaves the table empty.
func (w *Warehouse) WriteTable(ctx context.Context, table domain.Table, mode domain.WriteMode) error {
	if err := domain.CheckSchema(table); err != nil {
		return err
	}
	schema := table.Schema

	if err := w.conn.Exec(ctx, w.createTableSQL(schema)); err != nil {
		return fmt.Errorf("failed to create %s: %w", schema.Table, err)
	}
	if err := w.checkColumns(ctx, schema); err != nil {
		return err
	}
	if mode == domain.WriteReplace {
		if err := w.conn.Exec(ctx, fmt.Sprintf(`TRUNCATE TABLE %s`, w.qualified(schema.Table))); err != nil {
			return fmt.Errorf("failed to truncate %s: %w", schema.Table, err)
		}
	}
	if len(table.Rows) == 0 {
		return nil
	}

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES`, w.qualified(schema.Table), strings.Join(schema.Names(), ", "))
	batch, err := w.conn.PrepareBatch(ctx, query)
	if err != nil {
		return err
	}
	defer func() { _ = batch.Close() }()

	for _, row := range table.Rows {
		if err := batch.Append(row...); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("failed to append row to %s: %w", schema.Table, err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch to %s: %w", schema.Table, err)
	}
	w.logger.Debug("table written", "table", schema.Table, "mode", mode.String(), "rows", len(table.Rows))
	return nil
}

func (w *Warehouse) qualified(table string) string {
	return fmt.Sprintf(`"%s"."%s"`, w.database, table)
}

func (w *Warehouse) createTableSQL(schema domain.Schema) string {
	cols := make([]string, len(schema.Columns))
	for i, c := range schema.Columns {
		typ := columnTypes[c.Type]
		if c.Nullable {
			typ = "Nullable(" + typ + ")"
		}
		cols[i] = fmt.Sprintf("%s %s", c.Name, typ)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n) ENGINE = MergeTree ORDER BY %s",
		w.qualified(schema.Table), strings.Join(cols, ",\n\t"), orderKey(schema))
}

// orderKey prefers a date column, then the first non-nullable string column.
func orderKey(schema domain.Schema) string {
	for _, c := range schema.Columns {
		if c.Type == domain.TypeDate && !c.Nullable {
			return c.Name
		}
	}
	for _, c := range schema.Columns {
		if c.Type == domain.TypeString && !c.Nullable {
			return c.Name
		}
	}
	return "tuple()"
}

func (w *Warehouse) checkColumns(ctx context.Context, schema domain.Schema) error {
	rows, err := w.conn.Query(ctx,
		`SELECT name FROM system.columns WHERE database = ? AND table = ? ORDER BY position`,
		w.database, schema.Table)
	if err != nil {
		return fmt.Errorf("failed to read columns of %s: %w", schema.Table, err)
	}
	defer rows.Close()

	var existing []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		existing = append(existing, name)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	want := schema.Names()
	if strings.Join(existing, ",") != strings.Join(want, ",") {
		return fmt.Errorf("%w: stored %s has columns [%s], expected [%s]", domain.ErrSchemaMismatch,
			schema.Table, strings.Join(existing, ", "), strings.Join(want, ", "))
	}
	return nil
}
