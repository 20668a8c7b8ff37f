package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lib/pq"

	"github.com/V4T54L/commerce-facts/internal/domain"
)

var columnTypes = map[domain.ColumnType]string{
	domain.TypeString:    "TEXT",
	domain.TypeDecimal:   "NUMERIC",
	domain.TypeFloat:     "DOUBLE PRECISION",
	domain.TypeInt:       "BIGINT",
	domain.TypeBool:      "BOOLEAN",
	domain.TypeTimestamp: "TIMESTAMPTZ",
	domain.TypeDate:      "DATE",
}

// Warehouse implements domain.WarehouseSink on PostgreSQL tables.
type Warehouse struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWarehouse creates a new PostgreSQL warehouse sink.
func NewWarehouse(db *sql.DB, logger *slog.Logger) *Warehouse {
	return &Warehouse{db: db, logger: logger.With("component", "postgres_warehouse")}
}

// WriteTable creates the table if needed and loads rows with COPY. Replace mode
// truncates in the same transaction, so readers see either the old or the new rows.
func (w *Warehouse) WriteTable(ctx context.Context, table domain.Table, mode domain.WriteMode) error {
	if err := domain.CheckSchema(table); err != nil {
		return err
	}
	schema := table.Schema

	txn, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer txn.Rollback()

	if _, err := txn.ExecContext(ctx, createTableSQL(schema)); err != nil {
		return fmt.Errorf("failed to create %s: %w", schema.Table, err)
	}
	if err := checkColumns(ctx, txn, schema); err != nil {
		return err
	}
	if mode == domain.WriteReplace {
		if _, err := txn.ExecContext(ctx, `TRUNCATE TABLE `+pq.QuoteIdentifier(schema.Table)); err != nil {
			return fmt.Errorf("failed to truncate %s: %w", schema.Table, err)
		}
	}

	if len(table.Rows) > 0 {
		stmt, err := txn.PrepareContext(ctx, pq.CopyIn(schema.Table, schema.Names()...))
		if err != nil {
			return err
		}
		for _, row := range table.Rows {
			if _, err := stmt.ExecContext(ctx, row...); err != nil {
				_ = stmt.Close()
				return fmt.Errorf("failed to copy row into %s: %w", schema.Table, err)
			}
		}
		if _, err := stmt.ExecContext(ctx); err != nil {
			_ = stmt.Close()
			return err
		}
		if err := stmt.Close(); err != nil {
			return err
		}
	}

	if err := txn.Commit(); err != nil {
		return err
	}
	w.logger.Debug("table written", "table", schema.Table, "mode", mode.String(), "rows", len(table.Rows))
	return nil
}

func createTableSQL(schema domain.Schema) string {
	cols := make([]string, len(schema.Columns))
	for i, c := range schema.Columns {
		col := pq.QuoteIdentifier(c.Name) + " " + columnTypes[c.Type]
		if !c.Nullable {
			col += " NOT NULL"
		}
		cols[i] = col
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)",
		pq.QuoteIdentifier(schema.Table), strings.Join(cols, ",\n\t"))
}

// checkColumns rejects an existing table whose columns differ from the schema.
func checkColumns(ctx context.Context, txn *sql.Tx, schema domain.Schema) error {
	rows, err := txn.QueryContext(ctx, `
		SELECT column_name FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
		ORDER BY ordinal_position`, schema.Table)
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
