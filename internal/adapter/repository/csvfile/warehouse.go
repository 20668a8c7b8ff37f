// Package csvfile stores warehouse tables and reports as files in a directory.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/V4T54L/commerce-facts/internal/domain"
)

const dateLayout = "2006-01-02"

// Warehouse implements domain.WarehouseSink with one CSV file per table.
type Warehouse struct {
	dir    string
	logger *slog.Logger
}

// NewWarehouse creates a CSV warehouse sink rooted at dir. The directory is created on
// first write.
func NewWarehouse(dir string, logger *slog.Logger) *Warehouse {
	return &Warehouse{dir: dir, logger: logger.With("component", "csv_warehouse")}
}

// Path returns the file holding table.
func (w *Warehouse) Path(table string) string {
	return filepath.Join(w.dir, table+".csv")
}

// WriteTable writes the table to <dir>/<table>.csv. Replace mode writes a temporary file
// and renames it over the old one. Append mode requires an existing file to carry the
// same header.
func (w *Warehouse) WriteTable(ctx context.Context, table domain.Table, mode domain.WriteMode) error {
	if err := domain.CheckSchema(table); err != nil {
		return err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create warehouse dir: %w", err)
	}

	path := w.Path(table.Schema.Table)
	var err error
	switch mode {
	case domain.WriteReplace:
		err = w.replace(path, table)
	case domain.WriteAppend:
		err = w.append(path, table)
	default:
		err = fmt.Errorf("unsupported write mode %s", mode)
	}
	if err != nil {
		return err
	}
	w.logger.Debug("table written", "table", table.Schema.Table, "mode", mode.String(), "rows", len(table.Rows), "path", path)
	return nil
}

func (w *Warehouse) replace(path string, table domain.Table) error {
	tmp, err := os.CreateTemp(w.dir, "."+table.Schema.Table+"-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := writeRows(tmp, table, true); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

func (w *Warehouse) append(path string, table domain.Table) error {
	header, err := readHeader(path)
	switch {
	case errors.Is(err, fs.ErrNotExist), err == nil && header == nil:
		return w.replace(path, table)
	case err != nil:
		return err
	}
	want := table.Schema.Names()
	if strings.Join(header, ",") != strings.Join(want, ",") {
		return fmt.Errorf("%w: %s has header [%s], expected [%s]", domain.ErrSchemaMismatch,
			path, strings.Join(header, ", "), strings.Join(want, ", "))
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	if err := writeRows(f, table, false); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func readHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	header, err := csv.NewReader(f).Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	return header, nil
}

func writeRows(out io.Writer, table domain.Table, header bool) error {
	cw := csv.NewWriter(out)
	if header {
		if err := cw.Write(table.Schema.Names()); err != nil {
			return err
		}
	}
	record := make([]string, len(table.Schema.Columns))
	for _, row := range table.Rows {
		for i, v := range row {
			record[i] = formatValue(v, table.Schema.Columns[i].Type)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// formatValue renders one cell. NULL is the empty string.
func formatValue(v any, typ domain.ColumnType) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case decimal.Decimal:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		if typ == domain.TypeDate {
			return x.UTC().Format(dateLayout)
		}
		return x.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}
