package domain

import (
	"fmt"
	"strings"
)

// ColumnType is the logical type of a warehouse column. Sinks map it onto their own types.
type ColumnType string

const (
	TypeString    ColumnType = "STRING"
	TypeDecimal   ColumnType = "DECIMAL"
	TypeFloat     ColumnType = "FLOAT64"
	TypeInt       ColumnType = "INT64"
	TypeBool      ColumnType = "BOOL"
	TypeTimestamp ColumnType = "TIMESTAMP"
	TypeDate      ColumnType = "DATE"
)

// Column describes one warehouse column.
type Column struct {
	Name     string
	Type     ColumnType
	Nullable bool
}

// Schema is the fixed column layout of a named table.
type Schema struct {
	Table   string
	Columns []Column
}

// Names returns the column names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Validate checks that other has exactly the same columns as s, in the same order.
func (s Schema) Validate(other Schema) error {
	if s.Table != other.Table {
		return fmt.Errorf("%w: table %q, expected %q", ErrSchemaMismatch, other.Table, s.Table)
	}
	if len(s.Columns) != len(other.Columns) {
		return fmt.Errorf("%w: %s has columns [%s], expected [%s]", ErrSchemaMismatch, s.Table,
			strings.Join(other.Names(), ", "), strings.Join(s.Names(), ", "))
	}
	for i, c := range s.Columns {
		if other.Columns[i] != c {
			return fmt.Errorf("%w: %s column %d is %s %s, expected %s %s", ErrSchemaMismatch, s.Table,
				i, other.Columns[i].Name, other.Columns[i].Type, c.Name, c.Type)
		}
	}
	return nil
}

// Table names of the warehouse.
const (
	TableFactOrders     = "fact_orders"
	TableFactPayments   = "fact_payments"
	TableFactRefunds    = "fact_refunds"
	TableFactOrderDaily = "fact_order_daily"
	TableDimDate        = "dim_date"
	TableDimCustomer    = "dim_customer"
	TableDimProduct     = "dim_product"
)

var (
	FactOrdersSchema = Schema{Table: TableFactOrders, Columns: []Column{
		{Name: "order_id", Type: TypeString, Nullable: true},
		{Name: "customer_id", Type: TypeString, Nullable: true},
		{Name: "order_amount", Type: TypeDecimal},
		{Name: "order_status", Type: TypeString, Nullable: true},
		{Name: "created_at", Type: TypeTimestamp, Nullable: true},
		{Name: "event_id", Type: TypeString},
		{Name: "vendor", Type: TypeString},
		{Name: "event_type", Type: TypeString},
	}}

	FactPaymentsSchema = Schema{Table: TableFactPayments, Columns: []Column{
		{Name: "payment_id", Type: TypeString, Nullable: true},
		{Name: "order_id", Type: TypeString, Nullable: true},
		{Name: "payment_amount", Type: TypeDecimal},
		{Name: "payment_status", Type: TypeString, Nullable: true},
		{Name: "payment_method", Type: TypeString, Nullable: true},
		{Name: "payment_date", Type: TypeTimestamp, Nullable: true},
		{Name: "event_id", Type: TypeString},
		{Name: "vendor", Type: TypeString},
	}}

	FactRefundsSchema = Schema{Table: TableFactRefunds, Columns: []Column{
		{Name: "refund_id", Type: TypeString, Nullable: true},
		{Name: "order_id", Type: TypeString, Nullable: true},
		{Name: "payment_id", Type: TypeString, Nullable: true},
		{Name: "refund_amount", Type: TypeDecimal},
		{Name: "refund_reason", Type: TypeString, Nullable: true},
		{Name: "refund_type", Type: TypeString, Nullable: true},
		{Name: "refund_date", Type: TypeTimestamp, Nullable: true},
		{Name: "event_id", Type: TypeString},
		{Name: "vendor", Type: TypeString},
	}}

	FactOrderDailySchema = Schema{Table: TableFactOrderDaily, Columns: []Column{
		{Name: "order_date", Type: TypeDate},
		{Name: "vendor", Type: TypeString},
		{Name: "gross_revenue", Type: TypeDecimal},
		{Name: "total_refunds", Type: TypeDecimal},
		{Name: "net_revenue", Type: TypeDecimal},
		{Name: "order_count", Type: TypeInt},
		{Name: "paid_count", Type: TypeInt},
		{Name: "payment_success_rate", Type: TypeFloat, Nullable: true},
		{Name: "refund_rate", Type: TypeFloat, Nullable: true},
	}}

	DimDateSchema = Schema{Table: TableDimDate, Columns: []Column{
		{Name: "date_key", Type: TypeDate},
		{Name: "day_of_week", Type: TypeString},
		{Name: "week_number", Type: TypeInt},
		{Name: "month", Type: TypeInt},
		{Name: "quarter", Type: TypeInt},
		{Name: "year", Type: TypeInt},
		{Name: "is_weekend", Type: TypeBool},
	}}

	DimCustomerSchema = Schema{Table: TableDimCustomer, Columns: []Column{
		{Name: "customer_id", Type: TypeString},
		{Name: "created_at", Type: TypeTimestamp, Nullable: true},
		{Name: "customer_name", Type: TypeString, Nullable: true},
		{Name: "email", Type: TypeString, Nullable: true},
		{Name: "country", Type: TypeString, Nullable: true},
	}}

	DimProductSchema = Schema{Table: TableDimProduct, Columns: []Column{
		{Name: "product_id", Type: TypeString},
		{Name: "product_name", Type: TypeString},
		{Name: "category", Type: TypeString},
		{Name: "vendor_id", Type: TypeString, Nullable: true},
		{Name: "unit_price", Type: TypeDecimal},
	}}
)

var registry = map[string]Schema{
	TableFactOrders:     FactOrdersSchema,
	TableFactPayments:   FactPaymentsSchema,
	TableFactRefunds:    FactRefundsSchema,
	TableFactOrderDaily: FactOrderDailySchema,
	TableDimDate:        DimDateSchema,
	TableDimCustomer:    DimCustomerSchema,
	TableDimProduct:     DimProductSchema,
}

// LookupSchema returns the registered schema for a table name.
func LookupSchema(table string) (Schema, bool) {
	s, ok := registry[table]
	return s, ok
}

// CheckSchema validates a table's declared schema against the registry.
// Sinks call it before touching storage.
func CheckSchema(t Table) error {
	want, ok := LookupSchema(t.Schema.Table)
	if !ok {
		return fmt.Errorf("%w: unknown table %q", ErrSchemaMismatch, t.Schema.Table)
	}
	if err := want.Validate(t.Schema); err != nil {
		return err
	}
	for i, row := range t.Rows {
		if len(row) != len(want.Columns) {
			return fmt.Errorf("%w: %s row %d has %d values, expected %d", ErrSchemaMismatch,
				want.Table, i, len(row), len(want.Columns))
		}
	}
	return nil
}

// WriteMode selects how a sink treats existing table contents.
type WriteMode int

const (
	// WriteReplace drops existing rows before writing (full refresh).
	WriteReplace WriteMode = iota
	// WriteAppend keeps existing rows.
	WriteAppend
)

func (m WriteMode) String() string {
	switch m {
	case WriteReplace:
		return "replace"
	case WriteAppend:
		return "append"
	default:
		return fmt.Sprintf("WriteMode(%d)", int(m))
	}
}

// Table is a named row set. Row values are nil for NULL, string, decimal.Decimal,
// float64, int64, bool or time.Time, following the column types.
type Table struct {
	Schema Schema
	Rows   [][]any
}

// Len returns the number of rows.
func (t Table) Len() int { return len(t.Rows) }
