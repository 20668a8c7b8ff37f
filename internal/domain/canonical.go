package domain

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// Order is one canonical order row (fact_orders).
type Order struct {
	OrderID     sql.NullString
	CustomerID  sql.NullString
	OrderAmount decimal.Decimal
	OrderStatus sql.NullString
	CreatedAt   sql.NullTime
	EventID     string
	Vendor      string
	EventType   EventType
}

// Payment is one canonical payment row (fact_payments).
type Payment struct {
	PaymentID     sql.NullString
	OrderID       sql.NullString
	PaymentAmount decimal.Decimal
	PaymentStatus sql.NullString
	PaymentMethod sql.NullString
	PaymentDate   sql.NullTime
	EventID       string
	Vendor        string
}

// Refund is one canonical refund row (fact_refunds).
type Refund struct {
	RefundID     sql.NullString
	OrderID      sql.NullString
	PaymentID    sql.NullString
	RefundAmount decimal.Decimal
	RefundReason sql.NullString
	RefundType   sql.NullString
	RefundDate   sql.NullTime
	EventID      string
	Vendor       string
}

// DailyAggregate is one (order_date, vendor) row of fact_order_daily.
type DailyAggregate struct {
	OrderDate          time.Time
	Vendor             string
	GrossRevenue       decimal.Decimal
	TotalRefunds       decimal.Decimal
	NetRevenue         decimal.Decimal
	OrderCount         int64
	PaidCount          int64
	PaymentSuccessRate sql.NullFloat64
	RefundRate         sql.NullFloat64
}

// PaymentStatusSuccess and PaymentStatusFailed are the canonical payment outcomes.
const (
	PaymentStatusSuccess = "success"
	PaymentStatusFailed  = "failed"
)

// OrdersTable renders orders as a fact_orders table.
func OrdersTable(orders []Order) Table {
	rows := make([][]any, len(orders))
	for i, o := range orders {
		rows[i] = []any{
			nullString(o.OrderID),
			nullString(o.CustomerID),
			o.OrderAmount,
			nullString(o.OrderStatus),
			nullTime(o.CreatedAt),
			o.EventID,
			o.Vendor,
			string(o.EventType),
		}
	}
	return Table{Schema: FactOrdersSchema, Rows: rows}
}

// PaymentsTable renders payments as a fact_payments table.
func PaymentsTable(payments []Payment) Table {
	rows := make([][]any, len(payments))
	for i, p := range payments {
		rows[i] = []any{
			nullString(p.PaymentID),
			nullString(p.OrderID),
			p.PaymentAmount,
			nullString(p.PaymentStatus),
			nullString(p.PaymentMethod),
			nullTime(p.PaymentDate),
			p.EventID,
			p.Vendor,
		}
	}
	return Table{Schema: FactPaymentsSchema, Rows: rows}
}

// RefundsTable renders refunds as a fact_refunds table.
func RefundsTable(refunds []Refund) Table {
	rows := make([][]any, len(refunds))
	for i, r := range refunds {
		rows[i] = []any{
			nullString(r.RefundID),
			nullString(r.OrderID),
			nullString(r.PaymentID),
			r.RefundAmount,
			nullString(r.RefundReason),
			nullString(r.RefundType),
			nullTime(r.RefundDate),
			r.EventID,
			r.Vendor,
		}
	}
	return Table{Schema: FactRefundsSchema, Rows: rows}
}

// DailyTable renders daily aggregates as a fact_order_daily table.
func DailyTable(daily []DailyAggregate) Table {
	rows := make([][]any, len(daily))
	for i, d := range daily {
		rows[i] = []any{
			d.OrderDate,
			d.Vendor,
			d.GrossRevenue,
			d.TotalRefunds,
			d.NetRevenue,
			d.OrderCount,
			d.PaidCount,
			nullFloat(d.PaymentSuccessRate),
			nullFloat(d.RefundRate),
		}
	}
	return Table{Schema: FactOrderDailySchema, Rows: rows}
}

func nullString(s sql.NullString) any {
	if !s.Valid {
		return nil
	}
	return s.String
}

func nullTime(t sql.NullTime) any {
	if !t.Valid {
		return nil
	}
	return t.Time
}

func nullFloat(f sql.NullFloat64) any {
	if !f.Valid {
		return nil
	}
	return f.Float64
}
