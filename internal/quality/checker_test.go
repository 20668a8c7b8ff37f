package quality

import (
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V4T54L/commerce-facts/internal/domain"
)

var fixedNow = time.Date(2024, 2, 1, 8, 30, 0, 0, time.UTC)

func str(s string) sql.NullString { return sql.NullString{String: s, Valid: true} }

func ts(t time.Time) sql.NullTime { return sql.NullTime{Time: t, Valid: true} }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func fixture() ([]domain.Order, []domain.Payment, []domain.Refund) {
	jan1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	orders := []domain.Order{
		{OrderID: str("A"), CustomerID: str("C1"), OrderAmount: dec("10"), CreatedAt: ts(jan1), Vendor: "acme"},
		{OrderID: str("B"), OrderAmount: dec("0"), CreatedAt: ts(jan1), Vendor: "acme"},
		{OrderID: str("C"), CustomerID: str("C2"), OrderAmount: dec("5"), Vendor: "globex"},
	}
	payments := []domain.Payment{
		{PaymentID: str("P1"), OrderID: str("A"), PaymentAmount: dec("10"), PaymentStatus: str("success"), PaymentDate: ts(jan1.Add(2 * day))},
		{PaymentID: str("P2"), OrderID: str("B"), PaymentAmount: dec("1000.5"), PaymentStatus: str("success"), PaymentDate: ts(jan1.Add(40 * day))},
		{PaymentID: str("P3"), OrderID: str("Z"), PaymentAmount: dec("20"), PaymentStatus: str("failed"), PaymentDate: ts(jan1)},
		{PaymentID: str("P4"), PaymentAmount: dec("7"), PaymentStatus: str("failed")},
	}
	refunds := []domain.Refund{
		{RefundID: str("R1"), OrderID: str("A"), PaymentID: str("P1"), RefundAmount: dec("3")},
		{RefundID: str("R2"), OrderID: str("A"), PaymentID: str("P9"), RefundAmount: dec("1")},
		{RefundID: str("R3"), RefundAmount: dec("0.5")},
	}
	return orders, payments, refunds
}

func TestCheck(t *testing.T) {
	orders, payments, refunds := fixture()
	r := NewChecker(func() time.Time { return fixedNow }).Check(orders, payments, refunds)

	assert.Equal(t, fixedNow, r.GeneratedAt)
	assert.Equal(t, 3, r.TotalOrders)
	assert.Equal(t, 4, r.TotalPayments)
	assert.Equal(t, 3, r.TotalRefunds)

	assert.Equal(t, Completeness{
		OrdersMissingCustomerID:    1,
		OrdersZeroAmount:           1,
		OrdersMissingCreatedAt:     1,
		PaymentsMissingOrderID:     1,
		PaymentsMissingPaymentDate: 1,
		RefundsMissingPaymentID:    1,
	}, r.Completeness)

	assert.Equal(t, Orphans{Payments: 2, Refunds: 2}, r.Orphans, "unknown and null references are both orphans")

	assert.Equal(t, Latency{Matched: 2, Over7Days: 1, Over30Days: 1, AvgDays: 21}, r.Latency)

	assert.True(t, r.Revenue.Gross.Equal(dec("1010.5")), "gross only counts successful payments")
	assert.True(t, r.Revenue.Refunded.Equal(dec("4.5")))
	assert.True(t, r.Revenue.Net.Equal(dec("1006")))
	assert.Equal(t, 0.5, r.Revenue.PaymentSuccessRate.Float64)
	assert.Equal(t, 0.0045, r.Revenue.RefundRate.Float64)

	assert.Equal(t, []Count{{"failed", 2}, {"success", 2}}, r.PaymentStatuses)
	assert.Equal(t, []Count{{"acme", 2}, {"globex", 1}}, r.Vendors)
}

func TestSingleOrphanCountedOnce(t *testing.T) {
	orders := []domain.Order{{OrderID: str("A"), Vendor: "v"}}
	payments := []domain.Payment{
		{PaymentID: str("P1"), OrderID: str("A")},
		{PaymentID: str("P2"), OrderID: str("missing")},
	}
	r := NewChecker(nil).Check(orders, payments, nil)
	assert.Equal(t, 1, r.Orphans.Payments)
}

func TestCheckEmptyTables(t *testing.T) {
	r := NewChecker(func() time.Time { return fixedNow }).Check(nil, nil, nil)

	assert.Zero(t, r.Latency)
	assert.True(t, r.Revenue.Gross.IsZero())
	assert.False(t, r.Revenue.PaymentSuccessRate.Valid)
	assert.False(t, r.Revenue.RefundRate.Valid)
	assert.Empty(t, r.PaymentStatuses)
	assert.Empty(t, r.Vendors)

	fields := r.Summary()
	assert.Equal(t, domain.Field{Key: "payment_success_rate", Value: ""}, fields[len(fields)-2])
	assert.NotEmpty(t, r.Lines())
}

func TestRendering(t *testing.T) {
	orders, payments, refunds := fixture()
	r := NewChecker(func() time.Time { return fixedNow }).Check(orders, payments, refunds)

	got := map[string]string{}
	for _, f := range r.Summary() {
		got[f.Key] = f.Value
	}
	assert.Equal(t, "2024-02-01 08:30:00 UTC", got["report_date"])
	assert.Equal(t, "2", got["orphan_payments"])
	assert.Equal(t, "21", got["avg_days_to_payment"])
	assert.Equal(t, "1010.50", got["gross_revenue"])
	assert.Equal(t, "0.0045", got["refund_rate"])

	text := r.Lines()
	assert.Contains(t, text, "  Gross Revenue:          $1,010.50")
	assert.Contains(t, text, "  Refund Rate:            0.45%")
	assert.Contains(t, text, "  failed              2 ( 50.0%)")
	assert.Contains(t, text, "  acme                2 orders")

	rep := r.Domain()
	require.Equal(t, ReportName, rep.Name)
	assert.Equal(t, "2024-02-01", rep.Day())
}

func TestMoney(t *testing.T) {
	tests := map[string]string{
		"0":           "0.00",
		"999.5":       "999.50",
		"1234567.891": "1,234,567.89",
		"-1000":       "-1,000.00",
	}
	for in, want := range tests {
		assert.Equal(t, want, money(dec(in)), in)
	}
}
