package quality

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/V4T54L/commerce-facts/internal/domain"
)

const rule = 60

// Summary returns the flat key-value view of the report. Null rates are rendered as
// empty values.
func (r Report) Summary() []domain.Field {
	c, o, l, rev := r.Completeness, r.Orphans, r.Latency, r.Revenue
	return []domain.Field{
		{Key: "report_date", Value: r.GeneratedAt.Format("2006-01-02 15:04:05 UTC")},
		{Key: "total_orders", Value: strconv.Itoa(r.TotalOrders)},
		{Key: "total_payments", Value: strconv.Itoa(r.TotalPayments)},
		{Key: "total_refunds", Value: strconv.Itoa(r.TotalRefunds)},
		{Key: "orders_missing_customer_id", Value: strconv.Itoa(c.OrdersMissingCustomerID)},
		{Key: "orders_missing_amount", Value: strconv.Itoa(c.OrdersZeroAmount)},
		{Key: "orders_missing_created_at", Value: strconv.Itoa(c.OrdersMissingCreatedAt)},
		{Key: "payments_missing_order_id", Value: strconv.Itoa(c.PaymentsMissingOrderID)},
		{Key: "payments_missing_payment_date", Value: strconv.Itoa(c.PaymentsMissingPaymentDate)},
		{Key: "refunds_missing_payment_id", Value: strconv.Itoa(c.RefundsMissingPaymentID)},
		{Key: "orphan_payments", Value: strconv.Itoa(o.Payments)},
		{Key: "orphan_refunds", Value: strconv.Itoa(o.Refunds)},
		{Key: "payments_over_7_days", Value: strconv.Itoa(l.Over7Days)},
		{Key: "payments_over_30_days", Value: strconv.Itoa(l.Over30Days)},
		{Key: "avg_days_to_payment", Value: strconv.FormatFloat(l.AvgDays, 'f', -1, 64)},
		{Key: "gross_revenue", Value: rev.Gross.StringFixed(2)},
		{Key: "total_refunded", Value: rev.Refunded.StringFixed(2)},
		{Key: "net_revenue", Value: rev.Net.StringFixed(2)},
		{Key: "payment_success_rate", Value: rate(rev.PaymentSuccessRate)},
		{Key: "refund_rate", Value: rate(rev.RefundRate)},
	}
}

// Lines renders the report as human-readable text lines.
func (r Report) Lines() []string {
	var b lines
	b.add(strings.Repeat("=", rule))
	b.add("DATA QUALITY REPORT")
	b.add(strings.Repeat("=", rule))
	b.add("Generated: %s", r.GeneratedAt.Format("2006-01-02 15:04:05 UTC"))
	b.add("  Orders: %d | Payments: %d | Refunds: %d", r.TotalOrders, r.TotalPayments, r.TotalRefunds)
	b.add("")

	c := r.Completeness
	b.section("1. DATA COMPLETENESS")
	b.add("  Orders missing customer_id:    %d", c.OrdersMissingCustomerID)
	b.add("  Orders with zero amount:       %d", c.OrdersZeroAmount)
	b.add("  Orders missing created_at:     %d", c.OrdersMissingCreatedAt)
	b.add("  Payments missing order_id:     %d", c.PaymentsMissingOrderID)
	b.add("  Payments missing payment_date: %d", c.PaymentsMissingPaymentDate)
	b.add("  Refunds missing payment_id:    %d", c.RefundsMissingPaymentID)
	b.add("")

	b.section("2. ORPHAN RECORDS")
	b.add("  Payments without matching order:  %d", r.Orphans.Payments)
	b.add("  Refunds without matching payment: %d", r.Orphans.Refunds)
	b.add("")

	l := r.Latency
	b.section("3. LATE ARRIVAL DETECTION")
	b.add("  Payments arriving > 7 days after order:  %d", l.Over7Days)
	b.add("  Payments arriving > 30 days after order: %d", l.Over30Days)
	b.add("  Average days from order to payment:      %.2f", l.AvgDays)
	b.add("")

	rev := r.Revenue
	b.section("4. REVENUE INTEGRITY")
	b.add("  Gross Revenue:          $%s", money(rev.Gross))
	b.add("  Total Refunded:         $%s", money(rev.Refunded))
	b.add("  Net Revenue:            $%s", money(rev.Net))
	b.add("  Payment Success Rate:   %s", percent(rev.PaymentSuccessRate))
	b.add("  Refund Rate:            %s", percent(rev.RefundRate))
	b.add("")

	b.section("5. PAYMENT STATUS BREAKDOWN")
	for _, s := range r.PaymentStatuses {
		pct := float64(s.Count) / float64(r.TotalPayments) * 100
		b.add("  %-15s %5d (%5.1f%%)", s.Key, s.Count, pct)
	}
	b.add("")

	b.section("6. VENDOR BREAKDOWN")
	for _, v := range r.Vendors {
		b.add("  %-15s %5d orders", v.Key, v.Count)
	}
	b.add("")
	b.add(strings.Repeat("=", rule))
	return b
}

// Domain converts the report for report sinks.
func (r Report) Domain() domain.Report {
	return domain.Report{
		Name:        ReportName,
		GeneratedAt: r.GeneratedAt,
		Fields:      r.Summary(),
		Lines:       r.Lines(),
	}
}

type lines []string

func (l *lines) add(format string, args ...any) {
	if len(args) == 0 {
		*l = append(*l, format)
		return
	}
	*l = append(*l, fmt.Sprintf(format, args...))
}

func (l *lines) section(title string) {
	l.add(title)
	l.add(strings.Repeat("-", rule))
}

func rate(f sql.NullFloat64) string {
	if !f.Valid {
		return ""
	}
	return strconv.FormatFloat(f.Float64, 'f', -1, 64)
}

func percent(f sql.NullFloat64) string {
	if !f.Valid {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", f.Float64*100)
}

// money formats d with two decimals and thousands separators.
func money(d decimal.Decimal) string {
	s := d.StringFixed(2)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, ch := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(ch)
	}
	return sign + b.String() + "." + frac
}
