// Package quality computes read-only completeness, orphan, latency and revenue integrity
// statistics over the canonical tables.
package quality

import (
	"database/sql"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/V4T54L/commerce-facts/internal/aggregate"
	"github.com/V4T54L/commerce-facts/internal/domain"
)

// ReportName names the quality report in report sinks.
const ReportName = "quality_report"

const day = 24 * time.Hour

// Completeness counts missing or zero-valued canonical fields.
type Completeness struct {
	OrdersMissingCustomerID    int
	OrdersZeroAmount           int
	OrdersMissingCreatedAt     int
	PaymentsMissingOrderID     int
	PaymentsMissingPaymentDate int
	RefundsMissingPaymentID    int
}

// Orphans counts child rows whose parent is absent from the current run. A null
// reference is an orphan.
type Orphans struct {
	Payments int
	Refunds  int
}

// Latency describes the delay between order creation and payment over order/payment
// pairs joined on order_id. Pairs missing either timestamp are excluded.
type Latency struct {
	Matched    int
	Over7Days  int
	Over30Days int
	AvgDays    float64
}

// Revenue is the integrity view of revenue. Gross only counts successful payments,
// which differs from the daily fact's gross_revenue.
type Revenue struct {
	Gross              decimal.Decimal
	Refunded           decimal.Decimal
	Net                decimal.Decimal
	SuccessfulPayments int
	PaymentSuccessRate sql.NullFloat64
	RefundRate         sql.NullFloat64
}

// Count is one bucket of a distribution breakdown.
type Count struct {
	Key   string
	Count int
}

// Report is the result of one quality check.
type Report struct {
	GeneratedAt     time.Time
	TotalOrders     int
	TotalPayments   int
	TotalRefunds    int
	Completeness    Completeness
	Orphans         Orphans
	Latency         Latency
	Revenue         Revenue
	PaymentStatuses []Count
	Vendors         []Count
}

// Checker builds quality reports.
type Checker struct {
	now func() time.Time
}

// NewChecker creates a Checker. A nil clock uses time.Now.
func NewChecker(now func() time.Time) *Checker {
	if now == nil {
		now = time.Now
	}
	return &Checker{now: now}
}

// Check computes the report. The input tables are not modified.
func (c *Checker) Check(orders []domain.Order, payments []domain.Payment, refunds []domain.Refund) Report {
	r := Report{
		GeneratedAt:   c.now().UTC(),
		TotalOrders:   len(orders),
		TotalPayments: len(payments),
		TotalRefunds:  len(refunds),
	}

	orderIDs := make(map[string]struct{}, len(orders))
	for _, o := range orders {
		if !o.CustomerID.Valid {
			r.Completeness.OrdersMissingCustomerID++
		}
		if o.OrderAmount.IsZero() {
			r.Completeness.OrdersZeroAmount++
		}
		if !o.CreatedAt.Valid {
			r.Completeness.OrdersMissingCreatedAt++
		}
		if o.OrderID.Valid {
			orderIDs[o.OrderID.String] = struct{}{}
		}
	}

	paymentIDs := make(map[string]struct{}, len(payments))
	for _, p := range payments {
		if !p.OrderID.Valid {
			r.Completeness.PaymentsMissingOrderID++
		}
		if !p.PaymentDate.Valid {
			r.Completeness.PaymentsMissingPaymentDate++
		}
		if !contains(orderIDs, p.OrderID) {
			r.Orphans.Payments++
		}
		if p.PaymentID.Valid {
			paymentIDs[p.PaymentID.String] = struct{}{}
		}
	}

	for _, rf := range refunds {
		if !rf.PaymentID.Valid {
			r.Completeness.RefundsMissingPaymentID++
		}
		if !contains(paymentIDs, rf.PaymentID) {
			r.Orphans.Refunds++
		}
	}

	r.Latency = latency(orders, payments)
	r.Revenue = revenue(payments, refunds)
	r.PaymentStatuses = paymentStatusBreakdown(payments)
	r.Vendors = vendorBreakdown(orders)
	return r
}

func contains(set map[string]struct{}, id sql.NullString) bool {
	if !id.Valid {
		return false
	}
	_, ok := set[id.String]
	return ok
}

func latency(orders []domain.Order, payments []domain.Payment) Latency {
	created := make(map[string][]time.Time)
	for _, o := range orders {
		if o.OrderID.Valid && o.CreatedAt.Valid {
			created[o.OrderID.String] = append(created[o.OrderID.String], o.CreatedAt.Time)
		}
	}

	var l Latency
	var total float64
	for _, p := range payments {
		if !p.OrderID.Valid || !p.PaymentDate.Valid {
			continue
		}
		for _, c := range created[p.OrderID.String] {
			days := float64(p.PaymentDate.Time.Sub(c)) / float64(day)
			l.Matched++
			total += days
			if days > 7 {
				l.Over7Days++
			}
			if days > 30 {
				l.Over30Days++
			}
		}
	}
	if l.Matched > 0 {
		l.AvgDays = math.Round(total/float64(l.Matched)*100) / 100
	}
	return l
}

func revenue(payments []domain.Payment, refunds []domain.Refund) Revenue {
	rev := Revenue{Gross: decimal.Zero, Refunded: decimal.Zero}
	for _, p := range payments {
		if p.PaymentStatus.Valid && p.PaymentStatus.String == domain.PaymentStatusSuccess {
			rev.Gross = rev.Gross.Add(p.PaymentAmount)
			rev.SuccessfulPayments++
		}
	}
	for _, r := range refunds {
		rev.Refunded = rev.Refunded.Add(r.RefundAmount)
	}
	rev.Gross = rev.Gross.Round(2)
	rev.Refunded = rev.Refunded.Round(2)
	rev.Net = rev.Gross.Sub(rev.Refunded)
	rev.PaymentSuccessRate = aggregate.SuccessRate(int64(rev.SuccessfulPayments), int64(len(payments)))
	rev.RefundRate = aggregate.RefundRate(rev.Refunded, rev.Gross)
	return rev
}

// paymentStatusBreakdown counts payments per canonical status. Null statuses are not
// bucketed but still count towards the total.
func paymentStatusBreakdown(payments []domain.Payment) []Count {
	counts := make(map[string]int)
	for _, p := range payments {
		if p.PaymentStatus.Valid {
			counts[p.PaymentStatus.String]++
		}
	}
	return sortedCounts(counts)
}

func vendorBreakdown(orders []domain.Order) []Count {
	counts := make(map[string]int)
	for _, o := range orders {
		counts[o.Vendor]++
	}
	return sortedCounts(counts)
}

// sortedCounts orders buckets by count descending, then key ascending.
func sortedCounts(counts map[string]int) []Count {
	out := make([]Count, 0, len(counts))
	for k, n := range counts {
		out = append(out, Count{Key: k, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}
