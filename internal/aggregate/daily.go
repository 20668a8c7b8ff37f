// Package aggregate derives the daily revenue fact (fact_order_daily) from canonical tables.
package aggregate

import (
	"database/sql"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/V4T54L/commerce-facts/internal/domain"
)

// ratePlaces is the rounding precision of derived rates.
const ratePlaces = 4

type groupKey struct {
	date   time.Time
	vendor string
}

type group struct {
	orderIDs map[string]struct{}
	count    int64
}

type orderTotals struct {
	gross   decimal.Decimal
	paid    int64
	refunds decimal.Decimal
}

// BuildDaily groups orders by (calendar day of created_at, vendor) and joins payments and
// refunds on order_id. gross_revenue sums every matched payment whatever its status;
// paid_count only counts successful ones. Orders without created_at form no group, and
// payments or refunds with a null order_id never match. Empty orders give an empty result.
// Rows are returned sorted by (order_date, vendor).
func BuildDaily(orders []domain.Order, payments []domain.Payment, refunds []domain.Refund) []domain.DailyAggregate {
	if len(orders) == 0 {
		return []domain.DailyAggregate{}
	}

	groups := make(map[groupKey]*group)
	for _, o := range orders {
		if !o.CreatedAt.Valid {
			continue
		}
		t := o.CreatedAt.Time.UTC()
		key := groupKey{
			date:   time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC),
			vendor: o.Vendor,
		}
		g, ok := groups[key]
		if !ok {
			g = &group{orderIDs: make(map[string]struct{})}
			groups[key] = g
		}
		g.count++
		if o.OrderID.Valid {
			g.orderIDs[o.OrderID.String] = struct{}{}
		}
	}

	totals := make(map[string]*orderTotals)
	totalsFor := func(id string) *orderTotals {
		t, ok := totals[id]
		if !ok {
			t = &orderTotals{gross: decimal.Zero, refunds: decimal.Zero}
			totals[id] = t
		}
		return t
	}
	for _, p := range payments {
		if !p.OrderID.Valid {
			continue
		}
		t := totalsFor(p.OrderID.String)
		t.gross = t.gross.Add(p.PaymentAmount)
		if p.PaymentStatus.Valid && p.PaymentStatus.String == domain.PaymentStatusSuccess {
			t.paid++
		}
	}
	for _, r := range refunds {
		if !r.OrderID.Valid {
			continue
		}
		t := totalsFor(r.OrderID.String)
		t.refunds = t.refunds.Add(r.RefundAmount)
	}

	out := make([]domain.DailyAggregate, 0, len(groups))
	for key, g := range groups {
		row := domain.DailyAggregate{
			OrderDate:    key.date,
			Vendor:       key.vendor,
			GrossRevenue: decimal.Zero,
			TotalRefunds: decimal.Zero,
			OrderCount:   g.count,
		}
		for id := range g.orderIDs {
			t, ok := totals[id]
			if !ok {
				continue
			}
			row.GrossRevenue = row.GrossRevenue.Add(t.gross)
			row.TotalRefunds = row.TotalRefunds.Add(t.refunds)
			row.PaidCount += t.paid
		}
		row.NetRevenue = row.GrossRevenue.Sub(row.TotalRefunds)
		row.PaymentSuccessRate = SuccessRate(row.PaidCount, row.OrderCount)
		row.RefundRate = RefundRate(row.TotalRefunds, row.GrossRevenue)
		out = append(out, row)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].OrderDate.Equal(out[j].OrderDate) {
			return out[i].OrderDate.Before(out[j].OrderDate)
		}
		return out[i].Vendor < out[j].Vendor
	})
	return out
}

// SuccessRate is paid/orders rounded to four places, null when orders is zero.
func SuccessRate(paid, orders int64) sql.NullFloat64 {
	if orders == 0 {
		return sql.NullFloat64{}
	}
	return Ratio(decimal.NewFromInt(paid), decimal.NewFromInt(orders))
}

// RefundRate is refunds/gross rounded to four places, null when gross is zero.
func RefundRate(refunds, gross decimal.Decimal) sql.NullFloat64 {
	return Ratio(refunds, gross)
}

// Ratio divides num by den rounded to four places. A zero denominator yields null.
func Ratio(num, den decimal.Decimal) sql.NullFloat64 {
	if den.IsZero() {
		return sql.NullFloat64{}
	}
	f, _ := num.DivRound(den, ratePlaces).Float64()
	return sql.NullFloat64{Float64: f, Valid: true}
}
