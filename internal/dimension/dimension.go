// Package dimension builds the warehouse dimension tables.
package dimension

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/V4T54L/commerce-facts/internal/domain"
)

// Calendar bounds of dim_date, inclusive.
var (
	CalendarStart = time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)
	CalendarEnd   = time.Date(2026, time.December, 31, 0, 0, 0, 0, time.UTC)
)

// UnknownProductID keys the placeholder product row.
const UnknownProductID = "UNKNOWN"

// Dates returns one dim_date row per day in [from, to].
func Dates(from, to time.Time) domain.Table {
	from = truncateDay(from)
	to = truncateDay(to)

	var rows [][]any
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		_, week := d.ISOWeek()
		wd := d.Weekday()
		rows = append(rows, []any{
			d,
			wd.String(),
			int64(week),
			int64(d.Month()),
			int64((d.Month()-1)/3 + 1),
			int64(d.Year()),
			wd == time.Saturday || wd == time.Sunday,
		})
	}
	return domain.Table{Schema: domain.DimDateSchema, Rows: rows}
}

// Customers returns one dim_customer row per distinct non-null customer id, carrying the
// earliest known order created_at. Profile columns are not sourced and stay null.
func Customers(orders []domain.Order) domain.Table {
	first := make(map[string]*time.Time)
	for _, o := range orders {
		if !o.CustomerID.Valid {
			continue
		}
		cur, seen := first[o.CustomerID.String]
		if !seen {
			first[o.CustomerID.String] = nil
		}
		if !o.CreatedAt.Valid {
			continue
		}
		if cur == nil || o.CreatedAt.Time.Before(*cur) {
			t := o.CreatedAt.Time
			first[o.CustomerID.String] = &t
		}
	}

	ids := make([]string, 0, len(first))
	for id := range first {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	rows := make([][]any, 0, len(ids))
	for _, id := range ids {
		var created any
		if t := first[id]; t != nil {
			created = *t
		}
		rows = append(rows, []any{id, created, nil, nil, nil})
	}
	return domain.Table{Schema: domain.DimCustomerSchema, Rows: rows}
}

// Products returns the placeholder product dimension. Product data is not carried by
// any source feed.
func Products() domain.Table {
	return domain.Table{
		Schema: domain.DimProductSchema,
		Rows: [][]any{
			{UnknownProductID, "Product data not available", "N/A", nil, decimal.Zero},
		},
	}
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
